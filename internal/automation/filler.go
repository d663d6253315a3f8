package automation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/dom"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/outreach"
)

// NoteFiller writes the active client's default template into an open,
// still-empty invitation note.
type NoteFiller struct {
	rec    *outreach.Records
	scrape time.Duration
	log    *slog.Logger
}

func NewNoteFiller(rec *outreach.Records, scrapeTimeout time.Duration, log *slog.Logger) *NoteFiller {
	return &NoteFiller{rec: rec, scrape: scrapeTimeout, log: log.With("module", "notes")}
}

// Fill reports whether it wrote a note. A missing dialog, a field the user
// already typed into, and a missing client or template all return false, nil.
func (f *NoteFiller) Fill(ctx context.Context, p dom.Page) (bool, error) {
	field, err := p.Find(ctx, noteFieldSelectors()...)
	if errors.Is(err, dom.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	cur, err := field.Value()
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(cur) != "" {
		return false, nil
	}

	tmpl, err := f.rec.DefaultTemplate(ctx)
	if errors.Is(err, outreach.ErrNoClient) || errors.Is(err, outreach.ErrTemplateIndex) {
		f.log.Debug("no template to fill", "err", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	v, err := f.scrapeValues(ctx, p)
	if err != nil {
		return false, err
	}
	if err := field.SetValue(outreach.Render(tmpl, v)); err != nil {
		return false, err
	}
	if err := f.rec.SavePreview(ctx, v); err != nil {
		f.log.Warn("save preview failed", "err", err)
	}
	f.log.Info("note filled", "url", p.URL(), "first_name", v.FirstName)
	return true, nil
}

func (f *NoteFiller) scrapeValues(ctx context.Context, p dom.Page) (outreach.Values, error) {
	sctx, cancel := context.WithTimeout(ctx, f.scrape)
	defer cancel()

	full := p.TextOf(sctx, NameSelectors...)
	first := full
	if i := strings.Index(full, " "); i >= 0 {
		first = full[:i]
	}
	tags, err := f.rec.Tags(ctx, p.URL())
	if err != nil {
		return outreach.Values{}, err
	}
	return outreach.Values{
		FirstName: first,
		Title:     p.TextOf(sctx, TitleSelectors...),
		Company:   p.TextOf(sctx, CompanySelectors...),
		Tag:       outreach.TagString(tags),
	}, nil
}
