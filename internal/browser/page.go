package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/dom"
)

var hookSeq atomic.Int64

// page adapts a rod page to dom.Page.
type page struct {
	p             *rod.Page
	screenshotDir string
}

func newPage(p *rod.Page, screenshotDir string) *page {
	return &page{p: p, screenshotDir: screenshotDir}
}

func (pg *page) URL() string {
	info, err := pg.p.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (pg *page) Find(ctx context.Context, selectors ...string) (dom.Element, error) {
	p := pg.p.Context(ctx)
	for _, sel := range selectors {
		has, el, err := p.Has(sel)
		if err != nil {
			return nil, err
		}
		if has {
			return &element{el: el}, nil
		}
	}
	return nil, dom.ErrNotFound
}

func (pg *page) WaitAny(ctx context.Context, timeout time.Duration, selectors ...string) (dom.Element, error) {
	if len(selectors) == 0 {
		return nil, dom.ErrNotFound
	}
	rc := pg.p.Context(ctx).Timeout(timeout).Race()
	for _, sel := range selectors {
		rc = rc.Element(sel)
	}
	el, err := rc.Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dom.ErrNotFound, err)
	}
	return &element{el: el.CancelTimeout()}, nil
}

func (pg *page) WaitText(ctx context.Context, timeout time.Duration, selector, text string) (dom.Element, error) {
	re := `^\s*` + regexp.QuoteMeta(text) + `\s*$`
	el, err := pg.p.Context(ctx).Timeout(timeout).ElementR(selector, re)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dom.ErrNotFound, err)
	}
	return &element{el: el.CancelTimeout()}, nil
}

func (pg *page) TextOf(ctx context.Context, selectors ...string) string {
	p := pg.p.Context(ctx)
	for _, sel := range selectors {
		has, el, err := p.Has(sel)
		if err != nil || !has {
			continue
		}
		t, err := el.Text()
		if err != nil {
			continue
		}
		return strings.TrimSpace(t)
	}
	return ""
}

// observer runs in the page: it reports the note dialog opening and clicks
// on the send control through the exposed function.
const observer = `(fn, dialogField, sendButton, sendText) => {
	const report = (kind) => window[fn](kind).catch(() => {});
	let open = false;
	const check = () => {
		const now = !!(dialogField && document.querySelector(dialogField));
		if (now && !open) report("noteDialog");
		open = now;
	};
	new MutationObserver(check).observe(document.body, { childList: true, subtree: true });
	check();
	document.body.addEventListener("click", (e) => {
		const t = e.target;
		if (sendButton && t && t.matches && t.matches(sendButton) && t.textContent.trim() === sendText) {
			report("sendClicked");
		}
	}, true);
}`

func (pg *page) Watch(ctx context.Context, h dom.Hooks) error {
	name := fmt.Sprintf("__outreachHook%d", hookSeq.Add(1))
	stop, err := pg.p.Expose(name, func(req gson.JSON) (interface{}, error) {
		switch req.Str() {
		case "noteDialog":
			if h.NoteDialog != nil {
				go h.NoteDialog()
			}
		case "sendClicked":
			if h.SendClicked != nil {
				go h.SendClicked()
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("expose hook: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = stop()
	}()

	if _, err := pg.p.Context(ctx).Eval(observer, name, h.DialogField, h.SendButton, h.SendText); err != nil {
		return fmt.Errorf("install observer: %w", err)
	}
	return nil
}

// Screenshot saves a full-page PNG named after prefix and returns its path.
// It does nothing when no screenshot directory is configured.
func (pg *page) Screenshot(prefix string) (string, error) {
	if pg.screenshotDir == "" {
		return "", nil
	}
	data, err := pg.p.Screenshot(true, &proto.PageCaptureScreenshot{})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(pg.screenshotDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(pg.screenshotDir, fmt.Sprintf("%s-%d.png", prefix, time.Now().Unix()))
	return path, os.WriteFile(path, data, 0o644)
}

type element struct {
	el *rod.Element
}

func (e *element) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) Text() (string, error) {
	return e.el.Text()
}

func (e *element) Value() (string, error) {
	res, err := e.el.Eval(`() => ("value" in this ? this.value : this.textContent) || ""`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *element) SetValue(v string) error {
	_, err := e.el.Eval(`(v) => {
		if ("value" in this) this.value = v; else this.textContent = v;
		this.dispatchEvent(new Event("input", { bubbles: true }));
	}`, v)
	return err
}
