package automation

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/dom"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/outreach"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/tabs"
)

type Source interface {
	Subscribe(tabs.Listener) (unsubscribe func())
}

type Pages interface {
	Page(id tabs.ID) (dom.Page, error)
}

// Runner gives every profile page load its own goroutine: an observer for the
// note dialog and manual sends, plus one agent run.
type Runner struct {
	agent   *Agent
	filler  *NoteFiller
	rec     *outreach.Records
	pages   Pages
	pattern string
	log     *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	loads   map[tabs.ID]context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

func NewRunner(agent *Agent, filler *NoteFiller, rec *outreach.Records, pages Pages, pattern string, log *slog.Logger) *Runner {
	return &Runner{
		agent:   agent,
		filler:  filler,
		rec:     rec,
		pages:   pages,
		pattern: pattern,
		log:     log.With("module", "runner"),
		loads:   map[tabs.ID]context.CancelFunc{},
	}
}

// Start listens to src until the returned stop func is called or ctx ends.
// stop waits for every page goroutine to return.
func (r *Runner) Start(ctx context.Context, src Source) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	unsubscribe := src.Subscribe(tabs.Listener{
		OnUpdated: r.onUpdated,
		OnRemoved: func(ev tabs.Removed) { r.end(ev.Tab) },
	})
	return func() {
		unsubscribe()
		r.mu.Lock()
		r.stopped = true
		for id, c := range r.loads {
			c()
			delete(r.loads, id)
		}
		r.mu.Unlock()
		cancel()
		r.wg.Wait()
	}
}

func (r *Runner) onUpdated(ev tabs.Updated) {
	if ev.Status != tabs.StatusComplete || !strings.Contains(ev.URL, r.pattern) {
		return
	}
	r.mu.Lock()
	if r.stopped || r.ctx == nil {
		r.mu.Unlock()
		return
	}
	// A new load replaces whatever ran for the previous document in this tab.
	if c, ok := r.loads[ev.Tab]; ok {
		c()
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.loads[ev.Tab] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.handle(ctx, ev.Tab)
	}()
}

func (r *Runner) end(id tabs.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.loads[id]; ok {
		c()
		delete(r.loads, id)
	}
}

func (r *Runner) handle(ctx context.Context, id tabs.ID) {
	log := r.log.With("tab", id)
	p, err := r.pages.Page(id)
	if err != nil {
		log.Warn("attach page failed", "err", err)
		return
	}
	if err := p.Watch(ctx, dom.Hooks{
		DialogField: strings.Join(noteFieldSelectors(), ", "),
		SendButton:  SendSelector,
		SendText:    SendText,
		NoteDialog: func() {
			if _, err := r.filler.Fill(ctx, p); err != nil {
				log.Warn("fill note failed", "err", err)
			}
		},
		SendClicked: func() { r.manualSend(ctx, p) },
	}); err != nil {
		log.Warn("install page observer failed", "err", err)
	}

	url := p.URL()
	outcome, err := r.agent.Run(ctx, p)
	if err != nil {
		log.Warn("automation failed", "url", url, "err", err)
	}
	if outcome == "" {
		return
	}
	// Keep the page marked so the agent's own Send click is not logged twice.
	<-ctx.Done()
	r.agent.Release(url)
}

func (r *Runner) manualSend(ctx context.Context, p dom.Page) {
	url := p.URL()
	if r.agent.Automating(url) {
		return
	}
	name := p.TextOf(ctx, NameSelectors...)
	if _, err := r.rec.Record(ctx, name, url, models.OutcomeManual); err != nil {
		r.log.Warn("log manual send failed", "url", url, "err", err)
	}
}
