// Package visits measures how long profile pages stay open. Start times live
// only in memory; a restart in the middle of a visit loses that visit.
package visits

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/tabs"
)

// Source is the tab lifecycle feed the tracker listens to.
type Source interface {
	Subscribe(tabs.Listener) (unsubscribe func())
	Get(tabs.ID) (tabs.Info, bool)
}

type Tracker struct {
	st      *store.Store
	src     Source
	pattern string
	now     func() time.Time
	log     *slog.Logger

	mu          sync.Mutex
	enabled     bool
	unsubscribe func()
	starts      map[tabs.ID]time.Time
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(st *store.Store, src Source, pattern string, log *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		st:      st,
		src:     src,
		pattern: pattern,
		now:     time.Now,
		log:     log.With("module", "visits"),
		starts:  map[tabs.ID]time.Time{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Enable attaches the tab listeners. Calling it while enabled does nothing.
func (t *Tracker) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled {
		return
	}
	t.unsubscribe = t.src.Subscribe(tabs.Listener{
		OnUpdated: t.onUpdated,
		OnRemoved: t.onRemoved,
	})
	t.enabled = true
	t.log.Info("visit tracking enabled")
}

// Disable detaches the listeners and forgets every visit still being timed.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.unsubscribe()
	t.unsubscribe = nil
	t.starts = map[tabs.ID]time.Time{}
	t.enabled = false
	t.log.Info("visit tracking disabled")
}

func (t *Tracker) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Tracker) onUpdated(u tabs.Updated) {
	if u.Status != tabs.StatusComplete || !strings.Contains(u.URL, t.pattern) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.starts[u.Tab] = t.now()
}

func (t *Tracker) onRemoved(r tabs.Removed) {
	t.mu.Lock()
	start, ok := t.starts[r.Tab]
	if !ok || !t.enabled {
		t.mu.Unlock()
		return
	}
	duration := t.now().Sub(start)
	delete(t.starts, r.Tab)
	t.mu.Unlock()

	info, ok := t.src.Get(r.Tab)
	if !ok || info.URL == "" {
		t.log.Debug("visit dropped, tab url unavailable", "tab", r.Tab)
		return
	}
	if err := t.record(context.Background(), info.URL, duration); err != nil {
		t.log.Warn("record visit failed", "url", info.URL, "err", err)
	}
}

func (t *Tracker) record(ctx context.Context, url string, d time.Duration) error {
	data := map[string]models.VisitRecord{}
	if _, err := t.st.Load(ctx, store.Local, models.KeyVisitData, &data); err != nil {
		return err
	}
	prev := data[url]
	data[url] = models.VisitRecord{
		Visits:    prev.Visits + 1,
		TotalTime: prev.TotalTime + d.Milliseconds(),
	}
	t.log.Debug("visit recorded", "url", url, "duration_ms", d.Milliseconds())
	return t.st.Save(ctx, store.Local, models.KeyVisitData, data)
}

// Stats returns the full per-URL visit map.
func Stats(ctx context.Context, st *store.Store) (map[string]models.VisitRecord, error) {
	data := map[string]models.VisitRecord{}
	if _, err := st.Load(ctx, store.Local, models.KeyVisitData, &data); err != nil {
		return nil, err
	}
	return data, nil
}

type Ranked struct {
	URL string `json:"url"`
	models.VisitRecord
}

// Top returns up to n profiles ordered by total dwell time, longest first.
// n <= 0 returns every profile.
func Top(ctx context.Context, st *store.Store, n int) ([]Ranked, error) {
	data, err := Stats(ctx, st)
	if err != nil {
		return nil, err
	}
	out := make([]Ranked, 0, len(data))
	for u, r := range data {
		out = append(out, Ranked{URL: u, VisitRecord: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalTime != out[j].TotalTime {
			return out[i].TotalTime > out[j].TotalTime
		}
		return out[i].URL < out[j].URL
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Follow applies the stored trackVisits preference now and again whenever it changes.
func (t *Tracker) Follow(ctx context.Context) (stop func(), err error) {
	var on bool
	if _, err := t.st.Load(ctx, store.Sync, models.KeyTrackVisits, &on); err != nil {
		return nil, err
	}
	t.apply(on)

	return t.st.Subscribe(func(c store.Change) {
		if c.Area != store.Sync || c.Key != models.KeyTrackVisits {
			return
		}
		var v bool
		if c.NewValue != nil {
			_ = json.Unmarshal(c.NewValue, &v)
		}
		t.apply(v)
	}), nil
}

func (t *Tracker) apply(on bool) {
	if on {
		t.Enable()
	} else {
		t.Disable()
	}
}
