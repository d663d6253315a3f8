// Package campaign owns the connect queue. It is the only writer of the queue:
// every timer firing hands exactly one entry out as the current target, and the
// page agent reports back through Complete instead of touching the queue.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/tabs"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/timer"
)

// AlarmName is the reserved timer name that drives the queue.
const AlarmName = "nextConnect"

var (
	ErrEmptyCampaign = errors.New("campaign has no entries")
	ErrInvalidDelay  = errors.New("delay must not be negative")
	ErrInvalidURL    = errors.New("invalid entry url")
)

type Timer interface {
	Schedule(name string, delayMinutes float64)
	CancelAll()
	Pending(name string) bool
}

type Opener interface {
	Open(ctx context.Context, url string) (tabs.ID, error)
}

type Scheduler struct {
	st           *store.Store
	timer        Timer
	opener       Opener
	defaultDelay float64
	host         string
	log          *slog.Logger

	// mu serializes queue mutations made by this process.
	mu sync.Mutex
}

type Option func(*Scheduler)

// WithSite restricts campaign entries to the host of baseURL and its subdomains.
func WithSite(baseURL string) Option {
	return func(s *Scheduler) { s.host, _ = urlKey(baseURL) }
}

func New(st *store.Store, t Timer, o Opener, defaultDelay float64, log *slog.Logger, opts ...Option) *Scheduler {
	if defaultDelay <= 0 {
		defaultDelay = 1
	}
	s := &Scheduler{
		st:           st,
		timer:        t,
		opener:       o,
		defaultDelay: defaultDelay,
		log:          log.With("module", "campaign"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) onSite(raw string) bool {
	if s.host == "" {
		return true
	}
	host, _ := urlKey(raw)
	return host == s.host || strings.HasSuffix(host, "."+s.host)
}

// Start replaces any previous campaign with entries and arms the timer for the
// first entry's delay. A zero delay means the configured default.
func (s *Scheduler) Start(ctx context.Context, entries []models.QueueEntry) error {
	if len(entries) == 0 {
		return ErrEmptyCampaign
	}
	queue := make([]models.QueueEntry, len(entries))
	for i, e := range entries {
		e.URL = strings.TrimSpace(e.URL)
		if e.URL == "" {
			return fmt.Errorf("%w: entry %d is empty", ErrInvalidURL, i)
		}
		if !s.onSite(e.URL) {
			return fmt.Errorf("%w: entry %d (%s) is not on %s", ErrInvalidURL, i, e.URL, s.host)
		}
		if e.DelayMinutes < 0 {
			return fmt.Errorf("%w: entry %d has %v", ErrInvalidDelay, i, e.DelayMinutes)
		}
		if e.DelayMinutes == 0 {
			e.DelayMinutes = s.defaultDelay
		}
		queue[i] = e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.st.Set(ctx, store.Local, map[string]any{
		models.KeyQueue:           queue,
		models.KeyAutoConnectMode: true,
	}); err != nil {
		return fmt.Errorf("start campaign: %w", err)
	}
	if err := s.st.Remove(ctx, store.Local, models.KeyCurrentTarget); err != nil {
		return fmt.Errorf("start campaign: %w", err)
	}
	s.timer.Schedule(AlarmName, queue[0].DelayMinutes)
	s.log.Info("campaign started", "entries", len(queue), "first_delay_min", queue[0].DelayMinutes)
	return nil
}

// Stop ends the campaign. Stopping an idle scheduler is harmless.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer.CancelAll()
	if err := s.st.Set(ctx, store.Local, map[string]any{
		models.KeyQueue:           []models.QueueEntry{},
		models.KeyAutoConnectMode: false,
	}); err != nil {
		return fmt.Errorf("stop campaign: %w", err)
	}
	if err := s.st.Remove(ctx, store.Local, models.KeyCurrentTarget); err != nil {
		return fmt.Errorf("stop campaign: %w", err)
	}
	s.log.Info("campaign stopped")
	return nil
}

func (s *Scheduler) state(ctx context.Context) (queue []models.QueueEntry, active bool, err error) {
	queue = []models.QueueEntry{}
	if _, err = s.st.Load(ctx, store.Local, models.KeyQueue, &queue); err != nil {
		return nil, false, err
	}
	if _, err = s.st.Load(ctx, store.Local, models.KeyAutoConnectMode, &active); err != nil {
		return nil, false, err
	}
	return queue, active, nil
}

// OnAlarm consumes the queue head: it is persisted as the current target, a
// tab is opened for it, and the timer is re-armed with the consumed entry's
// delay. A failed open still consumes the entry.
func (s *Scheduler) OnAlarm(ctx context.Context, a timer.Alarm) {
	if a.Name != AlarmName {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, active, err := s.state(ctx)
	if err != nil {
		s.log.Warn("read queue failed", "err", err)
		return
	}
	if !active || len(queue) == 0 {
		s.log.Debug("alarm ignored", "active", active, "queued", len(queue))
		return
	}

	head, rest := queue[0], queue[1:]
	if err := s.st.Set(ctx, store.Local, map[string]any{
		models.KeyQueue:         rest,
		models.KeyCurrentTarget: head,
	}); err != nil {
		s.log.Warn("persist queue failed", "err", err)
		return
	}

	if id, err := s.opener.Open(ctx, head.URL); err != nil {
		s.log.Warn("open tab failed, entry dropped", "url", head.URL, "err", err)
	} else {
		s.log.Info("opened target", "url", head.URL, "tab", id, "remaining", len(rest))
	}

	if len(rest) > 0 {
		s.timer.Schedule(AlarmName, head.DelayMinutes)
		return
	}
	if err := s.st.Save(ctx, store.Local, models.KeyAutoConnectMode, false); err != nil {
		s.log.Warn("clear mode failed", "err", err)
		return
	}
	s.log.Info("campaign finished")
}

// Resume re-arms the timer for a campaign that was running when the process
// last stopped. The next entry waits the default delay. A stale claim is
// dropped since its tab did not survive. A finished queue with the mode still
// on is switched off. It reports whether the timer was armed.
func (s *Scheduler) Resume(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue, active, err := s.state(ctx)
	if err != nil {
		return false, fmt.Errorf("resume campaign: %w", err)
	}
	if !active || s.timer.Pending(AlarmName) {
		return false, nil
	}
	if err := s.st.Remove(ctx, store.Local, models.KeyCurrentTarget); err != nil {
		return false, fmt.Errorf("resume campaign: %w", err)
	}
	if len(queue) == 0 {
		if err := s.st.Save(ctx, store.Local, models.KeyAutoConnectMode, false); err != nil {
			return false, fmt.Errorf("resume campaign: %w", err)
		}
		return false, nil
	}
	s.timer.Schedule(AlarmName, s.defaultDelay)
	s.log.Info("campaign resumed", "entries", len(queue), "first_delay_min", s.defaultDelay)
	return true, nil
}

// Claim returns the entry most recently handed out, or nil.
func (s *Scheduler) Claim(ctx context.Context) (*models.QueueEntry, error) {
	var e models.QueueEntry
	found, err := s.st.Load(ctx, store.Local, models.KeyCurrentTarget, &e)
	if err != nil || !found {
		return nil, err
	}
	return &e, nil
}

// Complete is the page agent's report that it finished with url. The claim is
// released when it still refers to url; ok reports whether it did.
func (s *Scheduler) Complete(ctx context.Context, url string) (ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, err := s.Claim(ctx)
	if err != nil || claim == nil || claim.URL != url {
		return false, err
	}
	if err := s.st.Remove(ctx, store.Local, models.KeyCurrentTarget); err != nil {
		return false, err
	}
	return true, nil
}

type Status struct {
	Active       bool                `json:"active"`
	Queue        []models.QueueEntry `json:"queue"`
	Claim        *models.QueueEntry  `json:"currentTarget,omitempty"`
	TimerPending bool                `json:"timerPending"`
}

func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	queue, active, err := s.state(ctx)
	if err != nil {
		return Status{}, err
	}
	claim, err := s.Claim(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Active:       active,
		Queue:        queue,
		Claim:        claim,
		TimerPending: s.timer.Pending(AlarmName),
	}, nil
}

// Matches reports whether a page URL is the target profile: same host without
// a leading "www.", same path up to a trailing slash. The query is ignored.
func Matches(target, page string) bool {
	th, tp := urlKey(target)
	ph, pp := urlKey(page)
	if th == "" && tp == "" {
		return false
	}
	return th == ph && strings.EqualFold(tp, pp)
}

// urlKey splits raw into a normalized host and path. A missing scheme is
// treated as https.
func urlKey(raw string) (host, path string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", ""
	}
	host = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host, strings.TrimRight(u.Path, "/")
}

// EntriesFromLogs builds a queue from every logged profile, in log order.
func EntriesFromLogs(logs []models.LogEntry, delay float64) []models.QueueEntry {
	out := []models.QueueEntry{}
	for _, l := range logs {
		if l.ProfileURL == "" {
			continue
		}
		out = append(out, models.QueueEntry{URL: l.ProfileURL, DelayMinutes: delay})
	}
	return out
}
