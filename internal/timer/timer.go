// Package timer schedules named one-shot alarms. Scheduling a name that is
// already pending replaces the earlier alarm, so at most one alarm per name is
// ever outstanding.
package timer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Alarm is what a fired timer hands to the handler.
type Alarm struct {
	Name    string
	FiredAt time.Time
}

type Option func(*Service)

// WithUnit sets the duration of one "minute" of delay. Tests shrink it.
func WithUnit(d time.Duration) Option {
	return func(s *Service) { s.unit = d }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

type Service struct {
	cron *cron.Cron
	unit time.Duration
	log  *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	handler func(context.Context, Alarm)
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cron:    cron.New(),
		unit:    time.Minute,
		log:     slog.Default(),
		entries: make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron.Start()
	return s
}

// OnFire sets the callback invoked when any alarm fires. It runs on its own goroutine.
func (s *Service) OnFire(fn func(context.Context, Alarm)) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

// Schedule arms name to fire once after delayMinutes, replacing any pending alarm
// with the same name.
func (s *Service) Schedule(name string, delayMinutes float64) {
	d := time.Duration(delayMinutes * float64(s.unit))
	if d < time.Millisecond {
		d = time.Millisecond
	}
	sched := &once{at: time.Now().Add(d)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	var id cron.EntryID
	id = s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(name, &id) }))
	s.entries[name] = id
	s.log.Debug("alarm scheduled", "name", name, "at", sched.at)
}

// CancelAll drops every pending alarm.
func (s *Service) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

// Pending reports whether an alarm with name is outstanding.
func (s *Service) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[name]
	return ok
}

func (s *Service) Close() {
	s.CancelAll()
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *Service) fire(name string, idp *cron.EntryID) {
	s.mu.Lock()
	id := *idp
	current, ok := s.entries[name]
	if !ok || current != id {
		// replaced or cancelled between the cron wake-up and now
		s.mu.Unlock()
		return
	}
	delete(s.entries, name)
	s.cron.Remove(id)
	handler := s.handler
	s.mu.Unlock()

	s.log.Debug("alarm fired", "name", name)
	if handler != nil {
		handler(s.ctx, Alarm{Name: name, FiredAt: time.Now()})
	}
}

// once is a cron.Schedule that yields a single activation time.
type once struct {
	at time.Time
}

func (o *once) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}
