// Package outreach keeps the user-facing records: clients and their note
// templates, per-profile tags and notes, the outreach log, and CSV exports.
package outreach

import (
	"errors"
	"log/slog"
	"time"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
)

var (
	ErrNoClient      = errors.New("no such client")
	ErrTemplateIndex = errors.New("template index out of range")
	ErrLogIndex      = errors.New("log index out of range")
	ErrEmptyName     = errors.New("name must not be empty")
)

// DatetimeLayout is how log timestamps are rendered.
const DatetimeLayout = "2006-01-02 15:04:05"

type Records struct {
	st  *store.Store
	now func() time.Time
	log *slog.Logger
}

type Option func(*Records)

func WithClock(now func() time.Time) Option {
	return func(r *Records) { r.now = now }
}

func New(st *store.Store, log *slog.Logger, opts ...Option) *Records {
	r := &Records{st: st, now: time.Now, log: log.With("module", "outreach")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
