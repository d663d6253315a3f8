package outreach

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
)

const unknown = "Unknown"

func (r *Records) Logs(ctx context.Context) ([]models.LogEntry, error) {
	logs := []models.LogEntry{}
	if _, err := r.st.Load(ctx, store.Local, models.KeyLogs, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// AppendLog puts e at the front of the log, newest first.
func (r *Records) AppendLog(ctx context.Context, e models.LogEntry) error {
	logs, err := r.Logs(ctx)
	if err != nil {
		return err
	}
	logs = append([]models.LogEntry{e}, logs...)
	return r.st.Save(ctx, store.Local, models.KeyLogs, logs)
}

// Record builds a log entry for a contact attempt on profileURL and appends it.
// A blank name and a missing active client are both logged as "Unknown".
func (r *Records) Record(ctx context.Context, name, profileURL string, outcome models.Outcome) (models.LogEntry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = unknown
	}
	clientName := unknown
	c, err := r.ActiveClient(ctx)
	switch {
	case err == nil:
		clientName = c.Name
	case !errors.Is(err, ErrNoClient):
		return models.LogEntry{}, err
	}

	e := models.LogEntry{
		Name:       name,
		ClientName: clientName,
		Datetime:   r.now().Format(DatetimeLayout),
		ProfileURL: profileURL,
		Outcome:    outcome,
	}
	if err := r.AppendLog(ctx, e); err != nil {
		return models.LogEntry{}, err
	}
	r.log.Info("outreach logged", "url", profileURL, "name", name, "outcome", outcome)
	return e, nil
}

func (r *Records) SetReplied(ctx context.Context, idx int, replied bool) error {
	logs, err := r.Logs(ctx)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(logs) {
		return fmt.Errorf("%w: %d", ErrLogIndex, idx)
	}
	logs[idx].Replied = replied
	return r.st.Save(ctx, store.Local, models.KeyLogs, logs)
}

type Stats struct {
	Total   int     `json:"total"`
	Replied int     `json:"replied"`
	Rate    float64 `json:"rate"` // percent, one decimal
}

func (r *Records) LogStats(ctx context.Context) (Stats, error) {
	logs, err := r.Logs(ctx)
	if err != nil {
		return Stats{}, err
	}
	return statsOf(logs), nil
}

func statsOf(logs []models.LogEntry) Stats {
	s := Stats{Total: len(logs)}
	for _, l := range logs {
		if l.Replied {
			s.Replied++
		}
	}
	if s.Total > 0 {
		s.Rate = math.Round(float64(s.Replied)/float64(s.Total)*1000) / 10
	}
	return s
}
