// Package automation runs the connect workflow on profile pages the campaign
// opened, fills invitation notes, and logs sends the user makes by hand.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/campaign"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/dom"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/outreach"
)

var ErrStepTimeout = errors.New("automation step timed out")

// Claims is the scheduler side of the handshake: what is the current target,
// and "I am done with it".
type Claims interface {
	Claim(ctx context.Context) (*models.QueueEntry, error)
	Complete(ctx context.Context, url string) (bool, error)
}

type Agent struct {
	claims Claims
	rec    *outreach.Records
	filler *NoteFiller
	step   time.Duration
	log    *slog.Logger

	mu   sync.Mutex
	held map[string]int
}

func NewAgent(claims Claims, rec *outreach.Records, filler *NoteFiller, stepTimeout time.Duration, log *slog.Logger) *Agent {
	return &Agent{
		claims: claims,
		rec:    rec,
		filler: filler,
		step:   stepTimeout,
		log:    log.With("module", "automation"),
		held:   map[string]int{},
	}
}

// Run handles one page load. It returns "" when the page is not the current
// target. Otherwise it always reports completion and logs the attempt, and the
// page stays marked as automated until the caller calls Release with its URL.
func (a *Agent) Run(ctx context.Context, p dom.Page) (models.Outcome, error) {
	url := p.URL()
	claim, err := a.claims.Claim(ctx)
	if err != nil {
		return "", fmt.Errorf("read claim: %w", err)
	}
	if claim == nil || !campaign.Matches(claim.URL, url) {
		return "", nil
	}
	a.hold(url)

	log := a.log.With("url", url)
	log.Info("automating target")
	outcome := a.connect(ctx, p, log)
	if outcome != models.OutcomeSent {
		snapshot(p, string(outcome), log)
	}

	if _, err := a.claims.Complete(ctx, claim.URL); err != nil {
		log.Warn("report completion failed", "err", err)
	}
	name := p.TextOf(ctx, NameSelectors...)
	if _, err := a.rec.Record(ctx, name, url, outcome); err != nil {
		return outcome, fmt.Errorf("log attempt: %w", err)
	}
	return outcome, nil
}

func (a *Agent) connect(ctx context.Context, p dom.Page, log *slog.Logger) models.Outcome {
	btn, err := p.WaitAny(ctx, a.step, ConnectSelectors...)
	if err != nil {
		log.Info("connect control not found", "err", err)
		return models.OutcomeConnectMissing
	}
	if err := btn.Click(); err != nil {
		log.Warn("click connect failed", "err", err)
		return models.OutcomeConnectMissing
	}

	if note, err := p.WaitAny(ctx, a.step, NoteButtonSelectors...); err == nil {
		if err := note.Click(); err != nil {
			log.Warn("click add-a-note failed", "err", err)
		} else if _, err := p.WaitAny(ctx, a.step, noteFieldSelectors()...); err == nil {
			if _, err := a.filler.Fill(ctx, p); err != nil {
				log.Warn("fill note failed", "err", err)
			}
		}
	} else {
		log.Debug("no add-a-note control, sending without note")
	}

	send, err := p.WaitText(ctx, a.step, SendSelector, SendText)
	if err != nil {
		log.Warn("send control never appeared", "err", fmt.Errorf("%w: %v", ErrStepTimeout, err))
		return models.OutcomeStepTimeout
	}
	if err := send.Click(); err != nil {
		log.Warn("click send failed", "err", err)
		return models.OutcomeStepTimeout
	}
	log.Info("invitation sent")
	return models.OutcomeSent
}

// screenshotter is implemented by pages that can capture themselves.
type screenshotter interface {
	Screenshot(prefix string) (string, error)
}

func snapshot(p dom.Page, prefix string, log *slog.Logger) {
	s, ok := p.(screenshotter)
	if !ok {
		return
	}
	path, err := s.Screenshot(prefix)
	switch {
	case err != nil:
		log.Debug("screenshot failed", "err", err)
	case path != "":
		log.Info("saved screenshot", "path", path)
	}
}

func (a *Agent) hold(url string) {
	a.mu.Lock()
	a.held[url]++
	a.mu.Unlock()
}

// Release ends the automated mark Run placed on url.
func (a *Agent) Release(url string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.held[url] <= 1 {
		delete(a.held, url)
		return
	}
	a.held[url]--
}

// Automating reports whether Run has claimed url and it has not been released.
func (a *Agent) Automating(url string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.held[url] > 0
}
