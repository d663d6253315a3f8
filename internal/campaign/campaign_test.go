package campaign

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/logging"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/tabs"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/timer"
)

type fakeTimer struct {
	pending   map[string]float64
	scheduled []float64
}

func newFakeTimer() *fakeTimer { return &fakeTimer{pending: map[string]float64{}} }

func (f *fakeTimer) Schedule(name string, d float64) {
	f.pending[name] = d
	f.scheduled = append(f.scheduled, d)
}
func (f *fakeTimer) CancelAll() { f.pending = map[string]float64{} }

func (f *fakeTimer) Pending(name string) bool {
	_, ok := f.pending[name]
	return ok
}

// fire simulates the timer service: a fired alarm is no longer pending.
func (f *fakeTimer) fire(ctx context.Context, s *Scheduler) {
	delete(f.pending, AlarmName)
	s.OnAlarm(ctx, timer.Alarm{Name: AlarmName})
}

type fakeOpener struct {
	opened []string
	err    error
}

func (f *fakeOpener) Open(_ context.Context, url string) (tabs.ID, error) {
	f.opened = append(f.opened, url)
	return tabs.ID("tab-" + url), f.err
}

func setup(t *testing.T) (*Scheduler, *fakeTimer, *fakeOpener) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ft, fo := newFakeTimer(), &fakeOpener{}
	return New(st, ft, fo, 1, logging.Discard()), ft, fo
}

func status(t *testing.T, s *Scheduler) Status {
	t.Helper()
	st, err := s.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	return st
}

func TestTwoEntryCampaign(t *testing.T) {
	s, ft, fo := setup(t)
	ctx := context.Background()

	err := s.Start(ctx, []models.QueueEntry{{URL: "A", DelayMinutes: 1}, {URL: "B", DelayMinutes: 2}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if ft.pending[AlarmName] != 1 {
		t.Fatalf("expected first alarm armed for 1 minute, got %v", ft.pending)
	}

	ft.fire(ctx, s)
	st := status(t, s)
	if len(st.Queue) != 1 || st.Queue[0].URL != "B" || st.Queue[0].DelayMinutes != 2 {
		t.Fatalf("unexpected queue after first fire: %+v", st.Queue)
	}
	if len(fo.opened) != 1 || fo.opened[0] != "A" {
		t.Fatalf("expected tab for A, got %v", fo.opened)
	}
	if d, ok := ft.pending[AlarmName]; !ok || d != 1 {
		t.Fatalf("timer must be re-armed with A's delay (1), got %v ok=%v", d, ok)
	}
	if !st.Active || st.Claim == nil || st.Claim.URL != "A" {
		t.Fatalf("expected active campaign claiming A, got %+v", st)
	}

	ft.fire(ctx, s)
	st = status(t, s)
	if len(st.Queue) != 0 {
		t.Fatalf("expected empty queue, got %+v", st.Queue)
	}
	if len(fo.opened) != 2 || fo.opened[1] != "B" {
		t.Fatalf("expected tab for B, got %v", fo.opened)
	}
	if st.Active {
		t.Fatalf("mode must clear when the queue empties")
	}
	if st.TimerPending {
		t.Fatalf("no timer may be armed after the last entry")
	}
	if st.Claim == nil || st.Claim.URL != "B" {
		t.Fatalf("expected B claimed, got %+v", st.Claim)
	}

	// A further firing is a no-op.
	ft.fire(ctx, s)
	if len(fo.opened) != 2 {
		t.Fatalf("inactive campaign must not open tabs")
	}
}

func TestStartThenStop(t *testing.T) {
	for _, n := range []int{1, 3, 10} {
		s, ft, _ := setup(t)
		ctx := context.Background()
		entries := make([]models.QueueEntry, n)
		for i := range entries {
			entries[i] = models.QueueEntry{URL: "u", DelayMinutes: 1}
		}
		if err := s.Start(ctx, entries); err != nil {
			t.Fatalf("start: %v", err)
		}
		if err := s.Stop(ctx); err != nil {
			t.Fatalf("stop: %v", err)
		}
		if err := s.Stop(ctx); err != nil {
			t.Fatalf("second stop: %v", err)
		}
		st := status(t, s)
		if st.Active || len(st.Queue) != 0 || st.TimerPending || len(ft.pending) != 0 || st.Claim != nil {
			t.Fatalf("n=%d: expected stopped campaign, got %+v", n, st)
		}
	}
}

func TestStartValidation(t *testing.T) {
	s, ft, _ := setup(t)
	ctx := context.Background()

	if err := s.Start(ctx, nil); !errors.Is(err, ErrEmptyCampaign) {
		t.Fatalf("expected ErrEmptyCampaign, got %v", err)
	}
	if err := s.Start(ctx, []models.QueueEntry{{URL: "A", DelayMinutes: -1}}); !errors.Is(err, ErrInvalidDelay) {
		t.Fatalf("expected ErrInvalidDelay, got %v", err)
	}
	if err := s.Start(ctx, []models.QueueEntry{{URL: " ", DelayMinutes: 1}}); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	if len(ft.scheduled) != 0 {
		t.Fatalf("rejected campaigns must not arm the timer")
	}
	if st := status(t, s); st.Active {
		t.Fatalf("rejected campaign must not activate")
	}
}

func TestZeroDelayUsesDefault(t *testing.T) {
	s, ft, _ := setup(t)
	if err := s.Start(context.Background(), []models.QueueEntry{{URL: "A"}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if ft.pending[AlarmName] != 1 {
		t.Fatalf("expected default delay of 1, got %v", ft.pending[AlarmName])
	}
}

func TestFailedOpenStillConsumes(t *testing.T) {
	s, ft, fo := setup(t)
	ctx := context.Background()
	fo.err = errors.New("browser gone")

	if err := s.Start(ctx, []models.QueueEntry{{URL: "A", DelayMinutes: 3}, {URL: "B", DelayMinutes: 1}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	ft.fire(ctx, s)

	st := status(t, s)
	if len(st.Queue) != 1 || st.Queue[0].URL != "B" {
		t.Fatalf("entry must be consumed despite open failure: %+v", st.Queue)
	}
	if ft.pending[AlarmName] != 3 {
		t.Fatalf("expected re-arm with 3, got %v", ft.pending[AlarmName])
	}
}

func TestOtherAlarmsIgnored(t *testing.T) {
	s, _, fo := setup(t)
	ctx := context.Background()
	if err := s.Start(ctx, []models.QueueEntry{{URL: "A", DelayMinutes: 1}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.OnAlarm(ctx, timer.Alarm{Name: "somethingElse"})
	if len(fo.opened) != 0 {
		t.Fatalf("foreign alarm must be ignored")
	}
}

func TestCompleteReleasesMatchingClaim(t *testing.T) {
	s, ft, _ := setup(t)
	ctx := context.Background()
	if err := s.Start(ctx, []models.QueueEntry{{URL: "A", DelayMinutes: 1}, {URL: "B", DelayMinutes: 1}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	ft.fire(ctx, s)

	ok, err := s.Complete(ctx, "B")
	if err != nil || ok {
		t.Fatalf("completing a different url must not release the claim: ok=%v err=%v", ok, err)
	}
	ok, err = s.Complete(ctx, "A")
	if err != nil || !ok {
		t.Fatalf("expected claim released: ok=%v err=%v", ok, err)
	}
	if c, _ := s.Claim(ctx); c != nil {
		t.Fatalf("claim should be gone, got %+v", c)
	}
	// Completion never touches the queue.
	if st := status(t, s); len(st.Queue) != 1 {
		t.Fatalf("queue must be untouched by completion, got %+v", st.Queue)
	}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		target, page string
		want         bool
	}{
		{"https://www.linkedin.com/in/jane/", "https://www.linkedin.com/in/jane/", true},
		{"https://www.linkedin.com/in/jane/", "https://www.linkedin.com/in/jane/?miniProfile=1", true},
		{"https://www.linkedin.com/in/jane/?utm=x", "https://www.linkedin.com/in/jane/", true},
		{"https://www.linkedin.com/in/jane/", "https://www.linkedin.com/in/john/", false},
		{"https://www.linkedin.com/in/jane", "https://www.linkedin.com/in/janedoe-12345/", false},
		{"https://www.linkedin.com/in/janedoe-12345/", "https://www.linkedin.com/in/jane/", false},
		{"https://www.linkedin.com/in/jane", "https://linkedin.com/in/jane/#about", true},
		{"linkedin.com/in/jane/", "https://www.linkedin.com/in/jane", true},
		{"https://www.linkedin.com/in/jane/", "https://evil.example/in/jane/", false},
		{"https://www.linkedin.com/in/jane/", "https://www.linkedin.com/in/jane/detail/", false},
		{"", "https://www.linkedin.com/in/jane/", false},
	}
	for _, tc := range cases {
		if got := Matches(tc.target, tc.page); got != tc.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tc.target, tc.page, got, tc.want)
		}
	}
}

func TestEntriesFromLogs(t *testing.T) {
	logs := []models.LogEntry{{ProfileURL: "u1"}, {}, {ProfileURL: "u2"}}
	got := EntriesFromLogs(logs, 2.5)
	if len(got) != 2 || got[0].URL != "u1" || got[1].URL != "u2" || got[1].DelayMinutes != 2.5 {
		t.Fatalf("unexpected entries %+v", got)
	}
}

func TestStartRejectsOffSiteEntries(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)
	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ft := newFakeTimer()
	s := New(st, ft, &fakeOpener{}, 1, logging.Discard(), WithSite("https://www.linkedin.com/"))

	err = s.Start(ctx, []models.QueueEntry{
		{URL: "https://www.linkedin.com/in/a/"},
		{URL: "https://example.com/in/b/"},
	})
	if !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	if len(ft.scheduled) != 0 {
		t.Fatalf("rejected campaign must not arm the timer")
	}

	ok := []models.QueueEntry{
		{URL: "https://linkedin.com/in/a/"},
		{URL: "https://uk.linkedin.com/in/b/"},
		{URL: "www.linkedin.com/in/c/"},
	}
	if err := s.Start(ctx, ok); err != nil {
		t.Fatalf("on-site entries rejected: %v", err)
	}
}

func TestResumeAfterRestart(t *testing.T) {
	s, ft, fo := setup(t)
	ctx := context.Background()
	if err := s.Start(ctx, []models.QueueEntry{{URL: "A", DelayMinutes: 4}, {URL: "B", DelayMinutes: 4}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	ft.fire(ctx, s)

	// a new process: same store, fresh timer with nothing pending
	restarted := New(s.st, newFakeTimer(), fo, 2, logging.Discard())
	armed, err := restarted.Resume(ctx)
	if err != nil || !armed {
		t.Fatalf("expected resume to arm the timer: armed=%v err=%v", armed, err)
	}
	st := status(t, restarted)
	if !st.Active || !st.TimerPending || len(st.Queue) != 1 {
		t.Fatalf("unexpected status after resume: %+v", st)
	}
	if st.Claim != nil {
		t.Fatalf("stale claim must be dropped, got %+v", st.Claim)
	}
	if d := restarted.timer.(*fakeTimer).pending[AlarmName]; d != 2 {
		t.Fatalf("expected default delay 2, got %v", d)
	}

	// already armed: nothing to do
	if armed, err := restarted.Resume(ctx); err != nil || armed {
		t.Fatalf("second resume must be a no-op: armed=%v err=%v", armed, err)
	}
}

func TestResumeIdleOrFinished(t *testing.T) {
	s, ft, _ := setup(t)
	ctx := context.Background()
	if armed, err := s.Resume(ctx); err != nil || armed {
		t.Fatalf("idle scheduler must not arm: armed=%v err=%v", armed, err)
	}

	// mode left on with an empty queue
	if err := s.st.Set(ctx, store.Local, map[string]any{
		models.KeyQueue:           []models.QueueEntry{},
		models.KeyAutoConnectMode: true,
	}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if armed, err := s.Resume(ctx); err != nil || armed {
		t.Fatalf("empty queue must not arm: armed=%v err=%v", armed, err)
	}
	if st := status(t, s); st.Active {
		t.Fatalf("mode must be switched off, got %+v", st)
	}
	if len(ft.scheduled) != 0 {
		t.Fatalf("no alarm expected, got %v", ft.scheduled)
	}
}
