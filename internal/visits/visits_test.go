package visits

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/logging"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/tabs"
)

const profile = "https://www.linkedin.com/in/jane-doe/"

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T) (*Tracker, *tabs.Hub, *store.Store, *clock) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	hub := tabs.NewHub()
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	tr := New(st, hub, "linkedin.com/in/", logging.Discard(), WithClock(c.now))
	return tr, hub, st, c
}

func stats(t *testing.T, st *store.Store) map[string]models.VisitRecord {
	t.Helper()
	data, err := Stats(context.Background(), st)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	return data
}

func TestCompleteThenCloseRecordsOneVisit(t *testing.T) {
	tr, hub, st, c := setup(t)
	tr.Enable()

	hub.Complete("t1", profile)
	c.advance(4200 * time.Millisecond)
	hub.Close("t1")

	rec := stats(t, st)[profile]
	if rec.Visits != 1 || rec.TotalTime != 4200 {
		t.Fatalf("expected 1 visit of 4200ms, got %+v", rec)
	}

	hub.Complete("t2", profile)
	c.advance(800 * time.Millisecond)
	hub.Close("t2")

	rec = stats(t, st)[profile]
	if rec.Visits != 2 || rec.TotalTime != 5000 {
		t.Fatalf("expected accumulated 2 visits / 5000ms, got %+v", rec)
	}
}

func TestRepeatedCompleteOverwritesStart(t *testing.T) {
	tr, hub, st, c := setup(t)
	tr.Enable()

	hub.Complete("t1", profile)
	c.advance(10 * time.Second)
	hub.Complete("t1", profile)
	c.advance(3 * time.Second)
	hub.Close("t1")

	rec := stats(t, st)[profile]
	if rec.Visits != 1 || rec.TotalTime != 3000 {
		t.Fatalf("expected single 3000ms visit, got %+v", rec)
	}
}

func TestCloseWithoutStartWritesNothing(t *testing.T) {
	tr, hub, st, _ := setup(t)
	tr.Enable()

	hub.Navigated("t1", profile)
	hub.Close("t1")

	if len(stats(t, st)) != 0 {
		t.Fatalf("expected no visit records")
	}
}

func TestNonProfilePagesAreIgnored(t *testing.T) {
	tr, hub, st, c := setup(t)
	tr.Enable()

	hub.Complete("t1", "https://www.linkedin.com/feed/")
	c.advance(time.Second)
	hub.Close("t1")

	if len(stats(t, st)) != 0 {
		t.Fatalf("expected no visit records for feed page")
	}
}

func TestDisableDropsInFlightVisit(t *testing.T) {
	tr, hub, st, c := setup(t)
	tr.Enable()

	hub.Complete("t1", profile)
	c.advance(time.Second)
	tr.Disable()
	tr.Enable()
	c.advance(time.Second)
	hub.Close("t1")

	if len(stats(t, st)) != 0 {
		t.Fatalf("visit in flight across disable must be dropped")
	}
}

func TestEnableIsIdempotent(t *testing.T) {
	tr, hub, st, c := setup(t)
	tr.Enable()
	tr.Enable()

	hub.Complete("t1", profile)
	c.advance(time.Second)
	hub.Close("t1")

	if rec := stats(t, st)[profile]; rec.Visits != 1 {
		t.Fatalf("double enable must not double count, got %+v", rec)
	}
}

func TestDisabledTrackerIgnoresEvents(t *testing.T) {
	tr, hub, st, c := setup(t)
	tr.Enable()
	tr.Disable()
	tr.Disable()

	hub.Complete("t1", profile)
	c.advance(time.Second)
	hub.Close("t1")

	if len(stats(t, st)) != 0 {
		t.Fatalf("expected no records while disabled")
	}
}

func TestFollowTracksPreference(t *testing.T) {
	tr, _, st, _ := setup(t)
	ctx := context.Background()

	stop, err := tr.Follow(ctx)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	defer stop()
	if tr.Enabled() {
		t.Fatalf("tracking should start disabled when preference is absent")
	}

	if err := st.Save(ctx, store.Sync, models.KeyTrackVisits, true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !tr.Enabled() {
		t.Fatalf("expected tracking enabled after preference change")
	}

	// Same key in the local area must not toggle anything.
	if err := st.Save(ctx, store.Local, models.KeyTrackVisits, false); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !tr.Enabled() {
		t.Fatalf("local-area write must be ignored")
	}

	if err := st.Save(ctx, store.Sync, models.KeyTrackVisits, false); err != nil {
		t.Fatalf("save: %v", err)
	}
	if tr.Enabled() {
		t.Fatalf("expected tracking disabled")
	}
}

func TestTopOrdersByTotalTime(t *testing.T) {
	_, _, st, _ := setup(t)
	ctx := context.Background()
	data := map[string]models.VisitRecord{
		"a": {Visits: 1, TotalTime: 100},
		"b": {Visits: 3, TotalTime: 900},
		"c": {Visits: 2, TotalTime: 500},
	}
	if err := st.Save(ctx, store.Local, models.KeyVisitData, data); err != nil {
		t.Fatalf("save: %v", err)
	}

	top, err := Top(ctx, st, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].URL != "b" || top[1].URL != "c" {
		t.Fatalf("unexpected order: %+v", top)
	}
}
