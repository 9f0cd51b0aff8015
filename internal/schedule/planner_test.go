package schedule

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

type nopFirer struct{}

func (nopFirer) Fire(ctx context.Context, period string) bool { return true }

func testStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{
		Path: filepath.Join(t.TempDir(), "quotebot.sqlite"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func startedPlanner(t *testing.T, st storage.Store) *Planner {
	t.Helper()
	p := NewPlanner(Config{}, st, nopFirer{}, logx.Nop())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("planner start: %v", err)
	}
	t.Cleanup(p.Stop)
	return p
}

func mustWindow(t *testing.T, label, start, end string) Window {
	t.Helper()
	w, err := ParseWindow(label, start, end)
	if err != nil {
		t.Fatalf("ParseWindow: %v", err)
	}
	return w
}

func TestConfigureReplacesInsteadOfDuplicating(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := testStore(t)
	p := startedPlanner(t, st)

	windows := []Window{
		mustWindow(t, "morning", "07:00", "09:00"),
		mustWindow(t, "evening", "18:00", "20:00"),
	}
	for i := 0; i < 3; i++ {
		if err := p.Configure(ctx, windows); err != nil {
			t.Fatalf("Configure #%d: %v", i+1, err)
		}
	}

	jobs, err := st.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != len(windows) {
		t.Fatalf("expected %d jobs after repeated Configure, got %d", len(windows), len(jobs))
	}
	for _, j := range jobs {
		if j.Recurrence != storage.RecurrenceDaily {
			t.Fatalf("job %q recurrence = %q, want daily", j.Label, j.Recurrence)
		}
	}
}

func TestConfigurePicksTimeInsideWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := testStore(t)
	p := startedPlanner(t, st)

	w := mustWindow(t, "morning", "07:00", "09:00")
	if err := p.Configure(ctx, []Window{w}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	j, err := st.GetJob(ctx, "morning")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	got := j.FireHour*60 + j.FireMinute
	if got < w.Start || got > w.End {
		t.Fatalf("stored fire time %02d:%02d outside window %s", j.FireHour, j.FireMinute, w)
	}
}

func TestConfigureRemovesStaleLabels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := testStore(t)
	p := startedPlanner(t, st)

	if err := p.Configure(ctx, []Window{mustWindow(t, "morning", "07:00", "09:00")}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := p.Configure(ctx, nil); err != nil {
		t.Fatalf("Configure(empty): %v", err)
	}

	jobs, err := st.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
	if _, ok, err := p.NextFireTime(ctx, "morning"); err != nil || ok {
		t.Fatalf("NextFireTime after removal: ok=%v err=%v, want absent", ok, err)
	}
}

func TestConfigureSkipsInvalidWindowButKeepsOthers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := testStore(t)
	p := startedPlanner(t, st)

	windows := []Window{
		{Label: "morning", Start: 9 * 60, End: 7 * 60}, // reversed on purpose
		mustWindow(t, "evening", "18:00", "20:00"),
	}
	if err := p.Configure(ctx, windows); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	jobs, err := st.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Label != "evening" {
		t.Fatalf("expected only the evening job, got %+v", jobs)
	}
}

func TestNextFireTimeIsAheadOfNow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := testStore(t)
	p := startedPlanner(t, st)

	if err := p.Configure(ctx, []Window{mustWindow(t, "morning", "07:00", "09:00")}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	next, ok, err := p.NextFireTime(ctx, "morning")
	if err != nil || !ok {
		t.Fatalf("NextFireTime: ok=%v err=%v", ok, err)
	}
	now := time.Now()
	if !next.After(now) {
		t.Fatalf("next fire %v not after now %v", next, now)
	}
	if next.Sub(now) > 24*time.Hour {
		t.Fatalf("next fire %v more than a day away", next)
	}

	j, err := st.GetJob(ctx, "morning")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if next.Hour() != j.FireHour || next.Minute() != j.FireMinute {
		t.Fatalf("next fire %v does not match stored %02d:%02d", next, j.FireHour, j.FireMinute)
	}
}

func TestStartReplaysPersistedJobs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := testStore(t)

	p1 := NewPlanner(Config{}, st, nopFirer{}, logx.Nop())
	if err := p1.Start(ctx); err != nil {
		t.Fatalf("planner start: %v", err)
	}
	if err := p1.Configure(ctx, []Window{mustWindow(t, "evening", "18:00", "20:00")}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	before, _, err := p1.NextFireTime(ctx, "evening")
	if err != nil {
		t.Fatalf("NextFireTime: %v", err)
	}
	p1.Stop()

	// A fresh planner over the same store keeps the same minute without
	// being reconfigured.
	p2 := NewPlanner(Config{}, st, nopFirer{}, logx.Nop())
	if err := p2.Start(ctx); err != nil {
		t.Fatalf("planner restart: %v", err)
	}
	t.Cleanup(p2.Stop)

	after, ok, err := p2.NextFireTime(ctx, "evening")
	if err != nil || !ok {
		t.Fatalf("NextFireTime after restart: ok=%v err=%v", ok, err)
	}
	if after.Hour() != before.Hour() || after.Minute() != before.Minute() {
		t.Fatalf("fire time changed across restart: %v -> %v", before, after)
	}
}
