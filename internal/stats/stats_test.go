package stats

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

func testTracker(t *testing.T) (*Tracker, storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Config{
		Path: filepath.Join(t.TempDir(), "stats.sqlite"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewTracker(st, logx.Nop()), st
}

func eventOn(day string) Event {
	ts, err := time.Parse("2006-01-02 15:04", day)
	if err != nil {
		panic(err)
	}
	return Event{
		Timestamp: ts,
		Text:      "quote text",
		Author:    "Author",
		Language:  "en",
		Source:    SourceLocal,
		Period:    "morning",
	}
}

func TestStreakConsecutiveDaysThenGap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr, _ := testTracker(t)

	for _, day := range []string{"2024-01-01 08:00", "2024-01-02 08:30", "2024-01-03 07:15"} {
		if err := tr.Record(ctx, eventOn(day)); err != nil {
			t.Fatalf("Record(%s): %v", day, err)
		}
	}
	st := tr.Load(ctx)
	if st.CurrentStreak != 3 || st.LongestStreak != 3 {
		t.Fatalf("after 3 consecutive days: current=%d longest=%d, want 3/3", st.CurrentStreak, st.LongestStreak)
	}

	// Two-day gap resets to day one of a new streak.
	if err := tr.Record(ctx, eventOn("2024-01-05 08:00")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	st = tr.Load(ctx)
	if st.CurrentStreak != 1 {
		t.Fatalf("after gap: current=%d, want 1", st.CurrentStreak)
	}
	if st.LongestStreak != 3 {
		t.Fatalf("after gap: longest=%d, want 3", st.LongestStreak)
	}
}

func TestStreakSameDayIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr, _ := testTracker(t)

	if err := tr.Record(ctx, eventOn("2024-01-01 08:00")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := tr.Record(ctx, eventOn("2024-01-01 19:00")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	st := tr.Load(ctx)
	if st.CurrentStreak != 1 {
		t.Fatalf("same-day double delivery: current=%d, want 1", st.CurrentStreak)
	}
	if st.TotalSent != 2 {
		t.Fatalf("total=%d, want 2", st.TotalSent)
	}
}

func TestBackwardTimestampIsNoOpForTemporalState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr, _ := testTracker(t)

	if err := tr.Record(ctx, eventOn("2024-01-10 08:00")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := tr.Record(ctx, eventOn("2024-01-05 08:00")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	st := tr.Load(ctx)
	if st.CurrentStreak != 1 {
		t.Fatalf("current=%d, want 1 (unchanged)", st.CurrentStreak)
	}
	if st.LastSent == nil || st.LastSent.Day() != 10 {
		t.Fatalf("last_sent moved backwards: %v", st.LastSent)
	}
	if st.TotalSent != 2 {
		t.Fatalf("counters must still update: total=%d, want 2", st.TotalSent)
	}
}

func TestCountersBySourceAndPeriod(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr, _ := testTracker(t)

	events := []Event{
		{Timestamp: time.Now(), Source: SourceLocal, Period: "morning"},
		{Timestamp: time.Now(), Source: SourceAI, Period: "evening"},
		{Timestamp: time.Now(), Source: SourceAI, Period: "manual"},
	}
	for _, e := range events {
		if err := tr.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	st := tr.Load(ctx)
	if st.TotalSent != 3 {
		t.Fatalf("total=%d, want 3", st.TotalSent)
	}
	if st.LocalSent != 1 || st.AISent != 2 {
		t.Fatalf("by source local=%d ai=%d, want 1/2", st.LocalSent, st.AISent)
	}
	if st.MorningSent != 1 || st.EveningSent != 1 || st.OtherSent != 1 {
		t.Fatalf("by period morning=%d evening=%d other=%d, want 1/1/1", st.MorningSent, st.EveningSent, st.OtherSent)
	}
	if got := st.MorningSent + st.EveningSent + st.OtherSent; got != st.TotalSent {
		t.Fatalf("period sum %d != total %d", got, st.TotalSent)
	}
}

func TestHistoryBoundedToCap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr, _ := testTracker(t)

	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 150; i++ {
		e := Event{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Text:      "q",
			Author:    "a",
			Language:  "en",
			Source:    SourceLocal,
			Period:    "morning",
		}
		if err := tr.Record(ctx, e); err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
	}

	st := tr.Load(ctx)
	if len(st.History) != storage.HistoryCap {
		t.Fatalf("history length = %d, want %d", len(st.History), storage.HistoryCap)
	}
	// The oldest surviving entry is #50; order is chronological.
	want := base.Add(50 * time.Minute)
	if !st.History[0].Timestamp.Equal(want) {
		t.Fatalf("oldest history entry at %v, want %v", st.History[0].Timestamp, want)
	}
	for i := 1; i < len(st.History); i++ {
		if st.History[i].Timestamp.Before(st.History[i-1].Timestamp) {
			t.Fatalf("history out of order at %d", i)
		}
	}
}

func TestHistoryExcerptTruncated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tr, _ := testTracker(t)

	long := make([]rune, 300)
	for i := range long {
		long[i] = 'x'
	}
	e := eventOn("2024-01-01 08:00")
	e.Text = string(long)
	if err := tr.Record(ctx, e); err != nil {
		t.Fatalf("Record: %v", err)
	}

	st := tr.Load(ctx)
	if len(st.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(st.History))
	}
	if got := len([]rune(st.History[0].Text)); got != excerptMaxRunes {
		t.Fatalf("excerpt length = %d runes, want %d", got, excerptMaxRunes)
	}
}

type brokenStore struct{ storage.Store }

func (brokenStore) LoadStats(ctx context.Context) (storage.Statistics, error) {
	return storage.Statistics{}, errors.New("disk on fire")
}

func TestLoadDegradesToZeroAggregate(t *testing.T) {
	t.Parallel()
	tr := NewTracker(brokenStore{}, logx.Nop())
	st := tr.Load(context.Background())
	if st.TotalSent != 0 || st.CurrentStreak != 0 || st.LastSent != nil || len(st.History) != 0 {
		t.Fatalf("expected zero aggregate, got %+v", st)
	}
}
