package stats

import (
	"context"
	"math"
	"sync"
	"time"

	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

// Sources a delivery can come from.
const (
	SourceLocal = "local"
	SourceAI    = "ai"
)

const excerptMaxRunes = 100

// Event is one successful delivery outcome.
type Event struct {
	Timestamp time.Time
	Text      string
	Author    string
	Language  string
	Source    string // "local" or "ai"
	Period    string // "morning", "evening", "manual", ...
}

// Tracker folds delivery events into the persisted statistics aggregate.
//
// Record serializes concurrent callers: the load-update-save cycle needs a
// consistent snapshot of last_sent for the streak arithmetic, and two
// interleaved increments would lose an update.
type Tracker struct {
	mu    sync.Mutex
	store storage.Store
	log   logx.Logger
}

func NewTracker(store storage.Store, log logx.Logger) *Tracker {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Tracker{store: store, log: log}
}

// Record applies one delivery event to the aggregate and persists it.
func (t *Tracker) Record(ctx context.Context, e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.store.LoadStats(ctx)
	if err != nil {
		return err
	}

	st.TotalSent++
	if e.Source == SourceAI {
		st.AISent++
	} else {
		st.LocalSent++
	}
	switch e.Period {
	case "morning":
		st.MorningSent++
	case "evening":
		st.EveningSent++
	default:
		st.OtherSent++
	}

	now := e.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	switch gap := calendarDayGap(st.LastSent, now); {
	case st.LastSent == nil:
		st.CurrentStreak = 1
	case gap == 1:
		st.CurrentStreak++
	case gap > 1:
		// Streak broken; today is day one of a new one.
		st.CurrentStreak = 1
	case gap < 0:
		// Event older than the last recorded one (clock skew or replay).
		// Leave streak and last_sent untouched.
	}
	if st.CurrentStreak > st.LongestStreak {
		st.LongestStreak = st.CurrentStreak
	}
	if st.LastSent == nil || !now.Before(*st.LastSent) {
		ts := now
		st.LastSent = &ts
	}

	entry := storage.HistoryEntry{
		Timestamp: now,
		Text:      truncateRunes(e.Text, excerptMaxRunes),
		Author:    e.Author,
		Language:  e.Language,
		Source:    e.Source,
		Period:    e.Period,
	}

	if err := t.store.SaveStats(ctx, st, []storage.HistoryEntry{entry}); err != nil {
		return err
	}
	t.log.Debug("delivery recorded",
		logx.String("period", e.Period),
		logx.String("source", e.Source),
		logx.Uint64("total", st.TotalSent),
		logx.Uint64("streak", st.CurrentStreak))
	return nil
}

// Load returns the current aggregate. It never fails: a store error degrades
// to the zero aggregate, since losing the ability to show statistics must not
// block anything else.
func (t *Tracker) Load(ctx context.Context) storage.Statistics {
	st, err := t.store.LoadStats(ctx)
	if err != nil {
		t.log.Warn("stats load failed, serving empty aggregate", logx.Err(err))
		return storage.Statistics{}
	}
	return st
}

// calendarDayGap returns the signed number of calendar days between the last
// recorded date and the event's date (0 when nil last).
func calendarDayGap(last *time.Time, now time.Time) int {
	if last == nil {
		return 0
	}
	d1 := midnightOf(*last)
	d2 := midnightOf(now)
	// Round instead of truncate: a DST shift makes a calendar day 23h or 25h.
	return int(math.Round(d2.Sub(d1).Hours() / 24))
}

func midnightOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func truncateRunes(s string, maxN int) string {
	r := []rune(s)
	if len(r) <= maxN {
		return s
	}
	return string(r[:maxN])
}
