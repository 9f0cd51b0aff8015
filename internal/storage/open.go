package storage

import (
	"context"

	logx "quotebot/pkg/logx"
)

// Store is the persistence API used by the planner and the stats tracker.
type Store interface {
	// Job set (one record per window label). GetJob returns ErrNotFound
	// when no job exists for the label.
	UpsertJob(ctx context.Context, j ScheduledJob) error
	RemoveJob(ctx context.Context, label string) error
	GetJob(ctx context.Context, label string) (ScheduledJob, error)
	ListJobs(ctx context.Context) ([]ScheduledJob, error)

	// Statistics aggregate. LoadStats returns the zero aggregate on a fresh
	// database. SaveStats writes the aggregate and any appended history
	// entries in a single transaction and prunes history to HistoryCap.
	LoadStats(ctx context.Context) (Statistics, error)
	SaveStats(ctx context.Context, s Statistics, appended []HistoryEntry) error

	Close() error
}

// Open initializes the sqlite-backed store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}
