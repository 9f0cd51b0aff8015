package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "quotebot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// A failed pragma degrades durability tuning but not correctness;
	// note it and carry on.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			st.log.Warn("sqlite pragma failed", logx.String("pragma", pragma), logx.Err(err))
		}
	}

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	st.log.Debug("sqlite store ready", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) UpsertJob(ctx context.Context, j ScheduledJob) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if strings.TrimSpace(j.Label) == "" {
		return errors.New("job label is required")
	}
	if j.Recurrence == "" {
		j.Recurrence = RecurrenceDaily
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(label, fire_hour, fire_minute, recurrence, updated_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(label) DO UPDATE SET
		   fire_hour=excluded.fire_hour,
		   fire_minute=excluded.fire_minute,
		   recurrence=excluded.recurrence,
		   updated_at=excluded.updated_at`,
		j.Label, j.FireHour, j.FireMinute, j.Recurrence, j.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) RemoveJob(ctx context.Context, label string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	// Removing an absent label is not an error.
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE label = ?`, label)
	return err
}

func (s *sqliteStore) GetJob(ctx context.Context, label string) (ScheduledJob, error) {
	if s == nil || s.db == nil {
		return ScheduledJob{}, ErrDisabled
	}
	var (
		j  ScheduledJob
		at string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT label, fire_hour, fire_minute, recurrence, updated_at FROM jobs WHERE label = ?`,
		label,
	).Scan(&j.Label, &j.FireHour, &j.FireMinute, &j.Recurrence, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return ScheduledJob{}, ErrNotFound
	}
	if err != nil {
		return ScheduledJob{}, err
	}
	j.UpdatedAt = parseTime(at)
	return j, nil
}

func (s *sqliteStore) ListJobs(ctx context.Context) ([]ScheduledJob, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, fire_hour, fire_minute, recurrence, updated_at FROM jobs ORDER BY label`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScheduledJob
	for rows.Next() {
		var (
			j  ScheduledJob
			at string
		)
		if err := rows.Scan(&j.Label, &j.FireHour, &j.FireMinute, &j.Recurrence, &at); err != nil {
			return nil, err
		}
		j.UpdatedAt = parseTime(at)
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *sqliteStore) LoadStats(ctx context.Context) (Statistics, error) {
	if s == nil || s.db == nil {
		return Statistics{}, ErrDisabled
	}
	var (
		st       Statistics
		lastSent sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT total_quotes_sent, local_quotes_sent, ai_quotes_sent,
		        morning_quotes_sent, evening_quotes_sent, other_quotes_sent,
		        current_streak, longest_streak, last_sent
		 FROM stats WHERE id = 1`,
	).Scan(&st.TotalSent, &st.LocalSent, &st.AISent,
		&st.MorningSent, &st.EveningSent, &st.OtherSent,
		&st.CurrentStreak, &st.LongestStreak, &lastSent)
	if errors.Is(err, sql.ErrNoRows) {
		// Fresh database: zero aggregate is normal startup state.
		return Statistics{}, nil
	}
	if err != nil {
		return Statistics{}, err
	}
	if lastSent.Valid && strings.TrimSpace(lastSent.String) != "" {
		t := parseTime(lastSent.String)
		st.LastSent = &t
	}

	hist, err := s.loadHistory(ctx)
	if err != nil {
		return Statistics{}, err
	}
	st.History = hist
	return st, nil
}

func (s *sqliteStore) loadHistory(ctx context.Context) ([]HistoryEntry, error) {
	// Newest HistoryCap entries, returned oldest-first.
	rows, err := s.db.QueryContext(ctx,
		`SELECT sent_at, text, author, language, source, period FROM (
		   SELECT id, sent_at, text, author, language, source, period
		   FROM history ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		HistoryCap,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			e  HistoryEntry
			at string
		)
		if err := rows.Scan(&at, &e.Text, &e.Author, &e.Language, &e.Source, &e.Period); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveStats(ctx context.Context, st Statistics, appended []HistoryEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var lastSent any
	if st.LastSent != nil && !st.LastSent.IsZero() {
		lastSent = st.LastSent.Format(time.RFC3339Nano)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO stats(id, total_quotes_sent, local_quotes_sent, ai_quotes_sent,
		                   morning_quotes_sent, evening_quotes_sent, other_quotes_sent,
		                   current_streak, longest_streak, last_sent)
		 VALUES(1,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   total_quotes_sent=excluded.total_quotes_sent,
		   local_quotes_sent=excluded.local_quotes_sent,
		   ai_quotes_sent=excluded.ai_quotes_sent,
		   morning_quotes_sent=excluded.morning_quotes_sent,
		   evening_quotes_sent=excluded.evening_quotes_sent,
		   other_quotes_sent=excluded.other_quotes_sent,
		   current_streak=excluded.current_streak,
		   longest_streak=excluded.longest_streak,
		   last_sent=excluded.last_sent`,
		st.TotalSent, st.LocalSent, st.AISent,
		st.MorningSent, st.EveningSent, st.OtherSent,
		st.CurrentStreak, st.LongestStreak, lastSent,
	)
	if err != nil {
		return err
	}

	for _, e := range appended {
		at := e.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO history(sent_at, text, author, language, source, period)
			 VALUES(?,?,?,?,?,?)`,
			at.Format(time.RFC3339Nano), e.Text, e.Author, e.Language, e.Source, e.Period,
		)
		if err != nil {
			return err
		}
	}

	// Keep only the newest HistoryCap rows.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM history WHERE id NOT IN (
		   SELECT id FROM history ORDER BY id DESC LIMIT ?
		 )`,
		HistoryCap,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
