package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("record not found")
)

// RecurrenceDaily is the only recurrence the engine schedules.
const RecurrenceDaily = "daily"

// HistoryCap bounds the delivery history kept in the store.
const HistoryCap = 100

// Config configures storage.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// ScheduledJob is one persisted daily recurrence, keyed by its window label.
// The engine replaces the whole record on reconfiguration; records are never
// mutated in place.
type ScheduledJob struct {
	Label      string
	FireHour   int
	FireMinute int
	Recurrence string
	UpdatedAt  time.Time
}

// HistoryEntry is one recorded delivery, truncated for display.
// Field names follow the stats file read by the dashboard.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Language  string    `json:"language"`
	Source    string    `json:"source"`
	Period    string    `json:"time_period"`
}

// Statistics is the single durable aggregate.
// JSON field names are frozen: external dashboards read this encoding.
type Statistics struct {
	TotalSent     uint64         `json:"total_quotes_sent"`
	LocalSent     uint64         `json:"local_quotes_sent"`
	AISent        uint64         `json:"ai_quotes_sent"`
	MorningSent   uint64         `json:"morning_quotes_sent"`
	EveningSent   uint64         `json:"evening_quotes_sent"`
	OtherSent     uint64         `json:"other_quotes_sent"`
	CurrentStreak uint64         `json:"current_streak"`
	LongestStreak uint64         `json:"longest_streak"`
	LastSent      *time.Time     `json:"last_sent"`
	History       []HistoryEntry `json:"history"`
}
