package telegram

import (
	"strings"
	"testing"
	"time"

	"quotebot/internal/quotes"
	"quotebot/internal/storage"
)

func TestFormatQuote(t *testing.T) {
	t.Parallel()
	got := FormatQuote(quotes.Quote{Text: "be kind", Author: "Unknown"})
	want := "🌟 *be kind*\n\n— Unknown"
	if got != want {
		t.Fatalf("FormatQuote = %q, want %q", got, want)
	}
}

func TestFormatStats(t *testing.T) {
	t.Parallel()
	sent := time.Date(2024, 3, 1, 8, 12, 0, 0, time.UTC)
	got := FormatStats(storage.Statistics{
		TotalSent:     10,
		LocalSent:     7,
		AISent:        3,
		CurrentStreak: 2,
		LongestStreak: 5,
		LastSent:      &sent,
	})
	for _, want := range []string{
		"Total Quotes: 10",
		"Local Quotes: 7",
		"AI Quotes: 3",
		"Current Streak: 2 days",
		"Longest Streak: 5 days",
		"Last Sent: 2024-03-01 08:12",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("stats text missing %q:\n%s", want, got)
		}
	}
}

func TestFormatStatsWithoutLastSent(t *testing.T) {
	t.Parallel()
	got := FormatStats(storage.Statistics{})
	if strings.Contains(got, "Last Sent") {
		t.Fatalf("empty aggregate must not render Last Sent:\n%s", got)
	}
}

func TestFormatSchedule(t *testing.T) {
	t.Parallel()
	if got := FormatSchedule(nil, nil); !strings.Contains(got, "No quote deliveries") {
		t.Fatalf("empty schedule text: %q", got)
	}

	next := time.Date(2024, 3, 2, 7, 42, 0, 0, time.UTC)
	got := FormatSchedule([]storage.ScheduledJob{
		{Label: "morning", FireHour: 7, FireMinute: 42},
	}, map[string]time.Time{"morning": next})
	for _, want := range []string{"morning", "daily at 07:42", "next: 2024-03-02 07:42"} {
		if !strings.Contains(got, want) {
			t.Fatalf("schedule text missing %q:\n%s", want, got)
		}
	}
}

func TestParseAddQuote(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		payload string
		text    string
		author  string
		lang    string
		ok      bool
	}{
		{name: "full form", payload: "stay curious | someone | en", text: "stay curious", author: "someone", lang: "en", ok: true},
		{name: "text only", payload: "stay curious", text: "stay curious", ok: true},
		{name: "text and author", payload: " stay curious | someone ", text: "stay curious", author: "someone", ok: true},
		{name: "empty payload", payload: "", ok: false},
		{name: "separators only", payload: " | | ", ok: false},
		{name: "unknown language", payload: "x | y | fr", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, author, lang, ok := parseAddQuote(tc.payload)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if text != tc.text || author != tc.author || lang != tc.lang {
				t.Fatalf("got (%q, %q, %q), want (%q, %q, %q)", text, author, lang, tc.text, tc.author, tc.lang)
			}
		})
	}
}
