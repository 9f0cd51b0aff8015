package telegram

import (
	"fmt"
	"strings"
	"time"

	"quotebot/internal/quotes"
	"quotebot/internal/storage"
)

const welcomeText = "👋 Welcome to the Daily Quote Bot!\n\n" +
	"I'll send you inspirational quotes every day.\n\n" +
	"Available commands:\n" +
	"/quote - Get a random quote now\n" +
	"/stats - View your quote statistics\n" +
	"/schedule - Show the delivery schedule\n" +
	"/addquote - Save a quote to the local cache\n" +
	"/help - Show this help message"

const helpText = "🤖 *Daily Quote Bot Help*\n\n" +
	"Available commands:\n" +
	"/start - Welcome message\n" +
	"/quote - Get a random quote now\n" +
	"/stats - View your quote statistics\n" +
	"/schedule - Show the delivery schedule\n" +
	"/addquote <text> | <author> | <en|th> - Save a quote to the local cache\n" +
	"/help - Show this help message\n\n" +
	"The bot will automatically send you quotes based on your configured schedule."

// FormatQuote renders a quote the way the chat expects it.
func FormatQuote(q quotes.Quote) string {
	return fmt.Sprintf("🌟 *%s*\n\n— %s", q.Text, q.Author)
}

// FormatStats renders the aggregate for the /stats command.
func FormatStats(st storage.Statistics) string {
	var b strings.Builder
	b.WriteString("📊 *Quote Statistics*\n\n")
	fmt.Fprintf(&b, "📝 Total Quotes: %d\n", st.TotalSent)
	fmt.Fprintf(&b, "💾 Local Quotes: %d\n", st.LocalSent)
	fmt.Fprintf(&b, "🤖 AI Quotes: %d\n", st.AISent)
	fmt.Fprintf(&b, "🌅 Morning Quotes: %d\n", st.MorningSent)
	fmt.Fprintf(&b, "🌆 Evening Quotes: %d\n", st.EveningSent)
	fmt.Fprintf(&b, "🔥 Current Streak: %d days\n", st.CurrentStreak)
	fmt.Fprintf(&b, "🏆 Longest Streak: %d days\n", st.LongestStreak)
	if st.LastSent != nil {
		fmt.Fprintf(&b, "\n🕐 Last Sent: %s", st.LastSent.Format("2006-01-02 15:04"))
	}
	return b.String()
}

// parseAddQuote splits a "/addquote text | author | lang" payload. Author
// and language are optional; the cache fills in its own defaults for them.
func parseAddQuote(payload string) (text, author, lang string, ok bool) {
	parts := strings.Split(payload, "|")
	text = strings.TrimSpace(parts[0])
	if text == "" {
		return "", "", "", false
	}
	if len(parts) > 1 {
		author = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		lang = strings.TrimSpace(parts[2])
	}
	switch lang {
	case "", "en", "th":
	default:
		return "", "", "", false
	}
	return text, author, lang, true
}

// FormatSchedule renders the persisted job set with next fire times.
func FormatSchedule(jobs []storage.ScheduledJob, next map[string]time.Time) string {
	if len(jobs) == 0 {
		return "📅 No quote deliveries are scheduled."
	}
	var b strings.Builder
	b.WriteString("📅 *Delivery Schedule*\n")
	for _, j := range jobs {
		fmt.Fprintf(&b, "\n• %s — daily at %02d:%02d", j.Label, j.FireHour, j.FireMinute)
		if t, ok := next[j.Label]; ok {
			fmt.Fprintf(&b, " (next: %s)", t.Format("2006-01-02 15:04"))
		}
	}
	return b.String()
}
