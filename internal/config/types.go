package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"quotebot/internal/schedule"
)

// Default time windows, matching the documented deployment.
const (
	DefaultMorningStart = "07:00"
	DefaultMorningEnd   = "09:00"
	DefaultEveningStart = "18:00"
	DefaultEveningEnd   = "20:00"
)

// Window modes. "daily" and "random" are legacy aliases for "both".
const (
	WindowMorning = "morning"
	WindowEvening = "evening"
	WindowBoth    = "both"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Anthropic AnthropicConfig `json:"anthropic,omitempty"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Quotes    QuotesConfig    `json:"quotes,omitempty"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging,omitempty"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	ChatID      int64  `json:"chat_id"`
	PollTimeout string `json:"poll_timeout,omitempty"` // Go duration string
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
}

// AnthropicConfig enables AI quote generation. When the key is omitted the
// bot serves cached and fallback quotes only.
type AnthropicConfig struct {
	APIKey string `json:"api_key,omitempty"`
	Model  string `json:"model,omitempty"`
}

type ScheduleConfig struct {
	// Window selects which daily windows deliver: "morning", "evening" or
	// "both". Legacy values "daily" and "random" are accepted as "both".
	Window       string `json:"window,omitempty"`
	Timezone     string `json:"timezone,omitempty"` // IANA TZ
	MorningStart string `json:"morning_start,omitempty"`
	MorningEnd   string `json:"morning_end,omitempty"`
	EveningStart string `json:"evening_start,omitempty"`
	EveningEnd   string `json:"evening_end,omitempty"`
	SendTimeout  string `json:"send_timeout,omitempty"` // Go duration string
}

type QuotesConfig struct {
	Language        string `json:"language,omitempty"` // "en", "th" or "both"
	File            string `json:"file,omitempty"`
	PreferGenerated bool   `json:"prefer_generated,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console bool          `json:"console,omitempty"`
	File    LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Normalize fills defaults in place. Call before Validate.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Schedule.Window) == "" {
		c.Schedule.Window = WindowBoth
	}
	switch strings.ToLower(strings.TrimSpace(c.Schedule.Window)) {
	case "daily", "random":
		c.Schedule.Window = WindowBoth
	default:
		c.Schedule.Window = strings.ToLower(strings.TrimSpace(c.Schedule.Window))
	}
	if c.Schedule.MorningStart == "" {
		c.Schedule.MorningStart = DefaultMorningStart
	}
	if c.Schedule.MorningEnd == "" {
		c.Schedule.MorningEnd = DefaultMorningEnd
	}
	if c.Schedule.EveningStart == "" {
		c.Schedule.EveningStart = DefaultEveningStart
	}
	if c.Schedule.EveningEnd == "" {
		c.Schedule.EveningEnd = DefaultEveningEnd
	}
	if strings.TrimSpace(c.Quotes.Language) == "" {
		c.Quotes.Language = "both"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
}

func (c *Config) Validate() error {
	var errs []string
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, "telegram.token is required")
	}
	if c.Telegram.ChatID == 0 {
		errs = append(errs, "telegram.chat_id is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, "storage.path is required")
	}

	switch c.Schedule.Window {
	case WindowMorning, WindowEvening, WindowBoth:
	default:
		errs = append(errs, fmt.Sprintf("schedule.window must be morning, evening or both; got %q", c.Schedule.Window))
	}

	switch c.Quotes.Language {
	case "en", "th", "both":
	default:
		errs = append(errs, fmt.Sprintf("quotes.language must be en, th or both; got %q", c.Quotes.Language))
	}

	// Window bounds must parse and be ordered. A start after its end is a
	// configuration error worth rejecting up front.
	if _, err := schedule.ParseWindow(schedule.LabelMorning, c.Schedule.MorningStart, c.Schedule.MorningEnd); err != nil {
		errs = append(errs, "schedule.morning: "+err.Error())
	}
	if _, err := schedule.ParseWindow(schedule.LabelEvening, c.Schedule.EveningStart, c.Schedule.EveningEnd); err != nil {
		errs = append(errs, "schedule.evening: "+err.Error())
	}

	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"schedule.send_timeout", c.Schedule.SendTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
	} {
		if _, err := ParseDurationOrDefault(f.path, f.raw, 0); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ParseDurationOrDefault reads one of the config's optional duration fields
// (poll_timeout, send_timeout, busy_timeout). An empty or zero value means
// "use def"; a malformed or negative value is an error naming the field.
func ParseDurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: bad duration %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", field, raw)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// Windows returns the enabled trigger windows for the configured mode.
func (c *Config) Windows() ([]schedule.Window, error) {
	var out []schedule.Window
	if c.Schedule.Window == WindowMorning || c.Schedule.Window == WindowBoth {
		w, err := schedule.ParseWindow(schedule.LabelMorning, c.Schedule.MorningStart, c.Schedule.MorningEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if c.Schedule.Window == WindowEvening || c.Schedule.Window == WindowBoth {
		w, err := schedule.ParseWindow(schedule.LabelEvening, c.Schedule.EveningStart, c.Schedule.EveningEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
