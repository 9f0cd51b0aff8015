package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"quotebot/internal/quotes"
	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

type Config struct {
	Token       string
	ChatID      int64
	PollTimeout time.Duration
	RatePerSec  int // outgoing send budget; Telegram throttles chatty bots
}

// Firer triggers one delivery cycle (the manual-command path).
type Firer interface {
	Fire(ctx context.Context, period string) bool
}

// StatsLoader serves the current statistics aggregate.
type StatsLoader interface {
	Load(ctx context.Context) storage.Statistics
}

// Scheduler exposes the persisted job set for the /schedule command.
type Scheduler interface {
	Jobs(ctx context.Context) ([]storage.ScheduledJob, error)
	NextFireTime(ctx context.Context, label string) (time.Time, bool, error)
}

// QuoteCache accepts new quotes for the local cache (the /addquote command).
type QuoteCache interface {
	Add(text, author, language string) error
}

// Bot is the telebot-backed delivery channel plus the command surface.
type Bot struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
	lim *rate.Limiter

	runMu   sync.Mutex
	running bool
	runWG   sync.WaitGroup

	fire  Firer
	stats StatsLoader
	sched Scheduler
	cache QuoteCache
}

func New(cfg Config, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Bot{
		cfg: cfg,
		log: log,
		bot: b,
		lim: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Bind installs the collaborators the command handlers call into.
// Must be called before Start.
func (b *Bot) Bind(fire Firer, stats StatsLoader, sched Scheduler, cache QuoteCache) {
	b.fire = fire
	b.stats = stats
	b.sched = sched
	b.cache = cache
}

// SendQuote delivers a formatted quote to the configured chat.
// False on failure; the caller decides what a failed send means.
func (b *Bot) SendQuote(ctx context.Context, q quotes.Quote) bool {
	return b.sendMarkdown(ctx, FormatQuote(q))
}

func (b *Bot) sendMarkdown(ctx context.Context, text string) bool {
	if err := b.lim.Wait(ctx); err != nil {
		b.log.Warn("send aborted before rate slot", logx.Err(err))
		return false
	}
	chat := &tele.Chat{ID: b.cfg.ChatID}
	_, err := b.bot.Send(chat, text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	if err != nil {
		b.log.Error("telegram send failed", logx.Err(err))
		return false
	}
	return true
}

// Start registers the command handlers and begins long polling.
func (b *Bot) Start(ctx context.Context) {
	b.runMu.Lock()
	if b.running {
		b.runMu.Unlock()
		return
	}
	b.running = true
	b.runMu.Unlock()

	b.registerHandlers(ctx)

	b.runWG.Add(1)
	go func() {
		defer b.runWG.Done()
		b.bot.Start()
	}()
	b.log.Info("telegram bot started", logx.Int64("chat_id", b.cfg.ChatID))
}

func (b *Bot) Stop() {
	b.runMu.Lock()
	running := b.running
	b.running = false
	b.runMu.Unlock()
	if !running {
		return
	}
	b.bot.Stop()
	b.runWG.Wait()
	b.log.Info("telegram bot stopped")
}

func (b *Bot) registerHandlers(ctx context.Context) {
	b.bot.Handle("/start", func(c tele.Context) error {
		return c.Send(welcomeText)
	})

	b.bot.Handle("/help", func(c tele.Context) error {
		return c.Send(helpText, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	})

	b.bot.Handle("/quote", func(c tele.Context) error {
		if b.fire == nil {
			return c.Send("Quote delivery is not available right now.")
		}
		if ok := b.fire.Fire(ctx, "manual"); !ok {
			return c.Send("Could not send a quote right now, please try again later.")
		}
		return nil
	})

	b.bot.Handle("/stats", func(c tele.Context) error {
		if b.stats == nil {
			return c.Send("Statistics are not available right now.")
		}
		st := b.stats.Load(ctx)
		return c.Send(FormatStats(st), &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	})

	b.bot.Handle("/addquote", func(c tele.Context) error {
		if b.cache == nil {
			return c.Send("Adding quotes is not available right now.")
		}
		text, author, lang, ok := parseAddQuote(c.Message().Payload)
		if !ok {
			return c.Send("Usage: /addquote <text> | <author> | <en|th>")
		}
		if err := b.cache.Add(text, author, lang); err != nil {
			b.log.Warn("quote add failed", logx.Err(err))
			return c.Send("Could not save the quote.")
		}
		return c.Send("✅ Quote added to the local cache.")
	})

	b.bot.Handle("/schedule", func(c tele.Context) error {
		if b.sched == nil {
			return c.Send("The schedule is not available right now.")
		}
		jobs, err := b.sched.Jobs(ctx)
		if err != nil {
			b.log.Warn("schedule listing failed", logx.Err(err))
			return c.Send("Could not read the schedule right now.")
		}
		next := make(map[string]time.Time, len(jobs))
		for _, j := range jobs {
			if t, ok, err := b.sched.NextFireTime(ctx, j.Label); err == nil && ok {
				next[j.Label] = t
			}
		}
		return c.Send(FormatSchedule(jobs, next), &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	})
}
