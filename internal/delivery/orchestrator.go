package delivery

import (
	"context"
	"time"

	"quotebot/internal/quotes"
	"quotebot/internal/stats"
	logx "quotebot/pkg/logx"
)

// PeriodManual tags deliveries triggered by hand rather than by the schedule.
const PeriodManual = "manual"

// Provider supplies quotes. It never fails; internal failures surface as a
// fallback quote with a valid source tag.
type Provider interface {
	Get(ctx context.Context, language string, preferGenerated bool) quotes.Quote
}

// Sender delivers a quote to the configured destination.
// False means the send failed; there is no error detail to act on.
type Sender interface {
	SendQuote(ctx context.Context, q quotes.Quote) bool
}

// Recorder folds a successful delivery into the statistics aggregate.
type Recorder interface {
	Record(ctx context.Context, e stats.Event) error
}

type Config struct {
	Language string        // "en", "th" or "both"
	Timeout  time.Duration // per-cycle bound on quote+send; 0 disables
}

// Orchestrator runs one delivery cycle: quote, send, record.
// It holds no state of its own.
type Orchestrator struct {
	cfg     Config
	quotes  Provider
	channel Sender
	stats   Recorder
	log     logx.Logger
}

func NewOrchestrator(cfg Config, p Provider, ch Sender, rec Recorder, log logx.Logger) *Orchestrator {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Orchestrator{cfg: cfg, quotes: p, channel: ch, stats: rec, log: log}
}

// Fire delivers one quote for the given period and reports success.
//
// The whole cycle runs under cfg.Timeout, so a hung generation or send
// cannot block the caller (the /quote handler invokes Fire synchronously).
// A failed send is logged and not retried within this cycle; the next
// scheduled occurrence is the retry. Stats only reflect successful sends.
func (o *Orchestrator) Fire(ctx context.Context, period string) bool {
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	q := o.quotes.Get(ctx, o.cfg.Language, false)

	if !o.channel.SendQuote(ctx, q) {
		o.log.Error("delivery failed", logx.String("period", period))
		return false
	}

	ev := stats.Event{
		Timestamp: time.Now(),
		Text:      q.Text,
		Author:    q.Author,
		Language:  q.Language,
		Source:    q.Source,
		Period:    period,
	}
	if err := o.stats.Record(ctx, ev); err != nil {
		// The quote went out; a bookkeeping failure should not flip the
		// outcome reported to the caller.
		o.log.Warn("delivery sent but not recorded", logx.String("period", period), logx.Err(err))
	}

	o.log.Info("quote delivered",
		logx.String("period", period),
		logx.String("source", q.Source),
		logx.String("lang", q.Language))
	return true
}
