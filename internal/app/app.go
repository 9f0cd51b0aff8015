package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"quotebot/internal/config"
	"quotebot/internal/delivery"
	"quotebot/internal/quotes"
	"quotebot/internal/schedule"
	"quotebot/internal/stats"
	"quotebot/internal/storage"
	"quotebot/internal/telegram"
	logx "quotebot/pkg/logx"
)

// App owns every component of the quote engine and wires them explicitly.
// There is no ambient global state; callers reach components through App.
type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	store   storage.Store
	bot     *telegram.Bot
	tracker *stats.Tracker
	orch    *delivery.Orchestrator
	planner *schedule.Planner

	stopOnce sync.Once
	bg       sync.WaitGroup
	bgCancel context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(logSvc.Logger().With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var gen quotes.Generator
	if strings.TrimSpace(cfg.Anthropic.APIKey) != "" {
		gen = quotes.NewAnthropicGenerator(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	} else {
		log.Warn("anthropic.api_key not set; serving cached and fallback quotes only")
	}
	provider := quotes.New(quotes.Config{
		File:            cfg.Quotes.File,
		PreferGenerated: cfg.Quotes.PreferGenerated,
	}, gen, logSvc.Logger().With(logx.String("comp", "quotes")))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	bot, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		ChatID:      cfg.Telegram.ChatID,
		PollTimeout: pollTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	tracker := stats.NewTracker(store, logSvc.Logger().With(logx.String("comp", "stats")))

	sendTimeout, err := config.ParseDurationOrDefault("schedule.send_timeout", cfg.Schedule.SendTimeout, 60*time.Second)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	orch := delivery.NewOrchestrator(delivery.Config{
		Language: cfg.Quotes.Language,
		Timeout:  sendTimeout,
	}, provider, bot, tracker, logSvc.Logger().With(logx.String("comp", "delivery")))
	planner := schedule.NewPlanner(schedule.Config{
		Timezone:    cfg.Schedule.Timezone,
		FireTimeout: sendTimeout,
	}, store, orch, logSvc.Logger().With(logx.String("comp", "planner")))

	bot.Bind(orch, tracker, planner, provider)

	return &App{
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		store:   store,
		bot:     bot,
		tracker: tracker,
		orch:    orch,
		planner: planner,
	}, nil
}

// Start brings the engine up: replay persisted jobs, apply the configured
// windows, start polling, and watch the config file for reconfiguration.
//
// A job-store failure here aborts startup; a broken schedule is worth
// halting for.
func (a *App) Start(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancel = cancel

	if err := a.planner.Start(bgCtx); err != nil {
		cancel()
		return err
	}

	cfg := a.cfgm.Get()
	windows, err := cfg.Windows()
	if err != nil {
		cancel()
		return err
	}
	if err := a.planner.Configure(bgCtx, windows); err != nil {
		cancel()
		return fmt.Errorf("configure schedule: %w", err)
	}

	a.bot.Start(bgCtx)

	a.bg.Add(2)
	go func() {
		defer a.bg.Done()
		_ = a.cfgm.Watch(bgCtx)
	}()
	updates := a.cfgm.Subscribe(1)
	go func() {
		defer a.bg.Done()
		defer a.cfgm.Unsubscribe(updates)
		a.watchConfig(bgCtx, updates)
	}()

	a.log.Info("quotebot started", logx.Int("windows", len(windows)))
	return nil
}

// watchConfig applies live-reloadable settings: log sinks and the schedule.
// Each reconfiguration draws fresh random minutes, which is the documented
// reconfigure semantics. Changing tokens or storage paths needs a restart.
func (a *App) watchConfig(ctx context.Context, updates <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok || cfg == nil {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			windows, err := cfg.Windows()
			if err != nil {
				a.log.Warn("reloaded config has unusable windows", logx.Err(err))
				continue
			}
			if err := a.planner.Configure(ctx, windows); err != nil {
				a.log.Error("reconfigure failed; keeping previous schedule", logx.Err(err))
				continue
			}
			a.log.Info("schedule reconfigured", logx.Int("windows", len(windows)))
		}
	}
}

// Fire triggers one manual delivery cycle.
func (a *App) Fire(ctx context.Context, period string) bool {
	return a.orch.Fire(ctx, period)
}

func (a *App) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		if a.bgCancel != nil {
			a.bgCancel()
		}
		a.bot.Stop()
		a.planner.Stop()
		a.bg.Wait()
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.log.Info("quotebot stopped")
		_ = a.logs.Close()
	})
	return nil
}
