package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

// Firer receives scheduled and manual trigger callbacks.
type Firer interface {
	Fire(ctx context.Context, period string) bool
}

type Config struct {
	Timezone    string        // IANA TZ, e.g. "Asia/Bangkok"
	FireTimeout time.Duration // per-fire deadline; 0 disables
}

// Planner owns the recurring quote jobs: it persists one daily job per
// configured window and keeps the cron runner in sync with the store.
//
// The random fire time is drawn once per Configure call. Restarting the
// process replays the stored jobs at their previously chosen minute;
// reconfiguring draws fresh minutes.
type Planner struct {
	mu sync.Mutex

	cfg   Config
	store storage.Store
	fire  Firer
	log   logx.Logger

	loc     *time.Location
	c       *cron.Cron
	entries map[string]cron.EntryID

	runCtx context.Context
}

func NewPlanner(cfg Config, store storage.Store, fire Firer, log logx.Logger) *Planner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Planner{
		cfg:     cfg,
		store:   store,
		fire:    fire,
		log:     log,
		entries: map[string]cron.EntryID{},
	}
}

// Start brings up the cron runner and replays jobs already in the store, so a
// restart keeps firing at the previously chosen minutes without reconfiguring.
func (p *Planner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.c != nil {
		return nil
	}
	p.runCtx = ctx
	p.loc = p.loadLocation()
	p.c = cron.New(cron.WithLocation(p.loc))

	jobs, err := p.store.ListJobs(ctx)
	if err != nil {
		p.c = nil
		return fmt.Errorf("replay jobs: %w", err)
	}
	for _, j := range jobs {
		if err := p.registerLocked(j.Label, j.FireHour, j.FireMinute); err != nil {
			p.c = nil
			return err
		}
		p.log.Info("job replayed",
			logx.String("label", j.Label),
			logx.String("at", fmt.Sprintf("%02d:%02d", j.FireHour, j.FireMinute)))
	}

	p.c.Start()
	p.log.Info("planner started", logx.String("tz", p.loc.String()), logx.Int("jobs", len(jobs)))
	return nil
}

func (p *Planner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.c == nil {
		return
	}
	<-p.c.Stop().Done()
	p.c = nil
	p.entries = map[string]cron.EntryID{}
	p.log.Info("planner stopped")
}

// Configure replaces the persisted schedule with one daily job per window.
//
// Labels present in the store but absent from the input are removed. Every
// input window gets a fresh random minute and an upsert, replacing any prior
// job for that label; calling Configure twice with the same windows never
// duplicates jobs. An invalid window is skipped and logged, a store failure
// aborts the whole call.
func (p *Planner) Configure(ctx context.Context, windows []Window) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.c == nil {
		return errors.New("planner not started")
	}

	want := make(map[string]Window, len(windows))
	for _, w := range windows {
		want[w.Label] = w
	}

	stored, err := p.store.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	for _, j := range stored {
		if _, ok := want[j.Label]; ok {
			continue
		}
		if err := p.store.RemoveJob(ctx, j.Label); err != nil {
			return fmt.Errorf("remove job %q: %w", j.Label, err)
		}
		p.deregisterLocked(j.Label)
		p.log.Info("job removed", logx.String("label", j.Label))
	}

	for _, w := range windows {
		hour, minute, err := PickRandomTime(w)
		if err != nil {
			// Broken window bounds are a config mistake for that window
			// only; keep scheduling the others.
			p.log.Warn("window skipped", logx.String("label", w.Label), logx.Err(err))
			continue
		}
		job := storage.ScheduledJob{
			Label:      w.Label,
			FireHour:   hour,
			FireMinute: minute,
			Recurrence: storage.RecurrenceDaily,
			UpdatedAt:  time.Now(),
		}
		if err := p.store.UpsertJob(ctx, job); err != nil {
			return fmt.Errorf("upsert job %q: %w", w.Label, err)
		}
		if err := p.registerLocked(w.Label, hour, minute); err != nil {
			return err
		}
		p.log.Info("job scheduled",
			logx.String("label", w.Label),
			logx.String("window", w.String()),
			logx.String("at", fmt.Sprintf("%02d:%02d", hour, minute)))
	}
	return nil
}

// NextFireTime computes the next wall-clock instant at which the stored job
// will fire: today at its clock time if still ahead, otherwise tomorrow.
// Recomputed from "now" on every call.
func (p *Planner) NextFireTime(ctx context.Context, label string) (time.Time, bool, error) {
	j, err := p.store.GetJob(ctx, label)
	if errors.Is(err, storage.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	p.mu.Lock()
	loc := p.loc
	p.mu.Unlock()
	if loc == nil {
		loc = time.Local
	}
	now := time.Now().In(loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), j.FireHour, j.FireMinute, 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, true, nil
}

// Jobs lists the persisted job set.
func (p *Planner) Jobs(ctx context.Context) ([]storage.ScheduledJob, error) {
	return p.store.ListJobs(ctx)
}

func (p *Planner) registerLocked(label string, hour, minute int) error {
	// Replace any prior entry for this label before binding the new one.
	p.deregisterLocked(label)

	spec := fmt.Sprintf("%d %d * * *", minute, hour)
	id, err := p.c.AddFunc(spec, func() { p.dispatch(label) })
	if err != nil {
		return fmt.Errorf("register %q: %w", label, err)
	}
	p.entries[label] = id
	return nil
}

func (p *Planner) deregisterLocked(label string) {
	if id, ok := p.entries[label]; ok {
		p.c.Remove(id)
		delete(p.entries, label)
	}
}

// dispatch runs the delivery off the cron timer goroutine so a slow or hung
// send cannot delay the next trigger evaluation.
func (p *Planner) dispatch(label string) {
	p.mu.Lock()
	ctx := p.runCtx
	timeout := p.cfg.FireTimeout
	p.mu.Unlock()
	if ctx == nil {
		return
	}

	go func() {
		var cancel context.CancelFunc
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if ok := p.fire.Fire(ctx, label); !ok {
			p.log.Warn("scheduled delivery failed", logx.String("label", label))
		}
	}()
}

func (p *Planner) loadLocation() *time.Location {
	tz := strings.TrimSpace(p.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		p.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
