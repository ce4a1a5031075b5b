// Package planner loads stored definitions, runs the scheduling engine and
// keeps recently computed days in memory.
package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"dayplanner/internal/core"
	"dayplanner/internal/engine"
	"dayplanner/internal/notify"
	"dayplanner/internal/store"
)

// MaxRangeDays bounds ScheduleRange.
const MaxRangeDays = 62

// ErrRangeTooLarge is returned when a range exceeds MaxRangeDays.
var ErrRangeTooLarge = fmt.Errorf("date range exceeds %d days", MaxRangeDays)

// Store is the persistence the planner reads from.
type Store interface {
	ListActiveDefinitions(ctx context.Context) ([]*core.TaskDefinition, error)
	GetSleepWindow(ctx context.Context, date core.Date) (core.SleepWindow, error)
}

// Config configures a Planner.
type Config struct {
	Options      engine.Options
	DefaultSleep core.SleepWindow
	CacheSize    int
	// Parallelism bounds the number of days ScheduleRange computes at once.
	Parallelism int
	Location    *time.Location
}

// Planner is safe for concurrent use.
type Planner struct {
	store        Store
	opts         engine.Options
	defaultSleep core.SleepWindow
	parallelism  int
	location     *time.Location
	logger       *slog.Logger
	notifier     notify.Notifier
	cache        *lru.Cache[string, core.ScheduleResult]

	cron    *cron.Cron
	cronMu  sync.Mutex
	entry   cron.EntryID
	ctx     context.Context
	nowFunc func() time.Time
}

// New constructs a planner over st.
func New(st Store, cfg Config, notifier notify.Notifier, logger *slog.Logger) (*Planner, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 128
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if notifier == nil {
		notifier = notify.NoOpNotifier{}
	}
	cache, err := lru.New[string, core.ScheduleResult](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create schedule cache: %w", err)
	}
	return &Planner{
		store:        st,
		opts:         cfg.Options,
		defaultSleep: cfg.DefaultSleep,
		parallelism:  cfg.Parallelism,
		location:     cfg.Location,
		logger:       logger,
		notifier:     notifier,
		cache:        cache,
		cron:         cron.New(cron.WithParser(cronParser), cron.WithLocation(cfg.Location)),
		nowFunc:      time.Now,
	}, nil
}

// Today returns the current date in the planner's location.
func (p *Planner) Today() core.Date {
	return core.DateOf(p.nowFunc().In(p.location))
}

// Location returns the time zone the planner resolves "today" in.
func (p *Planner) Location() *time.Location {
	return p.location
}

// SleepWindow returns the waking window for date and whether it is a stored
// override rather than the configured default.
func (p *Planner) SleepWindow(ctx context.Context, date core.Date) (core.SleepWindow, bool, error) {
	w, err := p.store.GetSleepWindow(ctx, date)
	if errors.Is(err, store.ErrSleepWindowNotFound) {
		return p.defaultSleep, false, nil
	}
	if err != nil {
		return core.SleepWindow{}, false, err
	}
	return w, true, nil
}

// Occurrences returns what the active definitions produce on date.
func (p *Planner) Occurrences(ctx context.Context, date core.Date) ([]core.Occurrence, error) {
	defs, err := p.store.ListActiveDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	return engine.New(p.opts).Expand(date, defs), nil
}

// ScheduleDay returns the plan for date. An error means the inputs could not
// be loaded; infeasible days are reported in the result.
func (p *Planner) ScheduleDay(ctx context.Context, date core.Date) (core.ScheduleResult, error) {
	defs, err := p.store.ListActiveDefinitions(ctx)
	if err != nil {
		return core.ScheduleResult{}, fmt.Errorf("list definitions: %w", err)
	}
	return p.scheduleWith(ctx, date, defs)
}

// ScheduleRange plans every date in [from, to], computing days concurrently.
func (p *Planner) ScheduleRange(ctx context.Context, from, to core.Date) ([]core.ScheduleResult, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s is before start %s", to, from)
	}
	days := to.DaysSince(from) + 1
	if days > MaxRangeDays {
		return nil, ErrRangeTooLarge
	}
	defs, err := p.store.ListActiveDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}

	results := make([]core.ScheduleResult, days)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i := 0; i < days; i++ {
		date := from.AddDays(i)
		g.Go(func() error {
			res, err := p.scheduleWith(gctx, date, defs)
			if err != nil {
				return fmt.Errorf("schedule %s: %w", date, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Planner) scheduleWith(ctx context.Context, date core.Date, defs []*core.TaskDefinition) (core.ScheduleResult, error) {
	if err := ctx.Err(); err != nil {
		return core.ScheduleResult{}, err
	}
	sleep, _, err := p.SleepWindow(ctx, date)
	if err != nil {
		return core.ScheduleResult{}, fmt.Errorf("load sleep window: %w", err)
	}

	eng := engine.New(p.opts)
	occs := eng.Expand(date, defs)
	key, err := cacheKey(date, occs, sleep)
	if err != nil {
		return core.ScheduleResult{}, err
	}
	if res, ok := p.cache.Get(key); ok {
		return res, nil
	}

	start := time.Now()
	res := eng.ScheduleOccurrences(date, occs, sleep)
	p.cache.Add(key, res)
	p.logger.Debug("scheduled day", "date", date.String(), "occurrences", len(occs),
		"success", res.Success, "reason", res.Reason, "took", time.Since(start))
	return res, nil
}

// Invalidate drops every cached day. Callers invoke it after changing
// definitions.
func (p *Planner) Invalidate() {
	p.cache.Purge()
}

// InvalidateDate drops the cached plans of a single date, e.g. after its
// sleep window changed.
func (p *Planner) InvalidateDate(date core.Date) {
	prefix := date.String() + "/"
	for _, key := range p.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			p.cache.Remove(key)
		}
	}
}

// cacheKey identifies a computation by its date and a digest of everything
// the engine reads for it.
func cacheKey(date core.Date, occs []core.Occurrence, sleep core.SleepWindow) (string, error) {
	payload, err := json.Marshal(struct {
		Occurrences []core.Occurrence `json:"o"`
		Sleep       core.SleepWindow  `json:"s"`
	}{occs, sleep})
	if err != nil {
		return "", fmt.Errorf("hash schedule inputs: %w", err)
	}
	sum := sha256.Sum256(payload)
	return date.String() + "/" + hex.EncodeToString(sum[:]), nil
}
