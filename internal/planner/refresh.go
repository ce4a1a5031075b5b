package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"dayplanner/internal/core"
	"dayplanner/internal/notify"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCron ensures the expression is a valid 5-field cron definition and returns the underlying schedule.
func ParseCron(expr string) (cron.Schedule, error) {
	if strings.HasPrefix(strings.TrimSpace(expr), "@") {
		return nil, fmt.Errorf("only 5-field cron expressions are supported")
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule, nil
}

// NextOccurrences returns the next n activation times after base.
func NextOccurrences(schedule cron.Schedule, base time.Time, n int) []time.Time {
	times := make([]time.Time, 0, n)
	next := base
	for i := 0; i < n; i++ {
		next = schedule.Next(next)
		if next.IsZero() {
			break
		}
		times = append(times, next)
	}
	return times
}

// StartRefresh registers the daily refresh job under expr and starts the cron
// loop. ctx bounds the job's store reads and notifications. An empty expr
// leaves the job disabled.
func (p *Planner) StartRefresh(ctx context.Context, expr string) error {
	if strings.TrimSpace(expr) == "" {
		p.logger.Info("daily refresh disabled")
		return nil
	}
	schedule, err := ParseCron(expr)
	if err != nil {
		return err
	}

	p.cronMu.Lock()
	defer p.cronMu.Unlock()
	p.ctx = ctx
	if p.entry != 0 {
		p.cron.Remove(p.entry)
	}
	p.entry = p.cron.Schedule(schedule, cron.FuncJob(p.runRefresh))
	p.cron.Start()

	if next := NextOccurrences(schedule, p.nowFunc().In(p.location), 1); len(next) == 1 {
		p.logger.Info("daily refresh scheduled", "cron", expr, "next", next[0])
	}
	return nil
}

// StopRefresh stops the cron loop. The returned context is done once a
// running refresh has finished.
func (p *Planner) StopRefresh() context.Context {
	return p.cron.Stop()
}

func (p *Planner) runRefresh() {
	p.cronMu.Lock()
	ctx := p.ctx
	p.cronMu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := p.Refresh(ctx); err != nil {
		p.logger.Error("daily refresh", "err", err)
	}
}

// Refresh recomputes today's plan from scratch and sends an alert when the
// day is infeasible.
func (p *Planner) Refresh(ctx context.Context) (core.ScheduleResult, error) {
	today := p.Today()
	p.InvalidateDate(today)
	res, err := p.ScheduleDay(ctx, today)
	if err != nil {
		return core.ScheduleResult{}, err
	}
	p.logger.Info("refreshed plan", "date", today.String(), "success", res.Success, "tasks", len(res.Schedule))

	if msg, ok := notify.ScheduleAlert(res); ok {
		if err := p.notifier.Send(ctx, msg); err != nil {
			p.logger.Warn("send schedule alert", "date", today.String(), "err", err)
		}
	}
	return res, nil
}
