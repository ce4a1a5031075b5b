// Package engine turns a day's task definitions into a placed, conflict
// annotated timetable.
//
// An Engine holds configuration only. Every call is a pure computation over
// its arguments, so one Engine may be shared or created per run.
package engine

import (
	"fmt"
	"sort"
	"strings"

	"dayplanner/internal/core"
	"dayplanner/internal/recurrence"
)

// Engine schedules one date at a time.
type Engine struct {
	opts Options
}

// New returns an Engine with opts, filling unset fields with defaults.
func New(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Options returns the effective configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Expand returns the occurrences the active definitions produce on date.
func (e *Engine) Expand(date core.Date, defs []*core.TaskDefinition) []core.Occurrence {
	return recurrence.Expand(defs, date)
}

// ScheduleForDate expands defs for date and schedules the resulting occurrences.
func (e *Engine) ScheduleForDate(date core.Date, defs []*core.TaskDefinition, sleep core.SleepWindow) core.ScheduleResult {
	return e.ScheduleOccurrences(date, e.Expand(date, defs), sleep)
}

// ScheduleOccurrences places occs inside the waking window of sleep. Domain
// failures are reported in the result, never as a Go error or panic.
func (e *Engine) ScheduleOccurrences(date core.Date, occs []core.Occurrence, sleep core.SleepWindow) core.ScheduleResult {
	if msg := e.checkInput(occs, sleep); msg != "" {
		return core.ScheduleResult{
			Success:     false,
			Date:        date,
			Reason:      core.ReasonInvalidInput,
			Message:     msg,
			Suggestions: []string{"Fix the task definition and try again"},
		}
	}

	res := e.Resolve(occs)
	if res.CycleDetected {
		return cycleDetected(date, occs, res)
	}

	// Occurrences the blocking policy keeps off the day do not count against
	// the waking window.
	blockedIDs := res.BlockedIDs(occs)
	schedulable := occs
	if len(blockedIDs) > 0 {
		schedulable = make([]core.Occurrence, 0, len(occs))
		for _, occ := range occs {
			if !blockedIDs[occ.ID] {
				schedulable = append(schedulable, occ)
			}
		}
	}

	if mandatoryMinimumLoad(schedulable, sleep) > sleep.Minutes() {
		_, mandatory := splitMandatory(schedulable)
		return capacityExceeded(date, schedulable, mandatory, sleep)
	}

	var fixed, flexible []core.Occurrence
	for _, occ := range occs {
		if occ.IsFixed() {
			fixed = append(fixed, occ)
		} else {
			flexible = append(flexible, occ)
		}
	}

	anchors := e.PlaceAnchors(fixed)
	pass := e.placeFlexible(flexible, anchors, res, sleep, modeNominal)
	placed, blocked, waitingOn := pass.placed, pass.blocked, pass.waitingOn
	deferred, missed := splitMandatory(pass.unplaced)
	if len(missed) > 0 {
		crunch := e.RetryWithMinimums(flexible, anchors, res, sleep)
		if !crunch.Feasible() {
			return capacityExceeded(date, schedulable, crunch.Unplaced, sleep)
		}
		placed, deferred = crunch.Placed, crunch.Deferred
		blocked, waitingOn = crunch.Blocked, crunch.WaitingOn
	}
	deferred = append(deferred, blocked...)

	schedule := make([]core.ScheduledTask, 0, len(anchors)+len(placed))
	schedule = append(schedule, anchors...)
	schedule = append(schedule, placed...)
	sort.SliceStable(schedule, func(i, j int) bool {
		if schedule[i].ScheduledTime != schedule[j].ScheduledTime {
			return schedule[i].ScheduledTime < schedule[j].ScheduledTime
		}
		return schedule[i].ID < schedule[j].ID
	})
	schedule = e.Annotate(schedule)
	e.annotateDependencies(schedule, res)

	if deferred == nil {
		deferred = []core.Occurrence{}
	}
	return core.ScheduleResult{
		Success:  true,
		Date:     date,
		Schedule: schedule,
		Deferred: deferred,
		Message:  blockedMessage(blocked, waitingOn),
	}
}

// blockedMessage names the occurrences deferred because a prerequisite is not
// on the day, or "" when there are none.
func blockedMessage(blocked []core.Occurrence, waitingOn map[string][]string) string {
	if len(blocked) == 0 {
		return ""
	}
	parts := make([]string, 0, len(blocked))
	for _, occ := range blocked {
		parts = append(parts, fmt.Sprintf("%s (waiting on %s)", occ.Name, strings.Join(waitingOn[occ.ID], ", ")))
	}
	return "deferred until their prerequisites are scheduled: " + strings.Join(parts, "; ")
}

// checkInput returns a description of the first malformed occurrence, or "".
// Full validation belongs upstream; this only keeps bad shapes from reaching
// placement.
func (e *Engine) checkInput(occs []core.Occurrence, sleep core.SleepWindow) string {
	if sleep.WakeTime < 0 || sleep.WakeTime >= core.MinutesPerDay || sleep.SleepTime < 0 || sleep.SleepTime > core.MinutesPerDay {
		return fmt.Sprintf("sleep window %s-%s is out of range", sleep.WakeTime, sleep.SleepTime)
	}
	seen := make(map[string]bool, len(occs))
	for i := range occs {
		occ := &occs[i]
		switch {
		case occ.ID == "":
			return "task without id"
		case seen[occ.ID]:
			return fmt.Sprintf("task %s appears twice", occ.ID)
		case occ.DurationMinutes <= 0:
			return fmt.Sprintf("task %s has non-positive duration", occ.ID)
		case occ.MinDurationMinutes <= 0 || occ.MinDurationMinutes > occ.DurationMinutes:
			return fmt.Sprintf("task %s has minimum duration outside 1..%d", occ.ID, occ.DurationMinutes)
		}
		seen[occ.ID] = true

		switch occ.SchedulingType {
		case core.SchedulingFixed:
			if occ.DefaultTime == nil || *occ.DefaultTime < 0 || *occ.DefaultTime >= core.MinutesPerDay {
				return fmt.Sprintf("fixed task %s has no valid default time", occ.ID)
			}
		case core.SchedulingFlexible:
			if occ.TimeWindow != "" {
				if _, ok := e.opts.Windows[occ.TimeWindow]; !ok {
					return fmt.Sprintf("task %s has unknown time window %q", occ.ID, occ.TimeWindow)
				}
			}
		default:
			return fmt.Sprintf("task %s has unknown scheduling type %q", occ.ID, occ.SchedulingType)
		}
	}
	return ""
}

func cycleDetected(date core.Date, occs []core.Occurrence, res *Resolution) core.ScheduleResult {
	names := make(map[string]string, len(occs))
	for i := range occs {
		names[occs[i].ID] = occs[i].Name
	}
	labels := make([]string, 0, len(res.CycleIDs))
	for _, id := range res.CycleIDs {
		labels = append(labels, names[id])
	}
	return core.ScheduleResult{
		Success: false,
		Date:    date,
		Reason:  core.ReasonCycleDetected,
		Message: "dependency cycle among: " + strings.Join(labels, ", "),
		Suggestions: []string{
			"Remove one of the dependencies between: " + strings.Join(labels, ", "),
		},
		CycleTaskIDs: res.CycleIDs,
	}
}
