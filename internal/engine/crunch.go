package engine

import (
	"fmt"
	"sort"
	"strings"

	"dayplanner/internal/core"
)

// CrunchOutcome is the result of a placement attempt with degraded durations.
type CrunchOutcome struct {
	Placed []core.ScheduledTask
	// Deferred are optional occurrences that still did not fit.
	Deferred []core.Occurrence
	// Unplaced are mandatory occurrences that did not fit even at minimum.
	Unplaced []core.Occurrence
	// Blocked wait for a prerequisite under the blocking policy. They are
	// deferred whether mandatory or not.
	Blocked   []core.Occurrence
	WaitingOn map[string][]string
}

// Feasible reports whether every mandatory occurrence was placed.
func (o CrunchOutcome) Feasible() bool {
	return len(o.Unplaced) == 0
}

// RetryWithMinimums re-runs flexible placement from the anchor skeleton with
// every mandatory flexible occurrence at its minimum duration and placed before
// optional ones. Optional occurrences keep their nominal duration and are
// deferred when they do not fit.
func (e *Engine) RetryWithMinimums(flexible []core.Occurrence, anchors []core.ScheduledTask, res *Resolution, sleep core.SleepWindow) CrunchOutcome {
	pass := e.placeFlexible(flexible, anchors, res, sleep, modeCrunch)
	out := CrunchOutcome{Placed: pass.placed, Blocked: pass.blocked, WaitingOn: pass.waitingOn}
	out.Deferred, out.Unplaced = splitMandatory(pass.unplaced)
	return out
}

// splitMandatory partitions occurrences into optional and mandatory ones.
func splitMandatory(occs []core.Occurrence) (optional, mandatory []core.Occurrence) {
	for _, occ := range occs {
		if occ.IsMandatory {
			mandatory = append(mandatory, occ)
		} else {
			optional = append(optional, occ)
		}
	}
	return optional, mandatory
}

// mandatoryMinimumLoad is the waking time the mandatory workload needs at
// minimum: the union of mandatory anchors inside the waking window, plus the
// minimum duration of every mandatory flexible task. Overlapping anchors count
// once since they share the same minutes of the day.
func mandatoryMinimumLoad(occs []core.Occurrence, sleep core.SleepWindow) int {
	wake, sleepAt := sleep.Bounds()
	load := 0
	var anchors []WindowRange
	for i := range occs {
		occ := &occs[i]
		if !occ.IsMandatory {
			continue
		}
		if occ.IsFixed() {
			start := max(*occ.DefaultTime, wake)
			end := min(*occ.DefaultTime+core.TimeOfDay(occ.DurationMinutes), sleepAt)
			if end > start {
				anchors = append(anchors, WindowRange{Start: start, End: end})
			}
			continue
		}
		load += occ.MinDurationMinutes
	}
	return load + coveredMinutes(anchors)
}

// coveredMinutes is the number of minutes covered by at least one range.
func coveredMinutes(ranges []WindowRange) int {
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	total := 0
	for i := 0; i < len(ranges); {
		cur := ranges[i]
		i++
		for i < len(ranges) && ranges[i].Start <= cur.End {
			cur.End = max(cur.End, ranges[i].End)
			i++
		}
		total += int(cur.End - cur.Start)
	}
	return total
}

// capacityExceeded builds the infeasibility result. The shortfall is the
// mandatory load beyond the waking window, or, when the load fits on paper but
// windows and dependencies fragment the day, the minutes still unplaced.
func capacityExceeded(date core.Date, occs []core.Occurrence, unplaced []core.Occurrence, sleep core.SleepWindow) core.ScheduleResult {
	capacity := sleep.Minutes()
	load := mandatoryMinimumLoad(occs, sleep)
	shortfall := load - capacity
	if shortfall <= 0 {
		shortfall = 0
		for _, occ := range unplaced {
			shortfall += occ.MinDurationMinutes
		}
	}

	hasOptional := false
	for i := range occs {
		if !occs[i].IsMandatory {
			hasOptional = true
			break
		}
	}

	suggestions := []string{
		fmt.Sprintf("Adjust wake or sleep time to free at least %d more minutes", shortfall),
	}
	if hasOptional {
		suggestions = append(suggestions, "Reschedule non-mandatory tasks to another day")
	}
	if len(unplaced) > 0 {
		suggestions = append(suggestions, "Shorten the minimum duration of: "+occurrenceNames(unplaced))
	}
	suggestions = append(suggestions, "Mark some tasks as non-mandatory")

	msg := fmt.Sprintf("mandatory tasks need %d minutes at minimum duration but the waking window has %d", load, capacity)
	if load <= capacity {
		msg = fmt.Sprintf("%d mandatory task(s) do not fit their time windows even at minimum duration: %s",
			len(unplaced), occurrenceNames(unplaced))
	}

	return core.ScheduleResult{
		Success:          false,
		Date:             date,
		Reason:           core.ReasonCapacityExceeded,
		Message:          msg,
		ShortfallMinutes: &shortfall,
		Suggestions:      suggestions,
	}
}

func occurrenceNames(occs []core.Occurrence) string {
	names := make([]string, 0, len(occs))
	for _, occ := range occs {
		names = append(names, occ.Name)
	}
	return strings.Join(names, ", ")
}
