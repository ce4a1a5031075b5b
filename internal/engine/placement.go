package engine

import (
	"slices"
	"sort"

	"dayplanner/internal/core"
)

// PlaceAnchors places every fixed occurrence at its DefaultTime. Overlaps are
// left for the conflict detector.
func (e *Engine) PlaceAnchors(fixed []core.Occurrence) []core.ScheduledTask {
	out := make([]core.ScheduledTask, 0, len(fixed))
	for _, occ := range fixed {
		out = append(out, core.ScheduledTask{
			Occurrence:               occ,
			ScheduledTime:            *occ.DefaultTime,
			EffectiveDurationMinutes: occ.DurationMinutes,
			Conflicts:                []core.Conflict{},
		})
	}
	return out
}

// placementMode selects durations and ordering for a flexible placement pass.
type placementMode int

const (
	// modeNominal places every occurrence at its nominal duration.
	modeNominal placementMode = iota
	// modeCrunch places mandatory occurrences at their minimum duration and
	// ahead of optional ones within the same dependency depth.
	modeCrunch
)

// duration returns the minutes occ is placed with and whether that is a
// degraded (minimum) duration.
func (m placementMode) duration(occ *core.Occurrence) (int, bool) {
	if m == modeCrunch && occ.IsMandatory {
		return occ.MinDurationMinutes, occ.MinDurationMinutes < occ.DurationMinutes
	}
	return occ.DurationMinutes, false
}

// PlaceFlexible greedily places flexible occurrences at their nominal duration
// around the already placed tasks. It returns the new placements and the
// occurrences that found no slot, including those blocked on a prerequisite.
func (e *Engine) PlaceFlexible(flexible []core.Occurrence, placed []core.ScheduledTask, res *Resolution, sleep core.SleepWindow) ([]core.ScheduledTask, []core.Occurrence) {
	pass := e.placeFlexible(flexible, placed, res, sleep, modeNominal)
	return pass.placed, append(pass.unplaced, pass.blocked...)
}

// flexiblePass is the outcome of one flexible placement pass.
type flexiblePass struct {
	placed   []core.ScheduledTask
	unplaced []core.Occurrence
	// blocked wait for a prerequisite under the blocking policy.
	blocked   []core.Occurrence
	waitingOn map[string][]string
}

func (e *Engine) placeFlexible(flexible []core.Occurrence, placed []core.ScheduledTask, res *Resolution, sleep core.SleepWindow, mode placementMode) flexiblePass {
	ordered := e.placementOrder(flexible, res, mode)

	busy := make([]core.ScheduledTask, len(placed), len(placed)+len(ordered))
	copy(busy, placed)
	byID := make(map[string]*core.ScheduledTask, len(placed)+len(ordered))
	for i := range placed {
		byID[placed[i].ID] = &placed[i]
	}

	wake, sleepAt := sleep.Bounds()
	out := make([]core.ScheduledTask, 0, len(ordered))
	pass := flexiblePass{waitingOn: make(map[string][]string)}
	for _, occ := range ordered {
		minutes, degraded := mode.duration(&occ)

		constraint := res.EarliestStart(occ.ID, byID)
		if constraint.Blocked {
			pass.blocked = append(pass.blocked, occ)
			pass.waitingOn[occ.ID] = constraint.WaitingOn
			continue
		}

		window := e.windowFor(occ.TimeWindow)
		lo := max(window.Start, wake)
		hi := min(window.End, sleepAt)
		if constraint.Constrained {
			lo = max(lo, constraint.Earliest)
		}

		start, ok := e.findSlot(lo, hi, minutes, busy)
		if !ok {
			pass.unplaced = append(pass.unplaced, occ)
			continue
		}

		task := core.ScheduledTask{
			Occurrence:               occ,
			ScheduledTime:            start,
			EffectiveDurationMinutes: minutes,
			Degraded:                 degraded,
			Conflicts:                []core.Conflict{},
		}
		out = append(out, task)
		busy = append(busy, task)
		byID[task.ID] = &out[len(out)-1]
	}
	pass.placed = out
	return pass
}

// placementOrder sorts flexible occurrences by topological depth, then
// priority (highest first), then mandatory before optional, then resolver
// order. In crunch mode mandatory comes before priority.
func (e *Engine) placementOrder(flexible []core.Occurrence, res *Resolution, mode placementMode) []core.Occurrence {
	pos := make(map[string]int, len(res.Order))
	for i, id := range res.Order {
		pos[id] = i
	}
	ordered := slices.Clone(flexible)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := &ordered[i], &ordered[j]
		if da, db := res.Depth[a.ID], res.Depth[b.ID]; da != db {
			return da < db
		}
		if mode == modeCrunch && a.IsMandatory != b.IsMandatory {
			return a.IsMandatory
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.IsMandatory != b.IsMandatory {
			return a.IsMandatory
		}
		return pos[a.ID] < pos[b.ID]
	})
	return ordered
}

func (e *Engine) windowFor(w core.TimeWindow) WindowRange {
	if w == "" {
		w = core.WindowAnytime
	}
	return e.opts.Windows[w]
}

// findSlot returns the earliest start in [lo, hi) whose half-open interval of
// the given length overlaps nothing in busy and ends by hi. Candidates are the
// slot grid anchored at lo plus the end of every busy task inside the range.
func (e *Engine) findSlot(lo, hi core.TimeOfDay, minutes int, busy []core.ScheduledTask) (core.TimeOfDay, bool) {
	length := core.TimeOfDay(minutes)
	if minutes <= 0 || lo+length > hi {
		return 0, false
	}

	step := core.TimeOfDay(e.opts.SlotStepMinutes)
	var candidates []core.TimeOfDay
	for t := lo; t+length <= hi; t += step {
		candidates = append(candidates, t)
	}
	for i := range busy {
		if end := busy[i].End(); end > lo && end+length <= hi {
			candidates = append(candidates, end)
		}
	}
	slices.Sort(candidates)
	candidates = slices.Compact(candidates)

	for _, t := range candidates {
		if !overlapsAny(t, t+length, busy) {
			return t, true
		}
	}
	return 0, false
}

// overlaps is the half-open interval intersection test.
func overlaps(aStart, aEnd, bStart, bEnd core.TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

func overlapsAny(start, end core.TimeOfDay, busy []core.ScheduledTask) bool {
	for i := range busy {
		if overlaps(start, end, busy[i].ScheduledTime, busy[i].End()) {
			return true
		}
	}
	return false
}
