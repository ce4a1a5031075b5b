package core

import (
	"slices"
	"strings"
)

// ValidateDefinition checks a single definition's fields. It does not look at
// other definitions; use ValidateDependencies for that.
func ValidateDefinition(def *TaskDefinition) error {
	fail := func(field, msg string) error {
		return ValidationError{ID: def.ID, Field: field, Message: msg}
	}

	if !IsValidID(def.ID) {
		return fail("id", "must be non-empty and contain no whitespace")
	}
	if strings.TrimSpace(def.Name) == "" {
		return fail("name", "is required")
	}
	if def.DurationMinutes <= 0 {
		return fail("durationMinutes", "must be positive")
	}
	if def.MinDurationMinutes <= 0 {
		return fail("minDurationMinutes", "must be positive")
	}
	if def.MinDurationMinutes > def.DurationMinutes {
		return fail("minDurationMinutes", "must not exceed durationMinutes")
	}
	if def.Priority < 1 || def.Priority > 5 {
		return fail("priority", "must be between 1 and 5")
	}

	switch def.SchedulingType {
	case SchedulingFixed:
		if def.DefaultTime == nil {
			return fail("defaultTime", "is required for fixed tasks")
		}
		if *def.DefaultTime < 0 || *def.DefaultTime >= MinutesPerDay {
			return fail("defaultTime", "must be within the day")
		}
	case SchedulingFlexible:
		if !IsValidTimeWindow(def.TimeWindow) {
			return fail("timeWindow", "must be morning, afternoon, evening or anytime")
		}
	default:
		return fail("schedulingType", "must be fixed or flexible")
	}

	for _, dep := range def.DependsOn {
		if dep == def.ID {
			return fail("dependsOn", "a task cannot depend on itself")
		}
	}

	return validateRecurrence(def)
}

func validateRecurrence(def *TaskDefinition) error {
	rec := def.Recurrence
	fail := func(field, msg string) error {
		return ValidationError{ID: def.ID, Field: "recurrence." + field, Message: msg}
	}

	if rec.Interval < 0 {
		return fail("interval", "must be at least 1")
	}
	for _, wd := range rec.DaysOfWeek {
		if wd < 0 || wd > 6 {
			return fail("daysOfWeek", "weekday indices are 0 (Sunday) to 6 (Saturday)")
		}
	}
	if rec.DayOfMonth != DayOfMonthLast && (rec.DayOfMonth < 0 || rec.DayOfMonth > 31) {
		return fail("dayOfMonth", "must be 1-31 or \"last\"")
	}
	if rec.Month < 0 || rec.Month > 12 {
		return fail("month", "must be 1-12")
	}
	if rec.EndAfterOccurrences < 0 {
		return fail("endAfterOccurrences", "must not be negative")
	}
	if rec.StartDate.IsZero() {
		return fail("startDate", "is required")
	}
	if rec.EndDate != nil && rec.EndDate.Before(rec.StartDate) {
		return fail("endDate", "must not be before startDate")
	}

	switch rec.Frequency {
	case FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	case FrequencyCustom:
		switch rec.CustomPattern {
		case PatternWeekdays, PatternWeekends:
		case PatternNthWeekday:
			if rec.WeekOfMonth != -1 && (rec.WeekOfMonth < 0 || rec.WeekOfMonth > 5) {
				return fail("weekOfMonth", "must be 1-5 or -1 for the last week")
			}
		default:
			return fail("customPattern", "must be weekdays, weekends or nth-weekday")
		}
	default:
		return fail("frequency", "must be none, daily, weekly, monthly, yearly or custom")
	}
	return nil
}

// IsValidTimeWindow reports whether w is one of the named windows.
func IsValidTimeWindow(w TimeWindow) bool {
	switch w {
	case WindowMorning, WindowAfternoon, WindowEvening, WindowAnytime:
		return true
	}
	return false
}

// ValidateDependencies checks that every declared dependency exists among defs
// and that the declarations are acyclic.
func ValidateDependencies(defs []*TaskDefinition) error {
	byID := make(map[string]*TaskDefinition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}
	for _, d := range defs {
		for _, dep := range d.DependsOn {
			if _, ok := byID[dep]; !ok {
				return UnknownDependencyError{ID: d.ID, DependsOn: dep}
			}
		}
	}
	for _, d := range defs {
		for _, dep := range d.DependsOn {
			if reaches(byID, dep, d.ID) {
				return CycleError{From: d.ID, To: dep}
			}
		}
	}
	return nil
}

// WouldCreateCycle reports whether adding from -> to to defs closes a cycle.
func WouldCreateCycle(defs []*TaskDefinition, from, to string) bool {
	byID := make(map[string]*TaskDefinition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}
	return reaches(byID, to, from)
}

// reaches does a BFS over DependsOn edges from start looking for target.
func reaches(byID map[string]*TaskDefinition, start, target string) bool {
	visited := make(map[string]bool)
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == target {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true

		d := byID[current]
		if d == nil {
			continue
		}
		queue = append(queue, d.DependsOn...)
	}
	return false
}

// Dependents returns the ids of definitions that depend on id.
func Dependents(defs []*TaskDefinition, id string) []string {
	var out []string
	for _, d := range defs {
		if slices.Contains(d.DependsOn, id) {
			out = append(out, d.ID)
		}
	}
	return out
}
