// Package recurrence decides which calendar days a task definition lands on.
package recurrence

import (
	"slices"
	"time"

	"dayplanner/internal/core"
)

// searchHorizonDays bounds NextDates so a rule that never matches again
// (e.g. day 31 every 2 months from an odd month) cannot loop forever.
const searchHorizonDays = 5 * 366

// AppliesOn reports whether def produces an occurrence on date.
func AppliesOn(def *core.TaskDefinition, date core.Date) bool {
	rec := def.Recurrence
	start := rec.StartDate
	if start.IsZero() {
		// A one-off needs its date; without one it has no day to land on.
		if rec.Frequency == core.FrequencyNone || rec.Frequency == "" {
			return false
		}
		start = date
	}
	if date.Before(start) {
		return false
	}
	if rec.EndDate != nil && date.After(*rec.EndDate) {
		return false
	}
	if !matches(rec, start, date) {
		return false
	}
	if rec.EndAfterOccurrences > 0 && !withinCount(rec, start, date) {
		return false
	}
	return true
}

// Expand materializes the occurrences of the active definitions for date,
// keeping input order.
func Expand(defs []*core.TaskDefinition, date core.Date) []core.Occurrence {
	out := make([]core.Occurrence, 0, len(defs))
	for _, def := range defs {
		if def == nil || !def.IsActive {
			continue
		}
		if !AppliesOn(def, date) {
			continue
		}
		occ := core.Occurrence{TaskDefinition: *def, Date: date}
		occ.DependsOn = slices.Clone(def.DependsOn)
		out = append(out, occ)
	}
	return out
}

// NextDates returns up to n dates on or after from on which def applies.
func NextDates(def *core.TaskDefinition, from core.Date, n int) []core.Date {
	dates := make([]core.Date, 0, n)
	for i := 0; i < searchHorizonDays && len(dates) < n; i++ {
		d := from.AddDays(i)
		if rec := def.Recurrence; rec.EndDate != nil && d.After(*rec.EndDate) {
			break
		}
		if AppliesOn(def, d) {
			dates = append(dates, d)
		}
	}
	return dates
}

func interval(rec core.Recurrence) int {
	if rec.Interval <= 0 {
		return 1
	}
	return rec.Interval
}

func matches(rec core.Recurrence, start, date core.Date) bool {
	switch rec.Frequency {
	case core.FrequencyNone, "":
		return date == start
	case core.FrequencyDaily:
		return date.DaysSince(start)%interval(rec) == 0
	case core.FrequencyWeekly:
		if weeksBetween(start, date)%interval(rec) != 0 {
			return false
		}
		days := rec.DaysOfWeek
		if len(days) == 0 {
			return date.Weekday() == start.Weekday()
		}
		return slices.Contains(days, int(date.Weekday()))
	case core.FrequencyMonthly:
		if monthsBetween(start, date)%interval(rec) != 0 {
			return false
		}
		return dayMatches(rec.DayOfMonth, start, date)
	case core.FrequencyYearly:
		if (date.Year-start.Year)%interval(rec) != 0 {
			return false
		}
		month := time.Month(rec.Month)
		if month == 0 {
			month = start.Month
		}
		if date.Month != month {
			return false
		}
		return dayMatches(rec.DayOfMonth, start, date)
	case core.FrequencyCustom:
		return customMatches(rec, start, date)
	}
	return false
}

func customMatches(rec core.Recurrence, start, date core.Date) bool {
	wd := date.Weekday()
	switch rec.CustomPattern {
	case core.PatternWeekdays:
		return wd >= time.Monday && wd <= time.Friday
	case core.PatternWeekends:
		return wd == time.Saturday || wd == time.Sunday
	case core.PatternNthWeekday:
		if monthsBetween(start, date)%interval(rec) != 0 {
			return false
		}
		want := start.Weekday()
		if len(rec.DaysOfWeek) > 0 {
			want = time.Weekday(rec.DaysOfWeek[0])
		}
		if wd != want {
			return false
		}
		nth := rec.WeekOfMonth
		if nth == 0 {
			nth = ordinalInMonth(start)
		}
		if nth < 0 {
			return date.Day+7 > date.DaysInMonth()
		}
		return ordinalInMonth(date) == nth
	}
	return false
}

// dayMatches applies the day-of-month rule. A day past the end of the month
// skips that month; only the "last" sentinel clamps.
func dayMatches(dom core.DayOfMonth, start, date core.Date) bool {
	if dom == 0 {
		dom = core.DayOfMonth(start.Day)
	}
	day, ok := dom.Resolve(date.DaysInMonth())
	return ok && date.Day == day
}

// ordinalInMonth returns 1 for the first such weekday of the month, 2 for the
// second and so on.
func ordinalInMonth(d core.Date) int {
	return (d.Day-1)/7 + 1
}

func monthsBetween(a, b core.Date) int {
	return (b.Year*12 + int(b.Month)) - (a.Year*12 + int(a.Month))
}

// weeksBetween counts Sunday-aligned weeks from a to b.
func weeksBetween(a, b core.Date) int {
	wa := a.AddDays(-int(a.Weekday()))
	wb := b.AddDays(-int(b.Weekday()))
	return wb.DaysSince(wa) / 7
}

// withinCount reports whether date is no later than the EndAfterOccurrences-th
// matching day counted from start.
func withinCount(rec core.Recurrence, start, date core.Date) bool {
	limit := rec.EndAfterOccurrences
	if rec.Frequency == core.FrequencyDaily {
		return date.DaysSince(start)/interval(rec)+1 <= limit
	}
	count := 0
	for d := start; !d.After(date); d = d.AddDays(1) {
		if matches(rec, start, d) {
			count++
			if count > limit {
				return false
			}
		}
	}
	return true
}
