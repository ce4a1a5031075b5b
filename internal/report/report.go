// Package report renders plans and definitions as plain text for the CLI and
// MCP tools.
package report

import (
	"fmt"
	"io"
	"strings"

	"dayplanner/internal/core"
)

// Schedule writes a day plan, one line per task, followed by deferred tasks
// and the failure details when the day did not fit.
func Schedule(w io.Writer, res core.ScheduleResult) {
	status := "ok"
	if !res.Success {
		status = string(res.Reason)
	}
	fmt.Fprintf(w, "Plan for %s (%s)\n", res.Date, status)
	if res.Message != "" {
		fmt.Fprintf(w, "%s\n", res.Message)
	}
	if res.ShortfallMinutes != nil {
		fmt.Fprintf(w, "Short by %d min\n", *res.ShortfallMinutes)
	}
	if len(res.CycleTaskIDs) > 0 {
		fmt.Fprintf(w, "Cycle: %s\n", strings.Join(res.CycleTaskIDs, ", "))
	}

	if len(res.Schedule) > 0 {
		fmt.Fprintln(w)
	}
	for _, t := range res.Schedule {
		fmt.Fprintf(w, "%s-%s  %s (%s)%s\n", t.ScheduledTime, t.End(), t.Name, t.ID, taskFlags(t))
	}
	if len(res.Deferred) > 0 {
		fmt.Fprintln(w, "\nDeferred:")
		for _, occ := range res.Deferred {
			fmt.Fprintf(w, "  %s (%s), %d min\n", occ.Name, occ.ID, occ.DurationMinutes)
		}
	}
	if len(res.Suggestions) > 0 {
		fmt.Fprintln(w, "\nSuggestions:")
		for _, s := range res.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
}

func taskFlags(t core.ScheduledTask) string {
	var flags []string
	if t.IsFixed() {
		flags = append(flags, "fixed")
	}
	if t.Degraded {
		flags = append(flags, fmt.Sprintf("shortened from %d min", t.DurationMinutes))
	}
	for _, c := range t.Conflicts {
		flags = append(flags, fmt.Sprintf("%s %s with %s", c.Severity, c.Kind, c.WithID))
	}
	if len(flags) == 0 {
		return ""
	}
	return "  [" + strings.Join(flags, "; ") + "]"
}

// Definition writes the fields of one definition.
func Definition(w io.Writer, def *core.TaskDefinition) {
	fmt.Fprintf(w, "ID: %s\n", def.ID)
	fmt.Fprintf(w, "Name: %s\n", def.Name)
	if def.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", def.Description)
	}
	fmt.Fprintf(w, "Duration: %d min (minimum %d)\n", def.DurationMinutes, def.MinDurationMinutes)
	fmt.Fprintf(w, "Mandatory: %t\n", def.IsMandatory)
	fmt.Fprintf(w, "Priority: %d\n", def.Priority)
	fmt.Fprintf(w, "Active: %t\n", def.IsActive)
	fmt.Fprintf(w, "Placement: %s\n", placement(def))
	if len(def.DependsOn) > 0 {
		fmt.Fprintf(w, "Depends on: %s\n", strings.Join(def.DependsOn, ", "))
	}
	fmt.Fprintf(w, "Recurrence: %s\n", Recurrence(def.Recurrence))
}

// DefinitionLine is the one-line form used in listings.
func DefinitionLine(def *core.TaskDefinition) string {
	state := ""
	if !def.IsActive {
		state = ", inactive"
	}
	return fmt.Sprintf("%s  %s  %d min, %s, %s%s", def.ID, def.Name, def.DurationMinutes, placement(def), Recurrence(def.Recurrence), state)
}

func placement(def *core.TaskDefinition) string {
	if def.IsFixed() && def.DefaultTime != nil {
		return "fixed at " + def.DefaultTime.String()
	}
	return string(def.TimeWindow)
}

// Recurrence summarizes a repeat rule.
func Recurrence(rec core.Recurrence) string {
	var b strings.Builder
	switch rec.Frequency {
	case core.FrequencyNone, "":
		fmt.Fprintf(&b, "once on %s", rec.StartDate)
		return b.String()
	case core.FrequencyCustom:
		b.WriteString(string(rec.CustomPattern))
		if rec.CustomPattern == core.PatternNthWeekday {
			fmt.Fprintf(&b, " (week %d, days %v)", rec.WeekOfMonth, rec.DaysOfWeek)
		}
	default:
		b.WriteString(string(rec.Frequency))
		if rec.Interval > 1 {
			fmt.Fprintf(&b, " every %d", rec.Interval)
		}
		if len(rec.DaysOfWeek) > 0 {
			fmt.Fprintf(&b, " on days %v", rec.DaysOfWeek)
		}
		if rec.DayOfMonth != 0 {
			fmt.Fprintf(&b, " on day %s", rec.DayOfMonth)
		}
	}
	fmt.Fprintf(&b, " from %s", rec.StartDate)
	if rec.EndDate != nil {
		fmt.Fprintf(&b, " until %s", *rec.EndDate)
	}
	if rec.EndAfterOccurrences > 0 {
		fmt.Fprintf(&b, " for %d times", rec.EndAfterOccurrences)
	}
	return b.String()
}
