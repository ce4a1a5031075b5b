package engine

import (
	"dayplanner/internal/core"
)

// SeverityPolicy classifies a conflict between two scheduled tasks.
type SeverityPolicy interface {
	Classify(a, b *core.ScheduledTask) core.Severity
}

// SeverityFunc adapts a function to SeverityPolicy.
type SeverityFunc func(a, b *core.ScheduledTask) core.Severity

func (f SeverityFunc) Classify(a, b *core.ScheduledTask) core.Severity {
	return f(a, b)
}

// MandatorySeverity rates a conflict high when both tasks are mandatory,
// medium when one is and low otherwise.
type MandatorySeverity struct{}

func (MandatorySeverity) Classify(a, b *core.ScheduledTask) core.Severity {
	switch {
	case a.IsMandatory && b.IsMandatory:
		return core.SeverityHigh
	case a.IsMandatory || b.IsMandatory:
		return core.SeverityMedium
	default:
		return core.SeverityLow
	}
}

// Annotate fills the Conflicts of every pair of tasks whose intervals overlap.
// The scan is all-pairs; daily schedules hold dozens of tasks at most.
func (e *Engine) Annotate(schedule []core.ScheduledTask) []core.ScheduledTask {
	for i := range schedule {
		if schedule[i].Conflicts == nil {
			schedule[i].Conflicts = []core.Conflict{}
		}
	}
	for i := 0; i < len(schedule); i++ {
		a := &schedule[i]
		for j := i + 1; j < len(schedule); j++ {
			b := &schedule[j]
			if !overlaps(a.ScheduledTime, a.End(), b.ScheduledTime, b.End()) {
				continue
			}
			e.link(a, b, core.ConflictOverlap)
		}
	}
	return schedule
}

// annotateDependencies flags fixed tasks that start before a prerequisite has
// finished plus the buffer. Anchors are never moved, so the violation is
// reported instead of repaired.
func (e *Engine) annotateDependencies(schedule []core.ScheduledTask, res *Resolution) {
	index := make(map[string]int, len(schedule))
	for i := range schedule {
		index[schedule[i].ID] = i
	}
	buffer := core.TimeOfDay(e.opts.BufferMinutes)
	for i := range schedule {
		task := &schedule[i]
		if !task.IsFixed() {
			continue
		}
		for _, dep := range res.Prereqs[task.ID] {
			j, ok := index[dep]
			if !ok {
				continue
			}
			prereq := &schedule[j]
			if task.ScheduledTime < prereq.End()+buffer {
				e.link(task, prereq, core.ConflictDependency)
			}
		}
	}
}

func (e *Engine) link(a, b *core.ScheduledTask, kind core.ConflictKind) {
	severity := e.opts.Severity.Classify(a, b)
	a.Conflicts = append(a.Conflicts, core.Conflict{WithID: b.ID, Severity: severity, Kind: kind})
	b.Conflicts = append(b.Conflicts, core.Conflict{WithID: a.ID, Severity: severity, Kind: kind})
}
