package engine

import (
	"fmt"
	"strings"

	"dayplanner/internal/core"
)

const (
	DefaultBufferMinutes   = 5
	DefaultSlotStepMinutes = 15
)

// MissingDependencyPolicy decides what a dependency on a task that has no
// placed occurrence today means.
type MissingDependencyPolicy string

const (
	// MissingDependencySatisfied ignores absent prerequisites.
	MissingDependencySatisfied MissingDependencyPolicy = "satisfied"
	// MissingDependencyBlocking keeps the dependent from being placed.
	MissingDependencyBlocking MissingDependencyPolicy = "blocking"
)

// ParseMissingDependencyPolicy accepts the textual policy names used in config.
func ParseMissingDependencyPolicy(value string) (MissingDependencyPolicy, error) {
	switch p := MissingDependencyPolicy(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return MissingDependencySatisfied, nil
	case MissingDependencySatisfied, MissingDependencyBlocking:
		return p, nil
	default:
		return "", fmt.Errorf("invalid missing dependency policy %q: want satisfied or blocking", value)
	}
}

// WindowRange is a half-open minute range [Start, End).
type WindowRange struct {
	Start core.TimeOfDay
	End   core.TimeOfDay
}

// DefaultWindows returns the stock minute ranges of the named time windows.
func DefaultWindows() map[core.TimeWindow]WindowRange {
	return map[core.TimeWindow]WindowRange{
		core.WindowMorning:   {Start: core.Clock(6, 0), End: core.Clock(12, 0)},
		core.WindowAfternoon: {Start: core.Clock(12, 0), End: core.Clock(17, 0)},
		core.WindowEvening:   {Start: core.Clock(17, 0), End: core.Clock(23, 0)},
		core.WindowAnytime:   {Start: core.Clock(6, 0), End: core.Clock(23, 0)},
	}
}

// Options configures an Engine. BufferMinutes is used as given, so callers
// normally start from DefaultOptions; other zero fields fall back to defaults.
type Options struct {
	BufferMinutes       int
	SlotStepMinutes     int
	Windows             map[core.TimeWindow]WindowRange
	MissingDependencies MissingDependencyPolicy
	Severity            SeverityPolicy
}

// DefaultOptions returns the options New uses for zero fields.
func DefaultOptions() Options {
	return Options{
		BufferMinutes:       DefaultBufferMinutes,
		SlotStepMinutes:     DefaultSlotStepMinutes,
		Windows:             DefaultWindows(),
		MissingDependencies: MissingDependencySatisfied,
		Severity:            MandatorySeverity{},
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.BufferMinutes < 0 {
		o.BufferMinutes = 0
	}
	if o.SlotStepMinutes <= 0 {
		o.SlotStepMinutes = def.SlotStepMinutes
	}
	if o.MissingDependencies == "" {
		o.MissingDependencies = def.MissingDependencies
	}
	if o.Severity == nil {
		o.Severity = def.Severity
	}
	windows := make(map[core.TimeWindow]WindowRange, len(def.Windows))
	for k, v := range def.Windows {
		windows[k] = v
	}
	for k, v := range o.Windows {
		windows[k] = v
	}
	o.Windows = windows
	return o
}
