package core

import (
	"time"
)

// SchedulingType tells the engine whether an occurrence is pinned or movable.
type SchedulingType string

const (
	SchedulingFixed    SchedulingType = "fixed"
	SchedulingFlexible SchedulingType = "flexible"
)

// TimeWindow is a named preferred range of the day for flexible tasks.
type TimeWindow string

const (
	WindowMorning   TimeWindow = "morning"
	WindowAfternoon TimeWindow = "afternoon"
	WindowEvening   TimeWindow = "evening"
	WindowAnytime   TimeWindow = "anytime"
)

// Frequency describes how a definition recurs.
type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
	FrequencyCustom  Frequency = "custom"
)

// CustomPattern refines FrequencyCustom.
type CustomPattern string

const (
	PatternWeekdays   CustomPattern = "weekdays"
	PatternWeekends   CustomPattern = "weekends"
	PatternNthWeekday CustomPattern = "nth-weekday"
)

// Recurrence is the repeat rule of a task definition.
type Recurrence struct {
	Frequency     Frequency     `json:"frequency" yaml:"frequency"`
	Interval      int           `json:"interval,omitempty" yaml:"interval,omitempty"`
	DaysOfWeek    []int         `json:"daysOfWeek,omitempty" yaml:"daysOfWeek,omitempty"`
	DayOfMonth    DayOfMonth    `json:"dayOfMonth,omitempty" yaml:"dayOfMonth,omitempty"`
	Month         int           `json:"month,omitempty" yaml:"month,omitempty"`
	CustomPattern CustomPattern `json:"customPattern,omitempty" yaml:"customPattern,omitempty"`
	// WeekOfMonth selects the ordinal for nth-weekday rules: 1-5, or -1 for the last one.
	WeekOfMonth         int   `json:"weekOfMonth,omitempty" yaml:"weekOfMonth,omitempty"`
	StartDate           Date  `json:"startDate" yaml:"startDate"`
	EndDate             *Date `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	EndAfterOccurrences int   `json:"endAfterOccurrences,omitempty" yaml:"endAfterOccurrences,omitempty"`
}

// TaskDefinition is the long-lived template a user edits. The engine only reads it.
type TaskDefinition struct {
	ID                 string         `json:"id" yaml:"id"`
	Name               string         `json:"name" yaml:"name"`
	Description        string         `json:"description,omitempty" yaml:"description,omitempty"`
	DurationMinutes    int            `json:"durationMinutes" yaml:"durationMinutes"`
	MinDurationMinutes int            `json:"minDurationMinutes" yaml:"minDurationMinutes"`
	IsMandatory        bool           `json:"isMandatory" yaml:"isMandatory"`
	Priority           int            `json:"priority" yaml:"priority"`
	IsActive           bool           `json:"isActive" yaml:"isActive"`
	SchedulingType     SchedulingType `json:"schedulingType" yaml:"schedulingType"`
	DefaultTime        *TimeOfDay     `json:"defaultTime,omitempty" yaml:"defaultTime,omitempty"`
	TimeWindow         TimeWindow     `json:"timeWindow,omitempty" yaml:"timeWindow,omitempty"`
	DependsOn          []string       `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Recurrence         Recurrence     `json:"recurrence" yaml:"recurrence"`
	CreatedAt          time.Time      `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt          time.Time      `json:"updatedAt,omitempty" yaml:"-"`
}

// IsFixed reports whether the definition is an anchor.
func (d *TaskDefinition) IsFixed() bool {
	return d.SchedulingType == SchedulingFixed
}

// Occurrence is one date's materialization of a definition.
type Occurrence struct {
	TaskDefinition
	Date Date `json:"date"`
}

// Severity classifies how serious an overlap is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ConflictKind distinguishes time overlaps from dependency violations on anchors.
type ConflictKind string

const (
	ConflictOverlap    ConflictKind = "overlap"
	ConflictDependency ConflictKind = "dependency"
)

// Conflict is attached to a ScheduledTask by the conflict detector.
type Conflict struct {
	WithID   string       `json:"withId"`
	Severity Severity     `json:"severity"`
	Kind     ConflictKind `json:"kind"`
}

// ScheduledTask is an occurrence with a concrete start time.
type ScheduledTask struct {
	Occurrence
	ScheduledTime            TimeOfDay  `json:"scheduledTime"`
	EffectiveDurationMinutes int        `json:"effectiveDurationMinutes"`
	Degraded                 bool       `json:"degraded,omitempty"`
	Conflicts                []Conflict `json:"conflicts"`
}

// End returns the minute at which the task finishes.
func (t ScheduledTask) End() TimeOfDay {
	return t.ScheduledTime + TimeOfDay(t.EffectiveDurationMinutes)
}

// SleepWindow bounds the usable part of a day. SleepTime at or before WakeTime
// means the user goes to bed after midnight.
type SleepWindow struct {
	WakeTime  TimeOfDay `json:"wakeTime" yaml:"wakeTime"`
	SleepTime TimeOfDay `json:"sleepTime" yaml:"sleepTime"`
}

// Bounds returns the waking interval as minutes, with SleepTime pushed past
// 24:00 when the window crosses midnight.
func (w SleepWindow) Bounds() (TimeOfDay, TimeOfDay) {
	end := w.SleepTime
	if end <= w.WakeTime {
		end += MinutesPerDay
	}
	return w.WakeTime, end
}

// Minutes is the waking capacity of the day.
func (w SleepWindow) Minutes() int {
	start, end := w.Bounds()
	return int(end - start)
}

// FailureReason explains an unsuccessful ScheduleResult.
type FailureReason string

const (
	ReasonCapacityExceeded FailureReason = "capacity_exceeded"
	ReasonCycleDetected    FailureReason = "cycle_detected"
	ReasonInvalidInput     FailureReason = "invalid_input"
)

// ScheduleResult is the discriminated output of a scheduling run.
type ScheduleResult struct {
	Success          bool            `json:"success"`
	Date             Date            `json:"date"`
	Schedule         []ScheduledTask `json:"schedule"`
	Deferred         []Occurrence    `json:"deferred"`
	Reason           FailureReason   `json:"reason,omitempty"`
	Message          string          `json:"message,omitempty"`
	ShortfallMinutes *int            `json:"shortfallMinutes,omitempty"`
	Suggestions      []string        `json:"suggestions,omitempty"`
	CycleTaskIDs     []string        `json:"cycleTaskIds,omitempty"`
}
