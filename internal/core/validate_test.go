package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDefinition(id string, deps ...string) *TaskDefinition {
	return &TaskDefinition{
		ID:                 id,
		Name:               "Task " + id,
		DurationMinutes:    45,
		MinDurationMinutes: 30,
		IsMandatory:        true,
		Priority:           3,
		IsActive:           true,
		SchedulingType:     SchedulingFlexible,
		TimeWindow:         WindowMorning,
		DependsOn:          deps,
		Recurrence:         Recurrence{Frequency: FrequencyDaily, Interval: 1, StartDate: MustDate("2026-01-01")},
	}
}

func TestValidateDefinitionRejectsBadFields(t *testing.T) {
	noon := Clock(12, 0)
	late := MinutesPerDay
	cases := []struct {
		field  string
		mutate func(d *TaskDefinition)
	}{
		{"id", func(d *TaskDefinition) { d.ID = "has space" }},
		{"name", func(d *TaskDefinition) { d.Name = "  " }},
		{"durationMinutes", func(d *TaskDefinition) { d.DurationMinutes = 0 }},
		{"minDurationMinutes", func(d *TaskDefinition) { d.MinDurationMinutes = 0 }},
		{"minDurationMinutes", func(d *TaskDefinition) { d.MinDurationMinutes = 60 }},
		{"priority", func(d *TaskDefinition) { d.Priority = 6 }},
		{"defaultTime", func(d *TaskDefinition) { d.SchedulingType = SchedulingFixed }},
		{"defaultTime", func(d *TaskDefinition) { d.SchedulingType = SchedulingFixed; d.DefaultTime = &late }},
		{"timeWindow", func(d *TaskDefinition) { d.TimeWindow = "night" }},
		{"schedulingType", func(d *TaskDefinition) { d.SchedulingType = "floating"; d.DefaultTime = &noon }},
		{"dependsOn", func(d *TaskDefinition) { d.DependsOn = []string{d.ID} }},
		{"recurrence.interval", func(d *TaskDefinition) { d.Recurrence.Interval = -1 }},
		{"recurrence.daysOfWeek", func(d *TaskDefinition) { d.Recurrence.DaysOfWeek = []int{7} }},
		{"recurrence.dayOfMonth", func(d *TaskDefinition) { d.Recurrence.DayOfMonth = 32 }},
		{"recurrence.month", func(d *TaskDefinition) { d.Recurrence.Month = 13 }},
		{"recurrence.startDate", func(d *TaskDefinition) { d.Recurrence.StartDate = Date{} }},
		{"recurrence.endDate", func(d *TaskDefinition) { end := MustDate("2025-12-31"); d.Recurrence.EndDate = &end }},
		{"recurrence.frequency", func(d *TaskDefinition) { d.Recurrence.Frequency = "hourly" }},
		{"recurrence.customPattern", func(d *TaskDefinition) { d.Recurrence.Frequency = FrequencyCustom }},
		{"recurrence.weekOfMonth", func(d *TaskDefinition) {
			d.Recurrence.Frequency = FrequencyCustom
			d.Recurrence.CustomPattern = PatternNthWeekday
			d.Recurrence.WeekOfMonth = 6
		}},
	}

	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			def := validDefinition("a")
			tc.mutate(def)
			err := ValidateDefinition(def)
			var verr ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestValidateDefinitionAcceptsFixedAndLastDay(t *testing.T) {
	def := validDefinition(NewID())
	at := Clock(7, 15)
	def.SchedulingType = SchedulingFixed
	def.DefaultTime = &at
	def.TimeWindow = ""
	def.Recurrence = Recurrence{Frequency: FrequencyMonthly, DayOfMonth: DayOfMonthLast, StartDate: MustDate("2026-01-31")}
	assert.NoError(t, ValidateDefinition(def))
}

func TestValidateDependencies(t *testing.T) {
	defs := []*TaskDefinition{validDefinition("a"), validDefinition("b", "a"), validDefinition("c", "b")}
	require.NoError(t, ValidateDependencies(defs))

	assert.True(t, WouldCreateCycle(defs, "a", "c"))
	assert.False(t, WouldCreateCycle(defs, "c", "a"))
	assert.Equal(t, []string{"b"}, Dependents(defs, "a"))

	var unknown UnknownDependencyError
	err := ValidateDependencies(append(defs, validDefinition("d", "ghost")))
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "ghost", unknown.DependsOn)

	defs[0].DependsOn = []string{"c"}
	var cycle CycleError
	require.True(t, errors.As(ValidateDependencies(defs), &cycle))
}

func TestIsValidID(t *testing.T) {
	assert.True(t, IsValidID(NewID()))
	assert.True(t, IsValidID("morning-run"))
	assert.False(t, IsValidID(""))
	assert.False(t, IsValidID("a,b"))
}
