package planfile

import (
	"os"
	"path/filepath"
	"testing"

	"dayplanner/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
sleep: {wakeTime: "06:30", sleepTime: "23:00"}
sleepOverrides:
  "2026-03-14": {wakeTime: "08:00", sleepTime: "01:00"}
tasks:
  - id: standup
    name: Standup
    durationMinutes: 15
    schedulingType: fixed
    defaultTime: "09:00"
    recurrence: {frequency: custom, customPattern: weekdays, startDate: "2026-01-05"}
  - id: notes
    name: Notes
    durationMinutes: 30
    minDurationMinutes: 20
    schedulingType: flexible
    dependsOn: [standup]
    isActive: false
`

func TestParse(t *testing.T) {
	today := core.MustDate("2026-03-10")
	f, err := Parse([]byte(sample), today)
	require.NoError(t, err)
	require.Len(t, f.Tasks, 2)

	standup := f.Tasks[0]
	assert.True(t, standup.IsActive)
	assert.Equal(t, 3, standup.Priority)
	assert.Equal(t, 15, standup.MinDurationMinutes)
	assert.Equal(t, core.Clock(9, 0), *standup.DefaultTime)
	assert.Equal(t, core.PatternWeekdays, standup.Recurrence.CustomPattern)
	assert.Equal(t, core.MustDate("2026-01-05"), standup.Recurrence.StartDate)

	notes := f.Tasks[1]
	assert.False(t, notes.IsActive)
	assert.Equal(t, core.WindowAnytime, notes.TimeWindow)
	assert.Equal(t, core.FrequencyNone, notes.Recurrence.Frequency)
	assert.Equal(t, today, notes.Recurrence.StartDate)

	fallback := core.SleepWindow{WakeTime: core.Clock(5, 0), SleepTime: core.Clock(22, 0)}
	assert.Equal(t, core.Clock(8, 0), f.SleepFor(core.MustDate("2026-03-14"), fallback).WakeTime)
	assert.Equal(t, core.Clock(6, 30), f.SleepFor(today, fallback).WakeTime)
	assert.Equal(t, fallback, (&File{}).SleepFor(today, fallback))

	assert.Empty(t, f.Validate())
}

func TestValidateCollectsProblems(t *testing.T) {
	body := `
sleepOverrides:
  "2026-03-14": {wakeTime: "08:00", sleepTime: "08:00"}
tasks:
  - {id: a, name: A, durationMinutes: 30, schedulingType: flexible, dependsOn: [b]}
  - {id: b, name: B, durationMinutes: 30, schedulingType: flexible, dependsOn: [a]}
  - {id: b, name: B2, durationMinutes: 0, schedulingType: flexible}
`
	f, err := Parse([]byte(body), core.MustDate("2026-03-10"))
	require.NoError(t, err)
	errs := f.Validate()
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0].Error(), "durationMinutes")
	assert.Contains(t, errs[1].Error(), "b")
	assert.Contains(t, errs[2].Error(), "cycle")
	assert.Contains(t, errs[3].Error(), "sleep override 2026-03-14")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), core.MustDate("2026-03-10"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tasks:\n  - {id: a, defaultTime: \"25:99\"}\n"), 0o644))
	_, err = Load(path, core.MustDate("2026-03-10"))
	assert.ErrorContains(t, err, "task 1")
}
