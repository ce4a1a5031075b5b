package engine

import (
	"fmt"
	"testing"

	"dayplanner/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDate = core.MustDate("2026-03-10")

func fixedOcc(id string, at string, minutes int, deps ...string) core.Occurrence {
	t := core.MustTimeOfDay(at)
	return core.Occurrence{
		TaskDefinition: core.TaskDefinition{
			ID:                 id,
			Name:               "Task " + id,
			DurationMinutes:    minutes,
			MinDurationMinutes: minutes,
			IsMandatory:        true,
			Priority:           3,
			IsActive:           true,
			SchedulingType:     core.SchedulingFixed,
			DefaultTime:        &t,
			DependsOn:          deps,
		},
		Date: testDate,
	}
}

func flexOcc(id string, window core.TimeWindow, minutes int, deps ...string) core.Occurrence {
	return core.Occurrence{
		TaskDefinition: core.TaskDefinition{
			ID:                 id,
			Name:               "Task " + id,
			DurationMinutes:    minutes,
			MinDurationMinutes: minutes,
			IsMandatory:        true,
			Priority:           3,
			IsActive:           true,
			SchedulingType:     core.SchedulingFlexible,
			TimeWindow:         window,
			DependsOn:          deps,
		},
		Date: testDate,
	}
}

func sleepWindow(wake, sleep string) core.SleepWindow {
	return core.SleepWindow{WakeTime: core.MustTimeOfDay(wake), SleepTime: core.MustTimeOfDay(sleep)}
}

func byID(schedule []core.ScheduledTask) map[string]core.ScheduledTask {
	out := make(map[string]core.ScheduledTask, len(schedule))
	for _, t := range schedule {
		out[t.ID] = t
	}
	return out
}

func TestScheduleAnchorsAndDependentFlexible(t *testing.T) {
	e := New(DefaultOptions())
	occs := []core.Occurrence{
		flexOcc("c", core.WindowAnytime, 30, "a", "b"),
		fixedOcc("a", "08:00", 30),
		fixedOcc("b", "09:00", 30),
	}

	res := e.ScheduleOccurrences(testDate, occs, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success, res.Message)

	got := byID(res.Schedule)
	assert.Equal(t, core.MustTimeOfDay("08:00"), got["a"].ScheduledTime)
	assert.Equal(t, core.MustTimeOfDay("09:00"), got["b"].ScheduledTime)
	assert.Equal(t, core.MustTimeOfDay("09:35"), got["c"].ScheduledTime)
	assert.Empty(t, res.Deferred)
	for _, task := range res.Schedule {
		assert.Empty(t, task.Conflicts, task.ID)
	}
}

func TestScheduleIsSortedByStart(t *testing.T) {
	e := New(DefaultOptions())
	occs := []core.Occurrence{
		fixedOcc("late", "20:00", 30),
		fixedOcc("early", "07:00", 30),
		flexOcc("mid", core.WindowAfternoon, 60),
	}
	res := e.ScheduleOccurrences(testDate, occs, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success)
	ids := make([]string, 0, len(res.Schedule))
	for _, task := range res.Schedule {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"early", "mid", "late"}, ids)
}

func TestFixedPlacementIsExact(t *testing.T) {
	e := New(DefaultOptions())
	occs := []core.Occurrence{
		fixedOcc("a", "10:00", 60),
		fixedOcc("b", "10:30", 60),
		flexOcc("x", core.WindowMorning, 120),
		flexOcc("y", core.WindowMorning, 120),
	}
	res := e.ScheduleOccurrences(testDate, occs, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success, res.Message)

	got := byID(res.Schedule)
	assert.Equal(t, core.MustTimeOfDay("10:00"), got["a"].ScheduledTime)
	assert.Equal(t, core.MustTimeOfDay("10:30"), got["b"].ScheduledTime)
}

func TestAnchorOverlapIsFlaggedWithSeverity(t *testing.T) {
	e := New(DefaultOptions())
	a := fixedOcc("a", "10:00", 60)
	b := fixedOcc("b", "10:30", 60)
	c := fixedOcc("c", "10:45", 30)
	c.IsMandatory = false

	res := e.ScheduleOccurrences(testDate, []core.Occurrence{a, b, c}, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success)

	got := byID(res.Schedule)
	assert.ElementsMatch(t, []core.Conflict{
		{WithID: "b", Severity: core.SeverityHigh, Kind: core.ConflictOverlap},
		{WithID: "c", Severity: core.SeverityMedium, Kind: core.ConflictOverlap},
	}, got["a"].Conflicts)
	assert.ElementsMatch(t, []core.Conflict{
		{WithID: "a", Severity: core.SeverityMedium, Kind: core.ConflictOverlap},
		{WithID: "b", Severity: core.SeverityMedium, Kind: core.ConflictOverlap},
	}, got["c"].Conflicts)
}

func TestBackToBackTasksDoNotConflict(t *testing.T) {
	e := New(DefaultOptions())
	occs := []core.Occurrence{fixedOcc("a", "10:00", 30), fixedOcc("b", "10:30", 30)}
	res := e.ScheduleOccurrences(testDate, occs, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success)
	for _, task := range res.Schedule {
		assert.Empty(t, task.Conflicts)
	}
}

func TestSeverityPolicyIsInjectable(t *testing.T) {
	opts := DefaultOptions()
	opts.Severity = SeverityFunc(func(_, _ *core.ScheduledTask) core.Severity { return core.SeverityLow })
	e := New(opts)

	res := e.ScheduleOccurrences(testDate, []core.Occurrence{
		fixedOcc("a", "10:00", 60),
		fixedOcc("b", "10:30", 60),
	}, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success)
	for _, task := range res.Schedule {
		require.Len(t, task.Conflicts, 1)
		assert.Equal(t, core.SeverityLow, task.Conflicts[0].Severity)
	}
}

func TestFlexibleTasksNeverOverlap(t *testing.T) {
	e := New(DefaultOptions())
	var occs []core.Occurrence
	for i := 0; i < 8; i++ {
		occ := flexOcc(fmt.Sprintf("f%d", i), core.WindowAnytime, 25+i*10)
		occ.Priority = 1 + i%5
		occ.IsMandatory = i%2 == 0
		occs = append(occs, occ)
	}
	occs = append(occs, fixedOcc("anchor", "12:00", 60))

	res := e.ScheduleOccurrences(testDate, occs, sleepWindow("07:00", "22:00"))
	require.True(t, res.Success, res.Message)

	for i := range res.Schedule {
		for j := i + 1; j < len(res.Schedule); j++ {
			a, b := res.Schedule[i], res.Schedule[j]
			assert.False(t, overlaps(a.ScheduledTime, a.End(), b.ScheduledTime, b.End()),
				"%s and %s overlap", a.ID, b.ID)
		}
	}
}

func TestFlexibleStaysInsideClippedWindow(t *testing.T) {
	e := New(DefaultOptions())
	res := e.ScheduleOccurrences(testDate, []core.Occurrence{
		flexOcc("m", core.WindowMorning, 60),
		flexOcc("ev", core.WindowEvening, 60),
	}, sleepWindow("07:30", "21:00"))
	require.True(t, res.Success)

	got := byID(res.Schedule)
	assert.Equal(t, core.MustTimeOfDay("07:30"), got["m"].ScheduledTime)
	assert.Equal(t, core.MustTimeOfDay("17:00"), got["ev"].ScheduledTime)
	assert.LessOrEqual(t, got["ev"].End(), core.MustTimeOfDay("21:00"))
}

func TestHigherPriorityPlacedFirst(t *testing.T) {
	e := New(DefaultOptions())
	low := flexOcc("low", core.WindowMorning, 60)
	low.Priority = 1
	high := flexOcc("high", core.WindowMorning, 60)
	high.Priority = 5

	res := e.ScheduleOccurrences(testDate, []core.Occurrence{low, high}, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success)
	got := byID(res.Schedule)
	assert.Equal(t, core.MustTimeOfDay("06:00"), got["high"].ScheduledTime)
	assert.Equal(t, core.MustTimeOfDay("07:00"), got["low"].ScheduledTime)
}

func TestDependencyOrderingWithBuffer(t *testing.T) {
	e := New(DefaultOptions())
	p := flexOcc("p", core.WindowMorning, 50)
	d := flexOcc("d", core.WindowMorning, 30, "p")
	d.Priority = 5
	other := flexOcc("o", core.WindowMorning, 20)
	other.Priority = 4

	res := e.ScheduleOccurrences(testDate, []core.Occurrence{d, other, p}, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success)

	got := byID(res.Schedule)
	assert.GreaterOrEqual(t, got["d"].ScheduledTime, got["p"].End()+DefaultBufferMinutes)
}

func TestSnapsToEndOfBusyTask(t *testing.T) {
	e := New(DefaultOptions())
	res := e.ScheduleOccurrences(testDate, []core.Occurrence{
		fixedOcc("a", "06:00", 40),
		flexOcc("b", core.WindowMorning, 30),
	}, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success)
	assert.Equal(t, core.MustTimeOfDay("06:40"), byID(res.Schedule)["b"].ScheduledTime)
}

func TestCrunchFallbackUsesMinimumDurations(t *testing.T) {
	e := New(DefaultOptions())
	var occs []core.Occurrence
	for i := 0; i < 5; i++ {
		occ := flexOcc(fmt.Sprintf("m%d", i), core.WindowAnytime, 200)
		occ.MinDurationMinutes = 188
		occs = append(occs, occ)
	}

	sleep := sleepWindow("06:30", "23:00")
	require.Equal(t, 990, sleep.Minutes())

	res := e.ScheduleOccurrences(testDate, occs, sleep)
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Schedule, 5)
	for _, task := range res.Schedule {
		assert.Equal(t, 188, task.EffectiveDurationMinutes, task.ID)
		assert.True(t, task.Degraded)
		assert.GreaterOrEqual(t, task.ScheduledTime, core.MustTimeOfDay("06:30"))
		assert.LessOrEqual(t, task.End(), core.MustTimeOfDay("23:00"))
	}
}

func TestCapacityExceededReportsShortfall(t *testing.T) {
	e := New(DefaultOptions())
	var occs []core.Occurrence
	for i := 0; i < 5; i++ {
		occ := flexOcc(fmt.Sprintf("m%d", i), core.WindowAnytime, 210)
		occ.MinDurationMinutes = 202
		occs = append(occs, occ)
	}

	res := e.ScheduleOccurrences(testDate, occs, sleepWindow("06:30", "23:00"))
	require.False(t, res.Success)
	assert.Equal(t, core.ReasonCapacityExceeded, res.Reason)
	require.NotNil(t, res.ShortfallMinutes)
	assert.Equal(t, 20, *res.ShortfallMinutes)
	assert.NotEmpty(t, res.Suggestions)
}

func TestOptionalTasksAreDeferred(t *testing.T) {
	e := New(DefaultOptions())
	must := flexOcc("must", core.WindowMorning, 300)
	nice := flexOcc("nice", core.WindowMorning, 120)
	nice.IsMandatory = false
	nice.Priority = 5

	res := e.ScheduleOccurrences(testDate, []core.Occurrence{must, nice}, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success, res.Message)

	got := byID(res.Schedule)
	require.Contains(t, got, "must")
	assert.Equal(t, 300, got["must"].EffectiveDurationMinutes)
	require.Len(t, res.Deferred, 1)
	assert.Equal(t, "nice", res.Deferred[0].ID)
}

func TestWindowFragmentationReportsUnplacedMinutes(t *testing.T) {
	e := New(DefaultOptions())
	a := flexOcc("a", core.WindowMorning, 240)
	a.MinDurationMinutes = 200
	b := flexOcc("b", core.WindowMorning, 240)
	b.MinDurationMinutes = 200

	res := e.ScheduleOccurrences(testDate, []core.Occurrence{a, b}, sleepWindow("06:00", "23:00"))
	require.False(t, res.Success)
	assert.Equal(t, core.ReasonCapacityExceeded, res.Reason)
	require.NotNil(t, res.ShortfallMinutes)
	assert.Equal(t, 200, *res.ShortfallMinutes)
}

func TestCycleIsRejectedBeforePlacement(t *testing.T) {
	e := New(DefaultOptions())
	res := e.ScheduleOccurrences(testDate, []core.Occurrence{
		flexOcc("a", core.WindowAnytime, 30, "b"),
		flexOcc("b", core.WindowAnytime, 30, "a"),
		flexOcc("free", core.WindowAnytime, 30),
	}, sleepWindow("06:00", "23:00"))

	require.False(t, res.Success)
	assert.Equal(t, core.ReasonCycleDetected, res.Reason)
	assert.Equal(t, []string{"a", "b"}, res.CycleTaskIDs)
	assert.Empty(t, res.Schedule)
}

func TestMissingDependencyPolicy(t *testing.T) {
	occs := []core.Occurrence{
		flexOcc("m", core.WindowMorning, 30),
		flexOcc("d", core.WindowMorning, 30, "gone"),
	}
	sleep := sleepWindow("06:00", "23:00")

	res := New(DefaultOptions()).ScheduleOccurrences(testDate, occs, sleep)
	require.True(t, res.Success)
	assert.Len(t, res.Schedule, 2)
	assert.Empty(t, res.Deferred)

	opts := DefaultOptions()
	opts.MissingDependencies = MissingDependencyBlocking
	res = New(opts).ScheduleOccurrences(testDate, occs, sleep)
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Schedule, 1)
	assert.Equal(t, "m", res.Schedule[0].ID)
	require.Len(t, res.Deferred, 1)
	assert.Equal(t, "d", res.Deferred[0].ID)
	assert.Contains(t, res.Message, "Task d (waiting on gone)")
	assert.Empty(t, res.Suggestions)
	assert.Nil(t, res.ShortfallMinutes)
}

func TestBlockedTasksDoNotCountAgainstCapacity(t *testing.T) {
	opts := DefaultOptions()
	opts.MissingDependencies = MissingDependencyBlocking
	occs := []core.Occurrence{
		flexOcc("m", core.WindowAnytime, 60),
		flexOcc("d", core.WindowAnytime, 90, "gone"),
		flexOcc("after", core.WindowAnytime, 30, "d"),
	}

	res := New(opts).ScheduleOccurrences(testDate, occs, sleepWindow("06:00", "08:00"))
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Schedule, 1)
	assert.Equal(t, "m", res.Schedule[0].ID)

	deferred := make([]string, 0, len(res.Deferred))
	for _, occ := range res.Deferred {
		deferred = append(deferred, occ.ID)
	}
	assert.ElementsMatch(t, []string{"d", "after"}, deferred)
	assert.Contains(t, res.Message, "Task after (waiting on d)")
}

func TestBlockedTaskWaitsForDeferredPrerequisite(t *testing.T) {
	opts := DefaultOptions()
	opts.MissingDependencies = MissingDependencyBlocking
	must := flexOcc("must", core.WindowMorning, 300)
	nice := flexOcc("nice", core.WindowMorning, 120)
	nice.IsMandatory = false
	follow := flexOcc("follow", core.WindowAnytime, 30, "nice")

	res := New(opts).ScheduleOccurrences(testDate, []core.Occurrence{must, nice, follow}, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success, res.Message)
	got := byID(res.Schedule)
	assert.Contains(t, got, "must")
	assert.NotContains(t, got, "follow")
	assert.Len(t, res.Deferred, 2)
	assert.Contains(t, res.Message, "Task follow (waiting on nice)")
}

func TestOverlappingAnchorsCountOnce(t *testing.T) {
	e := New(DefaultOptions())
	res := e.ScheduleOccurrences(testDate, []core.Occurrence{
		fixedOcc("shift", "08:00", 600),
		fixedOcc("course", "09:00", 540),
	}, sleepWindow("06:00", "22:30"))

	require.True(t, res.Success, res.Message)
	require.Len(t, res.Schedule, 2)
	for _, task := range res.Schedule {
		require.NotEmpty(t, task.Conflicts, task.ID)
		assert.Equal(t, core.SeverityHigh, task.Conflicts[0].Severity)
	}
}

func TestCoveredMinutes(t *testing.T) {
	at := core.MustTimeOfDay
	assert.Equal(t, 0, coveredMinutes(nil))
	assert.Equal(t, 600, coveredMinutes([]WindowRange{
		{Start: at("09:00"), End: at("18:00")},
		{Start: at("08:00"), End: at("18:00")},
	}))
	assert.Equal(t, 90, coveredMinutes([]WindowRange{
		{Start: at("10:00"), End: at("10:30")},
		{Start: at("08:00"), End: at("08:30")},
		{Start: at("08:30"), End: at("09:00")},
	}))
}

func TestFixedTaskBeforePrerequisiteIsFlagged(t *testing.T) {
	e := New(DefaultOptions())
	res := e.ScheduleOccurrences(testDate, []core.Occurrence{
		fixedOcc("prep", "08:00", 30),
		fixedOcc("meeting", "08:32", 30, "prep"),
	}, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success)

	got := byID(res.Schedule)
	assert.Equal(t, []core.Conflict{{WithID: "prep", Severity: core.SeverityHigh, Kind: core.ConflictDependency}}, got["meeting"].Conflicts)
}

func TestMalformedInputFailsSafely(t *testing.T) {
	e := New(DefaultOptions())
	bad := flexOcc("bad", core.WindowAnytime, 30)
	bad.DurationMinutes = -5

	res := e.ScheduleOccurrences(testDate, []core.Occurrence{bad}, sleepWindow("06:00", "23:00"))
	require.False(t, res.Success)
	assert.Equal(t, core.ReasonInvalidInput, res.Reason)

	noTime := fixedOcc("x", "08:00", 30)
	noTime.DefaultTime = nil
	res = e.ScheduleOccurrences(testDate, []core.Occurrence{noTime}, sleepWindow("06:00", "23:00"))
	assert.Equal(t, core.ReasonInvalidInput, res.Reason)
}

func TestSleepWindowCrossingMidnight(t *testing.T) {
	e := New(DefaultOptions())
	sleep := sleepWindow("09:00", "01:00")
	assert.Equal(t, 16*60, sleep.Minutes())

	res := e.ScheduleOccurrences(testDate, []core.Occurrence{
		flexOcc("m", core.WindowMorning, 60),
		flexOcc("e", core.WindowEvening, 60),
	}, sleep)
	require.True(t, res.Success)
	got := byID(res.Schedule)
	assert.Equal(t, core.MustTimeOfDay("09:00"), got["m"].ScheduledTime)
	assert.Equal(t, core.MustTimeOfDay("17:00"), got["e"].ScheduledTime)
}

func TestScheduleForDateExpandsRecurrence(t *testing.T) {
	e := New(DefaultOptions())
	at := core.MustTimeOfDay("07:00")
	defs := []*core.TaskDefinition{
		{
			ID: "daily", Name: "Daily", DurationMinutes: 30, MinDurationMinutes: 15, Priority: 3,
			IsActive: true, SchedulingType: core.SchedulingFixed, DefaultTime: &at,
			Recurrence: core.Recurrence{Frequency: core.FrequencyDaily, Interval: 1, StartDate: core.MustDate("2026-01-01")},
		},
		{
			ID: "inactive", Name: "Inactive", DurationMinutes: 30, MinDurationMinutes: 15, Priority: 3,
			IsActive: false, SchedulingType: core.SchedulingFlexible, TimeWindow: core.WindowAnytime,
			Recurrence: core.Recurrence{Frequency: core.FrequencyDaily, StartDate: core.MustDate("2026-01-01")},
		},
		{
			ID: "other-day", Name: "Once", DurationMinutes: 30, MinDurationMinutes: 15, Priority: 3,
			IsActive: true, SchedulingType: core.SchedulingFlexible, TimeWindow: core.WindowAnytime,
			Recurrence: core.Recurrence{Frequency: core.FrequencyNone, StartDate: core.MustDate("2026-03-11")},
		},
	}

	res := e.ScheduleForDate(testDate, defs, sleepWindow("06:00", "23:00"))
	require.True(t, res.Success)
	require.Len(t, res.Schedule, 1)
	assert.Equal(t, "daily", res.Schedule[0].ID)
	assert.Equal(t, testDate, res.Schedule[0].Date)
}
