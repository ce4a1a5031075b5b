package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"dayplanner/internal/core"
	"dayplanner/internal/recurrence"

	"github.com/mark3labs/mcp-go/mcp"
)

// applyDefinitionArgs copies the optional definition fields present in the
// request onto def.
func applyDefinitionArgs(def *core.TaskDefinition, request mcp.CallToolRequest) error {
	args := request.GetArguments()
	has := func(key string) bool {
		_, ok := args[key]
		return ok
	}

	if has("description") {
		def.Description = mcp.ParseString(request, "description", "")
	}
	if has("min_duration_minutes") {
		def.MinDurationMinutes = int(mcp.ParseFloat64(request, "min_duration_minutes", 0))
	}
	if has("mandatory") {
		def.IsMandatory = mcp.ParseBoolean(request, "mandatory", false)
	}
	if has("priority") {
		def.Priority = int(mcp.ParseFloat64(request, "priority", 0))
	}
	if has("scheduling_type") {
		def.SchedulingType = core.SchedulingType(mcp.ParseString(request, "scheduling_type", ""))
	}
	if raw := mcp.ParseString(request, "default_time", ""); raw != "" {
		t, err := core.ParseTimeOfDay(raw)
		if err != nil {
			return fmt.Errorf("default_time: %w", err)
		}
		def.DefaultTime = &t
	}
	if has("time_window") {
		def.TimeWindow = core.TimeWindow(mcp.ParseString(request, "time_window", ""))
	}
	if has("depends_on") {
		def.DependsOn = splitIDs(mcp.ParseString(request, "depends_on", ""))
	}
	if raw := mcp.ParseString(request, "recurrence", ""); raw != "" {
		var rec core.Recurrence
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return fmt.Errorf("recurrence: %w", err)
		}
		if rec.StartDate.IsZero() {
			rec.StartDate = def.Recurrence.StartDate
		}
		if rec.Interval == 0 {
			rec.Interval = 1
		}
		def.Recurrence = rec
	}
	return nil
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func recurrenceDates(def *core.TaskDefinition, from core.Date, n int) []string {
	dates := recurrence.NextDates(def, from, n)
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.String()
	}
	return out
}
