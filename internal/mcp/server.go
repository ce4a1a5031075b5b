package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"dayplanner/internal/catalog"
	"dayplanner/internal/core"
	"dayplanner/internal/planner"
	"dayplanner/internal/report"
	"dayplanner/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes the task catalog and the planner as MCP tools.
type MCPServer struct {
	catalog *catalog.Catalog
	planner *planner.Planner
	logger  *slog.Logger
	mcp     *server.MCPServer
}

// NewMCPServer creates a new MCP server instance with every tool registered.
func NewMCPServer(cat *catalog.Catalog, pl *planner.Planner, logger *slog.Logger, version string) *MCPServer {
	s := &MCPServer{
		catalog: cat,
		planner: pl,
		logger:  logger,
		mcp:     server.NewMCPServer("dayplanner", version, server.WithToolCapabilities(true)),
	}
	s.registerTools()
	return s
}

// Run serves MCP over the process stdio until stdin closes or ctx is done.
func (s *MCPServer) Run(ctx context.Context) error {
	s.logger.Info("MCP server starting on stdio")
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve speaks MCP over in and out. Cancelling ctx stops it even while a read
// is pending; that case returns nil.
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// HTTPHandler serves MCP over streamable HTTP, for mounting on the API router.
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func (s *MCPServer) registerTools() {
	s.mcp.AddTool(mcp.NewTool("plan_list_tasks",
		mcp.WithDescription("List task definitions"),
		mcp.WithBoolean("active_only",
			mcp.Description("Only list active definitions"),
		),
	), s.handleListTasks)

	s.mcp.AddTool(mcp.NewTool("plan_get_task",
		mcp.WithDescription("Show a task definition and its next occurrence dates"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
	), s.handleGetTask)

	s.mcp.AddTool(mcp.NewTool("plan_create_task",
		withDefinitionParams(
			mcp.WithDescription("Create a task definition. Fixed tasks need default_time; flexible tasks are placed inside time_window."),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Task name"),
			),
			mcp.WithNumber("duration_minutes",
				mcp.Required(),
				mcp.Description("Nominal duration in minutes"),
				mcp.Min(1),
			),
			mcp.WithString("id",
				mcp.Description("Task ID (generated when omitted)"),
			),
		)...,
	), s.handleCreateTask)

	s.mcp.AddTool(mcp.NewTool("plan_update_task",
		withDefinitionParams(
			mcp.WithDescription("Update fields of a task definition. Omitted fields keep their value."),
			mcp.WithString("task_id",
				mcp.Required(),
				mcp.Description("Task ID"),
			),
			mcp.WithString("name",
				mcp.Description("Task name"),
			),
			mcp.WithNumber("duration_minutes",
				mcp.Description("Nominal duration in minutes"),
				mcp.Min(1),
			),
			mcp.WithBoolean("active",
				mcp.Description("Whether the definition is scheduled at all"),
			),
		)...,
	), s.handleUpdateTask)

	s.mcp.AddTool(mcp.NewTool("plan_delete_task",
		mcp.WithDescription("Delete a task definition. Refused while other tasks depend on it."),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task ID"),
		),
	), s.handleDeleteTask)

	s.mcp.AddTool(mcp.NewTool("plan_schedule_day",
		mcp.WithDescription("Compute the plan of one day"),
		mcp.WithString("date",
			mcp.Description("Date as YYYY-MM-DD, default today"),
		),
		mcp.WithBoolean("json",
			mcp.Description("Return the raw schedule result as JSON"),
		),
	), s.handleScheduleDay)

	s.mcp.AddTool(mcp.NewTool("plan_set_sleep_window",
		mcp.WithDescription("Set or clear the wake and sleep times of one date"),
		mcp.WithString("date",
			mcp.Required(),
			mcp.Description("Date as YYYY-MM-DD"),
		),
		mcp.WithString("wake_time",
			mcp.Description("Wake time as HH:MM"),
		),
		mcp.WithString("sleep_time",
			mcp.Description("Sleep time as HH:MM; earlier than wake_time means after midnight"),
		),
		mcp.WithBoolean("clear",
			mcp.Description("Remove the override and fall back to the default window"),
		),
	), s.handleSetSleepWindow)

	s.mcp.AddTool(mcp.NewTool("plan_cron_preview",
		mcp.WithDescription("Preview the next firings of a 5-field cron expression"),
		mcp.WithString("cron",
			mcp.Required(),
			mcp.Description("Cron expression, e.g. '5 0 * * *'"),
		),
		mcp.WithNumber("count",
			mcp.Description("Number of firings, default 5"),
			mcp.Min(1),
			mcp.Max(10),
		),
	), s.handleCronPreview)

	s.logger.Info("MCP tools registered", "count", 8)
}

// withDefinitionParams appends the optional definition fields shared by create
// and update.
func withDefinitionParams(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts,
		mcp.WithString("description",
			mcp.Description("Free-form description"),
		),
		mcp.WithNumber("min_duration_minutes",
			mcp.Description("Shortest acceptable duration when the day is tight, default duration_minutes"),
			mcp.Min(1),
		),
		mcp.WithBoolean("mandatory",
			mcp.Description("Mandatory tasks are shortened rather than dropped"),
		),
		mcp.WithNumber("priority",
			mcp.Description("1 (low) to 5 (high), default 3"),
			mcp.Min(1),
			mcp.Max(5),
		),
		mcp.WithString("scheduling_type",
			mcp.Description("fixed or flexible"),
			mcp.Enum(string(core.SchedulingFixed), string(core.SchedulingFlexible)),
		),
		mcp.WithString("default_time",
			mcp.Description("Start time of a fixed task as HH:MM"),
		),
		mcp.WithString("time_window",
			mcp.Description("Preferred window of a flexible task"),
			mcp.Enum(string(core.WindowMorning), string(core.WindowAfternoon), string(core.WindowEvening), string(core.WindowAnytime)),
		),
		mcp.WithString("depends_on",
			mcp.Description("Comma-separated IDs of tasks that must finish first"),
		),
		mcp.WithString("recurrence",
			mcp.Description(`Recurrence as JSON, e.g. {"frequency":"weekly","daysOfWeek":[1,3],"startDate":"2026-01-05"}`),
		),
	)
}

func (s *MCPServer) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activeOnly := mcp.ParseBoolean(request, "active_only", false)

	defs, err := s.catalog.List(ctx)
	if err != nil {
		s.logger.Error("list tasks", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}

	var b strings.Builder
	n := 0
	for _, def := range defs {
		if activeOnly && !def.IsActive {
			continue
		}
		b.WriteString(report.DefinitionLine(def))
		b.WriteByte('\n')
		n++
	}
	if n == 0 {
		return mcp.NewToolResultText("No tasks found"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d tasks:\n\n%s", n, b.String())), nil
}

func (s *MCPServer) handleGetTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")

	def, err := s.catalog.Get(ctx, taskID)
	if err != nil {
		return s.domainError(err, "get task"), nil
	}

	var b strings.Builder
	report.Definition(&b, def)
	if def.IsActive {
		next := recurrenceDates(def, s.planner.Today(), 5)
		if len(next) > 0 {
			fmt.Fprintf(&b, "Next: %s\n", strings.Join(next, ", "))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def := &core.TaskDefinition{
		ID:              mcp.ParseString(request, "id", ""),
		Name:            mcp.ParseString(request, "name", ""),
		DurationMinutes: int(mcp.ParseFloat64(request, "duration_minutes", 0)),
		IsActive:        true,
		SchedulingType:  core.SchedulingFlexible,
	}
	if err := applyDefinitionArgs(def, request); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	catalog.ApplyDefaults(def, s.planner.Today())

	if err := s.catalog.Create(ctx, def); err != nil {
		return s.domainError(err, "create task"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task created\nID: %s\nRecurrence: %s", def.ID, report.Recurrence(def.Recurrence))), nil
}

func (s *MCPServer) handleUpdateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")

	def, err := s.catalog.Get(ctx, taskID)
	if err != nil {
		return s.domainError(err, "get task"), nil
	}

	args := request.GetArguments()
	if _, ok := args["name"]; ok {
		def.Name = strings.TrimSpace(mcp.ParseString(request, "name", def.Name))
	}
	if _, ok := args["duration_minutes"]; ok {
		def.DurationMinutes = int(mcp.ParseFloat64(request, "duration_minutes", float64(def.DurationMinutes)))
	}
	if _, ok := args["active"]; ok {
		def.IsActive = mcp.ParseBoolean(request, "active", def.IsActive)
	}
	if err := applyDefinitionArgs(def, request); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.catalog.Update(ctx, def); err != nil {
		return s.domainError(err, "update task"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task updated: %s", def.ID)), nil
}

func (s *MCPServer) handleDeleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := mcp.ParseString(request, "task_id", "")

	if err := s.catalog.Delete(ctx, taskID); err != nil {
		return s.domainError(err, "delete task"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task deleted: %s", taskID)), nil
}

func (s *MCPServer) handleScheduleDay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := s.dateArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.planner.ScheduleDay(ctx, date)
	if err != nil {
		s.logger.Error("schedule day", "date", date.String(), "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute schedule: %v", err)), nil
	}

	if mcp.ParseBoolean(request, "json", false) {
		body, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode schedule: %v", err)), nil
		}
		return mcp.NewToolResultText(string(body)), nil
	}

	var b strings.Builder
	report.Schedule(&b, res)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) handleSetSleepWindow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	date, err := core.ParseDate(mcp.ParseString(request, "date", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if mcp.ParseBoolean(request, "clear", false) {
		if err := s.catalog.ClearSleepWindow(ctx, date); err != nil && !errors.Is(err, store.ErrSleepWindowNotFound) {
			return s.domainError(err, "clear sleep window"), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Sleep window of %s reset to the default", date)), nil
	}

	current, _, err := s.planner.SleepWindow(ctx, date)
	if err != nil {
		return s.domainError(err, "load sleep window"), nil
	}
	win := current
	if raw := mcp.ParseString(request, "wake_time", ""); raw != "" {
		if win.WakeTime, err = core.ParseTimeOfDay(raw); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("wake_time: %v", err)), nil
		}
	}
	if raw := mcp.ParseString(request, "sleep_time", ""); raw != "" {
		if win.SleepTime, err = core.ParseTimeOfDay(raw); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("sleep_time: %v", err)), nil
		}
	}

	if err := s.catalog.SetSleepWindow(ctx, date, win); err != nil {
		return s.domainError(err, "set sleep window"), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Sleep window of %s: awake %s-%s (%d min)",
		date, win.WakeTime, win.SleepTime, win.Minutes())), nil
}

func (s *MCPServer) handleCronPreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cronExpr := mcp.ParseString(request, "cron", "")

	schedule, err := planner.ParseCron(cronExpr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	count := int(mcp.ParseFloat64(request, "count", 5))
	loc := s.planner.Location()
	nextTimes := planner.NextOccurrences(schedule, time.Now().In(loc), count)

	var b strings.Builder
	fmt.Fprintf(&b, "Cron expression: %s\n", cronExpr)
	fmt.Fprintf(&b, "Time zone: %s\n\n", loc)
	b.WriteString("Next firings:\n")
	for i, t := range nextTimes {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, t.Format("2006-01-02 15:04"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *MCPServer) dateArg(request mcp.CallToolRequest) (core.Date, error) {
	raw := mcp.ParseString(request, "date", "")
	if raw == "" {
		return s.planner.Today(), nil
	}
	return core.ParseDate(raw)
}

// domainError turns catalog and store failures into tool errors. Unexpected
// failures are logged.
func (s *MCPServer) domainError(err error, op string) *mcp.CallToolResult {
	var (
		verr    core.ValidationError
		cycle   core.CycleError
		unknown core.UnknownDependencyError
		dup     catalog.DuplicateError
		deps    catalog.DependentsError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &cycle), errors.As(err, &unknown),
		errors.As(err, &dup), errors.As(err, &deps):
		return mcp.NewToolResultError(err.Error())
	case errors.Is(err, store.ErrDefinitionNotFound):
		return mcp.NewToolResultError("task not found")
	}
	s.logger.Error(op, "err", err)
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", op, err))
}
