// Package catalog is the write path for task definitions and sleep windows.
// Every change is validated against the whole definition set and invalidates
// the cached plans it affects.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"dayplanner/internal/core"
)

// Store is the persistence the catalog writes to.
type Store interface {
	InsertDefinition(ctx context.Context, def *core.TaskDefinition) error
	UpdateDefinition(ctx context.Context, def *core.TaskDefinition) error
	DeleteDefinition(ctx context.Context, id string) error
	GetDefinition(ctx context.Context, id string) (*core.TaskDefinition, error)
	ListDefinitions(ctx context.Context) ([]*core.TaskDefinition, error)
	PutSleepWindow(ctx context.Context, date core.Date, w core.SleepWindow) error
	DeleteSleepWindow(ctx context.Context, date core.Date) error
}

// Invalidator drops cached plans.
type Invalidator interface {
	Invalidate()
	InvalidateDate(date core.Date)
}

// DependentsError is returned when deleting a definition others depend on.
type DependentsError struct {
	ID         string
	Dependents []string
}

func (e DependentsError) Error() string {
	return fmt.Sprintf("task %s is required by %s", e.ID, strings.Join(e.Dependents, ", "))
}

// DuplicateError is returned when creating a definition whose id is taken.
type DuplicateError struct {
	ID string
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("task %s already exists", e.ID)
}

// Catalog validates and persists definitions.
type Catalog struct {
	store  Store
	plans  Invalidator
	logger *slog.Logger
}

func New(store Store, plans Invalidator, logger *slog.Logger) *Catalog {
	return &Catalog{store: store, plans: plans, logger: logger}
}

// ApplyDefaults fills the optional fields a client may omit on create.
func ApplyDefaults(def *core.TaskDefinition, today core.Date) {
	if def.ID == "" {
		def.ID = core.NewID()
	}
	def.Name = strings.TrimSpace(def.Name)
	if def.Priority == 0 {
		def.Priority = 3
	}
	if def.MinDurationMinutes == 0 {
		def.MinDurationMinutes = def.DurationMinutes
	}
	if def.SchedulingType == core.SchedulingFlexible && def.TimeWindow == "" {
		def.TimeWindow = core.WindowAnytime
	}
	if def.Recurrence.Frequency == "" {
		def.Recurrence.Frequency = core.FrequencyNone
	}
	if def.Recurrence.Interval == 0 {
		def.Recurrence.Interval = 1
	}
	if def.Recurrence.StartDate.IsZero() {
		def.Recurrence.StartDate = today
	}
}

func (c *Catalog) List(ctx context.Context) ([]*core.TaskDefinition, error) {
	return c.store.ListDefinitions(ctx)
}

func (c *Catalog) Get(ctx context.Context, id string) (*core.TaskDefinition, error) {
	return c.store.GetDefinition(ctx, id)
}

// Create validates def against the existing set and stores it.
func (c *Catalog) Create(ctx context.Context, def *core.TaskDefinition) error {
	if err := core.ValidateDefinition(def); err != nil {
		return err
	}
	defs, err := c.store.ListDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("list definitions: %w", err)
	}
	for _, d := range defs {
		if d.ID == def.ID {
			return DuplicateError{ID: def.ID}
		}
	}
	if err := core.ValidateDependencies(append(defs, def)); err != nil {
		return err
	}
	if err := c.store.InsertDefinition(ctx, def); err != nil {
		return err
	}
	c.plans.Invalidate()
	c.logger.Info("task definition created", "task_id", def.ID, "name", def.Name)
	return nil
}

// Update replaces the stored definition with def.
func (c *Catalog) Update(ctx context.Context, def *core.TaskDefinition) error {
	if err := core.ValidateDefinition(def); err != nil {
		return err
	}
	defs, err := c.store.ListDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("list definitions: %w", err)
	}
	next := make([]*core.TaskDefinition, 0, len(defs))
	for _, d := range defs {
		if d.ID != def.ID {
			next = append(next, d)
		}
	}
	if err := core.ValidateDependencies(append(next, def)); err != nil {
		return err
	}
	if err := c.store.UpdateDefinition(ctx, def); err != nil {
		return err
	}
	c.plans.Invalidate()
	c.logger.Info("task definition updated", "task_id", def.ID)
	return nil
}

// Delete removes a definition nothing else depends on.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	defs, err := c.store.ListDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("list definitions: %w", err)
	}
	if deps := core.Dependents(defs, id); len(deps) > 0 {
		slices.Sort(deps)
		return DependentsError{ID: id, Dependents: deps}
	}
	if err := c.store.DeleteDefinition(ctx, id); err != nil {
		return err
	}
	c.plans.Invalidate()
	c.logger.Info("task definition deleted", "task_id", id)
	return nil
}

// SetSleepWindow stores the waking window override of date.
func (c *Catalog) SetSleepWindow(ctx context.Context, date core.Date, w core.SleepWindow) error {
	if err := ValidateSleepWindow(w); err != nil {
		return err
	}
	if err := c.store.PutSleepWindow(ctx, date, w); err != nil {
		return err
	}
	c.plans.InvalidateDate(date)
	return nil
}

// ClearSleepWindow removes the override of date.
func (c *Catalog) ClearSleepWindow(ctx context.Context, date core.Date) error {
	if err := c.store.DeleteSleepWindow(ctx, date); err != nil {
		return err
	}
	c.plans.InvalidateDate(date)
	return nil
}

// ValidateSleepWindow rejects windows outside the clock or of zero length.
func ValidateSleepWindow(w core.SleepWindow) error {
	if w.WakeTime < 0 || w.WakeTime >= core.MinutesPerDay {
		return core.ValidationError{Field: "wakeTime", Message: "must be within the day"}
	}
	if w.SleepTime < 0 || w.SleepTime > core.MinutesPerDay {
		return core.ValidationError{Field: "sleepTime", Message: "must be within the day"}
	}
	if w.WakeTime == w.SleepTime {
		return core.ValidationError{Field: "sleepTime", Message: "must differ from wakeTime"}
	}
	return nil
}
