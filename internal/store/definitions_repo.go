package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dayplanner/internal/core"
)

var ErrDefinitionNotFound = errors.New("task definition not found")

const definitionColumns = `id, name, description, duration_minutes, min_duration_minutes, is_mandatory,
	priority, is_active, scheduling_type, default_time, time_window, depends_on, recurrence,
	created_at, updated_at`

func (s *Store) InsertDefinition(ctx context.Context, def *core.TaskDefinition) error {
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now
	deps, rec, err := encodeJSONColumns(def)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO task_definitions (`+definitionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, def.ID, def.Name, def.Description, def.DurationMinutes, def.MinDurationMinutes, def.IsMandatory,
		def.Priority, def.IsActive, def.SchedulingType, nullableTimeOfDay(def.DefaultTime), def.TimeWindow,
		deps, rec, def.CreatedAt.Format(time.RFC3339Nano), def.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert task definition: %w", err)
	}
	return nil
}

func (s *Store) UpdateDefinition(ctx context.Context, def *core.TaskDefinition) error {
	def.UpdatedAt = time.Now().UTC()
	deps, rec, err := encodeJSONColumns(def)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE task_definitions
		SET name = ?, description = ?, duration_minutes = ?, min_duration_minutes = ?, is_mandatory = ?,
			priority = ?, is_active = ?, scheduling_type = ?, default_time = ?, time_window = ?,
			depends_on = ?, recurrence = ?, updated_at = ?
		WHERE id = ?
	`, def.Name, def.Description, def.DurationMinutes, def.MinDurationMinutes, def.IsMandatory,
		def.Priority, def.IsActive, def.SchedulingType, nullableTimeOfDay(def.DefaultTime), def.TimeWindow,
		deps, rec, def.UpdatedAt.Format(time.RFC3339Nano), def.ID)
	if err != nil {
		return fmt.Errorf("update task definition: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task definition rows: %w", err)
	}
	if rows == 0 {
		return ErrDefinitionNotFound
	}
	return nil
}

func (s *Store) DeleteDefinition(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM task_definitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task definition: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrDefinitionNotFound
	}
	return nil
}

func (s *Store) GetDefinition(ctx context.Context, id string) (*core.TaskDefinition, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+definitionColumns+` FROM task_definitions WHERE id = ?`, id)
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDefinitionNotFound
		}
		return nil, err
	}
	return def, nil
}

// ListDefinitions returns every definition, oldest first so dependency
// declarations keep a stable order.
func (s *Store) ListDefinitions(ctx context.Context) ([]*core.TaskDefinition, error) {
	return s.queryDefinitions(ctx, `SELECT `+definitionColumns+` FROM task_definitions ORDER BY created_at, id`)
}

// ListActiveDefinitions returns the definitions the engine should consider.
func (s *Store) ListActiveDefinitions(ctx context.Context) ([]*core.TaskDefinition, error) {
	return s.queryDefinitions(ctx, `SELECT `+definitionColumns+` FROM task_definitions WHERE is_active = 1 ORDER BY created_at, id`)
}

func (s *Store) queryDefinitions(ctx context.Context, query string, args ...any) ([]*core.TaskDefinition, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task definitions: %w", err)
	}
	defer rows.Close()
	var defs []*core.TaskDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return defs, nil
}

func scanDefinition(scanner interface {
	Scan(dest ...any) error
}) (*core.TaskDefinition, error) {
	var (
		def         core.TaskDefinition
		schedType   string
		defaultTime sql.NullInt64
		window      string
		deps        string
		rec         string
		createdAt   string
		updatedAt   string
	)
	if err := scanner.Scan(&def.ID, &def.Name, &def.Description, &def.DurationMinutes, &def.MinDurationMinutes,
		&def.IsMandatory, &def.Priority, &def.IsActive, &schedType, &defaultTime, &window, &deps, &rec,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task definition: %w", err)
	}
	def.SchedulingType = core.SchedulingType(schedType)
	def.TimeWindow = core.TimeWindow(window)
	if defaultTime.Valid {
		t := core.TimeOfDay(defaultTime.Int64)
		def.DefaultTime = &t
	}
	if err := json.Unmarshal([]byte(deps), &def.DependsOn); err != nil {
		return nil, fmt.Errorf("decode depends_on of %s: %w", def.ID, err)
	}
	if len(def.DependsOn) == 0 {
		def.DependsOn = nil
	}
	if err := json.Unmarshal([]byte(rec), &def.Recurrence); err != nil {
		return nil, fmt.Errorf("decode recurrence of %s: %w", def.ID, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		def.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		def.UpdatedAt = t
	}
	return &def, nil
}

func encodeJSONColumns(def *core.TaskDefinition) (string, string, error) {
	deps := def.DependsOn
	if deps == nil {
		deps = []string{}
	}
	depsJSON, err := json.Marshal(deps)
	if err != nil {
		return "", "", fmt.Errorf("encode depends_on: %w", err)
	}
	recJSON, err := json.Marshal(def.Recurrence)
	if err != nil {
		return "", "", fmt.Errorf("encode recurrence: %w", err)
	}
	return string(depsJSON), string(recJSON), nil
}

func nullableTimeOfDay(value *core.TimeOfDay) any {
	if value == nil {
		return nil
	}
	return int(*value)
}
