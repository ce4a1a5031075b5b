package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dayplanner/internal/core"
)

var ErrSleepWindowNotFound = errors.New("sleep window not found")

// GetSleepWindow returns the override stored for date.
func (s *Store) GetSleepWindow(ctx context.Context, date core.Date) (core.SleepWindow, error) {
	var wake, sleep int
	err := s.DB.QueryRowContext(ctx, `SELECT wake_time, sleep_time FROM sleep_windows WHERE date = ?`, date.String()).
		Scan(&wake, &sleep)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SleepWindow{}, ErrSleepWindowNotFound
	}
	if err != nil {
		return core.SleepWindow{}, fmt.Errorf("get sleep window: %w", err)
	}
	return core.SleepWindow{WakeTime: core.TimeOfDay(wake), SleepTime: core.TimeOfDay(sleep)}, nil
}

// PutSleepWindow creates or replaces the override for date.
func (s *Store) PutSleepWindow(ctx context.Context, date core.Date, w core.SleepWindow) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO sleep_windows (date, wake_time, sleep_time, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET wake_time = excluded.wake_time, sleep_time = excluded.sleep_time,
			updated_at = excluded.updated_at
	`, date.String(), int(w.WakeTime), int(w.SleepTime), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put sleep window: %w", err)
	}
	return nil
}

// DeleteSleepWindow removes the override for date.
func (s *Store) DeleteSleepWindow(ctx context.Context, date core.Date) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM sleep_windows WHERE date = ?`, date.String())
	if err != nil {
		return fmt.Errorf("delete sleep window: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSleepWindowNotFound
	}
	return nil
}
