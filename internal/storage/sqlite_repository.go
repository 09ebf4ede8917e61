package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/taskloop/taskloop/internal/model"
)

const sqliteTimeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) LoadTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, category, priority, completed, due_date,
		       reminder_enabled, subtasks, attachments, created_at, updated_at,
		       notification_handle, is_recurring, series_id, instance_date, skipped
		FROM tasks ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveTasks(ctx context.Context, tasks []model.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}
	for _, t := range tasks {
		subtasks, marshalErr := json.Marshal(t.Subtasks)
		if marshalErr != nil {
			return marshalErr
		}
		attachments, marshalErr := json.Marshal(t.Attachments)
		if marshalErr != nil {
			return marshalErr
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, title, description, category, priority, completed, due_date,
			                   reminder_enabled, subtasks, attachments, created_at, updated_at,
			                   notification_handle, is_recurring, series_id, instance_date, skipped)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Title, t.Description, t.Category, t.Priority, boolInt(t.Completed), nullTime(t.DueDate),
			boolInt(t.ReminderEnabled), string(subtasks), string(attachments), mustTime(t.CreatedAt), mustTime(t.UpdatedAt),
			t.NotificationHandle, boolInt(t.IsRecurring), t.SeriesID, nullTime(t.InstanceDate), boolInt(t.Skipped),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) LoadSeries(ctx context.Context) ([]model.RecurringSeries, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, description, category, priority, reminder_enabled,
		       frequency, interval_value, start_date, end_date, count_limit,
		       active, tombstones, created_at, updated_at
		FROM series ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.RecurringSeries, 0)
	for rows.Next() {
		item, scanErr := scanSeries(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveSeries(ctx context.Context, series []model.RecurringSeries) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM series`); err != nil {
		return err
	}
	for _, s := range series {
		tombstones, marshalErr := json.Marshal(s.Tombstones)
		if marshalErr != nil {
			return marshalErr
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO series (id, title, description, category, priority, reminder_enabled,
			                    frequency, interval_value, start_date, end_date, count_limit,
			                    active, tombstones, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.Title, s.Description, s.Category, s.Priority, boolInt(s.ReminderEnabled),
			s.Rule.Frequency, s.Rule.Interval, mustTime(s.Rule.StartDate), nullTime(s.Rule.EndDate), s.Rule.Count,
			boolInt(s.Active), string(tombstones), mustTime(s.CreatedAt), mustTime(s.UpdatedAt),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var out model.Task
	var completed, reminder, recurring, skipped int
	var due, instance sql.NullString
	var subtasks, attachments string
	var created, updated string
	if err := s.Scan(&out.ID, &out.Title, &out.Description, &out.Category, &out.Priority, &completed, &due,
		&reminder, &subtasks, &attachments, &created, &updated,
		&out.NotificationHandle, &recurring, &out.SeriesID, &instance, &skipped); err != nil {
		return model.Task{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return model.Task{}, err
	}
	updatedAt, err := parseRequiredTime(updated)
	if err != nil {
		return model.Task{}, err
	}
	dueDate, err := parseNullableTime(due)
	if err != nil {
		return model.Task{}, err
	}
	instanceDate, err := parseNullableTime(instance)
	if err != nil {
		return model.Task{}, err
	}
	if err := json.Unmarshal([]byte(subtasks), &out.Subtasks); err != nil {
		return model.Task{}, fmt.Errorf("decode subtasks for %s: %w", out.ID, err)
	}
	if err := json.Unmarshal([]byte(attachments), &out.Attachments); err != nil {
		return model.Task{}, fmt.Errorf("decode attachments for %s: %w", out.ID, err)
	}
	out.Completed = completed == 1
	out.ReminderEnabled = reminder == 1
	out.IsRecurring = recurring == 1
	out.Skipped = skipped == 1
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	out.DueDate = dueDate
	out.InstanceDate = instanceDate
	return out, nil
}

func scanSeries(s scanner) (model.RecurringSeries, error) {
	var out model.RecurringSeries
	var reminder, active int
	var start, created, updated, tombstones string
	var end sql.NullString
	if err := s.Scan(&out.ID, &out.Title, &out.Description, &out.Category, &out.Priority, &reminder,
		&out.Rule.Frequency, &out.Rule.Interval, &start, &end, &out.Rule.Count,
		&active, &tombstones, &created, &updated); err != nil {
		return model.RecurringSeries{}, err
	}
	if err := json.Unmarshal([]byte(tombstones), &out.Tombstones); err != nil {
		return model.RecurringSeries{}, fmt.Errorf("decode tombstones for %s: %w", out.ID, err)
	}
	startAt, err := parseRequiredTime(start)
	if err != nil {
		return model.RecurringSeries{}, err
	}
	endAt, err := parseNullableTime(end)
	if err != nil {
		return model.RecurringSeries{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return model.RecurringSeries{}, err
	}
	updatedAt, err := parseRequiredTime(updated)
	if err != nil {
		return model.RecurringSeries{}, err
	}
	out.ReminderEnabled = reminder == 1
	out.Active = active == 1
	out.Rule.StartDate = startAt
	out.Rule.EndDate = endAt
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	return out, nil
}
