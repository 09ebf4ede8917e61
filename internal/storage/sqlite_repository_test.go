package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskloop/taskloop/internal/model"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "taskloop.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSaveAndLoadTasks(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	created := time.Date(2026, 7, 1, 8, 30, 0, 0, time.UTC)
	due := time.Date(2026, 7, 3, 17, 0, 0, 0, time.UTC)
	instance := time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{
			ID:              "t-1",
			Title:           "Water plants",
			Description:     "Back balcony too",
			Category:        model.CategoryPersonal,
			Priority:        model.PriorityLow,
			DueDate:         &due,
			ReminderEnabled: true,
			Subtasks: []model.Subtask{
				{ID: "s1", Title: "Fill can", Done: true},
				{ID: "s2", Title: "Ferns"},
			},
			Attachments: []model.Attachment{
				{ID: "a1", Name: "care.pdf", Path: "/tmp/care.pdf", MimeType: "application/pdf", SizeBytes: 1024, AddedAt: created},
			},
			NotificationHandle: "handle-1",
			CreatedAt:          created,
			UpdatedAt:          created,
		},
		{
			ID:           "t-2",
			Title:        "Standup notes",
			Category:     model.CategoryWork,
			Priority:     model.PriorityHigh,
			Completed:    true,
			IsRecurring:  true,
			SeriesID:     "series-1",
			InstanceDate: &instance,
			Skipped:      true,
			CreatedAt:    created.Add(time.Minute),
			UpdatedAt:    created.Add(2 * time.Minute),
		},
	}

	if err := repo.SaveTasks(ctx, tasks); err != nil {
		t.Fatalf("save tasks: %v", err)
	}
	loaded, err := repo.LoadTasks(ctx)
	if err != nil {
		t.Fatalf("load tasks: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d tasks, want 2", len(loaded))
	}

	got := loaded[0]
	want := tasks[0]
	if got.ID != want.ID || got.Title != want.Title || got.Description != want.Description {
		t.Fatalf("task identity changed: %#v", got)
	}
	if !got.DueDate.Equal(*want.DueDate) || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("timestamps changed: %#v", got)
	}
	if len(got.Subtasks) != 2 || got.Subtasks[0] != want.Subtasks[0] {
		t.Fatalf("subtasks changed: %#v", got.Subtasks)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Name != "care.pdf" {
		t.Fatalf("attachments changed: %#v", got.Attachments)
	}
	if got.NotificationHandle != "handle-1" || !got.ReminderEnabled {
		t.Fatalf("reminder fields changed: %#v", got)
	}

	got = loaded[1]
	if !got.IsRecurring || got.SeriesID != "series-1" || !got.Skipped {
		t.Fatalf("recurrence fields changed: %#v", got)
	}
	if got.InstanceDate == nil || !got.InstanceDate.Equal(instance) {
		t.Fatalf("instance date changed: %#v", got.InstanceDate)
	}
	if got.DueDate != nil {
		t.Fatal("nil due date did not survive")
	}
}

func TestSaveTasksReplacesPreviousState(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 8, 30, 0, 0, time.UTC)

	first := []model.Task{
		{ID: "old", Title: "Old", Category: model.CategoryWork, Priority: model.PriorityLow, CreatedAt: now, UpdatedAt: now},
	}
	if err := repo.SaveTasks(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := []model.Task{
		{ID: "new", Title: "New", Category: model.CategoryWork, Priority: model.PriorityLow, CreatedAt: now, UpdatedAt: now},
	}
	if err := repo.SaveTasks(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := repo.LoadTasks(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "new" {
		t.Fatalf("save is not replace-all: %#v", loaded)
	}
}

func TestSaveAndLoadSeries(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 7, 6, 9, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0)
	tombstone := time.Date(2026, 7, 13, 0, 0, 0, 0, time.UTC)
	series := []model.RecurringSeries{
		{
			ID:              "series-1",
			Title:           "Weekly review",
			Description:     "Friday wrap-up",
			Category:        model.CategoryWork,
			Priority:        model.PriorityMedium,
			ReminderEnabled: true,
			Rule: model.RecurrenceRule{
				Frequency: model.FrequencyWeekly,
				Interval:  1,
				StartDate: start,
				EndDate:   &end,
			},
			Active:     true,
			Tombstones: []time.Time{tombstone},
			CreatedAt:  start,
			UpdatedAt:  start,
		},
		{
			ID:       "series-2",
			Title:    "Monthly budget",
			Category: model.CategoryPersonal,
			Priority: model.PriorityHigh,
			Rule: model.RecurrenceRule{
				Frequency: model.FrequencyMonthly,
				Interval:  1,
				StartDate: start,
				Count:     12,
			},
			Active:    false,
			CreatedAt: start.Add(time.Minute),
			UpdatedAt: start.Add(time.Minute),
		},
	}

	if err := repo.SaveSeries(ctx, series); err != nil {
		t.Fatalf("save series: %v", err)
	}
	loaded, err := repo.LoadSeries(ctx)
	if err != nil {
		t.Fatalf("load series: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d series, want 2", len(loaded))
	}

	got := loaded[0]
	if got.ID != "series-1" || got.Rule.Frequency != model.FrequencyWeekly || !got.Active {
		t.Fatalf("series changed: %#v", got)
	}
	if got.Rule.EndDate == nil || !got.Rule.EndDate.Equal(end) {
		t.Fatalf("end date changed: %#v", got.Rule.EndDate)
	}
	if !got.Rule.StartDate.Equal(start) {
		t.Fatalf("start date changed: %v", got.Rule.StartDate)
	}
	if len(got.Tombstones) != 1 || !got.Tombstones[0].Equal(tombstone) {
		t.Fatalf("tombstones changed: %#v", got.Tombstones)
	}

	got = loaded[1]
	if got.Rule.Count != 12 || got.Rule.EndDate != nil || got.Active {
		t.Fatalf("series changed: %#v", got)
	}
	if got.Tombstones != nil {
		t.Fatalf("empty tombstones did not survive: %#v", got.Tombstones)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("loaded series invalid: %v", err)
	}
}

func TestLoadFromEmptyDatabase(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	tasks, err := repo.LoadTasks(ctx)
	if err != nil {
		t.Fatalf("load tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("fresh database holds %d tasks", len(tasks))
	}
	series, err := repo.LoadSeries(ctx)
	if err != nil {
		t.Fatalf("load series: %v", err)
	}
	if len(series) != 0 {
		t.Fatalf("fresh database holds %d series", len(series))
	}
}
