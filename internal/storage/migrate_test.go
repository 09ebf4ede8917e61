package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/taskloop/taskloop/internal/model"
)

func TestMigrateRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "roundtrip.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("first migrate up: %v", err)
	}
	if err := MigrateDown(db); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Fatalf("second migrate up: %v", err)
	}

	repo, err := NewSQLiteRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}

	ctx := context.Background()
	created := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	tasks := []model.Task{{
		ID:        "t-rt",
		Title:     "Survives the roundtrip",
		Category:  model.CategoryWork,
		Priority:  model.PriorityHigh,
		CreatedAt: created,
		UpdatedAt: created,
	}}
	if err := repo.SaveTasks(ctx, tasks); err != nil {
		t.Fatalf("save after roundtrip: %v", err)
	}
	got, err := repo.LoadTasks(ctx)
	if err != nil {
		t.Fatalf("load after roundtrip: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Survives the roundtrip" {
		t.Fatalf("unexpected tasks after roundtrip: %+v", got)
	}
}

func TestMigrateDownDropsTables(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "down.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if err := MigrateDown(db); err != nil {
		t.Fatalf("migrate down: %v", err)
	}

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('tasks', 'series')`).Scan(&n)
	if err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected tables dropped, %d remain", n)
	}
}
