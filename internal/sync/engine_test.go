package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/taskloop/taskloop/internal/model"
	"github.com/taskloop/taskloop/internal/remote"
)

type fakeRemote struct {
	userID  string
	authErr error

	records  []remote.TaskRecord
	fetchErr error

	upserts   [][]remote.TaskRecord
	failAfter int // fail the upsert batch with this index, -1 never
	deleted   []string

	block chan struct{} // when set, FetchTasks waits until closed
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{userID: "user-1", failAfter: -1}
}

func (f *fakeRemote) AuthenticatedUserID(ctx context.Context) (string, error) {
	return f.userID, f.authErr
}

func (f *fakeRemote) FetchTasks(ctx context.Context, userID string) ([]remote.TaskRecord, error) {
	if f.block != nil {
		<-f.block
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]remote.TaskRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeRemote) UpsertTasks(ctx context.Context, userID string, records []remote.TaskRecord) error {
	if f.failAfter >= 0 && len(f.upserts) == f.failAfter {
		return errors.New("boom")
	}
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeRemote) SoftDeleteTask(ctx context.Context, userID, taskID string) error {
	f.deleted = append(f.deleted, taskID)
	return nil
}

type fakeLocal struct {
	tasks      []model.Task
	replaced   int
	replaceErr error
}

func (f *fakeLocal) Tasks() []model.Task {
	return model.CloneTasks(f.tasks)
}

func (f *fakeLocal) ReplaceAll(ctx context.Context, tasks []model.Task) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.tasks = model.CloneTasks(tasks)
	f.replaced++
	return nil
}

func syncFixtureTask(id, title string, updated time.Time) model.Task {
	return model.Task{
		ID:        id,
		Title:     title,
		Category:  model.CategoryWork,
		Priority:  model.PriorityMedium,
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
}

func TestNewEngineRejectsBadPolicy(t *testing.T) {
	if _, err := NewEngine(&fakeLocal{}, newFakeRemote(), Policy("best_effort")); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got: %v", err)
	}
}

func TestSyncHappyPath(t *testing.T) {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	local := &fakeLocal{tasks: []model.Task{
		syncFixtureTask("l", "Local only", base),
		syncFixtureTask("a", "Shared stale", base),
	}}
	rem := newFakeRemote()
	rem.records = []remote.TaskRecord{
		recordFromTask(syncFixtureTask("a", "Shared fresh", base.Add(time.Minute)), rem.userID),
		recordFromTask(syncFixtureTask("r", "Remote only", base), rem.userID),
	}

	eng, err := NewEngine(local, rem, PolicyServerWins)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res, err := eng.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if res.Downloaded != 2 {
		t.Fatalf("downloaded = %d, want 2", res.Downloaded)
	}
	if res.Merged != 3 {
		t.Fatalf("merged = %d, want 3", res.Merged)
	}
	if res.Uploaded != 1 {
		t.Fatalf("uploaded = %d, want 1", res.Uploaded)
	}
	if local.replaced != 1 {
		t.Fatalf("local store replaced %d times, want 1", local.replaced)
	}
	if len(local.tasks) != 3 {
		t.Fatalf("local collection holds %d tasks, want 3", len(local.tasks))
	}
	if eng.State() != StateIdle {
		t.Fatalf("engine should be idle after sync, got %s", eng.State())
	}
	if last, lastErr := eng.LastSync(); last.IsZero() || lastErr != nil {
		t.Fatalf("last sync not recorded: %v %v", last, lastErr)
	}
}

func TestSyncExcludesSoftDeletedRecords(t *testing.T) {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	local := &fakeLocal{}
	rem := newFakeRemote()
	live := recordFromTask(syncFixtureTask("live", "Keep", base), rem.userID)
	dead := recordFromTask(syncFixtureTask("dead", "Gone", base), rem.userID)
	dead.Deleted = true
	rem.records = []remote.TaskRecord{live, dead}

	eng, _ := NewEngine(local, rem, PolicyServerWins)
	res, err := eng.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Downloaded != 1 {
		t.Fatalf("downloaded = %d, want 1", res.Downloaded)
	}
	for _, x := range local.tasks {
		if x.ID == "dead" {
			t.Fatal("soft-deleted record resurrected locally")
		}
	}
}

func TestSyncSingleFlight(t *testing.T) {
	local := &fakeLocal{}
	rem := newFakeRemote()
	rem.block = make(chan struct{})

	eng, _ := NewEngine(local, rem, PolicyServerWins)

	done := make(chan error, 1)
	go func() {
		_, err := eng.Sync(context.Background())
		done <- err
	}()

	for eng.State() != StateSyncing {
		time.Sleep(time.Millisecond)
	}
	if _, err := eng.Sync(context.Background()); !errors.Is(err, ErrSyncInFlight) {
		t.Fatalf("expected ErrSyncInFlight, got: %v", err)
	}

	close(rem.block)
	if err := <-done; err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if eng.State() != StateIdle {
		t.Fatalf("engine stuck in %s", eng.State())
	}
}

func TestSyncAuthFailureLeavesLocalUntouched(t *testing.T) {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	local := &fakeLocal{tasks: []model.Task{syncFixtureTask("a", "Keep", base)}}
	rem := newFakeRemote()
	rem.authErr = errors.New("token expired")

	eng, _ := NewEngine(local, rem, PolicyServerWins)
	_, err := eng.Sync(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got: %v", err)
	}
	if local.replaced != 0 {
		t.Fatal("auth failure must not touch local state")
	}
	if _, lastErr := eng.LastSync(); lastErr == nil {
		t.Fatal("failure must be recorded")
	}
	if eng.State() != StateIdle {
		t.Fatalf("engine stuck in %s", eng.State())
	}
}

func TestSyncDownloadFailureLeavesLocalUntouched(t *testing.T) {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	local := &fakeLocal{tasks: []model.Task{syncFixtureTask("a", "Keep", base)}}
	rem := newFakeRemote()
	rem.fetchErr = errors.New("connection reset")

	eng, _ := NewEngine(local, rem, PolicyServerWins)
	if _, err := eng.Sync(context.Background()); err == nil {
		t.Fatal("expected download failure")
	}
	if local.replaced != 0 {
		t.Fatal("download failure must not touch local state")
	}
}

func TestUploadBatchesAndAbortsOnFailure(t *testing.T) {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	tasks := make([]model.Task, 0, 120)
	for i := 0; i < 120; i++ {
		tasks = append(tasks, syncFixtureTask(fmt.Sprintf("t-%03d", i), "Bulk", base))
	}

	rem := newFakeRemote()
	eng, _ := NewEngine(&fakeLocal{}, rem, PolicyServerWins)
	n, err := eng.Upload(context.Background(), tasks)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if n != 120 {
		t.Fatalf("uploaded = %d, want 120", n)
	}
	if len(rem.upserts) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(rem.upserts))
	}
	if len(rem.upserts[0]) != 50 || len(rem.upserts[2]) != 20 {
		t.Fatalf("unexpected batch sizes: %d, %d, %d",
			len(rem.upserts[0]), len(rem.upserts[1]), len(rem.upserts[2]))
	}

	rem = newFakeRemote()
	rem.failAfter = 1
	eng, _ = NewEngine(&fakeLocal{}, rem, PolicyServerWins)
	n, err = eng.Upload(context.Background(), tasks)
	if err == nil {
		t.Fatal("expected second batch to fail")
	}
	if n != 50 {
		t.Fatalf("committed count = %d, want 50", n)
	}
	if len(rem.upserts) != 1 {
		t.Fatalf("remote saw %d batches, want 1", len(rem.upserts))
	}
}

func TestSyncSurfacesUploadFailureAfterLocalCommit(t *testing.T) {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	local := &fakeLocal{tasks: []model.Task{syncFixtureTask("l", "Local only", base)}}
	rem := newFakeRemote()
	rem.failAfter = 0

	eng, _ := NewEngine(local, rem, PolicyServerWins)
	res, err := eng.Sync(context.Background())
	if err == nil {
		t.Fatal("expected upload failure to surface")
	}
	if local.replaced != 1 {
		t.Fatal("merge must be committed locally before upload")
	}
	if res.Uploaded != 0 {
		t.Fatalf("uploaded = %d, want 0", res.Uploaded)
	}
}

func TestDeleteRemote(t *testing.T) {
	rem := newFakeRemote()
	eng, _ := NewEngine(&fakeLocal{}, rem, PolicyServerWins)

	if err := eng.DeleteRemote(context.Background(), "t-1"); err != nil {
		t.Fatalf("delete remote: %v", err)
	}
	if len(rem.deleted) != 1 || rem.deleted[0] != "t-1" {
		t.Fatalf("soft delete not forwarded, got %v", rem.deleted)
	}

	rem.userID = ""
	if err := eng.DeleteRemote(context.Background(), "t-2"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got: %v", err)
	}
}

func TestAuthErrorKeepsUnderlyingCause(t *testing.T) {
	rem := newFakeRemote()
	rem.authErr = errors.New("connection refused")
	eng, _ := NewEngine(&fakeLocal{}, rem, PolicyServerWins)

	_, err := eng.Download(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got: %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("transport cause lost from error: %v", err)
	}

	if _, err := eng.Upload(context.Background(), nil); !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("upload lost the transport cause: %v", err)
	}
	if err := eng.DeleteRemote(context.Background(), "t-3"); !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("delete lost the transport cause: %v", err)
	}
}

func TestRecordMappingRoundTrip(t *testing.T) {
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	due := base.Add(48 * time.Hour)
	inst := time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)
	task := syncFixtureTask("rt", "Round trip", base)
	task.DueDate = &due
	task.InstanceDate = &inst
	task.IsRecurring = true
	task.SeriesID = "series-1"
	task.Subtasks = []model.Subtask{{ID: "s1", Title: "Step", Done: true}}
	task.NotificationHandle = "device-local"

	rec := recordFromTask(task, "user-1")
	back := taskFromRecord(rec)

	if back.NotificationHandle != "" {
		t.Fatal("notification handle must not cross the wire")
	}
	task.NotificationHandle = ""
	if back.Title != task.Title || back.SeriesID != task.SeriesID ||
		!back.DueDate.Equal(*task.DueDate) || !back.InstanceDate.Equal(*task.InstanceDate) ||
		len(back.Subtasks) != 1 || back.Subtasks[0] != task.Subtasks[0] {
		t.Fatalf("mapping round trip lost data: %#v", back)
	}
}
