package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/taskloop/taskloop/internal/model"
	"github.com/taskloop/taskloop/internal/remote"
)

type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
)

const uploadBatchSize = 50

var (
	ErrSyncInFlight     = errors.New("sync: attempt already in flight")
	ErrNotAuthenticated = errors.New("sync: not authenticated")
)

// RemoteStore is the remote collaborator contract. Records use the
// server-shaped wire schema; the engine owns the local mapping.
type RemoteStore interface {
	AuthenticatedUserID(ctx context.Context) (string, error)
	FetchTasks(ctx context.Context, userID string) ([]remote.TaskRecord, error)
	UpsertTasks(ctx context.Context, userID string, records []remote.TaskRecord) error
	SoftDeleteTask(ctx context.Context, userID, taskID string) error
}

// LocalStore is the slice of the task store the engine needs: a snapshot of
// the collection and an atomic replace applied only after a full merge.
type LocalStore interface {
	Tasks() []model.Task
	ReplaceAll(ctx context.Context, tasks []model.Task) error
}

type Result struct {
	Downloaded int
	Merged     int
	Uploaded   int
	Duration   time.Duration
}

// Engine runs sync attempts against the remote store. One attempt at a
// time: a request arriving while syncing returns ErrSyncInFlight and is
// neither queued nor treated as a failure by callers.
type Engine struct {
	local  LocalStore
	remote RemoteStore
	policy Policy

	mu       sync.Mutex
	state    State
	lastSync time.Time
	lastErr  error
}

func NewEngine(local LocalStore, remoteStore RemoteStore, policy Policy) (*Engine, error) {
	if !policy.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}
	return &Engine{local: local, remote: remoteStore, policy: policy, state: StateIdle}, nil
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) LastSync() (time.Time, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync, e.lastErr
}

// Sync downloads the remote set, merges it with the local set, persists the
// merged collection, then uploads the pending side. Auth or download
// failures abort before local state is touched. Upload failures surface
// after the local merge is committed; earlier batches stay committed
// remotely.
func (e *Engine) Sync(ctx context.Context) (Result, error) {
	if err := e.begin(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	res, err := e.run(ctx)
	res.Duration = time.Since(start)
	e.finish(err)
	return res, err
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateSyncing {
		return ErrSyncInFlight
	}
	e.state = StateSyncing
	return nil
}

func (e *Engine) finish(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateIdle
	e.lastErr = err
	if err == nil {
		e.lastSync = time.Now().UTC()
	}
}

func (e *Engine) run(ctx context.Context) (Result, error) {
	var res Result

	userID, err := e.remote.AuthenticatedUserID(ctx)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if userID == "" {
		return res, ErrNotAuthenticated
	}

	remoteTasks, err := e.download(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("sync: download: %w", err)
	}
	res.Downloaded = len(remoteTasks)

	merged, err := Merge(e.local.Tasks(), remoteTasks, e.policy)
	if err != nil {
		return res, err
	}
	res.Merged = len(merged.Merged)

	if err := e.local.ReplaceAll(ctx, merged.Merged); err != nil {
		return res, fmt.Errorf("sync: persist merged: %w", err)
	}

	uploaded, err := e.upload(ctx, userID, merged.ToUpload)
	res.Uploaded = uploaded
	if err != nil {
		return res, err
	}
	return res, nil
}

// Download fetches all live remote tasks for the authenticated identity.
// Soft-deleted records are excluded.
func (e *Engine) Download(ctx context.Context) ([]model.Task, error) {
	userID, err := e.remote.AuthenticatedUserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	return e.download(ctx, userID)
}

func (e *Engine) download(ctx context.Context, userID string) ([]model.Task, error) {
	records, err := e.remote.FetchTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Task, 0, len(records))
	for _, rec := range records {
		if rec.Deleted {
			continue
		}
		out = append(out, taskFromRecord(rec))
	}
	return out, nil
}

// Upload pushes tasks in fixed-size batches. A failing batch aborts the
// remainder; the count of tasks already committed remotely is returned.
func (e *Engine) Upload(ctx context.Context, tasks []model.Task) (int, error) {
	userID, err := e.remote.AuthenticatedUserID(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if userID == "" {
		return 0, ErrNotAuthenticated
	}
	return e.upload(ctx, userID, tasks)
}

func (e *Engine) upload(ctx context.Context, userID string, tasks []model.Task) (int, error) {
	uploaded := 0
	for start := 0; start < len(tasks); start += uploadBatchSize {
		end := start + uploadBatchSize
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := tasks[start:end]
		records := make([]remote.TaskRecord, 0, len(batch))
		for _, t := range batch {
			records = append(records, recordFromTask(t, userID))
		}
		if err := e.remote.UpsertTasks(ctx, userID, records); err != nil {
			return uploaded, fmt.Errorf("sync: upload batch at %d: %w", start, err)
		}
		uploaded += len(batch)
	}
	return uploaded, nil
}

// DeleteRemote soft-deletes a task on the remote store. Local deletion is
// the caller's concern; a remote failure here is logged and surfaced but
// must not resurrect the local task.
func (e *Engine) DeleteRemote(ctx context.Context, taskID string) error {
	userID, err := e.remote.AuthenticatedUserID(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if userID == "" {
		return ErrNotAuthenticated
	}
	if err := e.remote.SoftDeleteTask(ctx, userID, taskID); err != nil {
		log.Printf("sync: soft delete %s: %v", taskID, err)
		return err
	}
	return nil
}
