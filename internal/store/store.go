package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskloop/taskloop/internal/model"
	"github.com/taskloop/taskloop/internal/notify"
	"github.com/taskloop/taskloop/internal/recur"
	"github.com/taskloop/taskloop/internal/storage"
)

var (
	ErrTaskNotFound   = errors.New("store: task not found")
	ErrSeriesNotFound = errors.New("store: series not found")
)

// Store owns the task collection. Every mutation runs under one mutex from
// read through persistence write, so scoped series operations never
// interleave and readers only ever observe a fully applied state.
//
// Collaborator failures follow the in-memory-first rule: the collection
// change is the source of truth; persistence and notification errors are
// logged and the mutation still completes.
type Store struct {
	mu       sync.Mutex
	repo     storage.Repository
	notifier notify.Notifier
	now      func() time.Time

	tasks  []model.Task
	series []model.RecurringSeries
}

type Option func(*Store)

// WithClock fixes the store's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(ctx context.Context, repo storage.Repository, notifier notify.Notifier, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, errors.New("store: nil repository")
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	s := &Store{repo: repo, notifier: notifier, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}

	tasks, err := repo.LoadTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load tasks: %w", err)
	}
	series, err := repo.LoadSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load series: %w", err)
	}
	s.tasks = tasks
	s.series = series

	s.topUpSeries(ctx)
	return s, nil
}

// topUpSeries regenerates the forward horizon for active series on load.
func (s *Store) topUpSeries(ctx context.Context) {
	now := s.now()
	added := 0
	for _, sr := range s.series {
		fresh := recur.ExtendSeries(sr, s.tasks, now)
		for _, t := range fresh {
			s.scheduleNotification(&t)
			s.tasks = append(s.tasks, t)
		}
		added += len(fresh)
	}
	if added > 0 {
		s.persistTasks(ctx)
	}
}

// Tasks returns a snapshot copy of the collection.
func (s *Store) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneTasks(s.tasks)
}

func (s *Store) Series() []model.RecurringSeries {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.RecurringSeries, len(s.series))
	copy(out, s.series)
	return out
}

func (s *Store) Get(id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return model.Task{}, ErrTaskNotFound
}

type Filter struct {
	Category model.Category
	SeriesID string
	Pending  bool
}

func (s *Store) List(filter Filter) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if filter.SeriesID != "" && t.SeriesID != filter.SeriesID {
			continue
		}
		if filter.Pending && !t.Pending() {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

type NewTask struct {
	Title           string
	Description     string
	Category        model.Category
	Priority        model.Priority
	DueDate         *time.Time
	ReminderEnabled bool
	Subtasks        []model.Subtask
}

func (s *Store) Add(ctx context.Context, in NewTask) (model.Task, error) {
	now := s.now()
	task := model.Task{
		ID:              uuid.NewString(),
		Title:           in.Title,
		Description:     in.Description,
		Category:        in.Category,
		Priority:        in.Priority,
		DueDate:         in.DueDate,
		ReminderEnabled: in.ReminderEnabled,
		Subtasks:        in.Subtasks,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if task.Category == "" {
		task.Category = model.CategoryPersonal
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if err := task.Validate(); err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleNotification(&task)
	s.tasks = append(s.tasks, task)
	s.persistTasks(ctx)
	return task.Clone(), nil
}

func (s *Store) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	if err := patch.Validate(); err != nil {
		return model.Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return model.Task{}, ErrTaskNotFound
	}

	updated := patch.Apply(s.tasks[idx], s.now())
	s.reconcileNotification(&updated, s.tasks[idx])
	s.tasks[idx] = updated
	s.persistTasks(ctx)
	return updated.Clone(), nil
}

func (s *Store) Complete(ctx context.Context, id string) (model.Task, error) {
	done := true
	return s.Update(ctx, id, model.TaskPatch{Completed: &done})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrTaskNotFound
	}

	t := s.tasks[idx]
	s.cancelNotification(t)
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	s.tombstoneInstance(ctx, t)
	s.persistTasks(ctx)
	return nil
}

// tombstoneInstance records a deleted instance's occurrence date on its
// series so generation never recreates it.
func (s *Store) tombstoneInstance(ctx context.Context, t model.Task) {
	if t.SeriesID == "" || t.InstanceDate == nil {
		return
	}
	idx := s.seriesIndexOf(t.SeriesID)
	if idx < 0 {
		return
	}
	sr := s.series[idx]
	if sr.Tombstoned(*t.InstanceDate) {
		return
	}
	tombstones := make([]time.Time, len(sr.Tombstones), len(sr.Tombstones)+1)
	copy(tombstones, sr.Tombstones)
	sr.Tombstones = append(tombstones, t.InstanceDate.UTC())
	sr.UpdatedAt = model.StampAfter(sr.UpdatedAt, s.now())
	s.series[idx] = sr
	s.persistSeries(ctx)
}

func (s *Store) CreateSeries(ctx context.Context, tpl recur.Template, rule model.RecurrenceRule) (recur.SeriesResult, error) {
	res, err := recur.CreateSeries(tpl, rule, s.now())
	if err != nil {
		return recur.SeriesResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range res.Instances {
		s.scheduleNotification(&res.Instances[i])
	}
	s.series = append(s.series, res.Series)
	s.tasks = append(s.tasks, res.Instances...)
	s.persistSeries(ctx)
	s.persistTasks(ctx)
	return res, nil
}

func (s *Store) UpdateSeries(ctx context.Context, seriesID string, patch model.TaskPatch, scope recur.Scope, refTaskID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.seriesIndexOf(seriesID)
	if idx < 0 {
		return 0, ErrSeriesNotFound
	}

	res, err := recur.UpdateSeries(s.tasks, s.series[idx], patch, scope, refTaskID, s.now())
	if err != nil {
		return 0, err
	}
	s.tasks = res.Tasks
	s.series[idx] = res.Series
	s.persistTasks(ctx)
	s.persistSeries(ctx)
	return res.Affected, nil
}

// DeleteSeries removes the scoped partition and returns the removed tasks
// so callers can propagate the deletion to the remote store.
func (s *Store) DeleteSeries(ctx context.Context, seriesID string, scope recur.Scope, refTaskID string) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.seriesIndexOf(seriesID)
	if idx < 0 {
		return nil, ErrSeriesNotFound
	}

	plan, err := recur.DeleteSeries(s.tasks, s.series[idx], scope, refTaskID, s.now())
	if err != nil {
		return nil, err
	}
	for _, t := range plan.Removed {
		s.cancelNotification(t)
	}
	s.tasks = plan.Remaining
	if plan.Series == nil {
		s.series = append(s.series[:idx], s.series[idx+1:]...)
	} else {
		s.series[idx] = *plan.Series
	}
	s.persistTasks(ctx)
	s.persistSeries(ctx)
	return model.CloneTasks(plan.Removed), nil
}

func (s *Store) AffectedCount(seriesID string, scope recur.Scope, refTaskID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return recur.AffectedCount(s.tasks, seriesID, scope, refTaskID)
}

func (s *Store) SkipInstance(ctx context.Context, id string) (model.Task, error) {
	return s.setSkipped(ctx, id, true)
}

func (s *Store) UnskipInstance(ctx context.Context, id string) (model.Task, error) {
	return s.setSkipped(ctx, id, false)
}

func (s *Store) setSkipped(ctx context.Context, id string, skipped bool) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return model.Task{}, ErrTaskNotFound
	}

	var updated model.Task
	if skipped {
		updated = recur.Skip(s.tasks[idx], s.now())
	} else {
		updated = recur.Unskip(s.tasks[idx], s.now())
	}
	s.tasks[idx] = updated
	s.persistTasks(ctx)
	return updated.Clone(), nil
}

// ReplaceAll swaps in a merged collection from the sync engine, keeping
// local-only notification handles for tasks that survived the merge.
func (s *Store) ReplaceAll(ctx context.Context, tasks []model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevByID := make(map[string]model.Task, len(s.tasks))
	for _, t := range s.tasks {
		prevByID[t.ID] = t
	}

	next := model.CloneTasks(tasks)
	kept := make(map[string]bool, len(next))
	for i := range next {
		kept[next[i].ID] = true
		prev, existed := prevByID[next[i].ID]
		if !existed {
			s.scheduleNotification(&next[i])
			continue
		}
		if next[i].NotificationHandle == "" {
			next[i].NotificationHandle = prev.NotificationHandle
		}
		// A merge can move the due date; the stale handle must not fire at
		// the old time.
		s.reconcileNotification(&next[i], prev)
	}
	for _, t := range s.tasks {
		if !kept[t.ID] {
			s.cancelNotification(t)
		}
	}

	s.tasks = next
	if err := s.repo.SaveTasks(ctx, s.tasks); err != nil {
		return fmt.Errorf("store: persist merged tasks: %w", err)
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) seriesIndexOf(id string) int {
	for i := range s.series {
		if s.series[i].ID == id {
			return i
		}
	}
	return -1
}

// scheduleNotification sets the task's handle, clearing it on failure so no
// stale handle is retained.
func (s *Store) scheduleNotification(t *model.Task) {
	if !t.ReminderEnabled || t.DueDate == nil || t.Completed || t.Skipped {
		return
	}
	handle, err := s.notifier.ScheduleDueDate(*t)
	if err != nil {
		log.Printf("store: schedule notification for %s: %v", t.ID, err)
		t.NotificationHandle = ""
		return
	}
	t.NotificationHandle = handle
}

func (s *Store) cancelNotification(t model.Task) {
	if t.NotificationHandle == "" {
		return
	}
	if err := s.notifier.Cancel(t.NotificationHandle); err != nil {
		log.Printf("store: cancel notification for %s: %v", t.ID, err)
	}
}

// reconcileNotification re-schedules after an edit that moved or removed
// the due date or flipped completion. The old handle is cancelled first so
// a dead notification is never left behind.
func (s *Store) reconcileNotification(updated *model.Task, prev model.Task) {
	sameDue := (prev.DueDate == nil && updated.DueDate == nil) ||
		(prev.DueDate != nil && updated.DueDate != nil && prev.DueDate.Equal(*updated.DueDate))
	if sameDue && prev.Completed == updated.Completed &&
		prev.ReminderEnabled == updated.ReminderEnabled && prev.Skipped == updated.Skipped {
		return
	}
	s.cancelNotification(prev)
	updated.NotificationHandle = ""
	s.scheduleNotification(updated)
}

func (s *Store) persistTasks(ctx context.Context) {
	if err := s.repo.SaveTasks(ctx, s.tasks); err != nil {
		log.Printf("store: persist tasks: %v", err)
	}
}

func (s *Store) persistSeries(ctx context.Context) {
	if err := s.repo.SaveSeries(ctx, s.series); err != nil {
		log.Printf("store: persist series: %v", err)
	}
}
