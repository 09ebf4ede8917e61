package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidCategory = errors.New("model: invalid task category")
	ErrInvalidPriority = errors.New("model: invalid task priority")
)

type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
	CategoryShopping Category = "shopping"
	CategoryHealth   Category = "health"
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryPersonal, CategoryWork, CategoryShopping, CategoryHealth:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

type Subtask struct {
	ID    string
	Title string
	Done  bool
}

type Attachment struct {
	ID        string
	Name      string
	Path      string
	MimeType  string
	SizeBytes int64
	AddedAt   time.Time
}

type Task struct {
	ID              string
	Title           string
	Description     string
	Category        Category
	Priority        Priority
	Completed       bool
	DueDate         *time.Time
	ReminderEnabled bool
	Subtasks        []Subtask
	Attachments     []Attachment
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// NotificationHandle is the opaque id returned by the notification
	// collaborator; empty when no notification is scheduled.
	NotificationHandle string

	IsRecurring  bool
	SeriesID     string
	InstanceDate *time.Time
	Skipped      bool
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("model: task title is required")
	}
	if !t.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, t.Category)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	if t.CreatedAt.IsZero() {
		return errors.New("model: task created_at is required")
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		return errors.New("model: task updated_at precedes created_at")
	}
	if t.IsRecurring && strings.TrimSpace(t.SeriesID) == "" {
		return errors.New("model: recurring task requires a series id")
	}
	if !t.IsRecurring && t.SeriesID != "" {
		return errors.New("model: series id set on non-recurring task")
	}
	return nil
}

// Pending reports whether the task still represents open work. Skipped
// instances stay in the collection but are excluded here.
func (t Task) Pending() bool {
	return !t.Completed && !t.Skipped
}

// Clone returns a deep copy so callers can hand tasks across ownership
// boundaries without sharing slice backing arrays.
func (t Task) Clone() Task {
	out := t
	if t.Subtasks != nil {
		out.Subtasks = make([]Subtask, len(t.Subtasks))
		copy(out.Subtasks, t.Subtasks)
	}
	if t.Attachments != nil {
		out.Attachments = make([]Attachment, len(t.Attachments))
		copy(out.Attachments, t.Attachments)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		out.DueDate = &d
	}
	if t.InstanceDate != nil {
		d := *t.InstanceDate
		out.InstanceDate = &d
	}
	return out
}

func CloneTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}

// OccurrenceDate is the date a scope comparison keys on: the instance date
// when present, otherwise the due date.
func (t Task) OccurrenceDate() (time.Time, bool) {
	if t.InstanceDate != nil {
		return *t.InstanceDate, true
	}
	if t.DueDate != nil {
		return *t.DueDate, true
	}
	return time.Time{}, false
}
