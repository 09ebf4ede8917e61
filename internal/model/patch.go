package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TaskPatch enumerates every field a direct edit may change. Nil pointers
// mean "leave unchanged"; ClearDueDate removes the due date explicitly so a
// nil DueDate stays distinguishable from "no change".
type TaskPatch struct {
	Title           *string
	Description     *string
	Category        *Category
	Priority        *Priority
	Completed       *bool
	DueDate         *time.Time
	ClearDueDate    bool
	ReminderEnabled *bool
	Subtasks        *[]Subtask
	Attachments     *[]Attachment
}

func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return errors.New("model: patch title must not be empty")
	}
	if p.Category != nil && !p.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, *p.Category)
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, *p.Priority)
	}
	if p.DueDate != nil && p.ClearDueDate {
		return errors.New("model: patch sets and clears due date")
	}
	return nil
}

func (p TaskPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Priority == nil && p.Completed == nil && p.DueDate == nil &&
		!p.ClearDueDate && p.ReminderEnabled == nil && p.Subtasks == nil &&
		p.Attachments == nil
}

// Apply returns a patched copy of the task with UpdatedAt stamped
// monotonically: a wall clock that went backwards never rewinds the stamp.
func (p TaskPatch) Apply(t Task, now time.Time) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Completed != nil {
		out.Completed = *p.Completed
	}
	if p.DueDate != nil {
		d := p.DueDate.UTC()
		out.DueDate = &d
	}
	if p.ClearDueDate {
		out.DueDate = nil
	}
	if p.ReminderEnabled != nil {
		out.ReminderEnabled = *p.ReminderEnabled
	}
	if p.Subtasks != nil {
		out.Subtasks = make([]Subtask, len(*p.Subtasks))
		copy(out.Subtasks, *p.Subtasks)
	}
	if p.Attachments != nil {
		out.Attachments = make([]Attachment, len(*p.Attachments))
		copy(out.Attachments, *p.Attachments)
	}
	out.UpdatedAt = StampAfter(t.UpdatedAt, now)
	return out
}

// SeriesFields extracts the subset of the patch that is template-level and
// may propagate to the series record. Instance state (completion, due date,
// subtasks, attachments) never does.
func (p TaskPatch) SeriesFields() SeriesPatch {
	return SeriesPatch{
		Title:           p.Title,
		Description:     p.Description,
		Category:        p.Category,
		Priority:        p.Priority,
		ReminderEnabled: p.ReminderEnabled,
	}
}

type SeriesPatch struct {
	Title           *string
	Description     *string
	Category        *Category
	Priority        *Priority
	ReminderEnabled *bool
}

func (p SeriesPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return errors.New("model: patch title must not be empty")
	}
	if p.Category != nil && !p.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, *p.Category)
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, *p.Priority)
	}
	return nil
}

func (p SeriesPatch) IsZero() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Priority == nil && p.ReminderEnabled == nil
}

func (p SeriesPatch) Apply(s RecurringSeries, now time.Time) RecurringSeries {
	out := s
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.ReminderEnabled != nil {
		out.ReminderEnabled = *p.ReminderEnabled
	}
	out.UpdatedAt = StampAfter(s.UpdatedAt, now)
	return out
}

// StampAfter returns now unless it would move a modification stamp
// backwards, in which case it advances the previous stamp by a nanosecond.
func StampAfter(prev, now time.Time) time.Time {
	now = now.UTC()
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}
