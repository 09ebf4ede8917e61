package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RecurringSeries is the generating rule for a family of task instances.
// Active=false stops further generation without touching past instances.
type RecurringSeries struct {
	ID              string
	Title           string
	Description     string
	Category        Category
	Priority        Priority
	ReminderEnabled bool
	Rule            RecurrenceRule
	Active          bool
	// Tombstones lists occurrence dates (day-granular UTC) whose instances
	// were deleted individually. Generation never recreates them.
	Tombstones []time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Tombstoned reports whether the occurrence date falls on a tombstoned day.
func (s RecurringSeries) Tombstoned(occurrence time.Time) bool {
	u := occurrence.UTC()
	for _, d := range s.Tombstones {
		du := d.UTC()
		if du.Year() == u.Year() && du.Month() == u.Month() && du.Day() == u.Day() {
			return true
		}
	}
	return false
}

func (s RecurringSeries) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("model: series id is required")
	}
	if strings.TrimSpace(s.Title) == "" {
		return errors.New("model: series title is required")
	}
	if !s.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, s.Category)
	}
	if !s.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, s.Priority)
	}
	if err := s.Rule.Validate(); err != nil {
		return err
	}
	if s.CreatedAt.IsZero() {
		return errors.New("model: series created_at is required")
	}
	return nil
}
