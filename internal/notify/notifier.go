package notify

import (
	"github.com/taskloop/taskloop/internal/model"
)

// Notifier is the notification collaborator. Schedule returns an opaque
// handle; the core must cancel by handle before discarding a task that has
// one, and must tolerate failures without blocking the mutation.
type Notifier interface {
	ScheduleDueDate(task model.Task) (string, error)
	Cancel(handle string) error
}

// Nop backs tests and headless runs.
type Nop struct{}

func (Nop) ScheduleDueDate(model.Task) (string, error) { return "", nil }

func (Nop) Cancel(string) error { return nil }
