package sync

import (
	"github.com/taskloop/taskloop/internal/model"
	"github.com/taskloop/taskloop/internal/remote"
)

// The notification handle is device-local state and never crosses the wire.

func recordFromTask(t model.Task, userID string) remote.TaskRecord {
	rec := remote.TaskRecord{
		ID:              t.ID,
		UserID:          userID,
		Title:           t.Title,
		Description:     t.Description,
		Category:        string(t.Category),
		Priority:        string(t.Priority),
		Completed:       t.Completed,
		ReminderEnabled: t.ReminderEnabled,
		CreatedAt:       t.CreatedAt.UTC(),
		UpdatedAt:       t.UpdatedAt.UTC(),
		IsRecurring:     t.IsRecurring,
		SeriesID:        t.SeriesID,
		Skipped:         t.Skipped,
		Subtasks:        make([]remote.SubtaskRecord, 0, len(t.Subtasks)),
		Attachments:     make([]remote.AttachmentRecord, 0, len(t.Attachments)),
	}
	if t.DueDate != nil {
		d := t.DueDate.UTC()
		rec.DueDate = &d
	}
	if t.InstanceDate != nil {
		d := t.InstanceDate.UTC()
		rec.InstanceDate = &d
	}
	for _, st := range t.Subtasks {
		rec.Subtasks = append(rec.Subtasks, remote.SubtaskRecord(st))
	}
	for _, a := range t.Attachments {
		rec.Attachments = append(rec.Attachments, remote.AttachmentRecord{
			ID:        a.ID,
			Name:      a.Name,
			Path:      a.Path,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
			AddedAt:   a.AddedAt.UTC(),
		})
	}
	return rec
}

func taskFromRecord(rec remote.TaskRecord) model.Task {
	t := model.Task{
		ID:              rec.ID,
		Title:           rec.Title,
		Description:     rec.Description,
		Category:        model.Category(rec.Category),
		Priority:        model.Priority(rec.Priority),
		Completed:       rec.Completed,
		ReminderEnabled: rec.ReminderEnabled,
		CreatedAt:       rec.CreatedAt.UTC(),
		UpdatedAt:       rec.UpdatedAt.UTC(),
		IsRecurring:     rec.IsRecurring,
		SeriesID:        rec.SeriesID,
		Skipped:         rec.Skipped,
		Subtasks:        make([]model.Subtask, 0, len(rec.Subtasks)),
		Attachments:     make([]model.Attachment, 0, len(rec.Attachments)),
	}
	if rec.DueDate != nil {
		d := rec.DueDate.UTC()
		t.DueDate = &d
	}
	if rec.InstanceDate != nil {
		d := rec.InstanceDate.UTC()
		t.InstanceDate = &d
	}
	for _, st := range rec.Subtasks {
		t.Subtasks = append(t.Subtasks, model.Subtask(st))
	}
	for _, a := range rec.Attachments {
		t.Attachments = append(t.Attachments, model.Attachment{
			ID:        a.ID,
			Name:      a.Name,
			Path:      a.Path,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
			AddedAt:   a.AddedAt.UTC(),
		})
	}
	return t
}
