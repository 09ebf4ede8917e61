package remote

import "time"

// TaskRecord is the server-shaped wire form of a task. Field names follow
// the remote store's snake_case schema; subtasks and attachments travel as
// embedded structured data.
type TaskRecord struct {
	ID              string             `json:"id"`
	UserID          string             `json:"user_id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	Category        string             `json:"category"`
	Priority        string             `json:"priority"`
	Completed       bool               `json:"completed"`
	DueDate         *time.Time         `json:"due_date,omitempty"`
	ReminderEnabled bool               `json:"reminder_enabled"`
	Subtasks        []SubtaskRecord    `json:"subtasks"`
	Attachments     []AttachmentRecord `json:"attachments"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	IsRecurring     bool               `json:"is_recurring"`
	SeriesID        string             `json:"series_id,omitempty"`
	InstanceDate    *time.Time         `json:"instance_date,omitempty"`
	Skipped         bool               `json:"skipped"`
	Deleted         bool               `json:"deleted"`
}

type SubtaskRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

type AttachmentRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	MimeType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	AddedAt   time.Time `json:"added_at"`
}
