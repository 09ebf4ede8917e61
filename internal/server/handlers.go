package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"github.com/taskloop/taskloop/internal/remote"
)

// RemoteTask is the server-side row. Subtasks and attachments are stored as
// embedded JSON, matching how they travel on the wire. Client stamps are
// authoritative for conflict resolution, so gorm's automatic timestamp
// tracking is disabled on CreatedAt and UpdatedAt.
type RemoteTask struct {
	ID              string     `gorm:"primaryKey"`
	UserID          string     `gorm:"index"`
	Title           string
	Description     string
	Category        string
	Priority        string
	Completed       bool
	DueDate         *time.Time
	ReminderEnabled bool
	Subtasks        string
	Attachments     string
	CreatedAt       time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime:false"`
	IsRecurring     bool
	SeriesID        string     `gorm:"index"`
	InstanceDate    *time.Time
	Skipped         bool
	Deleted         bool       `gorm:"index"`
}

func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": currentUser(c)})
}

func (s *Server) handleListTasks(c *gin.Context) {
	var rows []RemoteTask
	if err := s.db.Where("user_id = ? AND deleted = ?", currentUser(c), false).
		Order("created_at ASC").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	tasks := make([]remote.TaskRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := recordFromRow(row)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		tasks = append(tasks, rec)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) handleUpsertBatch(c *gin.Context) {
	var in struct {
		Tasks []remote.TaskRecord `json:"tasks"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUser(c)
	rows := make([]RemoteTask, 0, len(in.Tasks))
	for _, rec := range in.Tasks {
		if rec.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "task id is required"})
			return
		}
		row, err := rowFromRecord(rec, userID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"upserted": len(rows)})
}

func (s *Server) handleSoftDelete(c *gin.Context) {
	id := c.Param("id")
	res := s.db.Model(&RemoteTask{}).
		Where("user_id = ? AND id = ?", currentUser(c), id).
		Update("deleted", true)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func rowFromRecord(rec remote.TaskRecord, userID string) (RemoteTask, error) {
	subtasks, err := json.Marshal(rec.Subtasks)
	if err != nil {
		return RemoteTask{}, err
	}
	attachments, err := json.Marshal(rec.Attachments)
	if err != nil {
		return RemoteTask{}, err
	}
	return RemoteTask{
		ID:              rec.ID,
		UserID:          userID,
		Title:           rec.Title,
		Description:     rec.Description,
		Category:        rec.Category,
		Priority:        rec.Priority,
		Completed:       rec.Completed,
		DueDate:         rec.DueDate,
		ReminderEnabled: rec.ReminderEnabled,
		Subtasks:        string(subtasks),
		Attachments:     string(attachments),
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
		IsRecurring:     rec.IsRecurring,
		SeriesID:        rec.SeriesID,
		InstanceDate:    rec.InstanceDate,
		Skipped:         rec.Skipped,
		Deleted:         rec.Deleted,
	}, nil
}

func recordFromRow(row RemoteTask) (remote.TaskRecord, error) {
	rec := remote.TaskRecord{
		ID:              row.ID,
		UserID:          row.UserID,
		Title:           row.Title,
		Description:     row.Description,
		Category:        row.Category,
		Priority:        row.Priority,
		Completed:       row.Completed,
		DueDate:         row.DueDate,
		ReminderEnabled: row.ReminderEnabled,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		IsRecurring:     row.IsRecurring,
		SeriesID:        row.SeriesID,
		InstanceDate:    row.InstanceDate,
		Skipped:         row.Skipped,
		Deleted:         row.Deleted,
	}
	if err := json.Unmarshal([]byte(row.Subtasks), &rec.Subtasks); err != nil {
		return remote.TaskRecord{}, err
	}
	if err := json.Unmarshal([]byte(row.Attachments), &rec.Attachments); err != nil {
		return remote.TaskRecord{}, err
	}
	return rec, nil
}
