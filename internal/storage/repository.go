package storage

import (
	"context"

	"github.com/taskloop/taskloop/internal/model"
)

// Repository is the persistence collaborator: a durable replace-all store
// for the task collection and the series records. The task store owns
// serialization; the repository only has to make writes stick.
type Repository interface {
	LoadTasks(ctx context.Context) ([]model.Task, error)
	SaveTasks(ctx context.Context, tasks []model.Task) error
	LoadSeries(ctx context.Context) ([]model.RecurringSeries, error)
	SaveSeries(ctx context.Context, series []model.RecurringSeries) error
}
