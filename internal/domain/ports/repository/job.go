package repository

import (
	"context"

	"autoshorts/internal/domain/model"
)

type JobFilter struct {
	Stage  model.Stage // empty matches all
	Limit  int
	Offset int
}

// JobRepository persists the job ledger. List returns newest first.
type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.GenerationJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.GenerationJob, error)
	List(ctx context.Context, filter JobFilter) ([]*model.GenerationJob, error)
	CountByStage(ctx context.Context) (map[model.Stage]int, error)
}
