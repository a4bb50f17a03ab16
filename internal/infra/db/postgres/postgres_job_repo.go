package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, category, stage, origin, viral_mode, ad_injected, auto_slot, platforms,
topic, character_description, full_script, scenes, audio_artifact, video_artifacts, progress,
failure_reason, failure_kind, created_at, updated_at, published_at`

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	platforms, err := json.Marshal(job.Platforms)
	if err != nil {
		return err
	}
	scenes, err := json.Marshal(job.Scenes)
	if err != nil {
		return err
	}
	videos, err := json.Marshal(job.VideoArtifacts)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO generation_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
ON CONFLICT (id) DO UPDATE SET
  stage = EXCLUDED.stage,
  platforms = EXCLUDED.platforms,
  topic = EXCLUDED.topic,
  character_description = EXCLUDED.character_description,
  full_script = EXCLUDED.full_script,
  scenes = EXCLUDED.scenes,
  audio_artifact = EXCLUDED.audio_artifact,
  video_artifacts = EXCLUDED.video_artifacts,
  progress = EXCLUDED.progress,
  failure_reason = EXCLUDED.failure_reason,
  failure_kind = EXCLUDED.failure_kind,
  updated_at = EXCLUDED.updated_at,
  published_at = EXCLUDED.published_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, string(job.Category), string(job.Stage), string(job.Origin), job.ViralMode, job.AdInjected,
		string(job.AutoSlot), platforms, job.Topic, job.CharacterDescription, job.FullScript,
		scenes, job.AudioArtifact, videos, job.Progress, job.FailureReason, job.FailureKind,
		job.CreatedAt, job.UpdatedAt, job.PublishedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) List(ctx context.Context, f repository.JobFilter) ([]*model.GenerationJob, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Stage != "" {
		args = append(args, string(f.Stage))
		where = append(where, fmt.Sprintf("stage = $%d", len(args)))
	}
	q := `SELECT ` + jobColumns + ` FROM generation_jobs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (r *jobRepo) CountByStage(ctx context.Context) (map[model.Stage]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT stage, COUNT(*) FROM generation_jobs GROUP BY stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.Stage]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.Stage(stage)] = n
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.GenerationJob, error) {
	var (
		j                         model.GenerationJob
		category, stage, origin   string
		slot                      string
		platforms, scenes, videos []byte
	)
	err := row.Scan(&j.ID, &category, &stage, &origin, &j.ViralMode, &j.AdInjected, &slot, &platforms,
		&j.Topic, &j.CharacterDescription, &j.FullScript, &scenes, &j.AudioArtifact, &videos, &j.Progress,
		&j.FailureReason, &j.FailureKind, &j.CreatedAt, &j.UpdatedAt, &j.PublishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	j.Category = model.Category(category)
	j.Stage = model.Stage(stage)
	j.Origin = model.Origin(origin)
	j.AutoSlot = model.Slot(slot)

	if err := json.Unmarshal(platforms, &j.Platforms); err != nil {
		return nil, fmt.Errorf("%w: platforms: %v", domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal(scenes, &j.Scenes); err != nil {
		return nil, fmt.Errorf("%w: scenes: %v", domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal(videos, &j.VideoArtifacts); err != nil {
		return nil, fmt.Errorf("%w: video artifacts: %v", domain.ErrReadDatabaseRow, err)
	}
	return &j, nil
}
