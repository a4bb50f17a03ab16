package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"autoshorts/internal/domain"
	"autoshorts/internal/domain/model"
	"autoshorts/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

// Fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type jobRepo struct {
	db *sql.DB
}

func NewJobRepo(s *DB) *jobRepo {
	return &jobRepo{db: s.db}
}

const jobColumns = `id, category, stage, origin, viral_mode, ad_injected, auto_slot, platforms,
topic, character_description, full_script, scenes, audio_artifact, video_artifacts, progress,
failure_reason, failure_kind, created_at, updated_at, published_at`

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return err
	}
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
	var published *string
	if job.PublishedAt != nil {
		s := job.PublishedAt.UTC().Format(timeLayout)
		published = &s
	}

	const q = `
INSERT INTO generation_jobs (` + jobColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
  stage = excluded.stage,
  platforms = excluded.platforms,
  topic = excluded.topic,
  character_description = excluded.character_description,
  full_script = excluded.full_script,
  scenes = excluded.scenes,
  audio_artifact = excluded.audio_artifact,
  video_artifacts = excluded.video_artifacts,
  progress = excluded.progress,
  failure_reason = excluded.failure_reason,
  failure_kind = excluded.failure_kind,
  updated_at = excluded.updated_at,
  published_at = excluded.published_at`

	_, err = ex.ExecContext(ctx, q,
		job.ID, string(job.Category), string(job.Stage), string(job.Origin), job.ViralMode, job.AdInjected,
		string(job.AutoSlot), string(platforms), job.Topic, job.CharacterDescription, job.FullScript,
		string(scenes), job.AudioArtifact, string(videos), job.Progress, job.FailureReason, job.FailureKind,
		job.CreatedAt.UTC().Format(timeLayout), job.UpdatedAt.UTC().Format(timeLayout), published)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	ex, err := getExecutor(r.db, tx)
	if err != nil {
		return nil, err
	}
	row := ex.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM generation_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *jobRepo) List(ctx context.Context, f repository.JobFilter) ([]*model.GenerationJob, error) {
	var (
		where []string
		args  []any
	)
	if f.Stage != "" {
		where = append(where, "stage = ?")
		args = append(args, string(f.Stage))
	}
	q := `SELECT ` + jobColumns + ` FROM generation_jobs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(f.Offset, 0))

	rows, err := r.db.QueryContext(ctx, q, args...)
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
	rows, err := r.db.QueryContext(ctx, `SELECT stage, COUNT(*) FROM generation_jobs GROUP BY stage`)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.GenerationJob, error) {
	var (
		j                         model.GenerationJob
		category, stage, origin   string
		slot                      string
		platforms, scenes, videos string
		audio, published          sql.NullString
		createdAt, updatedAt      string
	)
	err := row.Scan(&j.ID, &category, &stage, &origin, &j.ViralMode, &j.AdInjected, &slot, &platforms,
		&j.Topic, &j.CharacterDescription, &j.FullScript, &scenes, &audio, &videos, &j.Progress,
		&j.FailureReason, &j.FailureKind, &createdAt, &updatedAt, &published)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	j.Category = model.Category(category)
	j.Stage = model.Stage(stage)
	j.Origin = model.Origin(origin)
	j.AutoSlot = model.Slot(slot)

	if err := json.Unmarshal([]byte(platforms), &j.Platforms); err != nil {
		return nil, fmt.Errorf("%w: platforms: %v", domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal([]byte(scenes), &j.Scenes); err != nil {
		return nil, fmt.Errorf("%w: scenes: %v", domain.ErrReadDatabaseRow, err)
	}
	if err := json.Unmarshal([]byte(videos), &j.VideoArtifacts); err != nil {
		return nil, fmt.Errorf("%w: video artifacts: %v", domain.ErrReadDatabaseRow, err)
	}
	if audio.Valid {
		s := audio.String
		j.AudioArtifact = &s
	}
	if j.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("%w: created_at: %v", domain.ErrReadDatabaseRow, err)
	}
	if j.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("%w: updated_at: %v", domain.ErrReadDatabaseRow, err)
	}
	if published.Valid {
		t, err := time.Parse(timeLayout, published.String)
		if err != nil {
			return nil, fmt.Errorf("%w: published_at: %v", domain.ErrReadDatabaseRow, err)
		}
		j.PublishedAt = &t
	}
	return &j, nil
}
