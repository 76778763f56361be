package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/infra"
	"mockupstudio/internal/sqlinline"
)

const defaultListLimit = 50

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a new pending job together with its input snapshot.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	inputs, err := json.Marshal(job.Inputs)
	if err != nil {
		return fmt.Errorf("encode job inputs: %w", err)
	}
	parent := ""
	if job.ParentID != nil {
		parent = *job.ParentID
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID,
		string(job.Kind),
		job.BaseProductID,
		parent,
		inputs,
		string(job.Status),
		string(job.SimulationStatus),
		job.CreatedAt,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectJobByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns recent jobs, newest first. A zero baseProductID lists all.
func (r *JobRepositoryPG) List(ctx context.Context, baseProductID int64, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListJobs, baseProductID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkCompleted records the artifact of a pending job.
func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, id, artifactRef, artifactMIME string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteJob, id, artifactRef, artifactMIME)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyTerminated
	}
	return nil
}

// MarkFailed records the failure reason of a pending job.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, id, reason string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailJob, id, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyTerminated
	}
	return nil
}

func (r *JobRepositoryPG) BeginSimulation(ctx context.Context, id string) error {
	return r.simulationTransition(ctx, sqlinline.QBeginSimulation, id)
}

func (r *JobRepositoryPG) CompleteSimulation(ctx context.Context, id string, refs []string) error {
	if refs == nil {
		refs = []string{}
	}
	return r.simulationTransition(ctx, sqlinline.QCompleteSimulation, id, refs)
}

func (r *JobRepositoryPG) FailSimulation(ctx context.Context, id, reason string) error {
	return r.simulationTransition(ctx, sqlinline.QFailSimulation, id, reason)
}

func (r *JobRepositoryPG) simulationTransition(ctx context.Context, query, id string, args ...any) error {
	tag, err := r.sql.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// FailInterrupted fails every pending job and running simulation.
func (r *JobRepositoryPG) FailInterrupted(ctx context.Context, reason string) (int64, error) {
	jobs, err := r.sql.Exec(ctx, sqlinline.QFailPendingJobs, reason)
	if err != nil {
		return 0, err
	}
	sims, err := r.sql.Exec(ctx, sqlinline.QFailRunningSimulations, reason)
	if err != nil {
		return jobs.RowsAffected(), err
	}
	return jobs.RowsAffected() + sims.RowsAffected(), nil
}

// Delete removes a job record.
func (r *JobRepositoryPG) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteJob, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job         domain.Job
		kind        string
		status      string
		simStatus   string
		rawInputs   []byte
		parentID    *string
		artifactRef *string
	)
	if err := row.Scan(
		&job.ID,
		&kind,
		&job.BaseProductID,
		&parentID,
		&rawInputs,
		&status,
		&artifactRef,
		&job.ArtifactMIME,
		&job.ErrorMessage,
		&simStatus,
		&job.SimulationRefs,
		&job.SimulationError,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(rawInputs) > 0 {
		if err := json.Unmarshal(rawInputs, &job.Inputs); err != nil {
			return nil, fmt.Errorf("decode inputs of job %s: %w", job.ID, err)
		}
	}
	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	job.SimulationStatus = domain.SimulationStatus(simStatus)
	job.ParentID = parentID
	job.ArtifactRef = artifactRef
	return &job, nil
}

// validID filters ids postgres would reject as malformed uuids.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
