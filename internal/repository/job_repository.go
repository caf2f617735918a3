package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/recruit-pipeline-api/internal/models"
)

const jobColumns = `code, client_code, title, status, openings_total, openings_remaining, created_at, updated_at, deleted_at`

// JobRepository reads jobs and writes their capacity.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository constructs the repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// GetByCode fetches a live job.
func (r *JobRepository) GetByCode(ctx context.Context, code string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE code = $1 AND deleted_at IS NULL`
	var job models.Job
	if err := r.db.GetContext(ctx, &job, query, code); err != nil {
		return nil, err
	}
	return &job, nil
}

// LockByCode reads a job under a row lock held until q commits. Soft-deleted
// jobs are included: submissions already attached to them must still be able
// to place or reverse. Liveness is checked at create time through Exists.
func (r *JobRepository) LockByCode(ctx context.Context, q sqlx.ExtContext, code string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE code = $1 FOR UPDATE`
	var job models.Job
	if err := sqlx.GetContext(ctx, q, &job, query, code); err != nil {
		return nil, err
	}
	return &job, nil
}

// Exists reports whether a non-deleted job carries code.
func (r *JobRepository) Exists(ctx context.Context, q sqlx.ExtContext, code string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM jobs WHERE code = $1 AND deleted_at IS NULL)`
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, query, code); err != nil {
		return false, fmt.Errorf("check job: %w", err)
	}
	return exists, nil
}

// UpdateCapacity writes openings and status in one statement.
func (r *JobRepository) UpdateCapacity(ctx context.Context, q sqlx.ExtContext, code string, remaining int, status models.JobStatus) error {
	const query = `UPDATE jobs SET openings_remaining = $2, status = $3, updated_at = $4 WHERE code = $1`
	result, err := q.ExecContext(ctx, query, code, remaining, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job capacity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check job capacity rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
