package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/recruit-pipeline-api/internal/models"
)

// Constraint names the engine classifies on unique violations.
const (
	ConstraintSubmissionCode = "submissions_submission_code_key"
	ConstraintActivePair     = "submissions_active_pair_idx"
)

const submissionColumns = `submission_code, candidate_code, job_code, internal_status, client_status, submission_notes,
       interview_dates, client_feedback, offer_salary, offer_start_date, offer_notes, start_date,
       rejection_reason, withdrawal_reason, submitted_at, interviewing_at, offered_at, placed_at, consumed_opening,
       rejected_at, withdrawn_at, is_active, archived_at, version, created_at, created_by, updated_at, updated_by`

// SubmissionRepository persists submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// GetByCode fetches a submission without locking it.
func (r *SubmissionRepository) GetByCode(ctx context.Context, code string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE submission_code = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, code); err != nil {
		return nil, err
	}
	return &submission, nil
}

// LockByCode reads a submission and holds its row lock until q commits.
func (r *SubmissionRepository) LockByCode(ctx context.Context, q sqlx.ExtContext, code string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE submission_code = $1 FOR UPDATE`
	var submission models.Submission
	if err := sqlx.GetContext(ctx, q, &submission, query, code); err != nil {
		return nil, err
	}
	return &submission, nil
}

// Insert writes a new submission row.
func (r *SubmissionRepository) Insert(ctx context.Context, q sqlx.ExtContext, submission *models.Submission) error {
	const query = `INSERT INTO submissions
	(submission_code, candidate_code, job_code, internal_status, client_status, submission_notes, interview_dates,
	 is_active, version, created_at, created_by, updated_at, updated_by)
	VALUES (:submission_code, :candidate_code, :job_code, :internal_status, :client_status, :submission_notes, :interview_dates,
	 :is_active, :version, :created_at, :created_by, :updated_at, :updated_by)`
	if submission.InterviewDates == nil {
		submission.InterviewDates = pq.StringArray{}
	}
	if _, err := sqlx.NamedExecContext(ctx, q, query, submission); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// Update persists every mutable column. The stored version must be exactly
// one behind submission.Version or sql.ErrNoRows is returned.
func (r *SubmissionRepository) Update(ctx context.Context, q sqlx.ExtContext, submission *models.Submission) error {
	const query = `UPDATE submissions SET
	internal_status = :internal_status, client_status = :client_status, submission_notes = :submission_notes,
	interview_dates = :interview_dates, client_feedback = :client_feedback, offer_salary = :offer_salary,
	offer_start_date = :offer_start_date, offer_notes = :offer_notes, start_date = :start_date,
	rejection_reason = :rejection_reason, withdrawal_reason = :withdrawal_reason, submitted_at = :submitted_at,
	interviewing_at = :interviewing_at, offered_at = :offered_at, placed_at = :placed_at, consumed_opening = :consumed_opening, rejected_at = :rejected_at,
	withdrawn_at = :withdrawn_at, is_active = :is_active, archived_at = :archived_at, version = :version,
	updated_at = :updated_at, updated_by = :updated_by
	WHERE submission_code = :submission_code AND version = :version - 1`
	if submission.InterviewDates == nil {
		submission.InterviewDates = pq.StringArray{}
	}
	result, err := sqlx.NamedExecContext(ctx, q, query, submission)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check submission update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MaxSequence returns the highest numeric suffix among codes shaped PREFIX-digits.
func (r *SubmissionRepository) MaxSequence(ctx context.Context, q sqlx.ExtContext, prefix string) (int, error) {
	quoted := regexp.QuoteMeta(prefix)
	const query = `SELECT COALESCE(MAX(CAST(SUBSTRING(submission_code FROM $2) AS BIGINT)), 0)
	FROM submissions WHERE submission_code ~ $1`
	var max int64
	if err := sqlx.GetContext(ctx, q, &max, query, "^"+quoted+"-[0-9]+$", "^"+quoted+"-([0-9]+)$"); err != nil {
		return 0, fmt.Errorf("max submission sequence: %w", err)
	}
	return int(max), nil
}

// List returns submissions matching the filter, newest first.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + submissionColumns + ` FROM submissions`)

	conditions := make([]string, 0, 4)
	if filter.JobCode != "" {
		args = append(args, filter.JobCode)
		conditions = append(conditions, fmt.Sprintf("job_code = $%d", len(args)))
	}
	if filter.CandidateCode != "" {
		args = append(args, filter.CandidateCode)
		conditions = append(conditions, fmt.Sprintf("candidate_code = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("internal_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC, submission_code DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// UniqueViolation reports the constraint behind a Postgres unique violation.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.Constraint, true
	}
	return "", false
}
