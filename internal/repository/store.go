package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/recruit-pipeline-api/internal/models"
)

// Tx is one lifecycle unit of work. Every read that precedes a write takes
// a row lock, so two units touching the same submission or job serialize.
type Tx interface {
	LockSubmission(ctx context.Context, code string) (*models.Submission, error)
	InsertSubmission(ctx context.Context, submission *models.Submission) error
	UpdateSubmission(ctx context.Context, submission *models.Submission) error
	MaxSubmissionSequence(ctx context.Context, prefix string) (int, error)
	CandidateExists(ctx context.Context, code string) (bool, error)
	JobExists(ctx context.Context, code string) (bool, error)
	LockJob(ctx context.Context, code string) (*models.Job, error)
	UpdateJobCapacity(ctx context.Context, code string, remaining int, status models.JobStatus) error
	AppendActivity(ctx context.Context, record *models.ActivityRecord) error
	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
	Commit() error
	Rollback() error
}

// Store opens lifecycle transactions over Postgres.
type Store struct {
	db          *sqlx.DB
	submissions *SubmissionRepository
	jobs        *JobRepository
	candidates  *CandidateRepository
	activities  *ActivityRepository
}

// NewStore wires the repositories sharing db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:          db,
		submissions: NewSubmissionRepository(db),
		jobs:        NewJobRepository(db),
		candidates:  NewCandidateRepository(db),
		activities:  NewActivityRepository(db),
	}
}

// Begin starts a read-committed transaction; row locks provide the
// serialization the engine relies on.
func (s *Store) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lifecycle transaction: %w", err)
	}
	return &sqlTx{tx: tx, store: s}, nil
}

type sqlTx struct {
	tx    *sqlx.Tx
	store *Store
}

func (t *sqlTx) LockSubmission(ctx context.Context, code string) (*models.Submission, error) {
	return t.store.submissions.LockByCode(ctx, t.tx, code)
}

func (t *sqlTx) InsertSubmission(ctx context.Context, submission *models.Submission) error {
	return t.store.submissions.Insert(ctx, t.tx, submission)
}

func (t *sqlTx) UpdateSubmission(ctx context.Context, submission *models.Submission) error {
	return t.store.submissions.Update(ctx, t.tx, submission)
}

func (t *sqlTx) MaxSubmissionSequence(ctx context.Context, prefix string) (int, error) {
	return t.store.submissions.MaxSequence(ctx, t.tx, prefix)
}

func (t *sqlTx) CandidateExists(ctx context.Context, code string) (bool, error) {
	return t.store.candidates.Exists(ctx, t.tx, code)
}

func (t *sqlTx) JobExists(ctx context.Context, code string) (bool, error) {
	return t.store.jobs.Exists(ctx, t.tx, code)
}

func (t *sqlTx) LockJob(ctx context.Context, code string) (*models.Job, error) {
	return t.store.jobs.LockByCode(ctx, t.tx, code)
}

func (t *sqlTx) UpdateJobCapacity(ctx context.Context, code string, remaining int, status models.JobStatus) error {
	return t.store.jobs.UpdateCapacity(ctx, t.tx, code, remaining, status)
}

func (t *sqlTx) AppendActivity(ctx context.Context, record *models.ActivityRecord) error {
	return t.store.activities.Append(ctx, t.tx, record)
}

var savepointName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func (t *sqlTx) Savepoint(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "SAVEPOINT %s", name)
}

func (t *sqlTx) RollbackToSavepoint(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "ROLLBACK TO SAVEPOINT %s", name)
}

func (t *sqlTx) ReleaseSavepoint(ctx context.Context, name string) error {
	return t.savepointExec(ctx, "RELEASE SAVEPOINT %s", name)
}

func (t *sqlTx) savepointExec(ctx context.Context, format, name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf(format, name)); err != nil {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, name), err)
	}
	return nil
}

func (t *sqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit lifecycle transaction: %w", err)
	}
	return nil
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}
