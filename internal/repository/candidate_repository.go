package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CandidateRepository answers existence checks for candidates.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository constructs the repository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// Exists reports whether a non-deleted candidate carries code.
func (r *CandidateRepository) Exists(ctx context.Context, q sqlx.ExtContext, code string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM candidates WHERE code = $1 AND deleted_at IS NULL)`
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, query, code); err != nil {
		return false, fmt.Errorf("check candidate: %w", err)
	}
	return exists, nil
}
