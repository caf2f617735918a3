package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/recruit-pipeline-api/internal/models"
)

// ActivityRepository appends and reads activity records. It never updates
// or deletes rows.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts one record through q.
func (r *ActivityRepository) Append(ctx context.Context, q sqlx.ExtContext, record *models.ActivityRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO activity_records
	(id, actor, module, action, entity_type, entity_code, description, before_state, after_state, created_at)
	VALUES (:id, :actor, :module, :action, :entity_type, :entity_code, :description, :before_state, :after_state, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, record); err != nil {
		return fmt.Errorf("append activity record: %w", err)
	}
	return nil
}

// ListByEntity returns an entity's records oldest first.
func (r *ActivityRepository) ListByEntity(ctx context.Context, entityType, entityCode string) ([]models.ActivityRecord, error) {
	const query = `SELECT id, actor, module, action, entity_type, entity_code, description, before_state, after_state, created_at
	FROM activity_records WHERE entity_type = $1 AND entity_code = $2 ORDER BY created_at ASC`
	var records []models.ActivityRecord
	if err := r.db.SelectContext(ctx, &records, query, entityType, entityCode); err != nil {
		return nil, fmt.Errorf("list activity records: %w", err)
	}
	return records, nil
}
