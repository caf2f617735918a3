package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	appErrors "github.com/noah-isme/recruit-pipeline-api/pkg/errors"
)

const activitySavepoint = "activity_record"

// ActivityStore appends records inside a lifecycle transaction.
type ActivityStore interface {
	AppendActivity(ctx context.Context, record *models.ActivityRecord) error
	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
}

// ActivityReader reads back an entity's history.
type ActivityReader interface {
	ListByEntity(ctx context.Context, entityType, entityCode string) ([]models.ActivityRecord, error)
}

// ActivityEntry describes one fact to append.
type ActivityEntry struct {
	Actor       string
	Action      string
	EntityType  string
	EntityCode  string
	Description string
	Before      string
	After       string
}

// ActivityRecorder writes the audit trail. A failed append is rolled back to
// a savepoint and reported, leaving the surrounding transaction intact.
type ActivityRecorder struct {
	reader  ActivityReader
	metrics *MetricsService
	logger  *zap.Logger
}

// NewActivityRecorder constructs the recorder.
func NewActivityRecorder(reader ActivityReader, metrics *MetricsService, logger *zap.Logger) *ActivityRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityRecorder{reader: reader, metrics: metrics, logger: logger}
}

// Record appends entry through store. It returns an error only when the
// transaction itself can no longer be used.
func (r *ActivityRecorder) Record(ctx context.Context, store ActivityStore, entry ActivityEntry) error {
	record := &models.ActivityRecord{
		Actor:       entry.Actor,
		Module:      models.ActivityModuleSubmissions,
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityCode:  entry.EntityCode,
		Description: entry.Description,
		BeforeState: optionalString(entry.Before),
		AfterState:  optionalString(entry.After),
	}
	if record.EntityType == "" {
		record.EntityType = models.ActivityEntitySubmission
	}

	if err := store.Savepoint(ctx, activitySavepoint); err != nil {
		r.fail(record, err)
		return nil
	}
	if err := store.AppendActivity(ctx, record); err != nil {
		r.fail(record, err)
		if rbErr := store.RollbackToSavepoint(ctx, activitySavepoint); rbErr != nil {
			return appErrors.Storage(rbErr, "failed to recover from activity record failure")
		}
		return nil
	}
	if err := store.ReleaseSavepoint(ctx, activitySavepoint); err != nil {
		return appErrors.Storage(err, "failed to release activity savepoint")
	}
	return nil
}

// Timeline returns the recorded history of one entity, oldest first.
func (r *ActivityRecorder) Timeline(ctx context.Context, entityType, entityCode string) ([]models.ActivityRecord, error) {
	if r.reader == nil {
		return []models.ActivityRecord{}, nil
	}
	records, err := r.reader.ListByEntity(ctx, entityType, entityCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity timeline")
	}
	if records == nil {
		records = []models.ActivityRecord{}
	}
	return records, nil
}

func (r *ActivityRecorder) fail(record *models.ActivityRecord, err error) {
	r.metrics.RecordActivityFailure()
	r.logger.Warn("activity record not written",
		zap.String("action", record.Action),
		zap.String("entity_type", record.EntityType),
		zap.String("entity_code", record.EntityCode),
		zap.String("actor", record.Actor),
		zap.Error(err),
	)
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
