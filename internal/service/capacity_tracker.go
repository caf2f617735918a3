package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	appErrors "github.com/noah-isme/recruit-pipeline-api/pkg/errors"
)

// CapacityStore is the slice of a lifecycle transaction the tracker writes through.
type CapacityStore interface {
	LockJob(ctx context.Context, code string) (*models.Job, error)
	UpdateJobCapacity(ctx context.Context, code string, remaining int, status models.JobStatus) error
}

// CapacityTracker is the only writer of a job's openings and its filled flag.
type CapacityTracker struct {
	metrics *MetricsService
	logger  *zap.Logger
}

// NewCapacityTracker constructs the tracker.
func NewCapacityTracker(metrics *MetricsService, logger *zap.Logger) *CapacityTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapacityTracker{metrics: metrics, logger: logger}
}

// DecrementOnPlacement consumes one opening inside the placing transaction.
// A job already at zero is left untouched and the result is marked Exhausted.
func (t *CapacityTracker) DecrementOnPlacement(ctx context.Context, store CapacityStore, jobCode string) (models.CapacityResult, error) {
	job, err := t.lock(ctx, store, jobCode)
	if err != nil {
		return models.CapacityResult{}, err
	}

	if job.OpeningsRemaining <= 0 {
		t.metrics.RecordCapacityExhausted()
		t.logger.Warn("placement recorded against job with no openings",
			zap.String("job_code", job.Code),
			zap.Int("openings_remaining", job.OpeningsRemaining),
			zap.String("status", string(job.Status)),
		)
		return models.CapacityResult{
			JobCode:           job.Code,
			OpeningsRemaining: 0,
			Status:            job.Status,
			Exhausted:         true,
		}, nil
	}

	remaining := job.OpeningsRemaining - 1
	status := job.Status
	if remaining == 0 && status != models.JobClosed {
		status = models.JobFilled
	}
	if err := store.UpdateJobCapacity(ctx, job.Code, remaining, status); err != nil {
		return models.CapacityResult{}, appErrors.Storage(err, "failed to update job capacity")
	}
	return models.CapacityResult{JobCode: job.Code, OpeningsRemaining: remaining, Status: status}, nil
}

// Reverse returns the opening a placement consumed and reopens a filled job.
// The counter never rises above openings_total. Only call it for placements
// whose DecrementOnPlacement was not Exhausted.
func (t *CapacityTracker) Reverse(ctx context.Context, store CapacityStore, jobCode string) (models.CapacityResult, error) {
	job, err := t.lock(ctx, store, jobCode)
	if err != nil {
		return models.CapacityResult{}, err
	}

	remaining := job.OpeningsRemaining + 1
	if remaining > job.OpeningsTotal {
		t.logger.Warn("reversal would exceed job openings; counter capped",
			zap.String("job_code", job.Code),
			zap.Int("openings_total", job.OpeningsTotal),
			zap.Int("openings_remaining", job.OpeningsRemaining),
		)
		remaining = job.OpeningsTotal
	}
	if remaining == job.OpeningsRemaining {
		return models.CapacityResult{JobCode: job.Code, OpeningsRemaining: remaining, Status: job.Status}, nil
	}
	status := job.Status
	if status == models.JobFilled && remaining > 0 {
		status = models.JobOpen
	}
	if err := store.UpdateJobCapacity(ctx, job.Code, remaining, status); err != nil {
		return models.CapacityResult{}, appErrors.Storage(err, "failed to update job capacity")
	}
	return models.CapacityResult{JobCode: job.Code, OpeningsRemaining: remaining, Status: status}, nil
}

// Snapshot locks the job and reports its counter without changing it. It
// serves reversals of over-committed placements, which never took an opening.
func (t *CapacityTracker) Snapshot(ctx context.Context, store CapacityStore, jobCode string) (models.CapacityResult, error) {
	job, err := t.lock(ctx, store, jobCode)
	if err != nil {
		return models.CapacityResult{}, err
	}
	return models.CapacityResult{JobCode: job.Code, OpeningsRemaining: job.OpeningsRemaining, Status: job.Status}, nil
}

func (t *CapacityTracker) lock(ctx context.Context, store CapacityStore, jobCode string) (*models.Job, error) {
	job, err := store.LockJob(ctx, jobCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetail(appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("job %s not found", jobCode)), "job_code", jobCode)
		}
		return nil, appErrors.Storage(err, "failed to lock job")
	}
	return job, nil
}
