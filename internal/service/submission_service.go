package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/recruit-pipeline-api/internal/dto"
	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	"github.com/noah-isme/recruit-pipeline-api/internal/repository"
	appErrors "github.com/noah-isme/recruit-pipeline-api/pkg/errors"
	"github.com/noah-isme/recruit-pipeline-api/pkg/logger"
)

// TxBeginner opens lifecycle transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (repository.Tx, error)
}

type submissionReader interface {
	GetByCode(ctx context.Context, code string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
}

type jobReader interface {
	GetByCode(ctx context.Context, code string) (*models.Job, error)
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, event models.SubmissionEvent)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// TransitionResult is the committed outcome of a state change.
type TransitionResult struct {
	Submission *models.Submission
	// Capacity is set when the transition touched job openings.
	Capacity *models.CapacityResult
}

// SubmissionServiceConfig bounds retries and transaction duration.
type SubmissionServiceConfig struct {
	CodeRetries int
	TxTimeout   time.Duration
}

// SubmissionServiceOption configures optional collaborators.
type SubmissionServiceOption func(*SubmissionService)

// WithSubmissionDispatcher sets the post-commit notification dispatcher.
func WithSubmissionDispatcher(dispatcher eventDispatcher) SubmissionServiceOption {
	return func(s *SubmissionService) {
		s.dispatcher = dispatcher
	}
}

// WithSubmissionMetrics sets the metrics sink.
func WithSubmissionMetrics(metrics *MetricsService) SubmissionServiceOption {
	return func(s *SubmissionService) {
		s.metrics = metrics
	}
}

// WithReportCache sets the cache invalidated when placements change.
func WithReportCache(cache cacheInvalidator) SubmissionServiceOption {
	return func(s *SubmissionService) {
		s.reportCache = cache
	}
}

// SubmissionService is the lifecycle engine: every submission write goes
// through it inside a single transaction.
type SubmissionService struct {
	store       TxBeginner
	submissions submissionReader
	jobs        jobReader
	codes       *CodeGenerator
	capacity    *CapacityTracker
	activity    *ActivityRecorder
	dispatcher  eventDispatcher
	reportCache cacheInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         SubmissionServiceConfig
	now         func() time.Time
}

// NewSubmissionService wires the engine.
func NewSubmissionService(
	store TxBeginner,
	submissions submissionReader,
	jobs jobReader,
	codes *CodeGenerator,
	capacity *CapacityTracker,
	activity *ActivityRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SubmissionServiceConfig,
	opts ...SubmissionServiceOption,
) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.CodeRetries <= 0 {
		cfg.CodeRetries = 3
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 5 * time.Second
	}
	if codes == nil {
		codes = NewCodeGenerator("SUB", 6)
	}
	if capacity == nil {
		capacity = NewCapacityTracker(nil, logger)
	}
	if activity == nil {
		activity = NewActivityRecorder(nil, nil, logger)
	}
	svc := &SubmissionService{
		store:       store,
		submissions: submissions,
		jobs:        jobs,
		codes:       codes,
		capacity:    capacity,
		activity:    activity,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create inserts a Pending submission. A code collision with a concurrent
// creator is retried with a fresh transaction; an active submission for
// the same pair yields DUPLICATE_SUBMISSION.
func (s *SubmissionService) Create(ctx context.Context, req dto.CreateSubmissionRequest) (*models.Submission, error) {
	req.CandidateCode = strings.TrimSpace(req.CandidateCode)
	req.JobCode = strings.TrimSpace(req.JobCode)
	req.SubmittedBy = strings.TrimSpace(req.SubmittedBy)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	log := logger.WithContext(ctx, s.logger)
	var lastErr error
	for attempt := 1; attempt <= s.cfg.CodeRetries; attempt++ {
		submission, retry, err := s.createOnce(ctx, req)
		if err == nil {
			s.metrics.RecordCreated()
			log.Info("submission created",
				zap.String("submission_code", submission.Code),
				zap.String("candidate_code", submission.CandidateCode),
				zap.String("job_code", submission.JobCode),
				zap.String("actor", req.SubmittedBy),
			)
			return submission, nil
		}
		if !retry {
			if errors.Is(err, appErrors.ErrStorageFailure) {
				return nil, createFailure(err, req)
			}
			return nil, err
		}
		lastErr = err
		log.Debug("submission code collision, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
	log.Warn("submission code retries exhausted", zap.Int("attempts", s.cfg.CodeRetries), zap.Error(lastErr))
	return nil, createFailure(lastErr, req)
}

// createFailure reports a create whose outcome the caller cannot assume; the
// pair must be looked up before trying again.
func createFailure(err error, req dto.CreateSubmissionRequest) error {
	e := appErrors.Storage(err, fmt.Sprintf("submission for candidate %s and job %s may not have been created; check for an existing submission before retrying", req.CandidateCode, req.JobCode))
	e.Details = map[string]string{"candidate_code": req.CandidateCode, "job_code": req.JobCode}
	return e
}

func (s *SubmissionService) createOnce(ctx context.Context, req dto.CreateSubmissionRequest) (*models.Submission, bool, error) {
	var (
		submission *models.Submission
		retry      bool
	)
	err := s.inTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		exists, err := tx.CandidateExists(ctx, req.CandidateCode)
		if err != nil {
			return appErrors.Storage(err, "failed to load candidate")
		}
		if !exists {
			return notFound("candidate", "candidate_code", req.CandidateCode)
		}
		exists, err = tx.JobExists(ctx, req.JobCode)
		if err != nil {
			return appErrors.Storage(err, "failed to load job")
		}
		if !exists {
			return notFound("job", "job_code", req.JobCode)
		}

		code, err := s.codes.Next(ctx, tx)
		if err != nil {
			return appErrors.Storage(err, "failed to allocate submission code")
		}

		now := s.now()
		submission = &models.Submission{
			Code:           code,
			CandidateCode:  req.CandidateCode,
			JobCode:        req.JobCode,
			InternalStatus: models.SubmissionPending,
			ClientStatus:   models.ClientNotSent,
			Notes:          strings.TrimSpace(req.Notes),
			InterviewDates: pq.StringArray{},
			IsActive:       true,
			Version:        1,
			CreatedAt:      now,
			CreatedBy:      req.SubmittedBy,
			UpdatedAt:      now,
			UpdatedBy:      req.SubmittedBy,
		}
		if err := tx.InsertSubmission(ctx, submission); err != nil {
			if constraint, ok := repository.UniqueViolation(err); ok {
				switch constraint {
				case repository.ConstraintSubmissionCode:
					retry = true
					return err
				case repository.ConstraintActivePair:
					s.metrics.RecordDuplicate()
					return duplicateSubmission(req.CandidateCode, req.JobCode)
				}
			}
			return appErrors.Storage(err, "failed to insert submission")
		}

		return s.activity.Record(ctx, tx, ActivityEntry{
			Actor:       req.SubmittedBy,
			Action:      models.ActivityActionCreated,
			EntityType:  models.ActivityEntitySubmission,
			EntityCode:  code,
			Description: fmt.Sprintf("submitted candidate %s to job %s", req.CandidateCode, req.JobCode),
			After:       string(models.SubmissionPending),
		})
	})
	if err != nil {
		return nil, retry, err
	}
	return submission, false, nil
}

// Transition moves a submission to req.TargetState. Validation completes
// before the first write; any later failure rolls the whole unit back.
func (s *SubmissionService) Transition(ctx context.Context, req dto.TransitionRequest) (*TransitionResult, error) {
	req.SubmissionCode = strings.TrimSpace(req.SubmissionCode)
	req.Actor = strings.TrimSpace(req.Actor)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	target, ok := models.ParseSubmissionStatus(req.TargetState)
	if !ok {
		return nil, appErrors.WithDetail(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown target state %q", req.TargetState)), "target_state", req.TargetState)
	}
	input, err := parseTransitionPayload(req.Payload)
	if err != nil {
		return nil, err
	}

	var (
		result *TransitionResult
		from   models.SubmissionStatus
		rule   transitionRule
	)
	err = s.inTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		submission, err := s.lockSubmission(ctx, tx, req.SubmissionCode)
		if err != nil {
			return err
		}
		from = submission.InternalStatus
		rule, err = lookupTransition(from, target)
		if err != nil {
			return err
		}
		if field := input.missing(rule, submission); field != "" {
			return appErrors.MissingField(field)
		}

		applyTransition(submission, target, input, req.Actor, s.now())
		result = &TransitionResult{Submission: submission}

		if target == models.SubmissionPlaced {
			capacity, err := s.capacity.DecrementOnPlacement(ctx, tx, submission.JobCode)
			if err != nil {
				return err
			}
			result.Capacity = &capacity
			submission.ConsumedOpening = !capacity.Exhausted
		}

		if err := tx.UpdateSubmission(ctx, submission); err != nil {
			return s.classifyWriteError(err, submission)
		}

		action := models.ActivityActionTransitioned
		description := fmt.Sprintf("%s moved from %s to %s", submission.Code, from, target)
		if from == target {
			action = models.ActivityActionRenegotiated
			description = fmt.Sprintf("%s offer renegotiated", submission.Code)
		}
		if err := s.activity.Record(ctx, tx, ActivityEntry{
			Actor:       req.Actor,
			Action:      action,
			EntityType:  models.ActivityEntitySubmission,
			EntityCode:  submission.Code,
			Description: description,
			Before:      string(from),
			After:       string(target),
		}); err != nil {
			return err
		}
		if result.Capacity != nil && result.Capacity.Exhausted {
			return s.activity.Record(ctx, tx, ActivityEntry{
				Actor:       req.Actor,
				Action:      models.ActivityActionCapacityOvercommit,
				EntityType:  models.ActivityEntityJob,
				EntityCode:  submission.JobCode,
				Description: fmt.Sprintf("%s placed with no openings remaining", submission.Code),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	submission := result.Submission
	s.metrics.RecordTransition(string(from), string(target))
	logger.WithContext(ctx, s.logger).Info("submission transitioned",
		zap.String("submission_code", submission.Code),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.Int64("version", submission.Version),
		zap.String("actor", req.Actor),
	)
	if target == models.SubmissionPlaced {
		s.invalidateReports(ctx)
	}
	if rule.notify {
		s.notify(ctx, models.EventTypeFor(target), submission, req.Actor)
	}
	return result, nil
}

// UpdateClientStatus sets the client-facing status, refusing regressions.
// Repeating the current value is a no-op.
func (s *SubmissionService) UpdateClientStatus(ctx context.Context, code string, req dto.ClientStatusRequest) (*models.Submission, error) {
	req.Actor = strings.TrimSpace(req.Actor)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	target, ok := models.ParseClientStatus(req.ClientStatus)
	if !ok {
		return nil, appErrors.WithDetail(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown client status %q", req.ClientStatus)), "client_status", req.ClientStatus)
	}

	var (
		updated *models.Submission
		before  models.ClientStatus
	)
	err := s.inTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		submission, err := s.lockSubmission(ctx, tx, strings.TrimSpace(code))
		if err != nil {
			return err
		}
		updated = submission
		before = submission.ClientStatus
		if before == target {
			return nil
		}
		if target.Rank() < before.Rank() {
			return appErrors.InvalidTransition(string(before), string(target))
		}
		submission.ClientStatus = target
		touch(submission, req.Actor, s.now())
		if err := tx.UpdateSubmission(ctx, submission); err != nil {
			return s.classifyWriteError(err, submission)
		}
		return s.activity.Record(ctx, tx, ActivityEntry{
			Actor:       req.Actor,
			Action:      models.ActivityActionClientStatus,
			EntityType:  models.ActivityEntitySubmission,
			EntityCode:  submission.Code,
			Description: fmt.Sprintf("%s client status changed from %s to %s", submission.Code, before, target),
			Before:      string(before),
			After:       string(target),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReversePlacement undoes a placement recorded in error: the submission
// returns to Offered and the job regains its opening.
func (s *SubmissionService) ReversePlacement(ctx context.Context, code string, req dto.ReversePlacementRequest) (*TransitionResult, error) {
	req.Actor = strings.TrimSpace(req.Actor)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		if req.Reason == "" && req.Actor != "" {
			return nil, appErrors.MissingField(FieldReason)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	var result *TransitionResult
	err := s.inTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		submission, err := s.lockSubmission(ctx, tx, strings.TrimSpace(code))
		if err != nil {
			return err
		}
		if submission.InternalStatus != models.SubmissionPlaced {
			return appErrors.InvalidTransition(string(submission.InternalStatus), string(models.SubmissionOffered))
		}

		consumed := submission.ConsumedOpening
		submission.InternalStatus = models.SubmissionOffered
		submission.PlacedAt = nil
		submission.ConsumedOpening = false
		submission.StartDate = nil
		submission.IsActive = true
		submission.ArchivedAt = nil
		touch(submission, req.Actor, s.now())
		if err := tx.UpdateSubmission(ctx, submission); err != nil {
			return s.classifyWriteError(err, submission)
		}

		release := s.capacity.Snapshot
		if consumed {
			release = s.capacity.Reverse
		}
		capacity, err := release(ctx, tx, submission.JobCode)
		if err != nil {
			return err
		}
		result = &TransitionResult{Submission: submission, Capacity: &capacity}

		return s.activity.Record(ctx, tx, ActivityEntry{
			Actor:       req.Actor,
			Action:      models.ActivityActionPlacementReversed,
			EntityType:  models.ActivityEntitySubmission,
			EntityCode:  submission.Code,
			Description: fmt.Sprintf("%s placement reversed: %s", submission.Code, req.Reason),
			Before:      string(models.SubmissionPlaced),
			After:       string(models.SubmissionOffered),
		})
	})
	if err != nil {
		return nil, err
	}

	submission := result.Submission
	s.metrics.RecordPlacementReversal()
	logger.WithContext(ctx, s.logger).Warn("placement reversed",
		zap.String("submission_code", submission.Code),
		zap.String("job_code", submission.JobCode),
		zap.Int("openings_remaining", result.Capacity.OpeningsRemaining),
		zap.String("actor", req.Actor),
		zap.String("reason", req.Reason),
	)
	s.invalidateReports(ctx)
	s.notify(ctx, models.EventPlacementReversed, submission, req.Actor)
	return result, nil
}

// Get returns a submission by code.
func (s *SubmissionService) Get(ctx context.Context, code string) (*models.Submission, error) {
	code = strings.TrimSpace(code)
	submission, err := s.submissions.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("submission", "submission_code", code)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

// ListByJob lists a job's submissions, newest first.
func (s *SubmissionService) ListByJob(ctx context.Context, jobCode string, query dto.SubmissionQuery) ([]models.Submission, error) {
	capacity, err := s.Capacity(ctx, jobCode)
	if err != nil {
		return nil, err
	}
	submissions, err := s.submissions.List(ctx, models.SubmissionFilter{
		JobCode:    capacity.JobCode,
		Status:     query.Status,
		ActiveOnly: query.ActiveOnly,
		Limit:      query.Limit,
		Offset:     query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	if submissions == nil {
		submissions = []models.Submission{}
	}
	return submissions, nil
}

// Capacity reports a job's current openings without locking it.
func (s *SubmissionService) Capacity(ctx context.Context, jobCode string) (*models.CapacityResult, error) {
	jobCode = strings.TrimSpace(jobCode)
	job, err := s.jobs.GetByCode(ctx, jobCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("job", "job_code", jobCode)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job")
	}
	return &models.CapacityResult{
		JobCode:           job.Code,
		OpeningsRemaining: job.OpeningsRemaining,
		Status:            job.Status,
		Exhausted:         job.OpeningsRemaining <= 0,
	}, nil
}

// Timeline returns the submission's activity history, oldest first.
func (s *SubmissionService) Timeline(ctx context.Context, code string) ([]models.ActivityRecord, error) {
	submission, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.activity.Timeline(ctx, models.ActivityEntitySubmission, submission.Code)
}

// inTx runs fn in one transaction bounded by the configured timeout.
func (s *SubmissionService) inTx(ctx context.Context, fn func(context.Context, repository.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return appErrors.Storage(err, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return appErrors.Storage(err, "failed to commit transaction")
	}
	committed = true
	return nil
}

func (s *SubmissionService) lockSubmission(ctx context.Context, tx repository.Tx, code string) (*models.Submission, error) {
	submission, err := tx.LockSubmission(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("submission", "submission_code", code)
		}
		return nil, appErrors.Storage(err, "failed to lock submission")
	}
	return submission, nil
}

func (s *SubmissionService) classifyWriteError(err error, submission *models.Submission) error {
	if constraint, ok := repository.UniqueViolation(err); ok && constraint == repository.ConstraintActivePair {
		return duplicateSubmission(submission.CandidateCode, submission.JobCode)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Storage(err, "submission changed concurrently")
	}
	return appErrors.Storage(err, "failed to update submission")
}

func (s *SubmissionService) notify(ctx context.Context, eventType string, submission *models.Submission, actor string) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(ctx, models.SubmissionEvent{
		Type:           eventType,
		SubmissionCode: submission.Code,
		JobCode:        submission.JobCode,
		CandidateCode:  submission.CandidateCode,
		Actor:          actor,
		OccurredAt:     s.now(),
	})
}

func (s *SubmissionService) invalidateReports(ctx context.Context) {
	if s.reportCache == nil {
		return
	}
	if err := s.reportCache.Invalidate(ctx, ReportCachePattern); err != nil {
		logger.WithContext(ctx, s.logger).Warn("report cache invalidation failed", zap.Error(err))
	}
}

func notFound(entity, key, code string) error {
	return appErrors.WithDetail(appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", entity, code)), key, code)
}

func duplicateSubmission(candidateCode, jobCode string) error {
	e := appErrors.Clone(appErrors.ErrDuplicateSubmission, fmt.Sprintf("candidate %s already has an active submission for job %s", candidateCode, jobCode))
	e.Details = map[string]string{"candidate_code": candidateCode, "job_code": jobCode}
	return e
}
