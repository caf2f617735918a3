package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/recruit-pipeline-api/internal/dto"
	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	appErrors "github.com/noah-isme/recruit-pipeline-api/pkg/errors"
)

type engineFixture struct {
	store      *memStore
	svc        *SubmissionService
	dispatcher *recordingDispatcher
	cache      *recordingInvalidator
	metrics    *MetricsService
	logs       *observer.ObservedLogs
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)
	store := newMemStore()
	store.addCandidate("CAN-001")
	store.addCandidate("CAN-002")
	metrics := NewMetricsService()
	dispatcher := &recordingDispatcher{}
	cache := &recordingInvalidator{}

	svc := NewSubmissionService(
		store,
		memSubmissions{store: store},
		memJobs{store: store},
		NewCodeGenerator("SUB", 6),
		NewCapacityTracker(metrics, log),
		NewActivityRecorder(memActivities{store: store}, metrics, log),
		validator.New(),
		log,
		SubmissionServiceConfig{CodeRetries: 3, TxTimeout: time.Second},
		WithSubmissionDispatcher(dispatcher),
		WithSubmissionMetrics(metrics),
		WithReportCache(cache),
	)
	return &engineFixture{store: store, svc: svc, dispatcher: dispatcher, cache: cache, metrics: metrics, logs: logs}
}

// seed stores a submission already sitting in status.
func (f *engineFixture) seed(code string, status models.SubmissionStatus) {
	created := time.Date(2024, 11, 1, 8, 0, 0, 0, time.UTC)
	sub := models.Submission{
		Code:           code,
		CandidateCode:  "CAN-001",
		JobCode:        "JOB-010",
		InternalStatus: status,
		ClientStatus:   models.ClientSent,
		IsActive:       !status.Terminal(),
		Version:        1,
		CreatedAt:      created,
		CreatedBy:      "rec-1",
		UpdatedAt:      created,
		UpdatedBy:      "rec-1",
	}
	if status == models.SubmissionPending {
		sub.ClientStatus = models.ClientNotSent
	}
	if status == models.SubmissionOffered || status == models.SubmissionPlaced {
		salary := 50000.0
		start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		sub.OfferSalary = &salary
		sub.OfferStartDate = &start
	}
	if status == models.SubmissionPlaced {
		sub.PlacedAt = &created
		sub.StartDate = sub.OfferStartDate
		sub.ConsumedOpening = true
	}
	if status.Terminal() {
		sub.ArchivedAt = &created
	}
	f.store.putSubmission(sub)
}

func (f *engineFixture) transition(code string, target models.SubmissionStatus, payload dto.TransitionPayload) (*TransitionResult, error) {
	return f.svc.Transition(context.Background(), dto.TransitionRequest{
		SubmissionCode: code,
		TargetState:    string(target),
		Actor:          "rec-1",
		Payload:        payload,
	})
}

func createRequest(candidate, job string) dto.CreateSubmissionRequest {
	return dto.CreateSubmissionRequest{CandidateCode: candidate, JobCode: job, SubmittedBy: "rec-1", Notes: "referred by client"}
}

func offerPayload() dto.TransitionPayload {
	salary := 50000.0
	return dto.TransitionPayload{OfferDetails: &dto.OfferDetails{Salary: &salary, StartDate: "2025-01-01"}}
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 2, models.JobOpen)

	created, err := f.svc.Create(context.Background(), createRequest(" CAN-001 ", "JOB-010"))
	require.NoError(t, err)
	assert.Equal(t, "SUB-000001", created.Code)

	fetched, err := f.svc.Get(context.Background(), created.Code)
	require.NoError(t, err)
	assert.Equal(t, "CAN-001", fetched.CandidateCode)
	assert.Equal(t, "JOB-010", fetched.JobCode)
	assert.Equal(t, "rec-1", fetched.CreatedBy)
	assert.Equal(t, "referred by client", fetched.Notes)
	assert.Equal(t, models.SubmissionPending, fetched.InternalStatus)
	assert.Equal(t, models.ClientNotSent, fetched.ClientStatus)
	assert.True(t, fetched.IsActive)
	assert.Equal(t, int64(1), fetched.Version)

	records := f.store.activityLog()
	require.Len(t, records, 1)
	assert.Equal(t, models.ActivityActionCreated, records[0].Action)
	assert.Equal(t, models.ActivityModuleSubmissions, records[0].Module)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.created))
}

func TestCreateAllocatesIncreasingCodes(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 2, models.JobOpen)
	f.store.addJob("JOB-011", 2, models.JobOpen)
	f.seed("SUB-000041", models.SubmissionRejected)

	first, err := f.svc.Create(context.Background(), createRequest("CAN-001", "JOB-011"))
	require.NoError(t, err)
	second, err := f.svc.Create(context.Background(), createRequest("CAN-002", "JOB-011"))
	require.NoError(t, err)

	assert.Equal(t, "SUB-000042", first.Code)
	assert.Equal(t, "SUB-000043", second.Code)
}

func TestCreateRejectsUnknownReferences(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 2, models.JobOpen)

	_, err := f.svc.Create(context.Background(), createRequest("CAN-404", "JOB-010"))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, "CAN-404", appErrors.FromError(err).Details["candidate_code"])

	_, err = f.svc.Create(context.Background(), createRequest("CAN-001", "JOB-404"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Create(context.Background(), dto.CreateSubmissionRequest{CandidateCode: "CAN-001", JobCode: "JOB-010"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Empty(t, f.store.activityLog())
}

func TestCreateDuplicateWhileActive(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 2, models.JobOpen)

	first, err := f.svc.Create(context.Background(), createRequest("CAN-001", "JOB-010"))
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), createRequest("CAN-001", "JOB-010"))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateSubmission)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.duplicates))

	_, err = f.transition(first.Code, models.SubmissionWithdrawn, dto.TransitionPayload{Reason: "candidate accepted elsewhere"})
	require.NoError(t, err)

	again, err := f.svc.Create(context.Background(), createRequest("CAN-001", "JOB-010"))
	require.NoError(t, err)
	assert.Equal(t, "SUB-000002", again.Code)
}

func TestCreateConcurrentSamePairExactlyOneWins(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 2, models.JobOpen)

	const attempts = 16
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		codes      []string
		duplicates int
		others     []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			sub, err := f.svc.Create(context.Background(), createRequest("CAN-001", "JOB-010"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				codes = append(codes, sub.Code)
			case errors.Is(err, appErrors.ErrDuplicateSubmission):
				duplicates++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Len(t, codes, 1)
	assert.Equal(t, attempts-1, duplicates)
}

func TestCreateRetriesCodeCollision(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 2, models.JobOpen)
	f.store.codeCollisions = 2

	sub, err := f.svc.Create(context.Background(), createRequest("CAN-001", "JOB-010"))
	require.NoError(t, err)
	assert.Equal(t, "SUB-000001", sub.Code)
	assert.Equal(t, 3, f.store.begins)
	assert.Equal(t, 1, f.store.commits)
}

func TestCreateGivesUpAfterBoundedRetries(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 2, models.JobOpen)
	f.store.codeCollisions = 5

	_, err := f.svc.Create(context.Background(), createRequest("CAN-001", "JOB-010"))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrStorageFailure)
	assert.Equal(t, 3, f.store.begins)
	assert.Equal(t, 0, f.store.commits)
	assert.Empty(t, f.store.activityLog())

	appErr := appErrors.FromError(err)
	assert.Contains(t, appErr.Message, "check for an existing submission before retrying")
	assert.Equal(t, map[string]string{"candidate_code": "CAN-001", "job_code": "JOB-010"}, appErr.Details)
}

func TestCreateCommitFailureAsksCallerToRecheck(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 2, models.JobOpen)
	f.store.failCommit = errors.New("connection reset by peer")

	_, err := f.svc.Create(context.Background(), createRequest("CAN-001", "JOB-010"))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrStorageFailure)
	assert.Contains(t, appErrors.FromError(err).Message, "may not have been created")
	assert.Equal(t, 1, f.store.begins)
	assert.Equal(t, 0, f.store.commits)

	f.store.failCommit = nil
	_, err = f.svc.Create(context.Background(), createRequest("CAN-404", "JOB-010"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.NotContains(t, appErrors.FromError(err).Message, "may not have been created")
}

func runPipeline(t *testing.T, f *engineFixture) (*models.Submission, *TransitionResult) {
	t.Helper()
	sub, err := f.svc.Create(context.Background(), createRequest("CAN-001", "JOB-010"))
	require.NoError(t, err)

	_, err = f.transition(sub.Code, models.SubmissionSubmitted, dto.TransitionPayload{})
	require.NoError(t, err)
	_, err = f.transition(sub.Code, models.SubmissionInterviewing, dto.TransitionPayload{InterviewDate: "2024-12-02"})
	require.NoError(t, err)
	_, err = f.transition(sub.Code, models.SubmissionOffered, offerPayload())
	require.NoError(t, err)
	placed, err := f.transition(sub.Code, models.SubmissionPlaced, dto.TransitionPayload{StartDate: "2025-01-01"})
	require.NoError(t, err)
	return sub, placed
}

func TestPlacementPipelineWithSpareOpening(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 2, models.JobOpen)

	sub, placed := runPipeline(t, f)

	stored := f.store.submission(sub.Code)
	assert.Equal(t, models.SubmissionPlaced, stored.InternalStatus)
	assert.Equal(t, models.ClientSent, stored.ClientStatus)
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.ArchivedAt)
	assert.Equal(t, int64(5), stored.Version)
	require.NotNil(t, stored.OfferSalary)
	assert.Equal(t, 50000.0, *stored.OfferSalary)
	assert.Equal(t, []string{"2024-12-02"}, []string(stored.InterviewDates))

	job := f.store.job("JOB-010")
	assert.Equal(t, 1, job.OpeningsRemaining)
	assert.Equal(t, models.JobOpen, job.Status)
	require.NotNil(t, placed.Capacity)
	assert.False(t, placed.Capacity.Exhausted)

	var afters []string
	for _, record := range f.store.activityLog() {
		if record.Action == models.ActivityActionTransitioned {
			afters = append(afters, *record.AfterState)
		}
	}
	assert.Equal(t, []string{"submitted", "interviewing", "offered", "placed"}, afters)

	assert.Equal(t, []string{"submission.interviewing", "submission.offered", "submission.placed"}, f.dispatcher.types())
	assert.Equal(t, []string{ReportCachePattern}, f.cache.patterns)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.transitions.WithLabelValues("offered", "placed")))
}

func TestPlacementFillsLastOpening(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)

	_, placed := runPipeline(t, f)

	job := f.store.job("JOB-010")
	assert.Equal(t, 0, job.OpeningsRemaining)
	assert.Equal(t, models.JobFilled, job.Status)
	assert.Equal(t, models.JobFilled, placed.Capacity.Status)
}

func TestPlacementOnExhaustedJobStillSucceeds(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 0, models.JobFilled)
	f.seed("SUB-000001", models.SubmissionOffered)

	res, err := f.transition("SUB-000001", models.SubmissionPlaced, dto.TransitionPayload{StartDate: "2025-01-01"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPlaced, res.Submission.InternalStatus)
	require.NotNil(t, res.Capacity)
	assert.True(t, res.Capacity.Exhausted)

	job := f.store.job("JOB-010")
	assert.Equal(t, 0, job.OpeningsRemaining)
	assert.Equal(t, models.JobFilled, job.Status)

	records := f.store.activityLog()
	require.Len(t, records, 2)
	assert.Equal(t, models.ActivityActionCapacityOvercommit, records[1].Action)
	assert.Equal(t, models.ActivityEntityJob, records[1].EntityType)
	assert.Equal(t, "JOB-010", records[1].EntityCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.capacityExhausted))
	assert.Equal(t, 1, f.logs.FilterMessage("placement recorded against job with no openings").Len())
}

func TestPendingToPlacedIsRejectedWithoutSideEffects(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)
	f.seed("SUB-000001", models.SubmissionPending)

	_, err := f.transition("SUB-000001", models.SubmissionPlaced, dto.TransitionPayload{StartDate: "2025-01-01"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "from pending to placed")

	assert.Equal(t, models.SubmissionPending, f.store.submission("SUB-000001").InternalStatus)
	assert.Equal(t, 1, f.store.job("JOB-010").OpeningsRemaining)
	assert.Equal(t, 0, f.store.commits)
	assert.Empty(t, f.dispatcher.types())
}

func TestMissingRequiredFieldsLeaveNoTrace(t *testing.T) {
	cases := []struct {
		name    string
		from    models.SubmissionStatus
		target  models.SubmissionStatus
		payload dto.TransitionPayload
		field   string
	}{
		{"withdraw without reason", models.SubmissionPending, models.SubmissionWithdrawn, dto.TransitionPayload{Reason: "   "}, FieldReason},
		{"reject without reason", models.SubmissionSubmitted, models.SubmissionRejected, dto.TransitionPayload{}, FieldReason},
		{"offer without details", models.SubmissionInterviewing, models.SubmissionOffered, dto.TransitionPayload{}, FieldOfferSalary},
		{"offer without start date", models.SubmissionInterviewing, models.SubmissionOffered, dto.TransitionPayload{OfferDetails: &dto.OfferDetails{Salary: new(float64)}}, FieldOfferStartDate},
		{"decline without reason", models.SubmissionOffered, models.SubmissionRejected, dto.TransitionPayload{}, FieldReason},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newEngineFixture(t)
			f.store.addJob("JOB-010", 1, models.JobOpen)
			f.seed("SUB-000001", tc.from)

			_, err := f.transition("SUB-000001", tc.target, tc.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrMissingRequiredField)
			assert.Equal(t, tc.field, appErrors.FromError(err).Details["field"])

			stored := f.store.submission("SUB-000001")
			assert.Equal(t, tc.from, stored.InternalStatus)
			assert.Equal(t, int64(1), stored.Version)
			assert.Empty(t, f.store.activityLog())
			assert.Equal(t, 0, f.store.commits)
		})
	}
}

func TestPlacedRequiresSomeStartDate(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)
	f.seed("SUB-000001", models.SubmissionOffered)
	sub := f.store.submission("SUB-000001")
	sub.OfferStartDate = nil
	f.store.putSubmission(sub)

	_, err := f.transition("SUB-000001", models.SubmissionPlaced, dto.TransitionPayload{})
	require.Error(t, err)
	assert.Equal(t, FieldStartDate, appErrors.FromError(err).Details["field"])
	assert.Equal(t, 1, f.store.job("JOB-010").OpeningsRemaining)
}

func TestPlacedFallsBackToOfferStartDate(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)
	f.seed("SUB-000001", models.SubmissionOffered)

	res, err := f.transition("SUB-000001", models.SubmissionPlaced, dto.TransitionPayload{})
	require.NoError(t, err)
	require.NotNil(t, res.Submission.StartDate)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *res.Submission.StartDate)
}

func TestTransitionRejectsBadInput(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)
	f.seed("SUB-000001", models.SubmissionSubmitted)

	_, err := f.transition("SUB-000001", "hired", dto.TransitionPayload{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.transition("SUB-000001", models.SubmissionInterviewing, dto.TransitionPayload{InterviewDate: "next tuesday"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.transition("SUB-999999", models.SubmissionInterviewing, dto.TransitionPayload{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	res, err := f.transition("SUB-000001", "INTERVIEWING", dto.TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionInterviewing, res.Submission.InternalStatus)
}

func TestOfferRenegotiationOverwritesTerms(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)
	f.seed("SUB-000001", models.SubmissionOffered)

	salary := 55000.0
	res, err := f.transition("SUB-000001", models.SubmissionOffered, dto.TransitionPayload{
		OfferDetails: &dto.OfferDetails{Salary: &salary, StartDate: "2025-02-01", Notes: "signing bonus"},
	})
	require.NoError(t, err)
	assert.Equal(t, 55000.0, *res.Submission.OfferSalary)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), *res.Submission.OfferStartDate)
	assert.Equal(t, "signing bonus", *res.Submission.OfferNotes)

	records := f.store.activityLog()
	require.Len(t, records, 1)
	assert.Equal(t, models.ActivityActionRenegotiated, records[0].Action)
	assert.Equal(t, 1, f.store.job("JOB-010").OpeningsRemaining)
}

func TestActivityFailureDoesNotAbortTransition(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)
	f.seed("SUB-000001", models.SubmissionOffered)
	f.store.failActivity = errors.New("activity_records: disk full")

	res, err := f.transition("SUB-000001", models.SubmissionPlaced, dto.TransitionPayload{StartDate: "2025-01-01"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPlaced, res.Submission.InternalStatus)

	assert.Equal(t, models.SubmissionPlaced, f.store.submission("SUB-000001").InternalStatus)
	assert.Equal(t, models.JobFilled, f.store.job("JOB-010").Status)
	assert.Empty(t, f.store.activityLog())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.activityFailures))

	warnings := f.logs.FilterMessage("activity record not written").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zap.WarnLevel, warnings[0].Level)
}

func TestStorageFailureRollsBackCapacity(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)
	f.seed("SUB-000001", models.SubmissionOffered)
	f.store.failUpdate = fmt.Errorf("update submission: %w", errors.New("connection reset"))

	_, err := f.transition("SUB-000001", models.SubmissionPlaced, dto.TransitionPayload{StartDate: "2025-01-01"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrStorageFailure)

	assert.Equal(t, models.SubmissionOffered, f.store.submission("SUB-000001").InternalStatus)
	job := f.store.job("JOB-010")
	assert.Equal(t, 1, job.OpeningsRemaining)
	assert.Equal(t, models.JobOpen, job.Status)
	assert.Empty(t, f.dispatcher.types())
	assert.Empty(t, f.cache.patterns)
}

func TestConcurrentPlacementsNeverOvercommitCounter(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 2, models.JobOpen)
	for i := 1; i <= 3; i++ {
		code := fmt.Sprintf("SUB-%06d", i)
		f.seed(code, models.SubmissionOffered)
		sub := f.store.submission(code)
		sub.CandidateCode = fmt.Sprintf("CAN-%03d", i)
		f.store.putSubmission(sub)
	}

	var wg sync.WaitGroup
	results := make(chan *TransitionResult, 3)
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			res, err := f.transition(code, models.SubmissionPlaced, dto.TransitionPayload{StartDate: "2025-01-01"})
			if assert.NoError(t, err) {
				results <- res
			}
		}(fmt.Sprintf("SUB-%06d", i))
	}
	wg.Wait()
	close(results)

	exhausted := 0
	for res := range results {
		if res.Capacity.Exhausted {
			exhausted++
		}
	}
	assert.Equal(t, 1, exhausted)
	job := f.store.job("JOB-010")
	assert.Equal(t, 0, job.OpeningsRemaining)
	assert.Equal(t, models.JobFilled, job.Status)
}

func TestClientStatusNeverRegresses(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)
	f.seed("SUB-000001", models.SubmissionSubmitted)

	sub, err := f.svc.UpdateClientStatus(context.Background(), "SUB-000001", dto.ClientStatusRequest{ClientStatus: "IN_REVIEW", Actor: "rec-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ClientInReview, sub.ClientStatus)
	assert.Equal(t, int64(2), sub.Version)

	_, err = f.svc.UpdateClientStatus(context.Background(), "SUB-000001", dto.ClientStatusRequest{ClientStatus: "sent", Actor: "rec-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	same, err := f.svc.UpdateClientStatus(context.Background(), "SUB-000001", dto.ClientStatusRequest{ClientStatus: "in_review", Actor: "rec-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), same.Version)

	_, err = f.svc.UpdateClientStatus(context.Background(), "SUB-000001", dto.ClientStatusRequest{ClientStatus: "archived", Actor: "rec-1"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	records := f.store.activityLog()
	require.Len(t, records, 1)
	assert.Equal(t, models.ActivityActionClientStatus, records[0].Action)
	assert.Equal(t, "sent", *records[0].BeforeState)
}

func TestReversePlacementRestoresOpening(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)
	_, _ = runPipeline(t, f)
	require.Equal(t, models.JobFilled, f.store.job("JOB-010").Status)
	f.cache.patterns = nil

	res, err := f.svc.ReversePlacement(context.Background(), "SUB-000001", dto.ReversePlacementRequest{Actor: "mgr-1", Reason: "placed against wrong job"})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionOffered, res.Submission.InternalStatus)
	assert.True(t, res.Submission.IsActive)
	assert.Nil(t, res.Submission.PlacedAt)
	assert.Nil(t, res.Submission.ArchivedAt)

	job := f.store.job("JOB-010")
	assert.Equal(t, 1, job.OpeningsRemaining)
	assert.Equal(t, models.JobOpen, job.Status)

	records := f.store.activityLog()
	last := records[len(records)-1]
	assert.Equal(t, models.ActivityActionPlacementReversed, last.Action)
	assert.Equal(t, "mgr-1", last.Actor)
	assert.Contains(t, last.Description, "placed against wrong job")

	types := f.dispatcher.types()
	assert.Equal(t, models.EventPlacementReversed, types[len(types)-1])
	assert.Equal(t, []string{ReportCachePattern}, f.cache.patterns)
}

func TestReversingOvercommittedPlacementKeepsCounter(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)
	f.seed("SUB-000001", models.SubmissionOffered)
	f.seed("SUB-000002", models.SubmissionOffered)
	second := f.store.submission("SUB-000002")
	second.CandidateCode = "CAN-002"
	f.store.putSubmission(second)

	first, err := f.transition("SUB-000001", models.SubmissionPlaced, dto.TransitionPayload{StartDate: "2025-01-01"})
	require.NoError(t, err)
	assert.False(t, first.Capacity.Exhausted)
	assert.True(t, f.store.submission("SUB-000001").ConsumedOpening)

	over, err := f.transition("SUB-000002", models.SubmissionPlaced, dto.TransitionPayload{StartDate: "2025-01-01"})
	require.NoError(t, err)
	assert.True(t, over.Capacity.Exhausted)
	assert.False(t, f.store.submission("SUB-000002").ConsumedOpening)

	res, err := f.svc.ReversePlacement(context.Background(), "SUB-000002", dto.ReversePlacementRequest{Actor: "mgr-1", Reason: "over-committed"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Capacity.OpeningsRemaining)
	job := f.store.job("JOB-010")
	assert.Equal(t, 0, job.OpeningsRemaining)
	assert.Equal(t, models.JobFilled, job.Status)

	res, err = f.svc.ReversePlacement(context.Background(), "SUB-000001", dto.ReversePlacementRequest{Actor: "mgr-1", Reason: "placed against wrong job"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Capacity.OpeningsRemaining)
	job = f.store.job("JOB-010")
	assert.Equal(t, job.OpeningsTotal, job.OpeningsRemaining)
	assert.Equal(t, models.JobOpen, job.Status)
	assert.False(t, f.store.submission("SUB-000001").ConsumedOpening)
}

func TestReversePlacementRefusesWhenPairIsActiveAgain(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 0, models.JobFilled)
	f.seed("SUB-000001", models.SubmissionPlaced)
	f.seed("SUB-000002", models.SubmissionPending)

	_, err := f.svc.ReversePlacement(context.Background(), "SUB-000001", dto.ReversePlacementRequest{Actor: "mgr-1", Reason: "typo"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateSubmission)

	assert.Equal(t, models.SubmissionPlaced, f.store.submission("SUB-000001").InternalStatus)
	assert.Equal(t, 0, f.store.job("JOB-010").OpeningsRemaining)
}

func TestReversePlacementOnlyFromPlaced(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 1, models.JobOpen)
	f.seed("SUB-000001", models.SubmissionOffered)

	_, err := f.svc.ReversePlacement(context.Background(), "SUB-000001", dto.ReversePlacementRequest{Actor: "mgr-1", Reason: "typo"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	_, err = f.svc.ReversePlacement(context.Background(), "SUB-000001", dto.ReversePlacementRequest{Actor: "mgr-1"})
	assert.ErrorIs(t, err, appErrors.ErrMissingRequiredField)
}

func TestReadPaths(t *testing.T) {
	f := newEngineFixture(t)
	f.store.addJob("JOB-010", 2, models.JobOpen)
	sub, _ := runPipeline(t, f)

	list, err := f.svc.ListByJob(context.Background(), "JOB-010", dto.SubmissionQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sub.Code, list[0].Code)

	_, err = f.svc.ListByJob(context.Background(), "JOB-404", dto.SubmissionQuery{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	timeline, err := f.svc.Timeline(context.Background(), sub.Code)
	require.NoError(t, err)
	assert.Len(t, timeline, 5)
	assert.Equal(t, models.ActivityActionCreated, timeline[0].Action)

	capacity, err := f.svc.Capacity(context.Background(), "JOB-010")
	require.NoError(t, err)
	assert.Equal(t, 1, capacity.OpeningsRemaining)

	_, err = f.svc.Get(context.Background(), "SUB-404040")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
