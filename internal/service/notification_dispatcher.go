package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	"github.com/noah-isme/recruit-pipeline-api/pkg/jobs"
)

// NotificationJobType tags queue jobs carrying a SubmissionEvent.
const NotificationJobType = "submission_event"

// NotificationSink delivers one event somewhere outside the process.
type NotificationSink interface {
	Name() string
	Publish(ctx context.Context, event models.SubmissionEvent) error
}

type notificationQueue interface {
	TryEnqueue(job jobs.Job) error
}

// NotificationDispatcher hands committed events to a worker queue without
// ever blocking the caller. Delivery is attempted at most once.
type NotificationDispatcher struct {
	queue   notificationQueue
	sinks   []NotificationSink
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
}

// NewNotificationDispatcher constructs the dispatcher. Attach a queue before dispatching.
func NewNotificationDispatcher(sinks []NotificationSink, metrics *MetricsService, logger *zap.Logger, enabled bool) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationDispatcher{sinks: sinks, metrics: metrics, logger: logger, enabled: enabled}
}

// Attach sets the queue whose workers call Handle.
func (d *NotificationDispatcher) Attach(queue notificationQueue) {
	d.queue = queue
}

// Dispatch enqueues event. Failures are logged and counted, never returned.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, event models.SubmissionEvent) {
	if d == nil || !d.enabled {
		return
	}
	if d.queue == nil {
		d.drop(event, errors.New("no queue attached"))
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: NotificationJobType, Payload: event}
	if err := d.queue.TryEnqueue(job); err != nil {
		d.drop(event, err)
	}
}

// Handle is the queue handler. Every sink is tried; their errors are combined.
func (d *NotificationDispatcher) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.SubmissionEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}

	var result *multierror.Error
	for _, sink := range d.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			d.metrics.RecordNotificationFailure(sink.Name())
			d.logger.Warn("notification delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("type", event.Type),
				zap.String("submission_code", event.SubmissionCode),
				zap.Error(err),
			)
			result = multierror.Append(result, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return result.ErrorOrNil()
}

func (d *NotificationDispatcher) drop(event models.SubmissionEvent, err error) {
	d.metrics.RecordNotificationDropped()
	d.logger.Warn("notification dropped",
		zap.String("type", event.Type),
		zap.String("submission_code", event.SubmissionCode),
		zap.Error(err),
	)
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a log sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Name identifies the sink.
func (s *LogSink) Name() string { return "log" }

// Publish logs the event at info level.
func (s *LogSink) Publish(_ context.Context, event models.SubmissionEvent) error {
	s.logger.Info("submission event",
		zap.String("type", event.Type),
		zap.String("submission_code", event.SubmissionCode),
		zap.String("job_code", event.JobCode),
		zap.String("candidate_code", event.CandidateCode),
		zap.String("actor", event.Actor),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}
