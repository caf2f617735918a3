package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/recruit-pipeline-api/internal/dto"
	"github.com/noah-isme/recruit-pipeline-api/internal/models"
	appErrors "github.com/noah-isme/recruit-pipeline-api/pkg/errors"
)

// Payload fields a transition may require. The names are reported verbatim
// in MISSING_REQUIRED_FIELD errors.
const (
	FieldReason         = "reason"
	FieldOfferSalary    = "offer_details.salary"
	FieldOfferStartDate = "offer_details.start_date"
	FieldStartDate      = "start_date"
)

type transitionRule struct {
	required []string
	notify   bool
}

// submissionTransitions is the complete lifecycle. Any pair missing here,
// and every pair leaving a terminal state, is rejected.
var submissionTransitions = map[models.SubmissionStatus]map[models.SubmissionStatus]transitionRule{
	models.SubmissionPending: {
		models.SubmissionSubmitted: {},
		models.SubmissionWithdrawn: {required: []string{FieldReason}, notify: true},
	},
	models.SubmissionSubmitted: {
		models.SubmissionInterviewing: {notify: true},
		models.SubmissionRejected:     {required: []string{FieldReason}, notify: true},
		models.SubmissionWithdrawn:    {required: []string{FieldReason}, notify: true},
	},
	models.SubmissionInterviewing: {
		models.SubmissionOffered:  {required: []string{FieldOfferSalary, FieldOfferStartDate}, notify: true},
		models.SubmissionRejected: {required: []string{FieldReason}, notify: true},
	},
	models.SubmissionOffered: {
		models.SubmissionPlaced:   {required: []string{FieldStartDate}, notify: true},
		models.SubmissionRejected: {required: []string{FieldReason}, notify: true},
		models.SubmissionOffered:  {required: []string{FieldOfferSalary, FieldOfferStartDate}, notify: true},
	},
}

func lookupTransition(current, target models.SubmissionStatus) (transitionRule, error) {
	if current.Terminal() {
		return transitionRule{}, appErrors.InvalidTransition(string(current), string(target))
	}
	rule, ok := submissionTransitions[current][target]
	if !ok {
		return transitionRule{}, appErrors.InvalidTransition(string(current), string(target))
	}
	return rule, nil
}

// AllowedTransitions lists the states reachable from current in pipeline order.
func AllowedTransitions(current models.SubmissionStatus) []models.SubmissionStatus {
	allowed := make([]models.SubmissionStatus, 0, 3)
	for _, status := range models.SubmissionStatuses {
		if _, ok := submissionTransitions[current][status]; ok {
			allowed = append(allowed, status)
		}
	}
	return allowed
}

// transitionInput is a parsed, trimmed TransitionPayload.
type transitionInput struct {
	reason         string
	offerSalary    *float64
	offerStartDate *time.Time
	offerNotes     string
	startDate      *time.Time
	interviewDate  string
	feedback       string
	notes          string
}

func parseTransitionPayload(payload dto.TransitionPayload) (transitionInput, error) {
	in := transitionInput{
		reason:   strings.TrimSpace(payload.Reason),
		feedback: strings.TrimSpace(payload.Feedback),
		notes:    strings.TrimSpace(payload.Notes),
	}
	if offer := payload.OfferDetails; offer != nil {
		if offer.Salary != nil && *offer.Salary < 0 {
			return in, appErrors.Clone(appErrors.ErrValidation, "offer_details.salary must not be negative")
		}
		in.offerSalary = offer.Salary
		in.offerNotes = strings.TrimSpace(offer.Notes)
		start, err := parsePayloadDate(FieldOfferStartDate, offer.StartDate)
		if err != nil {
			return in, err
		}
		in.offerStartDate = start
	}
	start, err := parsePayloadDate(FieldStartDate, payload.StartDate)
	if err != nil {
		return in, err
	}
	in.startDate = start

	if raw := strings.TrimSpace(payload.InterviewDate); raw != "" {
		at, err := parsePayloadDate("interview_date", raw)
		if err != nil {
			return in, err
		}
		in.interviewDate = at.Format(time.RFC3339)
		if len(raw) == len("2006-01-02") {
			in.interviewDate = at.Format("2006-01-02")
		}
	}
	return in, nil
}

// parsePayloadDate accepts YYYY-MM-DD or RFC3339; blank yields nil.
func parsePayloadDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, appErrors.WithDetail(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be YYYY-MM-DD or RFC3339", field)), "field", field)
	}
	t = t.UTC()
	return &t, nil
}

// missing returns the first required field rule needs that neither in nor
// the current submission supplies.
func (in transitionInput) missing(rule transitionRule, current *models.Submission) string {
	for _, field := range rule.required {
		switch field {
		case FieldReason:
			if in.reason == "" {
				return field
			}
		case FieldOfferSalary:
			if in.offerSalary == nil {
				return field
			}
		case FieldOfferStartDate:
			if in.offerStartDate == nil {
				return field
			}
		case FieldStartDate:
			if in.startDate == nil && current.OfferStartDate == nil {
				return field
			}
		}
	}
	return ""
}

// applyTransition mutates submission into target. It performs no I/O.
func applyTransition(submission *models.Submission, target models.SubmissionStatus, in transitionInput, actor string, now time.Time) {
	from := submission.InternalStatus

	if in.interviewDate != "" && (target == models.SubmissionInterviewing || from == models.SubmissionInterviewing) {
		submission.InterviewDates = append(submission.InterviewDates, in.interviewDate)
	}
	if in.feedback != "" && from == models.SubmissionInterviewing {
		submission.ClientFeedback = appendText(submission.ClientFeedback, in.feedback)
	}
	if in.notes != "" {
		if submission.Notes == "" {
			submission.Notes = in.notes
		} else {
			submission.Notes = submission.Notes + "\n" + in.notes
		}
	}

	switch target {
	case models.SubmissionSubmitted:
		submission.SubmittedAt = &now
		if submission.ClientStatus == "" || submission.ClientStatus == models.ClientNotSent {
			submission.ClientStatus = models.ClientSent
		}
	case models.SubmissionInterviewing:
		submission.InterviewingAt = &now
	case models.SubmissionOffered:
		submission.OfferedAt = &now
		submission.OfferSalary = in.offerSalary
		submission.OfferStartDate = in.offerStartDate
		submission.OfferNotes = optionalString(in.offerNotes)
	case models.SubmissionPlaced:
		submission.PlacedAt = &now
		if in.startDate != nil {
			submission.StartDate = in.startDate
		} else {
			start := *submission.OfferStartDate
			submission.StartDate = &start
		}
	case models.SubmissionRejected:
		submission.RejectedAt = &now
		submission.RejectionReason = optionalString(in.reason)
	case models.SubmissionWithdrawn:
		submission.WithdrawnAt = &now
		submission.WithdrawalReason = optionalString(in.reason)
	}

	submission.InternalStatus = target
	if target.Terminal() {
		submission.IsActive = false
		submission.ArchivedAt = &now
	}
	touch(submission, actor, now)
}

func touch(submission *models.Submission, actor string, now time.Time) {
	submission.Version++
	submission.UpdatedAt = now
	submission.UpdatedBy = actor
}

func appendText(existing *string, addition string) *string {
	if existing == nil || *existing == "" {
		return &addition
	}
	joined := *existing + "\n" + addition
	return &joined
}
