package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// SubmissionStatus is the internal lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionPending      SubmissionStatus = "pending"
	SubmissionSubmitted    SubmissionStatus = "submitted"
	SubmissionInterviewing SubmissionStatus = "interviewing"
	SubmissionOffered      SubmissionStatus = "offered"
	SubmissionPlaced       SubmissionStatus = "placed"
	SubmissionRejected     SubmissionStatus = "rejected"
	SubmissionWithdrawn    SubmissionStatus = "withdrawn"
)

// SubmissionStatuses lists every lifecycle state in pipeline order.
var SubmissionStatuses = []SubmissionStatus{
	SubmissionPending,
	SubmissionSubmitted,
	SubmissionInterviewing,
	SubmissionOffered,
	SubmissionPlaced,
	SubmissionRejected,
	SubmissionWithdrawn,
}

// ParseSubmissionStatus accepts any casing ("Placed", "PLACED", "placed").
func ParseSubmissionStatus(raw string) (SubmissionStatus, bool) {
	status := SubmissionStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range SubmissionStatuses {
		if status == known {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition may leave this state.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case SubmissionPlaced, SubmissionRejected, SubmissionWithdrawn:
		return true
	default:
		return false
	}
}

// ClientStatus is the coarse, client-facing progress marker.
type ClientStatus string

const (
	ClientNotSent  ClientStatus = "not_sent"
	ClientSent     ClientStatus = "sent"
	ClientInReview ClientStatus = "in_review"
)

// ParseClientStatus validates a client status value.
func ParseClientStatus(raw string) (ClientStatus, bool) {
	status := ClientStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case ClientNotSent, ClientSent, ClientInReview:
		return status, true
	default:
		return "", false
	}
}

// Rank orders client statuses so regressions can be detected.
func (s ClientStatus) Rank() int {
	switch s {
	case ClientSent:
		return 1
	case ClientInReview:
		return 2
	default:
		return 0
	}
}

// Submission pairs one candidate with one job and tracks its lifecycle.
type Submission struct {
	Code             string           `db:"submission_code" json:"submissionCode"`
	CandidateCode    string           `db:"candidate_code" json:"candidateCode"`
	JobCode          string           `db:"job_code" json:"jobCode"`
	InternalStatus   SubmissionStatus `db:"internal_status" json:"internalStatus"`
	ClientStatus     ClientStatus     `db:"client_status" json:"clientStatus"`
	Notes            string           `db:"submission_notes" json:"notes"`
	InterviewDates   pq.StringArray   `db:"interview_dates" json:"interviewDates"`
	ClientFeedback   *string          `db:"client_feedback" json:"clientFeedback,omitempty"`
	OfferSalary      *float64         `db:"offer_salary" json:"offerSalary,omitempty"`
	OfferStartDate   *time.Time       `db:"offer_start_date" json:"offerStartDate,omitempty"`
	OfferNotes       *string          `db:"offer_notes" json:"offerNotes,omitempty"`
	StartDate        *time.Time       `db:"start_date" json:"startDate,omitempty"`
	RejectionReason  *string          `db:"rejection_reason" json:"rejectionReason,omitempty"`
	WithdrawalReason *string          `db:"withdrawal_reason" json:"withdrawalReason,omitempty"`
	SubmittedAt      *time.Time       `db:"submitted_at" json:"submittedAt,omitempty"`
	InterviewingAt   *time.Time       `db:"interviewing_at" json:"interviewingAt,omitempty"`
	OfferedAt        *time.Time       `db:"offered_at" json:"offeredAt,omitempty"`
	PlacedAt         *time.Time       `db:"placed_at" json:"placedAt,omitempty"`
	ConsumedOpening  bool             `db:"consumed_opening" json:"consumedOpening"`
	RejectedAt       *time.Time       `db:"rejected_at" json:"rejectedAt,omitempty"`
	WithdrawnAt      *time.Time       `db:"withdrawn_at" json:"withdrawnAt,omitempty"`
	IsActive         bool             `db:"is_active" json:"isActive"`
	ArchivedAt       *time.Time       `db:"archived_at" json:"archivedAt,omitempty"`
	Version          int64            `db:"version" json:"version"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	CreatedBy        string           `db:"created_by" json:"createdBy"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
	UpdatedBy        string           `db:"updated_by" json:"updatedBy"`
}

// SubmissionFilter narrows listing queries.
type SubmissionFilter struct {
	JobCode       string
	CandidateCode string
	Status        []SubmissionStatus
	ActiveOnly    bool
	Limit         int
	Offset        int
}
