package dto

import "github.com/noah-isme/recruit-pipeline-api/internal/models"

// CreateSubmissionRequest pairs a candidate with a job.
type CreateSubmissionRequest struct {
	CandidateCode string `json:"candidate_code" validate:"required,max=32"`
	JobCode       string `json:"job_code" validate:"required,max=32"`
	SubmittedBy   string `json:"submitted_by" validate:"required,max=64"`
	Notes         string `json:"notes"`
}

// CreateSubmissionResponse is returned by submission.create.
type CreateSubmissionResponse struct {
	SubmissionCode string `json:"submission_code"`
}

// OfferDetails records the terms of an offer. Dates use YYYY-MM-DD.
type OfferDetails struct {
	Salary    *float64 `json:"salary"`
	StartDate string   `json:"start_date"`
	Notes     string   `json:"notes"`
}

// TransitionPayload carries the inputs a transition may require.
type TransitionPayload struct {
	Reason        string        `json:"reason"`
	OfferDetails  *OfferDetails `json:"offer_details"`
	StartDate     string        `json:"start_date"`
	InterviewDate string        `json:"interview_date"`
	Feedback      string        `json:"feedback"`
	Notes         string        `json:"notes"`
}

// TransitionRequest is the body of submission.transition.
type TransitionRequest struct {
	SubmissionCode string            `json:"submission_code" validate:"required"`
	TargetState    string            `json:"target_state" validate:"required"`
	Actor          string            `json:"actor" validate:"required,max=64"`
	Payload        TransitionPayload `json:"payload"`
}

// TransitionResponse is returned by submission.transition.
type TransitionResponse struct {
	SubmissionCode    string                  `json:"submission_code"`
	InternalStatus    models.SubmissionStatus `json:"internal_status"`
	Version           int64                   `json:"version"`
	CapacityExhausted bool                    `json:"capacity_exhausted,omitempty"`
	Capacity          *models.CapacityResult  `json:"capacity,omitempty"`
}

// ClientStatusRequest sets the client-facing status.
type ClientStatusRequest struct {
	ClientStatus string `json:"client_status" validate:"required"`
	Actor        string `json:"actor" validate:"required,max=64"`
}

// ReversePlacementRequest undoes a placement recorded in error.
type ReversePlacementRequest struct {
	Actor  string `json:"actor" validate:"required,max=64"`
	Reason string `json:"reason" validate:"required"`
}

// SubmissionQuery mirrors supported listing filters.
type SubmissionQuery struct {
	Status     []models.SubmissionStatus
	ActiveOnly bool
	Limit      int
	Offset     int
}

// SubmissionDetail pairs a submission with the states it may move to next.
type SubmissionDetail struct {
	Submission         *models.Submission        `json:"submission"`
	AllowedTransitions []models.SubmissionStatus `json:"allowed_transitions"`
}
