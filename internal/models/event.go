package models

import "time"

// SubmissionEvent is the fire-and-forget notification emitted after commit.
type SubmissionEvent struct {
	Type           string    `json:"type"`
	SubmissionCode string    `json:"submission_code"`
	JobCode        string    `json:"job_code"`
	CandidateCode  string    `json:"candidate_code"`
	Actor          string    `json:"actor"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// EventTypeFor names the event emitted on entering status.
func EventTypeFor(status SubmissionStatus) string {
	return "submission." + string(status)
}

// EventPlacementReversed is emitted when a placement is undone.
const EventPlacementReversed = "submission.placement_reversed"
