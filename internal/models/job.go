package models

import "time"

// JobStatus is the staffing state of a job opening.
type JobStatus string

const (
	JobDraft  JobStatus = "draft"
	JobOpen   JobStatus = "open"
	JobFilled JobStatus = "filled"
	JobClosed JobStatus = "closed"
)

// Job holds the capacity that placements consume.
type Job struct {
	Code              string     `db:"code" json:"jobCode"`
	ClientCode        string     `db:"client_code" json:"clientCode"`
	Title             string     `db:"title" json:"title"`
	Status            JobStatus  `db:"status" json:"status"`
	OpeningsTotal     int        `db:"openings_total" json:"openingsTotal"`
	OpeningsRemaining int        `db:"openings_remaining" json:"openingsRemaining"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt         *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

// Candidate is the minimal candidate projection the engine needs.
type Candidate struct {
	Code      string     `db:"code" json:"candidateCode"`
	FullName  string     `db:"full_name" json:"fullName"`
	Email     *string    `db:"email" json:"email,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

// CapacityResult reports a job's capacity after a tracker write.
type CapacityResult struct {
	JobCode           string    `json:"jobCode"`
	OpeningsRemaining int       `json:"openingsRemaining"`
	Status            JobStatus `json:"status"`
	// Exhausted marks a placement recorded against a job with no openings left.
	Exhausted bool `json:"exhausted"`
}
