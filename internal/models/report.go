package models

import "time"

// RecruiterPlacementRow is the raw aggregate per recruiter.
type RecruiterPlacementRow struct {
	Recruiter   string `db:"recruiter"`
	Submissions int    `db:"submissions"`
	Placements  int    `db:"placements"`
}

// RecruiterPlacement is the placement rate reported for one recruiter.
type RecruiterPlacement struct {
	Recruiter     string  `json:"recruiter"`
	Submissions   int     `json:"submissions"`
	Placements    int     `json:"placements"`
	PlacementRate float64 `json:"placementRate"`
}

// TimeToFillRow is the raw per-job fill timing.
type TimeToFillRow struct {
	JobCode       string     `db:"job_code"`
	ClientCode    string     `db:"client_code"`
	OpenedAt      time.Time  `db:"opened_at"`
	LastPlacedAt  *time.Time `db:"last_placed_at"`
	Placements    int        `db:"placements"`
	OpeningsTotal int        `db:"openings_total"`
}

// TimeToFill reports how long a job took to reach its last placement.
type TimeToFill struct {
	JobCode       string     `json:"jobCode"`
	ClientCode    string     `json:"clientCode"`
	OpenedAt      time.Time  `json:"openedAt"`
	LastPlacedAt  *time.Time `json:"lastPlacedAt,omitempty"`
	Placements    int        `json:"placements"`
	OpeningsTotal int        `json:"openingsTotal"`
	DaysToFill    *float64   `json:"daysToFill,omitempty"`
}

// ReportFilter narrows report queries.
type ReportFilter struct {
	ClientCode string
	From       *time.Time
	To         *time.Time
}
