package models

import "time"

// Activity modules, actions and entity types written by the engine.
const (
	ActivityModuleSubmissions = "submissions"

	ActivityEntitySubmission = "submission"
	ActivityEntityJob        = "job"

	ActivityActionCreated            = "created"
	ActivityActionTransitioned       = "transitioned"
	ActivityActionRenegotiated       = "renegotiated"
	ActivityActionClientStatus       = "client_status_changed"
	ActivityActionPlacementReversed  = "placement_reversed"
	ActivityActionCapacityOvercommit = "capacity_overcommit"
)

// ActivityRecord is an immutable audit fact.
type ActivityRecord struct {
	ID          string    `db:"id" json:"id"`
	Actor       string    `db:"actor" json:"actor"`
	Module      string    `db:"module" json:"module"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entityType"`
	EntityCode  string    `db:"entity_code" json:"entityCode"`
	Description string    `db:"description" json:"description"`
	BeforeState *string   `db:"before_state" json:"beforeState,omitempty"`
	AfterState  *string   `db:"after_state" json:"afterState,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
