package model

import "time"

// Policy holds the per-slot booking rules. Exactly one policy exists per
// slot definition.
type Policy struct {
	ID               int64     `json:"id"`
	SlotDefinitionID int64     `json:"slot_definition_id"`
	MaxPerStudent    int       `json:"max_per_student"`   // >= 1, default 1
	RequireAllowlist bool      `json:"require_allowlist"` // requester email must be allow-listed
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
