package model

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"   // waiting for instructor approval
	ReservationStatusConfirmed ReservationStatus = "confirmed" // approved by the instructor
	ReservationStatusCompleted ReservationStatus = "completed" // appointment took place
	ReservationStatusCancelled ReservationStatus = "cancelled" // released back to availability
)

// CancelReason is the machine-readable reason attached to a cancellation.
// Notification collaborators use it to compose user-facing messages.
type CancelReason string

const (
	CancelReasonManual       CancelReason = "manual"        // student or instructor cancelled
	CancelReasonSlotModified CancelReason = "slot_modified" // definition edit invalidated the reservation
	CancelReasonSlotDisabled CancelReason = "slot_disabled" // definition was deactivated
	CancelReasonSlotDeleted  CancelReason = "slot_deleted"  // definition was removed
	CancelReasonExpired      CancelReason = "expired"       // pending past its end time, never approved
)

// Reservation is a single student's claim on one concrete time window
// inside a slot definition.
type Reservation struct {
	ID               int64             `json:"id"`
	Reference        uuid.UUID         `json:"reference"`
	StudentID        int64             `json:"student_id"`
	SlotDefinitionID int64             `json:"slot_definition_id"`
	Date             time.Time         `json:"date"` // calendar date in the slot's time zone
	StartsAt         time.Time         `json:"starts_at"`
	EndsAt           time.Time         `json:"ends_at"`
	Note             string            `json:"note"`
	Status           ReservationStatus `json:"status"`
	CancelReason     CancelReason      `json:"cancel_reason,omitempty"` // empty unless cancelled
	CalendarEventID  *string           `json:"calendar_event_id"`       // opaque, owned by the calendar-sync collaborator
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// IsActive reports whether the reservation still occupies its time window.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationStatusPending || r.Status == ReservationStatusConfirmed
}

// IsTerminal reports whether the reservation can never change state again.
func (r *Reservation) IsTerminal() bool {
	return r.Status == ReservationStatusCompleted || r.Status == ReservationStatusCancelled
}

// Elapsed reports whether the reserved window has already ended at now.
func (r *Reservation) Elapsed(now time.Time) bool {
	return !r.EndsAt.After(now)
}
