package booking

import (
	"fmt"
	"time"

	"github.com/labubou/TAConnect-sub000/internal/model"
)

// Lifecycle transition guards. The status enum on the reservation is the
// single source of truth; every mutation goes through one of these so a
// terminal row can never move again.
//
//	pending ──confirm──▶ confirmed ──complete (after end)──▶ completed
//	   │                     │
//	   └──────cancel─────────┘──▶ cancelled
//
// Manual cancellation is only allowed before the window has elapsed; the
// sweeper owns post-elapse transitions, and cascade reasons may cancel any
// non-terminal row because the slot itself is going away.

// Confirm moves a pending reservation to confirmed (instructor approval).
func Confirm(r *model.Reservation, now time.Time) error {
	if r.Status != model.ReservationStatusPending {
		return fmt.Errorf("confirm from %s: %w", r.Status, ErrInvalidTransition)
	}
	if r.Elapsed(now) {
		return fmt.Errorf("confirm after end time: %w", ErrInvalidTransition)
	}
	r.Status = model.ReservationStatusConfirmed
	return nil
}

// Cancel moves a pending or confirmed reservation to cancelled and releases
// its window. The external calendar handle is cleared; the collaborator that
// owns it reacts to the dispatched event.
func Cancel(r *model.Reservation, reason model.CancelReason, now time.Time) error {
	if !r.IsActive() {
		return fmt.Errorf("cancel from %s: %w", r.Status, ErrInvalidTransition)
	}
	if reason == model.CancelReasonManual && r.Elapsed(now) {
		return fmt.Errorf("cancel after end time: %w", ErrInvalidTransition)
	}
	r.Status = model.ReservationStatusCancelled
	r.CancelReason = reason
	r.CalendarEventID = nil
	return nil
}

// Complete moves a confirmed reservation whose window has elapsed to
// completed. Only the sweeper calls this.
func Complete(r *model.Reservation, now time.Time) error {
	if r.Status != model.ReservationStatusConfirmed {
		return fmt.Errorf("complete from %s: %w", r.Status, ErrInvalidTransition)
	}
	if !r.Elapsed(now) {
		return fmt.Errorf("complete before end time: %w", ErrInvalidTransition)
	}
	r.Status = model.ReservationStatusCompleted
	return nil
}

// Expire cancels a pending reservation that was never approved before its
// window elapsed. Only the sweeper calls this.
func Expire(r *model.Reservation, now time.Time) error {
	if r.Status != model.ReservationStatusPending {
		return fmt.Errorf("expire from %s: %w", r.Status, ErrInvalidTransition)
	}
	if !r.Elapsed(now) {
		return fmt.Errorf("expire before end time: %w", ErrInvalidTransition)
	}
	r.Status = model.ReservationStatusCancelled
	r.CancelReason = model.CancelReasonExpired
	r.CalendarEventID = nil
	return nil
}
