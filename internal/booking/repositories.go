package booking

import (
	"context"
	"time"

	"github.com/labubou/TAConnect-sub000/internal/model"
)

// Repository contracts the core is written against. The pgx implementations
// live in internal/repository; tests use in-memory fakes.

type SlotDefinitionRepository interface {
	Create(ctx context.Context, def *model.SlotDefinition) error
	GetByID(ctx context.Context, id int64) (*model.SlotDefinition, error)
	GetByInstructorID(ctx context.Context, instructorID int64) ([]*model.SlotDefinition, error)
	Update(ctx context.Context, def *model.SlotDefinition) error
	SetActive(ctx context.Context, id int64, active bool) error
	// Delete removes the definition; its policy and reservations go with it.
	Delete(ctx context.Context, id int64) error
}

type PolicyRepository interface {
	Create(ctx context.Context, policy *model.Policy) error
	GetBySlotDefinitionID(ctx context.Context, slotDefinitionID int64) (*model.Policy, error)
	Update(ctx context.Context, policy *model.Policy) error
}

// AllowedStudentRepository is read-only for the core; allow-list rows are
// written by the bulk-import collaborator.
type AllowedStudentRepository interface {
	ExistsByEmail(ctx context.Context, policyID int64, email string) (bool, error)
	ListByPolicyID(ctx context.Context, policyID int64) ([]*model.AllowedStudent, error)
}

type ReservationRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Reservation, error)
	// ListActiveByDate returns non-cancelled reservations on (slot, date).
	ListActiveByDate(ctx context.Context, slotDefinitionID int64, date time.Time) ([]*model.Reservation, error)
	// ListActiveBySlot returns pending and confirmed reservations on a slot.
	ListActiveBySlot(ctx context.Context, slotDefinitionID int64) ([]*model.Reservation, error)
	// ListByStudentID returns all of a student's reservations, newest first.
	ListByStudentID(ctx context.Context, studentID int64) ([]*model.Reservation, error)
	CountActiveByStudent(ctx context.Context, slotDefinitionID, studentID int64) (int, error)
	// ListElapsedActive returns pending and confirmed reservations whose
	// end time is at or before now.
	ListElapsedActive(ctx context.Context, now time.Time) ([]*model.Reservation, error)

	// CreateIfAvailable atomically re-checks that no pending or confirmed
	// reservation overlaps [StartsAt, EndsAt) for the slot and inserts in
	// one transaction. A collision is reported as ErrTimeConflict.
	CreateIfAvailable(ctx context.Context, res *model.Reservation) error
	// RescheduleIfAvailable moves an existing reservation to a new
	// date/start under the same atomic overlap re-check, excluding the
	// reservation's own row.
	RescheduleIfAvailable(ctx context.Context, res *model.Reservation) error

	// UpdateStatus transitions id from exactly `from` to `to`; a row in any
	// other state is reported as ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id int64, from, to model.ReservationStatus) error
	// Cancel transitions a pending or confirmed reservation to cancelled,
	// records the reason and clears the external calendar handle.
	Cancel(ctx context.Context, id int64, reason model.CancelReason) error
	// CancelBatch cancels every listed reservation still pending or
	// confirmed in a single atomic statement and returns the ids it
	// actually changed; rows that turned terminal in the meantime are
	// left alone and absent from the result.
	CancelBatch(ctx context.Context, ids []int64, reason model.CancelReason) ([]int64, error)

	SetCalendarEvent(ctx context.Context, id int64, eventID string) error
}
