package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labubou/TAConnect-sub000/internal/booking"
	"github.com/labubou/TAConnect-sub000/internal/model"
	"github.com/labubou/TAConnect-sub000/internal/repository/base"
)

const reservationColumns = `id, reference, student_id, slot_definition_id, date, starts_at, ends_at, note, status, cancel_reason, calendar_event_id, created_at, updated_at`

// activeStatuses are the states that occupy a time window.
const activeStatuses = `'pending', 'confirmed'`

// ReservationRepository owns every reservation write. Creation and
// reschedule run the overlap re-check and the write inside one transaction,
// and a partial unique index on (slot_definition_id, starts_at) over active
// rows backs the check at the storage level, so the no-double-booking
// guarantee does not depend on single-process execution.
type ReservationRepository struct {
	*base.Repository
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{Repository: base.NewRepository(pool)}
}

// GetByID returns a reservation, or nil when it does not exist.
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	res, err := scanReservation(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation by id: %w", err)
	}

	return res, nil
}

// ListActiveByDate returns the non-cancelled reservations on (slot, date).
func (r *ReservationRepository) ListActiveByDate(ctx context.Context, slotDefinitionID int64, date time.Time) ([]*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE slot_definition_id = $1
		  AND date = $2
		  AND status <> 'cancelled'
		ORDER BY starts_at
	`

	return r.list(ctx, query, slotDefinitionID, date)
}

// ListActiveBySlot returns the pending and confirmed reservations on a slot.
func (r *ReservationRepository) ListActiveBySlot(ctx context.Context, slotDefinitionID int64) ([]*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE slot_definition_id = $1
		  AND status IN (` + activeStatuses + `)
		ORDER BY starts_at
	`

	return r.list(ctx, query, slotDefinitionID)
}

// ListByStudentID returns a student's reservations, newest first.
func (r *ReservationRepository) ListByStudentID(ctx context.Context, studentID int64) ([]*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE student_id = $1
		ORDER BY created_at DESC
	`

	return r.list(ctx, query, studentID)
}

// CountActiveByStudent counts the student's pending and confirmed
// reservations on one slot, for the quota check.
func (r *ReservationRepository) CountActiveByStudent(ctx context.Context, slotDefinitionID, studentID int64) (int, error) {
	query := `
		SELECT count(*)
		FROM reservations
		WHERE slot_definition_id = $1
		  AND student_id = $2
		  AND status IN (` + activeStatuses + `)
	`

	var count int
	err := r.QueryRow(ctx, query, slotDefinitionID, studentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active reservations: %w", err)
	}

	return count, nil
}

// ListElapsedActive returns active reservations whose end is at or before now.
func (r *ReservationRepository) ListElapsedActive(ctx context.Context, now time.Time) ([]*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE ends_at <= $1
		  AND status IN (` + activeStatuses + `)
		ORDER BY ends_at
	`

	return r.list(ctx, query, now)
}

// CreateIfAvailable inserts a pending reservation after re-confirming inside
// the same transaction that no active reservation overlaps the window. Two
// racers for the same start serialize on the row lock or trip the partial
// unique index; the loser gets booking.ErrTimeConflict.
func (r *ReservationRepository) CreateIfAvailable(ctx context.Context, res *model.Reservation) error {
	tx, err := r.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockOverlap(ctx, tx, res.SlotDefinitionID, res.StartsAt, res.EndsAt, 0); err != nil {
		return err
	}

	query := `
		INSERT INTO reservations (reference, student_id, slot_definition_id, date, starts_at, ends_at, note, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err = tx.QueryRow(
		ctx, query,
		res.Reference,
		res.StudentID,
		res.SlotDefinitionID,
		res.Date,
		res.StartsAt,
		res.EndsAt,
		res.Note,
		res.Status,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("start already taken: %w", booking.ErrTimeConflict)
		}
		return fmt.Errorf("insert reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// RescheduleIfAvailable moves a reservation to a new window under the same
// guarded transaction, excluding the reservation's own row from the overlap
// check.
func (r *ReservationRepository) RescheduleIfAvailable(ctx context.Context, res *model.Reservation) error {
	tx, err := r.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockOverlap(ctx, tx, res.SlotDefinitionID, res.StartsAt, res.EndsAt, res.ID); err != nil {
		return err
	}

	query := `
		UPDATE reservations
		SET date = $2, starts_at = $3, ends_at = $4, updated_at = now()
		WHERE id = $1 AND status IN (` + activeStatuses + `)
		RETURNING updated_at
	`

	err = tx.QueryRow(ctx, query, res.ID, res.Date, res.StartsAt, res.EndsAt).Scan(&res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("reservation %d no longer active: %w", res.ID, booking.ErrInvalidTransition)
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("start already taken: %w", booking.ErrTimeConflict)
		}
		return fmt.Errorf("update reservation window: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// UpdateStatus transitions one reservation from exactly `from` to `to`. The
// status guard makes concurrent double-sweeps a no-op.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id int64, from, to model.ReservationStatus) error {
	query := `
		UPDATE reservations
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`

	affected, err := r.ExecAffected(ctx, query, id, from, to)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("reservation %d not in state %s: %w", id, from, booking.ErrInvalidTransition)
	}

	return nil
}

// Cancel transitions an active reservation to cancelled, recording the
// reason and clearing the external calendar handle.
func (r *ReservationRepository) Cancel(ctx context.Context, id int64, reason model.CancelReason) error {
	query := `
		UPDATE reservations
		SET status = 'cancelled', cancel_reason = $2, calendar_event_id = NULL, updated_at = now()
		WHERE id = $1 AND status IN (` + activeStatuses + `)
	`

	affected, err := r.ExecAffected(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("reservation %d not active: %w", id, booking.ErrInvalidTransition)
	}

	return nil
}

// CancelBatch cancels every still-active reservation in ids with one atomic
// statement and returns the ids the statement changed. Rows that went
// terminal between listing and this update are skipped, not reported.
func (r *ReservationRepository) CancelBatch(ctx context.Context, ids []int64, reason model.CancelReason) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		UPDATE reservations
		SET status = 'cancelled', cancel_reason = $2, calendar_event_id = NULL, updated_at = now()
		WHERE id = ANY($1) AND status IN (` + activeStatuses + `)
		RETURNING id
	`

	rows, err := r.Query(ctx, query, ids, reason)
	if err != nil {
		return nil, fmt.Errorf("cancel reservations batch: %w", err)
	}
	defer rows.Close()

	var cancelled []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan cancelled id: %w", err)
		}
		cancelled = append(cancelled, id)
	}

	return cancelled, nil
}

// SetCalendarEvent stores the opaque handle the calendar-sync collaborator
// created for this reservation.
func (r *ReservationRepository) SetCalendarEvent(ctx context.Context, id int64, eventID string) error {
	query := `UPDATE reservations SET calendar_event_id = $2, updated_at = now() WHERE id = $1`

	affected, err := r.ExecAffected(ctx, query, id, eventID)
	if err != nil {
		return fmt.Errorf("set calendar event: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("reservation %d: %w", id, booking.ErrNotFound)
	}

	return nil
}

func (r *ReservationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*model.Reservation, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []*model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}

	return reservations, nil
}

// lockOverlap locks and reports any active reservation overlapping
// [startsAt, endsAt) on the slot, excluding excludeID when non-zero.
func lockOverlap(ctx context.Context, tx pgx.Tx, slotDefinitionID int64, startsAt, endsAt time.Time, excludeID int64) error {
	query := `
		SELECT id FROM reservations
		WHERE slot_definition_id = $1
		  AND status IN (` + activeStatuses + `)
		  AND starts_at < $3
		  AND ends_at > $2
		  AND id <> $4
		LIMIT 1
		FOR UPDATE
	`

	var blocker int64
	err := tx.QueryRow(ctx, query, slotDefinitionID, startsAt, endsAt, excludeID).Scan(&blocker)
	if err == nil {
		return fmt.Errorf("reservation %d occupies the window: %w", blocker, booking.ErrTimeConflict)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check overlap: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	var reason *string
	err := row.Scan(
		&res.ID,
		&res.Reference,
		&res.StudentID,
		&res.SlotDefinitionID,
		&res.Date,
		&res.StartsAt,
		&res.EndsAt,
		&res.Note,
		&res.Status,
		&reason,
		&res.CalendarEventID,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		res.CancelReason = model.CancelReason(*reason)
	}
	return &res, nil
}
