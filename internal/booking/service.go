package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labubou/TAConnect-sub000/internal/model"
	"go.uber.org/zap"
)

// Service handles the student-facing reservation flow: availability queries,
// the reserve pipeline (structural check, policy, atomic commit), reschedule
// and the instructor approval / cancellation transitions.
type Service struct {
	defs         SlotDefinitionRepository
	reservations ReservationRepository
	calc         *AvailabilityCalculator
	enforcer     *PolicyEnforcer
	notifier     Notifier
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(
	defs SlotDefinitionRepository,
	reservations ReservationRepository,
	calc *AvailabilityCalculator,
	enforcer *PolicyEnforcer,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		defs:         defs,
		reservations: reservations,
		calc:         calc,
		enforcer:     enforcer,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AvailableStarts returns the free start times on (slot, date).
func (s *Service) AvailableStarts(ctx context.Context, slotDefinitionID int64, date time.Time) ([]time.Time, error) {
	def, err := s.getDefinition(ctx, slotDefinitionID)
	if err != nil {
		return nil, err
	}

	reserved, err := s.reservations.ListActiveByDate(ctx, def.ID, date)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	return s.calc.StartTimes(def, date, reserved, s.now())
}

// Reserve validates and commits one reservation request. The overlap
// re-check and the insert happen in a single repository transaction, so two
// concurrent requests for the same start cannot both succeed; the loser
// receives ErrTimeConflict.
func (s *Service) Reserve(ctx context.Context, req ReservationRequest) (*model.Reservation, error) {
	def, err := s.getDefinition(ctx, req.SlotDefinitionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if req.StartsAt.Before(now) {
		return nil, fmt.Errorf("start in the past: %w", ErrOutOfRange)
	}

	if err := s.enforcer.Enforce(ctx, def, req); err != nil {
		return nil, err
	}

	start, end := s.calc.WindowFor(def, req.StartsAt)
	res := &model.Reservation{
		Reference:        uuid.New(),
		StudentID:        req.StudentID,
		SlotDefinitionID: def.ID,
		Date:             req.Date,
		StartsAt:         start,
		EndsAt:           end,
		Note:             req.Note,
		Status:           model.ReservationStatusPending,
	}

	if err := s.reservations.CreateIfAvailable(ctx, res); err != nil {
		return nil, fmt.Errorf("commit reservation: %w", err)
	}

	s.logger.Info("Reservation created",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("slot_definition_id", def.ID),
		zap.Int64("student_id", req.StudentID),
		zap.Time("starts_at", res.StartsAt),
	)

	s.dispatch(ctx, Event{
		ReservationID: res.ID,
		Reference:     res.Reference,
		StudentID:     res.StudentID,
		NewStatus:     res.Status,
	})

	return res, nil
}

// Reschedule moves a student's reservation to a new date and start time.
// The new window is verified against the slot's current definition and then
// committed under the same atomic overlap re-check as Reserve, excluding the
// reservation's own row.
func (s *Service) Reschedule(ctx context.Context, reservationID, studentID int64, date, startsAt time.Time) (*model.Reservation, error) {
	res, err := s.getReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.StudentID != studentID {
		return nil, fmt.Errorf("reservation %d belongs to another student: %w", reservationID, ErrNotAuthorized)
	}
	if !res.IsActive() {
		return nil, fmt.Errorf("reschedule from %s: %w", res.Status, ErrInvalidTransition)
	}

	def, err := s.getDefinition(ctx, res.SlotDefinitionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if startsAt.Before(now) {
		return nil, fmt.Errorf("start in the past: %w", ErrOutOfRange)
	}
	if err := s.calc.CheckDate(def, date); err != nil {
		return nil, err
	}
	if !s.calc.OnDate(date, startsAt) {
		return nil, fmt.Errorf("start %s not on date %s: %w",
			startsAt.Format(time.RFC3339), date.Format("2006-01-02"), ErrOutOfRange)
	}
	if !s.calc.FitsWindow(def, startsAt) {
		return nil, fmt.Errorf("start %s: %w", startsAt.Format(time.RFC3339), ErrOutOfRange)
	}

	start, end := s.calc.WindowFor(def, startsAt)
	res.Date = date
	res.StartsAt = start
	res.EndsAt = end

	if err := s.reservations.RescheduleIfAvailable(ctx, res); err != nil {
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}

	s.logger.Info("Reservation rescheduled",
		zap.Int64("reservation_id", res.ID),
		zap.Time("starts_at", res.StartsAt),
	)

	return res, nil
}

// Confirm is the instructor approving a pending reservation.
func (s *Service) Confirm(ctx context.Context, reservationID, instructorID int64) error {
	res, err := s.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	def, err := s.getDefinition(ctx, res.SlotDefinitionID)
	if err != nil {
		return err
	}
	if def.InstructorID != instructorID {
		return fmt.Errorf("slot %d belongs to another instructor: %w", def.ID, ErrNotAuthorized)
	}

	old := res.Status
	if err := Confirm(res, s.now()); err != nil {
		return err
	}

	if err := s.reservations.UpdateStatus(ctx, res.ID, old, res.Status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.logger.Info("Reservation confirmed",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("instructor_id", instructorID),
	)

	s.dispatch(ctx, Event{
		ReservationID: res.ID,
		Reference:     res.Reference,
		StudentID:     res.StudentID,
		OldStatus:     old,
		NewStatus:     res.Status,
	})

	return nil
}

// Cancel is a student or instructor cancelling an active reservation before
// its window has elapsed. The occupied interval is released back to
// availability because queries filter by status.
func (s *Service) Cancel(ctx context.Context, reservationID, requesterID int64) error {
	res, err := s.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}

	def, err := s.getDefinition(ctx, res.SlotDefinitionID)
	if err != nil {
		return err
	}
	if res.StudentID != requesterID && def.InstructorID != requesterID {
		return fmt.Errorf("no permission to cancel reservation %d: %w", reservationID, ErrNotAuthorized)
	}

	old := res.Status
	if err := Cancel(res, model.CancelReasonManual, s.now()); err != nil {
		return err
	}

	if err := s.reservations.Cancel(ctx, res.ID, model.CancelReasonManual); err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}

	s.logger.Info("Reservation cancelled",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("requester_id", requesterID),
	)

	s.dispatch(ctx, Event{
		ReservationID: res.ID,
		Reference:     res.Reference,
		StudentID:     res.StudentID,
		OldStatus:     old,
		NewStatus:     res.Status,
		Reason:        model.CancelReasonManual,
	})

	return nil
}

// SetCalendarEvent stores the opaque external-calendar handle the sync
// collaborator created for a reservation.
func (s *Service) SetCalendarEvent(ctx context.Context, reservationID int64, eventID string) error {
	if _, err := s.getReservation(ctx, reservationID); err != nil {
		return err
	}
	if err := s.reservations.SetCalendarEvent(ctx, reservationID, eventID); err != nil {
		return fmt.Errorf("set calendar event: %w", err)
	}
	return nil
}

// GetReservation loads one reservation.
func (s *Service) GetReservation(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	return s.getReservation(ctx, reservationID)
}

// StudentReservations lists everything a student has booked, including
// terminal rows, for the "my reservations" view.
func (s *Service) StudentReservations(ctx context.Context, studentID int64) ([]*model.Reservation, error) {
	reservations, err := s.reservations.ListByStudentID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student reservations: %w", err)
	}
	return reservations, nil
}

func (s *Service) getDefinition(ctx context.Context, id int64) (*model.SlotDefinition, error) {
	def, err := s.defs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get slot definition: %w", err)
	}
	if def == nil {
		return nil, fmt.Errorf("slot definition %d: %w", id, ErrNotFound)
	}
	return def, nil
}

func (s *Service) getReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if res == nil {
		return nil, fmt.Errorf("reservation %d: %w", id, ErrNotFound)
	}
	return res, nil
}

// dispatch hands the event to the notifier. Delivery failure must not undo
// the transition, so it is only logged.
func (s *Service) dispatch(ctx context.Context, ev Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, ev); err != nil {
		s.logger.Warn("Notification dispatch failed",
			zap.Int64("reservation_id", ev.ReservationID),
			zap.String("new_status", string(ev.NewStatus)),
			zap.Error(err),
		)
	}
}
