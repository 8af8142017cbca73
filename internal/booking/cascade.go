package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/labubou/TAConnect-sub000/internal/model"
	"go.uber.org/zap"
)

// DefinitionService is the instructor side: slot definition and policy
// management plus the cascade that cancels reservations a mutation has
// invalidated. The batch cancellation for one slot is a single atomic
// repository operation, so a partially applied cascade is never observable.
type DefinitionService struct {
	defs         SlotDefinitionRepository
	policies     PolicyRepository
	reservations ReservationRepository
	calc         *AvailabilityCalculator
	notifier     Notifier
	logger       *zap.Logger
}

func NewDefinitionService(
	defs SlotDefinitionRepository,
	policies PolicyRepository,
	reservations ReservationRepository,
	calc *AvailabilityCalculator,
	notifier Notifier,
	logger *zap.Logger,
) *DefinitionService {
	return &DefinitionService{
		defs:         defs,
		policies:     policies,
		reservations: reservations,
		calc:         calc,
		notifier:     notifier,
		logger:       logger,
	}
}

// Create validates and stores a new slot definition with its policy.
func (s *DefinitionService) Create(ctx context.Context, def *model.SlotDefinition, policy *model.Policy) error {
	if err := validateDefinition(def); err != nil {
		return err
	}

	if err := s.defs.Create(ctx, def); err != nil {
		return fmt.Errorf("create slot definition: %w", err)
	}

	policy.SlotDefinitionID = def.ID
	if policy.MaxPerStudent <= 0 {
		policy.MaxPerStudent = 1
	}
	if err := s.policies.Create(ctx, policy); err != nil {
		return fmt.Errorf("create policy: %w", err)
	}

	s.logger.Info("Slot definition created",
		zap.Int64("slot_definition_id", def.ID),
		zap.Int64("instructor_id", def.InstructorID),
		zap.String("course", def.Course),
		zap.Int("weekday", int(def.Weekday)),
	)

	return nil
}

// Update applies an edit to a slot definition and cascades: reservations the
// new shape no longer accommodates are cancelled with reason slot_modified.
// Editing only labels (course, section, location) cancels nothing.
func (s *DefinitionService) Update(ctx context.Context, instructorID int64, def *model.SlotDefinition) error {
	prev, err := s.getOwned(ctx, instructorID, def.ID)
	if err != nil {
		return err
	}
	if err := validateDefinition(def); err != nil {
		return err
	}

	active, err := s.reservations.ListActiveBySlot(ctx, def.ID)
	if err != nil {
		return fmt.Errorf("list active reservations: %w", err)
	}
	invalidated := s.invalidatedBy(prev, def, active)

	if err := s.defs.Update(ctx, def); err != nil {
		return fmt.Errorf("update slot definition: %w", err)
	}

	if err := s.cancelBatch(ctx, invalidated, model.CancelReasonSlotModified); err != nil {
		return err
	}

	s.logger.Info("Slot definition updated",
		zap.Int64("slot_definition_id", def.ID),
		zap.Int("cancelled", len(invalidated)),
	)

	return nil
}

// Disable deactivates a slot definition and cancels every reservation still
// pending or confirmed on it with reason slot_disabled.
func (s *DefinitionService) Disable(ctx context.Context, instructorID, slotDefinitionID int64) error {
	if _, err := s.getOwned(ctx, instructorID, slotDefinitionID); err != nil {
		return err
	}

	active, err := s.reservations.ListActiveBySlot(ctx, slotDefinitionID)
	if err != nil {
		return fmt.Errorf("list active reservations: %w", err)
	}

	if err := s.defs.SetActive(ctx, slotDefinitionID, false); err != nil {
		return fmt.Errorf("deactivate slot definition: %w", err)
	}

	if err := s.cancelBatch(ctx, active, model.CancelReasonSlotDisabled); err != nil {
		return err
	}

	s.logger.Info("Slot definition disabled",
		zap.Int64("slot_definition_id", slotDefinitionID),
		zap.Int("cancelled", len(active)),
	)

	return nil
}

// Enable reactivates a disabled slot definition. Previously cancelled
// reservations stay cancelled; students book fresh windows.
func (s *DefinitionService) Enable(ctx context.Context, instructorID, slotDefinitionID int64) error {
	if _, err := s.getOwned(ctx, instructorID, slotDefinitionID); err != nil {
		return err
	}
	if err := s.defs.SetActive(ctx, slotDefinitionID, true); err != nil {
		return fmt.Errorf("activate slot definition: %w", err)
	}
	return nil
}

// Delete cancels all non-terminal reservations with reason slot_deleted,
// then removes the definition; the policy and reservation rows follow by
// foreign-key cascade. Cancelling first means every affected student gets a
// transition event before the rows disappear.
func (s *DefinitionService) Delete(ctx context.Context, instructorID, slotDefinitionID int64) error {
	if _, err := s.getOwned(ctx, instructorID, slotDefinitionID); err != nil {
		return err
	}

	active, err := s.reservations.ListActiveBySlot(ctx, slotDefinitionID)
	if err != nil {
		return fmt.Errorf("list active reservations: %w", err)
	}

	if err := s.cancelBatch(ctx, active, model.CancelReasonSlotDeleted); err != nil {
		return err
	}

	if err := s.defs.Delete(ctx, slotDefinitionID); err != nil {
		return fmt.Errorf("delete slot definition: %w", err)
	}

	s.logger.Info("Slot definition deleted",
		zap.Int64("slot_definition_id", slotDefinitionID),
		zap.Int64("instructor_id", instructorID),
		zap.Int("cancelled", len(active)),
	)

	return nil
}

// UpdatePolicy replaces the per-slot booking rules.
func (s *DefinitionService) UpdatePolicy(ctx context.Context, instructorID int64, policy *model.Policy) error {
	if _, err := s.getOwned(ctx, instructorID, policy.SlotDefinitionID); err != nil {
		return err
	}
	if policy.MaxPerStudent < 1 {
		return fmt.Errorf("max_per_student must be >= 1: %w", ErrOutOfRange)
	}
	if err := s.policies.Update(ctx, policy); err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	return nil
}

// GetPolicy returns the policy of an owned slot definition.
func (s *DefinitionService) GetPolicy(ctx context.Context, instructorID, slotDefinitionID int64) (*model.Policy, error) {
	if _, err := s.getOwned(ctx, instructorID, slotDefinitionID); err != nil {
		return nil, err
	}
	policy, err := s.policies.GetBySlotDefinitionID(ctx, slotDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	if policy == nil {
		return nil, fmt.Errorf("policy for slot %d: %w", slotDefinitionID, ErrNotFound)
	}
	return policy, nil
}

// invalidatedBy computes which active reservations do not survive the edit.
// A weekday or duration change shifts the whole grid, so everything goes;
// otherwise a reservation goes when its date leaves the new date range or
// its interval no longer fits the new daily window. When date range and
// window change together, failing either condition is enough.
func (s *DefinitionService) invalidatedBy(prev, next *model.SlotDefinition, active []*model.Reservation) []*model.Reservation {
	if next.Weekday != prev.Weekday || next.DurationMinutes != prev.DurationMinutes {
		return active
	}

	rangeEnd := endOfRange(next, s.calc.Location())
	rangeStart := startOfRange(next, s.calc.Location())

	var out []*model.Reservation
	for _, r := range active {
		day := dayFields(r.Date, s.calc.Location())
		if day.Before(rangeStart) || day.After(rangeEnd) {
			out = append(out, r)
			continue
		}
		if !s.calc.FitsWindow(next, r.StartsAt) {
			out = append(out, r)
		}
	}
	return out
}

// cancelBatch cancels the reservations in one atomic statement, then
// dispatches one event per row the statement actually changed; a row that
// turned terminal between listing and cancelling gets no event. A failed
// dispatch is logged and does not undo the transition.
func (s *DefinitionService) cancelBatch(ctx context.Context, batch []*model.Reservation, reason model.CancelReason) error {
	if len(batch) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(batch))
	for _, r := range batch {
		ids = append(ids, r.ID)
	}

	cancelled, err := s.reservations.CancelBatch(ctx, ids, reason)
	if err != nil {
		return fmt.Errorf("cancel batch: %w", err)
	}
	changed := make(map[int64]struct{}, len(cancelled))
	for _, id := range cancelled {
		changed[id] = struct{}{}
	}
	if len(cancelled) != len(ids) {
		// Rows already terminal by the time the statement ran; benign.
		s.logger.Debug("Cascade skipped terminal rows",
			zap.Int("affected", len(cancelled)),
			zap.Int("requested", len(ids)),
		)
	}

	for _, r := range batch {
		if _, ok := changed[r.ID]; !ok {
			continue
		}
		old := r.Status
		r.Status = model.ReservationStatusCancelled
		r.CancelReason = reason
		r.CalendarEventID = nil
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.Dispatch(ctx, Event{
			ReservationID: r.ID,
			Reference:     r.Reference,
			StudentID:     r.StudentID,
			OldStatus:     old,
			NewStatus:     r.Status,
			Reason:        reason,
		}); err != nil {
			s.logger.Warn("Notification dispatch failed",
				zap.Int64("reservation_id", r.ID),
				zap.String("reason", string(reason)),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (s *DefinitionService) getOwned(ctx context.Context, instructorID, slotDefinitionID int64) (*model.SlotDefinition, error) {
	def, err := s.defs.GetByID(ctx, slotDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("get slot definition: %w", err)
	}
	if def == nil {
		return nil, fmt.Errorf("slot definition %d: %w", slotDefinitionID, ErrNotFound)
	}
	if def.InstructorID != instructorID {
		return nil, fmt.Errorf("slot %d belongs to another instructor: %w", slotDefinitionID, ErrNotAuthorized)
	}
	return def, nil
}

// validateDefinition enforces the structural invariants of a definition.
func validateDefinition(def *model.SlotDefinition) error {
	if def.StartOffsetMinutes() >= def.EndOffsetMinutes() {
		return fmt.Errorf("start time must be before end time: %w", ErrOutOfRange)
	}
	if def.DurationMinutes <= 0 {
		return fmt.Errorf("duration must be positive: %w", ErrOutOfRange)
	}
	if dayFields(def.StartDate, time.UTC).After(dayFields(def.EndDate, time.UTC)) {
		return fmt.Errorf("start date must not be after end date: %w", ErrOutOfRange)
	}
	if def.Weekday < time.Sunday || def.Weekday > time.Saturday {
		return fmt.Errorf("weekday out of range: %w", ErrOutOfRange)
	}
	return nil
}

func startOfRange(def *model.SlotDefinition, loc *time.Location) time.Time {
	return dayFields(def.StartDate, loc)
}

func endOfRange(def *model.SlotDefinition, loc *time.Location) time.Time {
	return dayFields(def.EndDate, loc)
}

// dayFields re-anchors a calendar date at midnight in loc without shifting
// the year/month/day fields.
func dayFields(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
