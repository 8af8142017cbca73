package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/labubou/TAConnect-sub000/internal/model"
)

// ReservationRequest is a student's proposal for one concrete appointment.
type ReservationRequest struct {
	SlotDefinitionID int64
	StudentID        int64
	StudentEmail     string
	Date             time.Time
	StartsAt         time.Time
	Note             string
}

// PolicyEnforcer validates a proposed reservation against the slot's rules.
// It is a pure predicate over repository reads: either nil ("ok") or the
// first failing check's error, in a fixed order:
//
//  1. slot active, date in range, weekday match
//  2. start lies on the requested date and [start, start+duration) sits
//     inside the daily window
//  3. allow-list membership by email, case-insensitive, when required
//  4. requester's active reservations on the slot < policy maximum
type PolicyEnforcer struct {
	policies     PolicyRepository
	allowlist    AllowedStudentRepository
	reservations ReservationRepository
	calc         *AvailabilityCalculator
}

func NewPolicyEnforcer(
	policies PolicyRepository,
	allowlist AllowedStudentRepository,
	reservations ReservationRepository,
	calc *AvailabilityCalculator,
) *PolicyEnforcer {
	return &PolicyEnforcer{
		policies:     policies,
		allowlist:    allowlist,
		reservations: reservations,
		calc:         calc,
	}
}

// Enforce runs the full check order against a loaded definition.
func (e *PolicyEnforcer) Enforce(ctx context.Context, def *model.SlotDefinition, req ReservationRequest) error {
	if err := e.calc.CheckDate(def, req.Date); err != nil {
		return err
	}

	if !e.calc.OnDate(req.Date, req.StartsAt) {
		return fmt.Errorf("start %s not on date %s: %w",
			req.StartsAt.Format(time.RFC3339), req.Date.Format("2006-01-02"), ErrOutOfRange)
	}
	if !e.calc.FitsWindow(def, req.StartsAt) {
		return fmt.Errorf("start %s: %w", req.StartsAt.Format(time.RFC3339), ErrOutOfRange)
	}

	policy, err := e.policies.GetBySlotDefinitionID(ctx, def.ID)
	if err != nil {
		return fmt.Errorf("get policy: %w", err)
	}
	if policy == nil {
		return fmt.Errorf("policy for slot %d: %w", def.ID, ErrNotFound)
	}

	if policy.RequireAllowlist {
		listed, err := e.allowlist.ExistsByEmail(ctx, policy.ID, strings.ToLower(req.StudentEmail))
		if err != nil {
			return fmt.Errorf("check allow-list: %w", err)
		}
		if !listed {
			return fmt.Errorf("email %q not on allow-list: %w", req.StudentEmail, ErrNotAuthorized)
		}
	}

	count, err := e.reservations.CountActiveByStudent(ctx, def.ID, req.StudentID)
	if err != nil {
		return fmt.Errorf("count student reservations: %w", err)
	}
	if count >= policy.MaxPerStudent {
		return fmt.Errorf("student holds %d of %d: %w", count, policy.MaxPerStudent, ErrQuotaExceeded)
	}

	return nil
}
