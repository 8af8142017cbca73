package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/labubou/TAConnect-sub000/internal/model"
	"go.uber.org/zap"
)

// Sweeper advances reservations whose window has elapsed: confirmed rows
// become completed, pending rows that were never approved become cancelled
// with reason expired. A single now is taken per pass so a row never flaps
// across the boundary mid-sweep. Both target states are terminal and every
// per-row update is guarded by the current status, so re-running a sweep
// (or racing another one) is a no-op.
type Sweeper struct {
	reservations ReservationRepository
	notifier     Notifier
	logger       *zap.Logger
	now          func() time.Time
}

func NewSweeper(reservations ReservationRepository, notifier Notifier, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		reservations: reservations,
		notifier:     notifier,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the sweeper clock. Tests only.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// SweepResult counts what one pass changed.
type SweepResult struct {
	Completed int
	Expired   int
}

// Sweep runs one pass over all elapsed active reservations. Per-row
// failures are logged and do not abort the pass.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()

	elapsed, err := s.reservations.ListElapsedActive(ctx, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list elapsed reservations: %w", err)
	}

	var result SweepResult
	for _, r := range elapsed {
		old := r.Status

		var transition error
		switch r.Status {
		case model.ReservationStatusConfirmed:
			transition = Complete(r, now)
		case model.ReservationStatusPending:
			transition = Expire(r, now)
		default:
			continue
		}
		if transition != nil {
			s.logger.Warn("Sweep transition rejected",
				zap.Int64("reservation_id", r.ID),
				zap.Error(transition),
			)
			continue
		}

		var persist error
		if r.Status == model.ReservationStatusCancelled {
			persist = s.reservations.Cancel(ctx, r.ID, model.CancelReasonExpired)
		} else {
			persist = s.reservations.UpdateStatus(ctx, r.ID, old, r.Status)
		}
		if persist != nil {
			// Likely lost a race with a concurrent cancel or sweep; the
			// row is terminal either way.
			s.logger.Warn("Sweep update skipped",
				zap.Int64("reservation_id", r.ID),
				zap.Error(persist),
			)
			continue
		}

		switch r.Status {
		case model.ReservationStatusCompleted:
			result.Completed++
		case model.ReservationStatusCancelled:
			result.Expired++
		}

		if s.notifier != nil {
			if err := s.notifier.Dispatch(ctx, Event{
				ReservationID: r.ID,
				Reference:     r.Reference,
				StudentID:     r.StudentID,
				OldStatus:     old,
				NewStatus:     r.Status,
				Reason:        r.CancelReason,
			}); err != nil {
				s.logger.Warn("Notification dispatch failed",
					zap.Int64("reservation_id", r.ID),
					zap.Error(err),
				)
			}
		}
	}

	if result.Completed > 0 || result.Expired > 0 {
		s.logger.Info("Sweep pass finished",
			zap.Int("completed", result.Completed),
			zap.Int("expired", result.Expired),
		)
	}

	return result, nil
}
