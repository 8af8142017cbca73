package booking

import (
	"context"

	"github.com/google/uuid"
	"github.com/labubou/TAConnect-sub000/internal/model"
	"go.uber.org/zap"
)

// Event describes a completed lifecycle transition. It is handed to the
// notification collaborator after the transition is persisted; delivery
// (email, push, calendar sync) happens outside this module.
type Event struct {
	ReservationID int64                   `json:"reservation_id"`
	Reference     uuid.UUID               `json:"reference"`
	StudentID     int64                   `json:"student_id"`
	OldStatus     model.ReservationStatus `json:"old_status"` // empty on creation
	NewStatus     model.ReservationStatus `json:"new_status"`
	Reason        model.CancelReason      `json:"reason,omitempty"`
}

// Notifier receives transition events. Dispatch failures never roll back the
// transition that produced them; callers log and move on.
type Notifier interface {
	Dispatch(ctx context.Context, ev Event) error
}

// LogNotifier is the in-tree Notifier: it records events in the structured
// log. Production deployments replace it with the real dispatch collaborator.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Dispatch(_ context.Context, ev Event) error {
	n.logger.Info("Reservation event",
		zap.Int64("reservation_id", ev.ReservationID),
		zap.String("reference", ev.Reference.String()),
		zap.Int64("student_id", ev.StudentID),
		zap.String("old_status", string(ev.OldStatus)),
		zap.String("new_status", string(ev.NewStatus)),
		zap.String("reason", string(ev.Reason)),
	)
	return nil
}
