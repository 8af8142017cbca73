package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/labubou/TAConnect-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSweeperFixture(t *testing.T, now time.Time) (*Sweeper, *fakeReservationRepo, *recordingNotifier) {
	t.Helper()
	resRepo := newFakeReservationRepo()
	notifier := &recordingNotifier{}
	sweeper := NewSweeper(resRepo, notifier, zap.NewNop()).WithClock(func() time.Time { return now })
	return sweeper, resRepo, notifier
}

func addSwept(t *testing.T, repo *fakeReservationRepo, hour, min int, status model.ReservationStatus) *model.Reservation {
	t.Helper()
	r := reservationAt(hour, min, model.ReservationStatusPending)
	require.NoError(t, repo.CreateIfAvailable(context.Background(), r))
	repo.byID[r.ID].Status = status
	r.Status = status
	return r
}

func TestSweepAdvancesElapsedReservations(t *testing.T) {
	now := at(15, 0)
	sweeper, repo, notifier := newSweeperFixture(t, now)

	confirmed := addSwept(t, repo, 14, 0, model.ReservationStatusConfirmed) // ends 14:30, elapsed
	pending := addSwept(t, repo, 14, 30, model.ReservationStatusPending)   // ends 15:00, elapsed
	future := addSwept(t, repo, 15, 30, model.ReservationStatusConfirmed)  // ends 16:00, not yet

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Completed: 1, Expired: 1}, result)

	assert.Equal(t, model.ReservationStatusCompleted, repo.byID[confirmed.ID].Status)
	assert.Equal(t, model.ReservationStatusCancelled, repo.byID[pending.ID].Status)
	assert.Equal(t, model.CancelReasonExpired, repo.byID[pending.ID].CancelReason)
	assert.Equal(t, model.ReservationStatusConfirmed, repo.byID[future.ID].Status)

	assert.Len(t, notifier.events, 2)
}

func TestSweepIsIdempotent(t *testing.T) {
	now := at(15, 0)
	sweeper, repo, _ := newSweeperFixture(t, now)

	confirmed := addSwept(t, repo, 14, 0, model.ReservationStatusConfirmed)
	pending := addSwept(t, repo, 14, 30, model.ReservationStatusPending)

	first, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Completed: 1, Expired: 1}, first)

	second, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, second, "second pass changes nothing")

	assert.Equal(t, model.ReservationStatusCompleted, repo.byID[confirmed.ID].Status)
	assert.Equal(t, model.ReservationStatusCancelled, repo.byID[pending.ID].Status)
}

func TestSweepBoundaryIsInclusive(t *testing.T) {
	// A reservation ending exactly at "now" is already elapsed.
	now := at(14, 30)
	sweeper, repo, _ := newSweeperFixture(t, now)

	r := addSwept(t, repo, 14, 0, model.ReservationStatusConfirmed)

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, model.ReservationStatusCompleted, repo.byID[r.ID].Status)
}

func TestSweepSurvivesNotifierFailure(t *testing.T) {
	now := at(15, 0)
	sweeper, repo, notifier := newSweeperFixture(t, now)
	notifier.failErr = errors.New("push gateway down")

	r := addSwept(t, repo, 14, 0, model.ReservationStatusConfirmed)

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, model.ReservationStatusCompleted, repo.byID[r.ID].Status)
}
