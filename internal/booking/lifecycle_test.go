package booking

import (
	"testing"
	"time"

	"github.com/labubou/TAConnect-sub000/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lifecycleReservation(status model.ReservationStatus) *model.Reservation {
	start := at(14, 0)
	return &model.Reservation{
		ID:       1,
		Status:   status,
		StartsAt: start,
		EndsAt:   start.Add(30 * time.Minute),
	}
}

func TestConfirmTransitions(t *testing.T) {
	before := at(13, 0)

	t.Run("pending before end", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusPending)
		require.NoError(t, Confirm(r, before))
		assert.Equal(t, model.ReservationStatusConfirmed, r.Status)
	})

	t.Run("pending after end", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusPending)
		assert.ErrorIs(t, Confirm(r, at(14, 30)), ErrInvalidTransition)
	})

	for _, status := range []model.ReservationStatus{
		model.ReservationStatusConfirmed,
		model.ReservationStatusCompleted,
		model.ReservationStatusCancelled,
	} {
		t.Run("from "+string(status), func(t *testing.T) {
			r := lifecycleReservation(status)
			assert.ErrorIs(t, Confirm(r, before), ErrInvalidTransition)
			assert.Equal(t, status, r.Status, "rejected transition must not mutate")
		})
	}
}

func TestCancelTransitions(t *testing.T) {
	before := at(13, 0)
	after := at(14, 30)

	t.Run("manual from pending", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusPending)
		require.NoError(t, Cancel(r, model.CancelReasonManual, before))
		assert.Equal(t, model.ReservationStatusCancelled, r.Status)
		assert.Equal(t, model.CancelReasonManual, r.CancelReason)
	})

	t.Run("manual from confirmed", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusConfirmed)
		require.NoError(t, Cancel(r, model.CancelReasonManual, before))
		assert.Equal(t, model.ReservationStatusCancelled, r.Status)
	})

	t.Run("manual after end is rejected", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusConfirmed)
		assert.ErrorIs(t, Cancel(r, model.CancelReasonManual, after), ErrInvalidTransition)
	})

	t.Run("cascade reason after end is allowed", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusConfirmed)
		require.NoError(t, Cancel(r, model.CancelReasonSlotDeleted, after))
		assert.Equal(t, model.CancelReasonSlotDeleted, r.CancelReason)
	})

	t.Run("clears calendar handle", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusConfirmed)
		handle := "gcal-123"
		r.CalendarEventID = &handle
		require.NoError(t, Cancel(r, model.CancelReasonSlotModified, before))
		assert.Nil(t, r.CalendarEventID)
	})

	for _, status := range []model.ReservationStatus{
		model.ReservationStatusCompleted,
		model.ReservationStatusCancelled,
	} {
		t.Run("terminal "+string(status), func(t *testing.T) {
			r := lifecycleReservation(status)
			assert.ErrorIs(t, Cancel(r, model.CancelReasonSlotDeleted, before), ErrInvalidTransition)
		})
	}
}

func TestCompleteTransitions(t *testing.T) {
	t.Run("confirmed after end", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusConfirmed)
		require.NoError(t, Complete(r, at(15, 0)))
		assert.Equal(t, model.ReservationStatusCompleted, r.Status)
	})

	t.Run("exactly at end", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusConfirmed)
		require.NoError(t, Complete(r, at(14, 30)))
	})

	t.Run("before end", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusConfirmed)
		assert.ErrorIs(t, Complete(r, at(14, 15)), ErrInvalidTransition)
	})

	t.Run("from pending", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusPending)
		assert.ErrorIs(t, Complete(r, at(14, 30)), ErrInvalidTransition)
	})
}

func TestExpireTransitions(t *testing.T) {
	t.Run("pending after end", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusPending)
		require.NoError(t, Expire(r, at(14, 30)))
		assert.Equal(t, model.ReservationStatusCancelled, r.Status)
		assert.Equal(t, model.CancelReasonExpired, r.CancelReason)
	})

	t.Run("pending before end", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusPending)
		assert.ErrorIs(t, Expire(r, at(14, 15)), ErrInvalidTransition)
	})

	t.Run("from confirmed", func(t *testing.T) {
		r := lifecycleReservation(model.ReservationStatusConfirmed)
		assert.ErrorIs(t, Expire(r, at(14, 30)), ErrInvalidTransition)
	})
}
