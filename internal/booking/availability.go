package booking

import (
	"time"

	"github.com/labubou/TAConnect-sub000/internal/model"
)

// AvailabilityCalculator turns a slot definition, a target calendar date and
// the reservations already on that date into the ordered list of free start
// times. It performs no writes. The time zone is explicit configuration so
// the grid never depends on ambient process state.
type AvailabilityCalculator struct {
	loc *time.Location
}

func NewAvailabilityCalculator(loc *time.Location) *AvailabilityCalculator {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityCalculator{loc: loc}
}

// Location returns the wall-clock zone the calculator builds starts in.
func (c *AvailabilityCalculator) Location() *time.Location {
	return c.loc
}

// CheckDate verifies the target date is structurally bookable: the slot is
// active, the date falls inside [StartDate, EndDate] and matches the slot's
// weekday. Callers rely on the distinct errors to tell an invalid date from
// a fully booked one.
func (c *AvailabilityCalculator) CheckDate(def *model.SlotDefinition, date time.Time) error {
	if !def.IsActive {
		return ErrSlotInactive
	}
	day := c.dayOf(date)
	if day.Before(c.dayOf(def.StartDate)) || day.After(c.dayOf(def.EndDate)) {
		return ErrOutOfRange
	}
	if day.Weekday() != def.Weekday {
		return ErrWrongWeekday
	}
	return nil
}

// StartTimes returns the free candidate start times on the target date, in
// chronological order. [start, end) of the day is partitioned into
// consecutive DurationMinutes windows; a window is dropped when its start is
// already taken by a non-cancelled reservation or lies strictly before now.
// A trailing remainder shorter than the duration is unreservable.
func (c *AvailabilityCalculator) StartTimes(def *model.SlotDefinition, date time.Time, reserved []*model.Reservation, now time.Time) ([]time.Time, error) {
	if err := c.CheckDate(def, date); err != nil {
		return nil, err
	}

	taken := make(map[int64]struct{}, len(reserved))
	for _, r := range reserved {
		if r.Status == model.ReservationStatusCancelled {
			continue
		}
		taken[r.StartsAt.Unix()] = struct{}{}
	}

	day := c.dayOf(date)
	starts := make([]time.Time, 0, def.GridSize())
	for i := 0; i < def.GridSize(); i++ {
		offset := def.StartOffsetMinutes() + i*def.DurationMinutes
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, offset, 0, 0, c.loc)
		if start.Before(now) {
			continue
		}
		if _, ok := taken[start.Unix()]; ok {
			continue
		}
		starts = append(starts, start)
	}

	return starts, nil
}

// OnDate reports whether startsAt falls on the given calendar date in the
// calculator's zone. A request's date and absolute start are supplied
// separately, so they must be tied together before committing anything.
func (c *AvailabilityCalculator) OnDate(date, startsAt time.Time) bool {
	day := c.dayOf(date)
	local := startsAt.In(c.loc)
	ly, lm, ld := local.Date()
	return ly == day.Year() && lm == day.Month() && ld == day.Day()
}

// WindowFor returns the concrete [start, end) interval of the window
// beginning at startsAt for this definition.
func (c *AvailabilityCalculator) WindowFor(def *model.SlotDefinition, startsAt time.Time) (time.Time, time.Time) {
	start := startsAt.In(c.loc)
	return start, start.Add(time.Duration(def.DurationMinutes) * time.Minute)
}

// FitsWindow reports whether [startsAt, startsAt+duration) lies entirely
// inside the definition's daily window.
func (c *AvailabilityCalculator) FitsWindow(def *model.SlotDefinition, startsAt time.Time) bool {
	local := startsAt.In(c.loc)
	offset := local.Hour()*60 + local.Minute()
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return false
	}
	return offset >= def.StartOffsetMinutes() && offset+def.DurationMinutes <= def.EndOffsetMinutes()
}

// dayOf re-anchors a calendar date at midnight in the calculator's zone.
// The year/month/day fields are taken as-is: a pure date (stored as UTC
// midnight) must not shift to the previous day in a western zone.
func (c *AvailabilityCalculator) dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}
