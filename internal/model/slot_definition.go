package model

import "time"

// SlotDefinition is the recurring weekly availability window an instructor
// publishes. Appointments are generated per calendar date by partitioning
// [start, end) of the matching weekday into DurationMinutes windows.
type SlotDefinition struct {
	ID              int64        `json:"id"`
	InstructorID    int64        `json:"instructor_id"`
	Course          string       `json:"course"`
	Section         string       `json:"section"` // optional, may be empty
	Weekday         time.Weekday `json:"weekday"` // 0 = Sunday, 6 = Saturday
	StartHour       int          `json:"start_hour"`
	StartMinute     int          `json:"start_minute"`
	EndHour         int          `json:"end_hour"`
	EndMinute       int          `json:"end_minute"`
	DurationMinutes int          `json:"duration_minutes"`
	StartDate       time.Time    `json:"start_date"` // first bookable date, inclusive
	EndDate         time.Time    `json:"end_date"`   // last bookable date, inclusive
	Location        string       `json:"location"`
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// StartOffsetMinutes returns the window start as minutes since midnight.
func (d *SlotDefinition) StartOffsetMinutes() int {
	return d.StartHour*60 + d.StartMinute
}

// EndOffsetMinutes returns the window end as minutes since midnight.
func (d *SlotDefinition) EndOffsetMinutes() int {
	return d.EndHour*60 + d.EndMinute
}

// WindowMinutes returns the total length of the daily window.
func (d *SlotDefinition) WindowMinutes() int {
	return d.EndOffsetMinutes() - d.StartOffsetMinutes()
}

// GridSize returns how many whole appointments fit in the daily window.
// A trailing remainder shorter than DurationMinutes is simply unreservable.
func (d *SlotDefinition) GridSize() int {
	if d.DurationMinutes <= 0 {
		return 0
	}
	return d.WindowMinutes() / d.DurationMinutes
}
