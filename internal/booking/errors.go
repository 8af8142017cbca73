package booking

import "errors"

// Typed outcomes reported to callers. Services wrap these with context via
// fmt.Errorf("...: %w", err); callers branch with errors.Is.
var (
	// ErrOutOfRange means the requested date or time falls outside the
	// slot definition's active date range or daily window.
	ErrOutOfRange = errors.New("date or time outside slot window")

	// ErrWrongWeekday means the requested date does not fall on the slot
	// definition's weekday.
	ErrWrongWeekday = errors.New("date does not match slot weekday")

	// ErrSlotInactive means the slot definition is disabled.
	ErrSlotInactive = errors.New("slot definition is inactive")

	// ErrNotAuthorized means the requester failed the allow-list check or
	// does not own the object being mutated.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrQuotaExceeded means the student already holds the maximum number
	// of simultaneous reservations the policy permits on this slot.
	ErrQuotaExceeded = errors.New("per-student reservation quota exceeded")

	// ErrTimeConflict means another reservation occupies the requested
	// window. This is the only error expected under normal concurrent
	// load; callers should re-query availability instead of failing hard.
	ErrTimeConflict = errors.New("time no longer available")

	// ErrInvalidTransition means a lifecycle transition was attempted from
	// a state that does not permit it.
	ErrInvalidTransition = errors.New("invalid reservation state transition")

	// ErrNotFound means the referenced row does not exist.
	ErrNotFound = errors.New("not found")
)
