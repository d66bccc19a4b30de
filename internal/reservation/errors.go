package reservation

import "errors"

var (
	ErrSlotNotFound        = errors.New("schedule slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned by the store when an insert loses the
	// (doctor, work date, start time) uniqueness race.
	ErrSlotTaken = errors.New("slot already taken for this doctor")

	ErrPastAppointment = errors.New("appointment time must be in the future")
	ErrBadDuration     = errors.New("appointment duration must be positive")

	// ErrCrossesDay rejects intervals spilling past midnight; conflict
	// checks and the slot uniqueness key are scoped to one work date.
	ErrCrossesDay = errors.New("appointment must end within its work date")
	ErrWrongClinic     = errors.New("doctor does not belong to this clinic")
	ErrLeaveConflict   = errors.New("doctor has approved leave on that date")
	ErrOverlap         = errors.New("requested interval overlaps an existing booking")
	ErrHoldExpired     = errors.New("hold has expired, restart the booking")
	ErrForbidden       = errors.New("caller does not own this appointment")
	ErrInvalidState    = errors.New("operation not valid for current appointment status")

	// ErrCalendarBusy means another booking for the same doctor holds the
	// calendar lock; the caller should retry.
	ErrCalendarBusy = errors.New("doctor calendar is being booked, please retry")
)
