package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions needed by the service and
// the sweeper. Slot and appointment rows are written by this package only.
type Repository interface {
	GetSlotByID(ctx context.Context, id uuid.UUID) (*ScheduleSlot, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentBySlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error)

	// ListActiveByDoctorDate returns non-cancelled appointments with their
	// slots for one doctor and work date. Used for conflict checks.
	ListActiveByDoctorDate(ctx context.Context, doctorID uuid.UUID, workDate time.Time) ([]AppointmentWithSlot, error)

	// ListActiveByDoctorFrom returns non-cancelled appointments with their
	// slots for a doctor starting at the given instant. Used for the busy
	// schedule view.
	ListActiveByDoctorFrom(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]AppointmentWithSlot, error)

	// CreateHold inserts the slot and its appointment as one atomic unit.
	// Losing the (doctor_id, work_date, start_time) uniqueness race
	// returns ErrSlotTaken with nothing written.
	CreateHold(ctx context.Context, slot ScheduleSlot, appt Appointment) (*Appointment, error)

	// ConfirmHold flips slot HOLD->BOOKED (expiry cleared) and appointment
	// PENDING->CONFIRMED in one atomic unit, merging the optional patient
	// info. The slot update is guarded on status and unexpired hold, so a
	// racing reaper or double confirm makes it fail with ErrHoldExpired.
	ConfirmHold(ctx context.Context, apptID uuid.UUID, now time.Time, info PatientInfo) (*Appointment, error)

	// CancelAppointment moves the appointment from its current status to a
	// cancelled status and blocks the slot, atomically. A zero-row update
	// (concurrent transition) returns ErrInvalidState.
	CancelAppointment(ctx context.Context, apptID uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Sweeper surface.
	FindExpiredHoldSlots(ctx context.Context, now time.Time) ([]ScheduleSlot, error)
	FindStalePending(ctx context.Context, createdBefore time.Time) ([]Appointment, error)
	DeleteAppointmentCascade(ctx context.Context, apptID uuid.UUID) error
	DeleteHoldSlot(ctx context.Context, slotID uuid.UUID) error
}
