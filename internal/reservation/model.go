package reservation

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotHold      SlotStatus = "hold"
	SlotBooked    SlotStatus = "booked"
	SlotBlocked   SlotStatus = "blocked"
	SlotCompleted SlotStatus = "completed"
)

type AppointmentStatus string

const (
	StatusPending           AppointmentStatus = "pending"
	StatusConfirmed         AppointmentStatus = "confirmed"
	StatusCheckedIn         AppointmentStatus = "checked_in"
	StatusInProgress        AppointmentStatus = "in_progress"
	StatusReview            AppointmentStatus = "review"
	StatusCompleted         AppointmentStatus = "completed"
	StatusCancelled         AppointmentStatus = "cancelled"
	StatusCancelledByDoctor AppointmentStatus = "cancelled_by_doctor"
	StatusRejected          AppointmentStatus = "rejected"
	StatusNoShow            AppointmentStatus = "no_show"
	StatusExpired           AppointmentStatus = "expired"
)

// Terminal reports whether no further transition is allowed from the status.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusCancelledByDoctor,
		StatusRejected, StatusNoShow, StatusExpired:
		return true
	}
	return false
}

// ScheduleSlot is one doctor-clinic-date-time interval, the unit of
// scheduling conflict. A slot in HOLD status always carries HoldExpiresAt.
type ScheduleSlot struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	ClinicID      uuid.UUID
	WorkDate      time.Time
	StartTime     time.Time
	EndTime       time.Time
	Status        SlotStatus
	HoldExpiresAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HoldLapsed reports whether the slot is a hold whose expiry has passed.
// A lapsed hold no longer blocks the calendar even before the reaper
// removes it.
func (s *ScheduleSlot) HoldLapsed(now time.Time) bool {
	return s.Status == SlotHold && s.HoldExpiresAt != nil && s.HoldExpiresAt.Before(now)
}

// Overlaps checks the slot interval against [start, end). Touching
// boundaries do not overlap.
func (s *ScheduleSlot) Overlaps(start, end time.Time) bool {
	return start.Before(s.EndTime) && end.After(s.StartTime)
}

// PatientInfo is the patient-supplied metadata on a booking. All fields
// are optional and merged on confirmation.
type PatientInfo struct {
	Age      *int
	Gender   *string
	Symptoms *string
}

type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	ClinicID    uuid.UUID
	SlotID      uuid.UUID
	StartTime   time.Time
	Status      AppointmentStatus
	Info        PatientInfo
	DoctorNotes *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AppointmentWithSlot pairs an appointment with the slot it owns.
type AppointmentWithSlot struct {
	Appointment
	Slot ScheduleSlot
}

type BusyKind string

const (
	BusyAppointment BusyKind = "APPOINTMENT"
	BusyHold        BusyKind = "HOLD"
	BusyLeave       BusyKind = "LEAVE"
)

// BusyEntry is one occupied interval on a doctor's calendar.
type BusyEntry struct {
	Kind   BusyKind
	Start  time.Time
	End    time.Time
	Reason string
}
