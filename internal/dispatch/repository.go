package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AssignParams is the atomic commit of a dispatch decision: claim the
// unit (if any), retire the previous assignment (if any), insert the new
// one, and move the emergency to DISPATCHED, all in one unit of work.
type AssignParams struct {
	EmergencyID uuid.UUID
	UnitID      *uuid.UUID
	DoctorID    *uuid.UUID
	DistanceKm  *float64
	At          time.Time
}

// Repository contains all store interactions for units, emergencies and
// assignments. Unit rows are written by this package only.
type Repository interface {
	GetUnitByID(ctx context.Context, id uuid.UUID) (*Unit, error)

	// ListAvailableUnits returns the clinic's AVAILABLE units.
	ListAvailableUnits(ctx context.Context, clinicID uuid.UUID) ([]Unit, error)

	CreateEmergency(ctx context.Context, e Emergency) (*Emergency, error)
	GetEmergencyByID(ctx context.Context, id uuid.UUID) (*Emergency, error)

	// Assign commits a dispatch decision. The unit claim inside is
	// compare-and-set on AVAILABLE; losing it returns ErrUnitClaimed with
	// nothing written. A previously active assignment is deactivated and
	// its unit released.
	Assign(ctx context.Context, p AssignParams) (*Assignment, error)

	// SetEmergencyStatus transitions the emergency from one status to
	// another, stamping arrived/completed timestamps by target. Zero rows
	// (concurrent transition) returns ErrInvalidTransition.
	SetEmergencyStatus(ctx context.Context, id uuid.UUID, from, to EmergencyStatus, at time.Time) (*Emergency, error)

	// ReleaseEmergencyResources deactivates the active assignment and
	// returns its unit to AVAILABLE with a fresh idle timestamp. No-op
	// when nothing is assigned.
	ReleaseEmergencyResources(ctx context.Context, emergencyID uuid.UUID, at time.Time) error

	GetActiveAssignment(ctx context.Context, emergencyID uuid.UUID) (*Assignment, error)
	DoctorHasActiveAssignment(ctx context.Context, doctorID uuid.UUID) (bool, error)
	CountDoctorAssignments(ctx context.Context, doctorID uuid.UUID, since time.Time) (int, error)

	// DoctorBusyAt reports whether the doctor has a booked appointment
	// whose interval contains the given instant.
	DoctorBusyAt(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error)
}
