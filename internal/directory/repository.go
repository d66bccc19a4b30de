package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClinicNotFound  = errors.New("clinic not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// Repository is the read-only collaborator surface the engine consumes.
// Clinic, doctor and patient administration lives elsewhere.
type Repository interface {
	GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// ListApprovedDoctorsByClinic returns clinic doctors with approved status.
	ListApprovedDoctorsByClinic(ctx context.Context, clinicID uuid.UUID) ([]Doctor, error)

	// ListApprovedLeaves returns approved leaves for a doctor whose date
	// range covers the given day.
	ListApprovedLeaves(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]LeaveRequest, error)

	// ListDoctorLeaves returns all approved leaves for a doctor, used for
	// the busy-schedule view.
	ListDoctorLeaves(ctx context.Context, doctorID uuid.UUID) ([]LeaveRequest, error)

	// ListEmergencyClinics returns active clinics flagged emergency-enabled.
	ListEmergencyClinics(ctx context.Context) ([]Clinic, error)
}
