package directory

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/clinic-ops/internal/geo"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

type Clinic struct {
	ID               uuid.UUID
	Name             string
	Location         *geo.Coordinate
	EmergencyEnabled bool
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Doctor struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Specialty *string
	Approval  ApprovalStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeaveRequest blocks a doctor's whole calendar for a date range once
// approved. Dates are inclusive on both ends.
type LeaveRequest struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	FromDate time.Time
	ToDate   time.Time
	Status   LeaveStatus
	Reason   *string
}

// Covers reports whether the leave range contains the given day.
func (l LeaveRequest) Covers(day time.Time) bool {
	d := day.Truncate(24 * time.Hour)
	return !d.Before(l.FromDate.Truncate(24*time.Hour)) && !d.After(l.ToDate.Truncate(24*time.Hour))
}
