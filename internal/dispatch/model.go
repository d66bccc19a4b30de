package dispatch

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/clinic-ops/internal/geo"
)

type UnitStatus string

const (
	UnitAvailable   UnitStatus = "available"
	UnitDispatched  UnitStatus = "dispatched"
	UnitBusy        UnitStatus = "busy"
	UnitMaintenance UnitStatus = "maintenance"
)

// Capability is the ambulance equipment tier, used as a dispatch tiebreak.
type Capability string

const (
	CapStandard Capability = "standard"
	CapICU      Capability = "icu"
	CapAdvanced Capability = "advanced"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Urgent reports whether the priority prefers higher-capability units.
func (p Priority) Urgent() bool {
	return p == PriorityHigh || p == PriorityCritical
}

type EmergencyStatus string

const (
	EmergencyPending    EmergencyStatus = "pending"
	EmergencyDispatched EmergencyStatus = "dispatched"
	EmergencyInTransit  EmergencyStatus = "in_transit"
	EmergencyArrived    EmergencyStatus = "arrived"
	EmergencyCompleted  EmergencyStatus = "completed"
	EmergencyCancelled  EmergencyStatus = "cancelled"
)

func (s EmergencyStatus) Terminal() bool {
	return s == EmergencyCompleted || s == EmergencyCancelled
}

// Unit is a clinic-owned dispatchable vehicle. IdleSince is set only
// while the unit is AVAILABLE.
type Unit struct {
	ID         uuid.UUID
	ClinicID   uuid.UUID
	Callsign   string
	Status     UnitStatus
	Location   *geo.Coordinate
	Capability Capability
	IdleSince  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Emergency struct {
	ID           uuid.UUID
	ClinicID     uuid.UUID
	Location     geo.Coordinate
	Priority     Priority
	Status       EmergencyStatus
	CreatedAt    time.Time
	DispatchedAt *time.Time
	ArrivedAt    *time.Time
	CompletedAt  *time.Time
	UpdatedAt    time.Time
}

// Assignment joins an emergency to at most one unit and one doctor. An
// emergency has at most one active assignment, and an active unit or
// doctor is never shared by two assignments.
type Assignment struct {
	ID         uuid.UUID
	Emergency  uuid.UUID
	UnitID     *uuid.UUID
	DoctorID   *uuid.UUID
	DistanceKm *float64
	Active     bool
	AssignedAt time.Time
}
