package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/clinic-ops/internal/directory"
	"github.com/clinicware/clinic-ops/internal/geo"
)

// memRepo is an in-memory Repository with the same claim and release
// semantics as the Postgres implementation.
type memRepo struct {
	mu          sync.Mutex
	units       map[uuid.UUID]*Unit
	emergencies map[uuid.UUID]*Emergency
	assignments map[uuid.UUID]*Assignment
	booked      map[uuid.UUID][2]time.Time // doctor -> appointment interval
}

func newMemRepo() *memRepo {
	return &memRepo{
		units:       make(map[uuid.UUID]*Unit),
		emergencies: make(map[uuid.UUID]*Emergency),
		assignments: make(map[uuid.UUID]*Assignment),
		booked:      make(map[uuid.UUID][2]time.Time),
	}
}

func (m *memRepo) addUnit(clinicID uuid.UUID, cap Capability, loc *geo.Coordinate, idleSince time.Time) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.units[id] = &Unit{
		ID: id, ClinicID: clinicID, Callsign: "unit",
		Status: UnitAvailable, Location: loc,
		Capability: cap, IdleSince: &idleSince,
	}
	return id
}

func (m *memRepo) GetUnitByID(_ context.Context, id uuid.UUID) (*Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok {
		return nil, ErrUnitNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) ListAvailableUnits(_ context.Context, clinicID uuid.UUID) ([]Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Unit
	for _, u := range m.units {
		if u.ClinicID == clinicID && u.Status == UnitAvailable {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (m *memRepo) CreateEmergency(_ context.Context, e Emergency) (*Emergency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	cp := e
	m.emergencies[e.ID] = &cp
	result := e
	return &result, nil
}

func (m *memRepo) GetEmergencyByID(_ context.Context, id uuid.UUID) (*Emergency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emergencies[id]
	if !ok {
		return nil, ErrEmergencyNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memRepo) Assign(_ context.Context, p AssignParams) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prevUnit *uuid.UUID
	for _, a := range m.assignments {
		if a.Emergency == p.EmergencyID && a.Active {
			a.Active = false
			prevUnit = a.UnitID
		}
	}

	if prevUnit != nil && (p.UnitID == nil || *prevUnit != *p.UnitID) {
		if u, ok := m.units[*prevUnit]; ok {
			u.Status = UnitAvailable
			at := p.At
			u.IdleSince = &at
		}
	}

	if p.DoctorID != nil {
		for _, a := range m.assignments {
			if a.Active && a.DoctorID != nil && *a.DoctorID == *p.DoctorID {
				return nil, ErrDoctorClaimed
			}
		}
	}

	if p.UnitID != nil && (prevUnit == nil || *prevUnit != *p.UnitID) {
		u, ok := m.units[*p.UnitID]
		if !ok || u.Status != UnitAvailable {
			return nil, ErrUnitClaimed
		}
		u.Status = UnitDispatched
		u.IdleSince = nil
	}

	a := &Assignment{
		ID:         uuid.New(),
		Emergency:  p.EmergencyID,
		UnitID:     p.UnitID,
		DoctorID:   p.DoctorID,
		DistanceKm: p.DistanceKm,
		Active:     true,
		AssignedAt: p.At,
	}
	m.assignments[a.ID] = a

	if e, ok := m.emergencies[p.EmergencyID]; ok {
		e.Status = EmergencyDispatched
		if e.DispatchedAt == nil {
			at := p.At
			e.DispatchedAt = &at
		}
	}

	cp := *a
	return &cp, nil
}

func (m *memRepo) SetEmergencyStatus(_ context.Context, id uuid.UUID, from, to EmergencyStatus, at time.Time) (*Emergency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.emergencies[id]
	if !ok || e.Status != from {
		return nil, ErrInvalidTransition
	}
	e.Status = to
	switch to {
	case EmergencyArrived:
		e.ArrivedAt = &at
	case EmergencyCompleted, EmergencyCancelled:
		e.CompletedAt = &at
	}
	e.UpdatedAt = at

	cp := *e
	return &cp, nil
}

func (m *memRepo) ReleaseEmergencyResources(_ context.Context, emergencyID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.assignments {
		if a.Emergency == emergencyID && a.Active {
			a.Active = false
			if a.UnitID != nil {
				if u, ok := m.units[*a.UnitID]; ok {
					u.Status = UnitAvailable
					idle := at
					u.IdleSince = &idle
				}
			}
		}
	}
	return nil
}

func (m *memRepo) GetActiveAssignment(_ context.Context, emergencyID uuid.UUID) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.assignments {
		if a.Emergency == emergencyID && a.Active {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAssignmentNotFound
}

func (m *memRepo) DoctorHasActiveAssignment(_ context.Context, doctorID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.assignments {
		if a.Active && a.DoctorID != nil && *a.DoctorID == doctorID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) CountDoctorAssignments(_ context.Context, doctorID uuid.UUID, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, a := range m.assignments {
		if a.DoctorID != nil && *a.DoctorID == doctorID && !a.AssignedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memRepo) DoctorBusyAt(_ context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	iv, ok := m.booked[doctorID]
	return ok && !at.Before(iv[0]) && at.Before(iv[1]), nil
}

// memDirectory is a fixture-backed directory.Repository.
type memDirectory struct {
	clinics map[uuid.UUID]*directory.Clinic
	doctors map[uuid.UUID]*directory.Doctor
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		clinics: make(map[uuid.UUID]*directory.Clinic),
		doctors: make(map[uuid.UUID]*directory.Doctor),
	}
}

func (d *memDirectory) addClinic(loc *geo.Coordinate, emergency bool) uuid.UUID {
	id := uuid.New()
	d.clinics[id] = &directory.Clinic{
		ID: id, Name: "clinic", Location: loc,
		EmergencyEnabled: emergency, Active: true,
	}
	return id
}

func (d *memDirectory) addDoctor(clinicID uuid.UUID, approval directory.ApprovalStatus) uuid.UUID {
	id := uuid.New()
	d.doctors[id] = &directory.Doctor{
		ID: id, ClinicID: clinicID, Name: "doctor", Approval: approval,
	}
	return id
}

func (d *memDirectory) GetClinicByID(_ context.Context, id uuid.UUID) (*directory.Clinic, error) {
	c, ok := d.clinics[id]
	if !ok {
		return nil, directory.ErrClinicNotFound
	}
	return c, nil
}

func (d *memDirectory) GetDoctorByID(_ context.Context, id uuid.UUID) (*directory.Doctor, error) {
	doc, ok := d.doctors[id]
	if !ok {
		return nil, directory.ErrDoctorNotFound
	}
	return doc, nil
}

func (d *memDirectory) GetPatientByID(_ context.Context, id uuid.UUID) (*directory.Patient, error) {
	return nil, directory.ErrPatientNotFound
}

func (d *memDirectory) ListApprovedDoctorsByClinic(_ context.Context, clinicID uuid.UUID) ([]directory.Doctor, error) {
	var result []directory.Doctor
	for _, doc := range d.doctors {
		if doc.ClinicID == clinicID && doc.Approval == directory.ApprovalApproved {
			result = append(result, *doc)
		}
	}
	return result, nil
}

func (d *memDirectory) ListApprovedLeaves(_ context.Context, _ uuid.UUID, _ time.Time) ([]directory.LeaveRequest, error) {
	return nil, nil
}

func (d *memDirectory) ListDoctorLeaves(_ context.Context, _ uuid.UUID) ([]directory.LeaveRequest, error) {
	return nil, nil
}

func (d *memDirectory) ListEmergencyClinics(_ context.Context) ([]directory.Clinic, error) {
	var result []directory.Clinic
	for _, c := range d.clinics {
		if c.EmergencyEnabled && c.Active {
			result = append(result, *c)
		}
	}
	return result, nil
}
