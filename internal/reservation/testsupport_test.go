package reservation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/clinic-ops/internal/directory"
	"github.com/clinicware/clinic-ops/internal/geo"
)

// memRepo is an in-memory Repository with the same guard semantics as
// the Postgres implementation, including the uniqueness constraint on
// (doctor, work date, start time).
type memRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*ScheduleSlot
	appts map[uuid.UUID]*Appointment
}

func newMemRepo() *memRepo {
	return &memRepo{
		slots: make(map[uuid.UUID]*ScheduleSlot),
		appts: make(map[uuid.UUID]*Appointment),
	}
}

func (m *memRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*ScheduleSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) GetAppointmentBySlot(_ context.Context, slotID uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.SlotID == slotID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func blocking(status AppointmentStatus) bool {
	switch status {
	case StatusCancelled, StatusCancelledByDoctor, StatusRejected, StatusExpired:
		return false
	}
	return true
}

func (m *memRepo) ListActiveByDoctorDate(_ context.Context, doctorID uuid.UUID, workDate time.Time) ([]AppointmentWithSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []AppointmentWithSlot
	for _, a := range m.appts {
		if a.DoctorID != doctorID || !blocking(a.Status) {
			continue
		}
		slot, ok := m.slots[a.SlotID]
		if !ok || !slot.WorkDate.Equal(workDate) {
			continue
		}
		result = append(result, AppointmentWithSlot{Appointment: *a, Slot: *slot})
	}
	return result, nil
}

func (m *memRepo) ListActiveByDoctorFrom(_ context.Context, doctorID uuid.UUID, from time.Time) ([]AppointmentWithSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []AppointmentWithSlot
	for _, a := range m.appts {
		if a.DoctorID != doctorID || !blocking(a.Status) {
			continue
		}
		slot, ok := m.slots[a.SlotID]
		if !ok || !slot.EndTime.After(from) {
			continue
		}
		result = append(result, AppointmentWithSlot{Appointment: *a, Slot: *slot})
	}
	return result, nil
}

func (m *memRepo) CreateHold(_ context.Context, slot ScheduleSlot, appt Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	// lazy reap of lapsed holds on this calendar, as the store does
	for id, s := range m.slots {
		if s.DoctorID == slot.DoctorID && s.WorkDate.Equal(slot.WorkDate) && s.HoldLapsed(now) {
			for aid, a := range m.appts {
				if a.SlotID == id && a.Status == StatusPending {
					delete(m.appts, aid)
				}
			}
			delete(m.slots, id)
		}
	}

	for _, s := range m.slots {
		if s.DoctorID == slot.DoctorID && s.WorkDate.Equal(slot.WorkDate) && s.StartTime.Equal(slot.StartTime) {
			return nil, ErrSlotTaken
		}
	}

	slot.CreatedAt = now
	slot.UpdatedAt = now
	appt.CreatedAt = now
	appt.UpdatedAt = now

	slotCopy := slot
	apptCopy := appt
	m.slots[slot.ID] = &slotCopy
	m.appts[appt.ID] = &apptCopy

	result := appt
	return &result, nil
}

func (m *memRepo) ConfirmHold(_ context.Context, apptID uuid.UUID, now time.Time, info PatientInfo) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[apptID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	s, ok := m.slots[a.SlotID]
	if !ok || s.Status != SlotHold || s.HoldExpiresAt == nil || !s.HoldExpiresAt.After(now) {
		return nil, ErrHoldExpired
	}
	if a.Status != StatusPending {
		return nil, ErrInvalidState
	}

	s.Status = SlotBooked
	s.HoldExpiresAt = nil
	a.Status = StatusConfirmed
	if info.Age != nil {
		a.Info.Age = info.Age
	}
	if info.Gender != nil {
		a.Info.Gender = info.Gender
	}
	if info.Symptoms != nil {
		a.Info.Symptoms = info.Symptoms
	}

	cp := *a
	return &cp, nil
}

func (m *memRepo) CancelAppointment(_ context.Context, apptID uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[apptID]
	if !ok || a.Status != from {
		return nil, ErrInvalidState
	}
	a.Status = to
	if s, ok := m.slots[a.SlotID]; ok {
		s.Status = SlotBlocked
		s.HoldExpiresAt = nil
	}

	cp := *a
	return &cp, nil
}

func (m *memRepo) FindExpiredHoldSlots(_ context.Context, now time.Time) ([]ScheduleSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []ScheduleSlot
	for _, s := range m.slots {
		if s.Status == SlotHold && s.HoldExpiresAt != nil && s.HoldExpiresAt.Before(now) {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *memRepo) FindStalePending(_ context.Context, createdBefore time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appts {
		if a.Status == StatusPending && a.CreatedAt.Before(createdBefore) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *memRepo) DeleteAppointmentCascade(_ context.Context, apptID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appts[apptID]
	if !ok {
		return nil
	}
	delete(m.appts, apptID)
	delete(m.slots, a.SlotID)
	return nil
}

func (m *memRepo) DeleteHoldSlot(_ context.Context, slotID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.slots[slotID]; ok && s.Status == SlotHold {
		delete(m.slots, slotID)
	}
	return nil
}

// mutate runs fn against the stored appointment and slot, for tests that
// need to push state around (expire a hold, complete a visit).
func (m *memRepo) mutate(apptID uuid.UUID, fn func(a *Appointment, s *ScheduleSlot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.appts[apptID]
	fn(a, m.slots[a.SlotID])
}

// memLocker serializes all calendars with one mutex, which is enough for
// tests.
type memLocker struct {
	mu sync.Mutex
}

func (l *memLocker) WithCalendarLock(ctx context.Context, _ uuid.UUID, _ time.Time, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

// memDirectory is a fixture-backed directory.Repository.
type memDirectory struct {
	clinics  map[uuid.UUID]*directory.Clinic
	doctors  map[uuid.UUID]*directory.Doctor
	patients map[uuid.UUID]*directory.Patient
	leaves   []directory.LeaveRequest
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		clinics:  make(map[uuid.UUID]*directory.Clinic),
		doctors:  make(map[uuid.UUID]*directory.Doctor),
		patients: make(map[uuid.UUID]*directory.Patient),
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

func (d *memDirectory) addDoctor(clinicID uuid.UUID) uuid.UUID {
	id := uuid.New()
	d.doctors[id] = &directory.Doctor{
		ID: id, ClinicID: clinicID, Name: "doctor",
		Approval: directory.ApprovalApproved,
	}
	return id
}

func (d *memDirectory) addPatient() uuid.UUID {
	id := uuid.New()
	d.patients[id] = &directory.Patient{ID: id, Name: "patient"}
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
	p, ok := d.patients[id]
	if !ok {
		return nil, directory.ErrPatientNotFound
	}
	return p, nil
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

func (d *memDirectory) ListApprovedLeaves(_ context.Context, doctorID uuid.UUID, day time.Time) ([]directory.LeaveRequest, error) {
	var result []directory.LeaveRequest
	for _, l := range d.leaves {
		if l.DoctorID == doctorID && l.Status == directory.LeaveApproved && l.Covers(day) {
			result = append(result, l)
		}
	}
	return result, nil
}

func (d *memDirectory) ListDoctorLeaves(_ context.Context, doctorID uuid.UUID) ([]directory.LeaveRequest, error) {
	var result []directory.LeaveRequest
	for _, l := range d.leaves {
		if l.DoctorID == doctorID && l.Status == directory.LeaveApproved {
			result = append(result, l)
		}
	}
	return result, nil
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
