package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicware/clinic-ops/internal/directory"
	"github.com/clinicware/clinic-ops/internal/geo"
)

// allowedTransitions holds the forward emergency lifecycle. CANCELLED is
// additionally reachable from any non-terminal status.
var allowedTransitions = map[EmergencyStatus][]EmergencyStatus{
	EmergencyPending:    {EmergencyDispatched},
	EmergencyDispatched: {EmergencyInTransit, EmergencyArrived},
	EmergencyInTransit:  {EmergencyArrived},
	EmergencyArrived:    {EmergencyCompleted},
}

type Service struct {
	repo Repository
	dir  directory.Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewService(repo Repository, dir directory.Repository, log *zap.Logger) *Service {
	return &Service{
		repo: repo,
		dir:  dir,
		log:  log,
		now:  time.Now,
	}
}

type DispatchResult struct {
	Emergency  *Emergency
	Assignment *Assignment
}

// Dispatch creates an emergency case and assigns the best available unit
// and an idle doctor. Unit claiming is compare-and-set, so concurrent
// dispatches in the same clinic never share a unit; when every candidate
// is claimed away the dispatch proceeds doctor-only.
func (s *Service) Dispatch(ctx context.Context, clinicID *uuid.UUID, patientLoc geo.Coordinate, priority Priority) (*DispatchResult, error) {
	clinic, err := s.resolveClinic(ctx, clinicID, patientLoc)
	if err != nil {
		return nil, err
	}

	now := s.now()
	emergency, err := s.repo.CreateEmergency(ctx, Emergency{
		ID:       uuid.New(),
		ClinicID: clinic.ID,
		Location: patientLoc,
		Priority: priority,
		Status:   EmergencyPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create emergency: %w", err)
	}

	doctorID, err := s.pickDoctor(ctx, clinic.ID, now)
	if err != nil {
		return nil, err
	}

	units, err := s.repo.ListAvailableUnits(ctx, clinic.ID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}

	// Walk ranked candidates; a claim that loses its compare-and-set
	// falls through to the next. Losing the doctor's claim instead drops
	// the doctor and keeps the unit.
	var assignment *Assignment
	for _, cand := range rankCandidates(units, patientLoc, priority) {
		unitID := cand.unit.ID
		assignment, err = s.repo.Assign(ctx, AssignParams{
			EmergencyID: emergency.ID,
			UnitID:      &unitID,
			DoctorID:    doctorID,
			DistanceKm:  cand.distanceKm,
			At:          now,
		})
		if errors.Is(err, ErrDoctorClaimed) {
			doctorID = nil
			assignment, err = s.repo.Assign(ctx, AssignParams{
				EmergencyID: emergency.ID,
				UnitID:      &unitID,
				DistanceKm:  cand.distanceKm,
				At:          now,
			})
		}
		if err == nil {
			break
		}
		if errors.Is(err, ErrUnitClaimed) {
			continue
		}
		return nil, fmt.Errorf("assign unit: %w", err)
	}

	if assignment == nil && doctorID != nil {
		assignment, err = s.repo.Assign(ctx, AssignParams{
			EmergencyID: emergency.ID,
			DoctorID:    doctorID,
			At:          now,
		})
		if errors.Is(err, ErrDoctorClaimed) {
			// nothing left to pin, the emergency stays pending
			assignment, err = nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("assign doctor: %w", err)
		}
	}

	emergency, err = s.repo.GetEmergencyByID(ctx, emergency.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("emergency dispatched",
		zap.String("emergency_id", emergency.ID.String()),
		zap.String("clinic_id", clinic.ID.String()),
		zap.String("priority", string(priority)),
		zap.Bool("unit_assigned", assignment != nil && assignment.UnitID != nil),
		zap.Bool("doctor_assigned", doctorID != nil),
	)

	return &DispatchResult{Emergency: emergency, Assignment: assignment}, nil
}

// UpdateStatus applies a lifecycle transition. Reaching COMPLETED or
// CANCELLED releases the assigned unit back to the pool with a fresh idle
// timestamp.
func (s *Service) UpdateStatus(ctx context.Context, emergencyID uuid.UUID, to EmergencyStatus) (*Emergency, error) {
	emergency, err := s.repo.GetEmergencyByID(ctx, emergencyID)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(emergency.Status, to) {
		return nil, ErrInvalidTransition
	}

	if to == EmergencyDispatched {
		assignment, err := s.repo.GetActiveAssignment(ctx, emergencyID)
		if err != nil {
			if errors.Is(err, ErrAssignmentNotFound) {
				return nil, ErrInvalidTransition
			}
			return nil, err
		}
		if assignment.DoctorID == nil {
			return nil, ErrInvalidTransition
		}
	}

	now := s.now()
	updated, err := s.repo.SetEmergencyStatus(ctx, emergencyID, emergency.Status, to, now)
	if err != nil {
		return nil, err
	}

	if to.Terminal() {
		if err := s.repo.ReleaseEmergencyResources(ctx, emergencyID, now); err != nil {
			return nil, fmt.Errorf("release resources: %w", err)
		}
	}

	s.log.Info("emergency status updated",
		zap.String("emergency_id", emergencyID.String()),
		zap.String("status", string(to)),
	)
	return updated, nil
}

func transitionAllowed(from, to EmergencyStatus) bool {
	if to == EmergencyCancelled {
		return !from.Terminal()
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Reassign is the dispatcher override: pin the emergency to a specific
// doctor and optionally a specific unit, releasing whatever was assigned
// before.
func (s *Service) Reassign(ctx context.Context, emergencyID, doctorID uuid.UUID, unitID *uuid.UUID) (*Assignment, error) {
	emergency, err := s.repo.GetEmergencyByID(ctx, emergencyID)
	if err != nil {
		return nil, err
	}
	if emergency.Status.Terminal() {
		return nil, ErrInvalidTransition
	}

	doctor, err := s.dir.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.ClinicID != emergency.ClinicID {
		return nil, ErrWrongClinic
	}
	if doctor.Approval != directory.ApprovalApproved {
		return nil, ErrDoctorUnavailable
	}

	now := s.now()

	// The doctor may already hold this emergency's own assignment; only
	// assignments elsewhere make them ineligible.
	current, err := s.repo.GetActiveAssignment(ctx, emergencyID)
	if err != nil && !errors.Is(err, ErrAssignmentNotFound) {
		return nil, err
	}
	alreadyOurs := current != nil && current.DoctorID != nil && *current.DoctorID == doctorID
	if !alreadyOurs {
		taken, err := s.repo.DoctorHasActiveAssignment(ctx, doctorID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrDoctorUnavailable
		}
	}
	busy, err := s.repo.DoctorBusyAt(ctx, doctorID, now)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrDoctorUnavailable
	}

	var distance *float64
	if unitID != nil {
		unit, err := s.repo.GetUnitByID(ctx, *unitID)
		if err != nil {
			return nil, err
		}
		if unit.ClinicID != emergency.ClinicID {
			return nil, ErrWrongClinic
		}
		if unit.Status != UnitAvailable {
			return nil, ErrUnitClaimed
		}
		if unit.Location != nil {
			d := geo.DistanceKm(*unit.Location, emergency.Location)
			distance = &d
		}
	}

	assignment, err := s.repo.Assign(ctx, AssignParams{
		EmergencyID: emergencyID,
		UnitID:      unitID,
		DoctorID:    &doctorID,
		DistanceKm:  distance,
		At:          now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("emergency reassigned",
		zap.String("emergency_id", emergencyID.String()),
		zap.String("doctor_id", doctorID.String()),
	)
	return assignment, nil
}

// resolveClinic picks the dispatch clinic: the caller's choice when
// given, otherwise the nearest emergency-enabled clinic to the patient.
func (s *Service) resolveClinic(ctx context.Context, clinicID *uuid.UUID, patientLoc geo.Coordinate) (*directory.Clinic, error) {
	if clinicID != nil {
		return s.dir.GetClinicByID(ctx, *clinicID)
	}

	clinics, err := s.dir.ListEmergencyClinics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list emergency clinics: %w", err)
	}
	if len(clinics) == 0 {
		return nil, ErrNoEmergencyClinic
	}

	var best *directory.Clinic
	var bestDist float64
	for i := range clinics {
		c := &clinics[i]
		if c.Location == nil {
			continue
		}
		d := geo.DistanceKm(*c.Location, patientLoc)
		if best == nil || d < bestDist {
			best = c
			bestDist = d
		}
	}
	if best != nil {
		return best, nil
	}

	// none report coordinates
	return &clinics[0], nil
}

// pickDoctor selects an idle approved doctor: no active assignment, no
// appointment in progress, fewest assignments today.
func (s *Service) pickDoctor(ctx context.Context, clinicID uuid.UUID, now time.Time) (*uuid.UUID, error) {
	doctors, err := s.dir.ListApprovedDoctorsByClinic(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var bestID *uuid.UUID
	bestCount := -1
	for _, d := range doctors {
		taken, err := s.repo.DoctorHasActiveAssignment(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}
		busy, err := s.repo.DoctorBusyAt(ctx, d.ID, now)
		if err != nil {
			return nil, err
		}
		if busy {
			continue
		}

		count, err := s.repo.CountDoctorAssignments(ctx, d.ID, startOfDay)
		if err != nil {
			return nil, err
		}
		if bestID == nil || count < bestCount ||
			(count == bestCount && d.ID.String() < bestID.String()) {
			id := d.ID
			bestID = &id
			bestCount = count
		}
	}

	return bestID, nil
}
