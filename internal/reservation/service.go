package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicware/clinic-ops/internal/directory"
	redisclient "github.com/clinicware/clinic-ops/internal/redis"
)

type Service struct {
	repo    Repository
	dir     directory.Repository
	locker  redisclient.CalendarLocker
	holdTTL time.Duration
	log     *zap.Logger
	now     func() time.Time
}

func NewService(repo Repository, dir directory.Repository, locker redisclient.CalendarLocker, holdTTL time.Duration, log *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		dir:     dir,
		locker:  locker,
		holdTTL: holdTTL,
		log:     log,
		now:     time.Now,
	}
}

type CreateHoldParams struct {
	DoctorID    uuid.UUID
	ClinicID    uuid.UUID
	PatientID   uuid.UUID
	StartTime   time.Time
	DurationMin int
	Info        PatientInfo
}

// CreateHold reserves a slot for a patient as a time-limited hold.
// Conflict checking and the insert run under a per-doctor calendar lock,
// and the store's uniqueness constraint backstops the race: two holds for
// an overlapping interval can never both commit.
func (s *Service) CreateHold(ctx context.Context, p CreateHoldParams) (*Appointment, error) {
	doctor, err := s.dir.GetDoctorByID(ctx, p.DoctorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.dir.GetClinicByID(ctx, p.ClinicID); err != nil {
		return nil, err
	}
	if doctor.ClinicID != p.ClinicID {
		return nil, ErrWrongClinic
	}
	if _, err := s.dir.GetPatientByID(ctx, p.PatientID); err != nil {
		return nil, err
	}

	now := s.now()
	if !p.StartTime.After(now) {
		return nil, ErrPastAppointment
	}
	if p.DurationMin <= 0 {
		return nil, ErrBadDuration
	}

	start := p.StartTime
	end := start.Add(time.Duration(p.DurationMin) * time.Minute)
	workDate := start.Truncate(24 * time.Hour)

	// The whole interval must sit on one work date. Everything downstream
	// (lock scope, conflict query, uniqueness key) is per doctor per day,
	// so an interval spanning midnight would dodge the adjacent day's
	// checks entirely.
	if end.After(workDate.Add(24 * time.Hour)) {
		return nil, ErrCrossesDay
	}

	leaves, err := s.dir.ListApprovedLeaves(ctx, p.DoctorID, workDate)
	if err != nil {
		return nil, fmt.Errorf("check leaves: %w", err)
	}
	if len(leaves) > 0 {
		return nil, ErrLeaveConflict
	}

	var created *Appointment

	err = s.locker.WithCalendarLock(ctx, p.DoctorID, workDate, func(lockCtx context.Context) error {
		existing, err := s.repo.ListActiveByDoctorDate(lockCtx, p.DoctorID, workDate)
		if err != nil {
			return fmt.Errorf("load doctor calendar: %w", err)
		}

		for i := range existing {
			slot := &existing[i].Slot
			if slot.HoldLapsed(now) {
				// not yet reaped, does not block
				continue
			}
			if slot.Overlaps(start, end) {
				return ErrOverlap
			}
		}

		expiresAt := now.Add(s.holdTTL)
		slot := ScheduleSlot{
			ID:            uuid.New(),
			DoctorID:      p.DoctorID,
			ClinicID:      p.ClinicID,
			WorkDate:      workDate,
			StartTime:     start,
			EndTime:       end,
			Status:        SlotHold,
			HoldExpiresAt: &expiresAt,
		}
		appt := Appointment{
			ID:        uuid.New(),
			PatientID: p.PatientID,
			DoctorID:  p.DoctorID,
			ClinicID:  p.ClinicID,
			SlotID:    slot.ID,
			StartTime: start,
			Status:    StatusPending,
			Info:      p.Info,
		}

		created, err = s.repo.CreateHold(lockCtx, slot, appt)
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrOverlap
			}
			return fmt.Errorf("create hold: %w", err)
		}

		s.log.Info("hold created",
			zap.String("appointment_id", created.ID.String()),
			zap.String("doctor_id", p.DoctorID.String()),
			zap.Time("start", start),
			zap.Time("expires_at", expiresAt),
		)
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrCalendarBusy
		}
		return nil, err
	}

	return created, nil
}

// ConfirmHold converts a pending hold into a booked appointment. Only the
// owning patient may confirm, and only while the hold is alive.
func (s *Service) ConfirmHold(ctx context.Context, apptID, callerID uuid.UUID, info PatientInfo) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		return nil, err
	}

	if appt.PatientID != callerID {
		return nil, ErrForbidden
	}
	if appt.Status != StatusPending {
		return nil, ErrInvalidState
	}

	slot, err := s.repo.GetSlotByID(ctx, appt.SlotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			// reaper removed the slot between our reads
			return nil, ErrHoldExpired
		}
		return nil, err
	}
	if slot.Status != SlotHold || slot.HoldExpiresAt == nil {
		return nil, ErrInvalidState
	}

	now := s.now()
	if !now.Before(*slot.HoldExpiresAt) {
		return nil, ErrHoldExpired
	}

	updated, err := s.repo.ConfirmHold(ctx, apptID, now, info)
	if err != nil {
		return nil, err
	}

	s.log.Info("hold confirmed", zap.String("appointment_id", apptID.String()))
	return updated, nil
}

// Cancel moves a non-terminal appointment to a cancelled status. The
// owning patient cancels as CANCELLED, the appointment's doctor as
// CANCELLED_BY_DOCTOR. The slot stays behind as BLOCKED for audit.
func (s *Service) Cancel(ctx context.Context, apptID, callerID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		return nil, err
	}

	var target AppointmentStatus
	switch callerID {
	case appt.PatientID:
		target = StatusCancelled
	case appt.DoctorID:
		target = StatusCancelledByDoctor
	default:
		return nil, ErrForbidden
	}

	if appt.Status.Terminal() {
		return nil, ErrInvalidState
	}

	updated, err := s.repo.CancelAppointment(ctx, apptID, appt.Status, target)
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment cancelled",
		zap.String("appointment_id", apptID.String()),
		zap.String("status", string(target)),
	)
	return updated, nil
}

// BusySchedule returns the doctor's occupied intervals: booked
// appointments, live holds, and approved leaves.
func (s *Service) BusySchedule(ctx context.Context, doctorID uuid.UUID) ([]BusyEntry, error) {
	if _, err := s.dir.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	now := s.now()

	items, err := s.repo.ListActiveByDoctorFrom(ctx, doctorID, now)
	if err != nil {
		return nil, fmt.Errorf("load doctor calendar: %w", err)
	}

	var entries []BusyEntry
	for i := range items {
		slot := &items[i].Slot
		if slot.HoldLapsed(now) {
			continue
		}
		kind := BusyAppointment
		reason := "booked appointment"
		if slot.Status == SlotHold {
			kind = BusyHold
			reason = "pending hold"
		}
		entries = append(entries, BusyEntry{
			Kind:   kind,
			Start:  slot.StartTime,
			End:    slot.EndTime,
			Reason: reason,
		})
	}

	leaves, err := s.dir.ListDoctorLeaves(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load leaves: %w", err)
	}
	for _, l := range leaves {
		reason := "approved leave"
		if l.Reason != nil {
			reason = *l.Reason
		}
		entries = append(entries, BusyEntry{
			Kind:   BusyLeave,
			Start:  l.FromDate,
			End:    l.ToDate.Add(24 * time.Hour),
			Reason: reason,
		})
	}

	return entries, nil
}
