package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// nonBlockingStatuses are appointment states that release the doctor's
// calendar. Everything else participates in conflict checks.
const nonBlockingStatuses = `('cancelled', 'cancelled_by_doctor', 'rejected', 'expired')`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanSlot(row pgx.Row) (*ScheduleSlot, error) {
	var s ScheduleSlot
	var holdExpiresAt *time.Time

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.ClinicID,
		&s.WorkDate,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&holdExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.HoldExpiresAt = holdExpiresAt
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ClinicID,
		&a.SlotID,
		&a.StartTime,
		&a.Status,
		&a.Info.Age,
		&a.Info.Gender,
		&a.Info.Symptoms,
		&a.DoctorNotes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

const slotColumns = `id, doctor_id, clinic_id, work_date, start_time, end_time, status, hold_expires_at, created_at, updated_at`
const apptColumns = `id, patient_id, doctor_id, clinic_id, slot_id, start_time, status, age, gender, symptoms, doctor_notes, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*ScheduleSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM schedule_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentBySlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE slot_id = $1
	`, slotID)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveByDoctorDate(ctx context.Context, doctorID uuid.UUID, workDate time.Time) ([]AppointmentWithSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.`+joinColumns()+`
		FROM appointments a
		JOIN schedule_slots s ON s.id = a.slot_id
		WHERE a.doctor_id = $1
		  AND s.work_date = $2::date
		  AND a.status NOT IN `+nonBlockingStatuses+`
	`, doctorID, workDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWithSlots(rows)
}

func (r *PgRepository) ListActiveByDoctorFrom(ctx context.Context, doctorID uuid.UUID, from time.Time) ([]AppointmentWithSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.`+joinColumns()+`
		FROM appointments a
		JOIN schedule_slots s ON s.id = a.slot_id
		WHERE a.doctor_id = $1
		  AND s.end_time > $2
		  AND a.status NOT IN `+nonBlockingStatuses+`
		ORDER BY s.start_time
	`, doctorID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWithSlots(rows)
}

func joinColumns() string {
	return `id, a.patient_id, a.doctor_id, a.clinic_id, a.slot_id, a.start_time, a.status,
	        a.age, a.gender, a.symptoms, a.doctor_notes, a.created_at, a.updated_at,
	        s.id, s.doctor_id, s.clinic_id, s.work_date, s.start_time, s.end_time, s.status,
	        s.hold_expires_at, s.created_at, s.updated_at`
}

func collectWithSlots(rows pgx.Rows) ([]AppointmentWithSlot, error) {
	var result []AppointmentWithSlot
	for rows.Next() {
		var item AppointmentWithSlot
		err := rows.Scan(
			&item.ID,
			&item.PatientID,
			&item.DoctorID,
			&item.ClinicID,
			&item.SlotID,
			&item.StartTime,
			&item.Status,
			&item.Info.Age,
			&item.Info.Gender,
			&item.Info.Symptoms,
			&item.DoctorNotes,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.Slot.ID,
			&item.Slot.DoctorID,
			&item.Slot.ClinicID,
			&item.Slot.WorkDate,
			&item.Slot.StartTime,
			&item.Slot.EndTime,
			&item.Slot.Status,
			&item.Slot.HoldExpiresAt,
			&item.Slot.CreatedAt,
			&item.Slot.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateHold(ctx context.Context, slot ScheduleSlot, appt Appointment) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create hold: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lazily clear lapsed holds on this calendar so they cannot trip the
	// uniqueness constraint the reaper has not caught up with yet.
	_, err = tx.Exec(ctx, `
		DELETE FROM appointments a
		USING schedule_slots s
		WHERE a.slot_id = s.id
		  AND s.doctor_id = $1
		  AND s.work_date = $2
		  AND s.status = 'hold'
		  AND s.hold_expires_at < now()
		  AND a.status = 'pending'
	`, slot.DoctorID, slot.WorkDate)
	if err != nil {
		return nil, fmt.Errorf("clear lapsed hold appointments: %w", err)
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM schedule_slots
		WHERE doctor_id = $1
		  AND work_date = $2
		  AND status = 'hold'
		  AND hold_expires_at < now()
	`, slot.DoctorID, slot.WorkDate)
	if err != nil {
		return nil, fmt.Errorf("clear lapsed hold slots: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO schedule_slots (id, doctor_id, clinic_id, work_date, start_time, end_time, status, hold_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'hold', $7, now(), now())
	`, slot.ID, slot.DoctorID, slot.ClinicID, slot.WorkDate, slot.StartTime, slot.EndTime, slot.HoldExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert slot: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, clinic_id, slot_id, start_time, status, age, gender, symptoms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8, $9, now(), now())
		RETURNING `+apptColumns+`
	`, appt.ID, appt.PatientID, appt.DoctorID, appt.ClinicID, appt.SlotID, appt.StartTime,
		appt.Info.Age, appt.Info.Gender, appt.Info.Symptoms)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create hold: %w", err)
	}

	return created, nil
}

func (r *PgRepository) ConfirmHold(ctx context.Context, apptID uuid.UUID, now time.Time, info PatientInfo) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin confirm hold: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Guarded slot flip. Zero rows means the hold lapsed, the reaper won,
	// or someone else transitioned the slot first.
	tag, err := tx.Exec(ctx, `
		UPDATE schedule_slots s
		SET status = 'booked',
		    hold_expires_at = NULL,
		    updated_at = now()
		FROM appointments a
		WHERE a.id = $1
		  AND s.id = a.slot_id
		  AND s.status = 'hold'
		  AND s.hold_expires_at > $2
	`, apptID, now)
	if err != nil {
		return nil, fmt.Errorf("book slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrHoldExpired
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'confirmed',
		    age = COALESCE($2, age),
		    gender = COALESCE($3, gender),
		    symptoms = COALESCE($4, symptoms),
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING `+apptColumns+`
	`, apptID, info.Age, info.Gender, info.Symptoms)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit confirm hold: %w", err)
	}

	return updated, nil
}

func (r *PgRepository) CancelAppointment(ctx context.Context, apptID uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancel: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+apptColumns+`
	`, apptID, from, to)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE schedule_slots
		SET status = 'blocked',
		    hold_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
	`, updated.SlotID)
	if err != nil {
		return nil, fmt.Errorf("block slot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}

	return updated, nil
}

func (r *PgRepository) FindExpiredHoldSlots(ctx context.Context, now time.Time) ([]ScheduleSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM schedule_slots
		WHERE status = 'hold'
		  AND hold_expires_at IS NOT NULL
		  AND hold_expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}

func (r *PgRepository) FindStalePending(ctx context.Context, createdBefore time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND created_at < $1
	`, createdBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}

func (r *PgRepository) DeleteAppointmentCascade(ctx context.Context, apptID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var slotID uuid.UUID
	err = tx.QueryRow(ctx, `
		DELETE FROM appointments
		WHERE id = $1
		RETURNING slot_id
	`, apptID).Scan(&slotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// already gone, sweep is idempotent
			return tx.Commit(ctx)
		}
		return fmt.Errorf("delete appointment: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM schedule_slots WHERE id = $1`, slotID); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) DeleteHoldSlot(ctx context.Context, slotID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM schedule_slots
		WHERE id = $1
		  AND status = 'hold'
	`, slotID)
	if err != nil {
		return fmt.Errorf("delete hold slot: %w", err)
	}
	return nil
}
