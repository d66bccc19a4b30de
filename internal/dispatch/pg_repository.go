package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicware/clinic-ops/internal/geo"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const unitColumns = `id, clinic_id, callsign, status, lat, lon, capability, idle_since, created_at, updated_at`
const emergencyColumns = `id, clinic_id, lat, lon, priority, status, created_at, dispatched_at, arrived_at, completed_at, updated_at`
const assignmentColumns = `id, emergency_id, unit_id, doctor_id, distance_km, active, assigned_at`

func scanUnit(row pgx.Row) (*Unit, error) {
	var u Unit
	var lat, lon *float64

	err := row.Scan(
		&u.ID,
		&u.ClinicID,
		&u.Callsign,
		&u.Status,
		&lat,
		&lon,
		&u.Capability,
		&u.IdleSince,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}

	if lat != nil && lon != nil {
		u.Location = &geo.Coordinate{Lat: *lat, Lon: *lon}
	}
	return &u, nil
}

func scanEmergency(row pgx.Row) (*Emergency, error) {
	var e Emergency

	err := row.Scan(
		&e.ID,
		&e.ClinicID,
		&e.Location.Lat,
		&e.Location.Lon,
		&e.Priority,
		&e.Status,
		&e.CreatedAt,
		&e.DispatchedAt,
		&e.ArrivedAt,
		&e.CompletedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmergencyNotFound
		}
		return nil, err
	}

	return &e, nil
}

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment

	err := row.Scan(
		&a.ID,
		&a.Emergency,
		&a.UnitID,
		&a.DoctorID,
		&a.DistanceKm,
		&a.Active,
		&a.AssignedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

// Interface methods

func (r *PgRepository) GetUnitByID(ctx context.Context, id uuid.UUID) (*Unit, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+unitColumns+`
		FROM dispatch_units
		WHERE id = $1
	`, id)
	return scanUnit(row)
}

func (r *PgRepository) ListAvailableUnits(ctx context.Context, clinicID uuid.UUID) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+unitColumns+`
		FROM dispatch_units
		WHERE clinic_id = $1 AND status = 'available'
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}

	return result, rows.Err()
}

func (r *PgRepository) CreateEmergency(ctx context.Context, e Emergency) (*Emergency, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO emergencies (id, clinic_id, lat, lon, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', now(), now())
		RETURNING `+emergencyColumns+`
	`, e.ID, e.ClinicID, e.Location.Lat, e.Location.Lon, e.Priority)
	return scanEmergency(row)
}

func (r *PgRepository) GetEmergencyByID(ctx context.Context, id uuid.UUID) (*Emergency, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+emergencyColumns+`
		FROM emergencies
		WHERE id = $1
	`, id)
	return scanEmergency(row)
}

func (r *PgRepository) Assign(ctx context.Context, p AssignParams) (*Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin assign: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Retire the previous assignment and free its unit.
	var prevUnit *uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE assignments
		SET active = false
		WHERE emergency_id = $1 AND active
		RETURNING unit_id
	`, p.EmergencyID).Scan(&prevUnit)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("retire assignment: %w", err)
	}
	if prevUnit != nil && (p.UnitID == nil || *prevUnit != *p.UnitID) {
		if _, err := tx.Exec(ctx, `
			UPDATE dispatch_units
			SET status = 'available', idle_since = $2, updated_at = now()
			WHERE id = $1 AND status = 'dispatched'
		`, *prevUnit, p.At); err != nil {
			return nil, fmt.Errorf("release previous unit: %w", err)
		}
	}

	// Compare-and-set claim. Zero rows means another emergency got the
	// unit first; nothing is committed.
	if p.UnitID != nil {
		claimed := prevUnit != nil && *prevUnit == *p.UnitID
		if !claimed {
			tag, err := tx.Exec(ctx, `
				UPDATE dispatch_units
				SET status = 'dispatched', idle_since = NULL, updated_at = now()
				WHERE id = $1 AND status = 'available'
			`, *p.UnitID)
			if err != nil {
				return nil, fmt.Errorf("claim unit: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return nil, ErrUnitClaimed
			}
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO assignments (id, emergency_id, unit_id, doctor_id, distance_km, active, assigned_at)
		VALUES ($1, $2, $3, $4, $5, true, $6)
		RETURNING `+assignmentColumns+`
	`, uuid.New(), p.EmergencyID, p.UnitID, p.DoctorID, p.DistanceKm, p.At)

	assignment, err := scanAssignment(row)
	if err != nil {
		// The partial unique index on active doctor assignments is the
		// backstop for the read-then-write doctor pick.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "assignments_doctor_active_idx" {
			return nil, ErrDoctorClaimed
		}
		return nil, fmt.Errorf("insert assignment: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE emergencies
		SET status = 'dispatched',
		    dispatched_at = COALESCE(dispatched_at, $2),
		    updated_at = now()
		WHERE id = $1
	`, p.EmergencyID, p.At); err != nil {
		return nil, fmt.Errorf("mark dispatched: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit assign: %w", err)
	}

	return assignment, nil
}

func (r *PgRepository) SetEmergencyStatus(ctx context.Context, id uuid.UUID, from, to EmergencyStatus, at time.Time) (*Emergency, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE emergencies
		SET status = $3,
		    arrived_at = CASE WHEN $3 = 'arrived' THEN $4 ELSE arrived_at END,
		    completed_at = CASE WHEN $3 IN ('completed', 'cancelled') THEN $4 ELSE completed_at END,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+emergencyColumns+`
	`, id, from, to, at)

	updated, err := scanEmergency(row)
	if err != nil {
		if errors.Is(err, ErrEmergencyNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) ReleaseEmergencyResources(ctx context.Context, emergencyID uuid.UUID, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin release: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var unitID *uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE assignments
		SET active = false
		WHERE emergency_id = $1 AND active
		RETURNING unit_id
	`, emergencyID).Scan(&unitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tx.Commit(ctx)
		}
		return fmt.Errorf("retire assignment: %w", err)
	}

	if unitID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE dispatch_units
			SET status = 'available', idle_since = $2, updated_at = now()
			WHERE id = $1 AND status = 'dispatched'
		`, *unitID, at); err != nil {
			return fmt.Errorf("release unit: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) GetActiveAssignment(ctx context.Context, emergencyID uuid.UUID) (*Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments
		WHERE emergency_id = $1 AND active
	`, emergencyID)
	return scanAssignment(row)
}

func (r *PgRepository) DoctorHasActiveAssignment(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM assignments WHERE doctor_id = $1 AND active
		)
	`, doctorID).Scan(&exists)
	return exists, err
}

func (r *PgRepository) CountDoctorAssignments(ctx context.Context, doctorID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM assignments
		WHERE doctor_id = $1 AND assigned_at >= $2
	`, doctorID, since).Scan(&count)
	return count, err
}

func (r *PgRepository) DoctorBusyAt(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM schedule_slots s
			JOIN appointments a ON a.slot_id = s.id
			WHERE s.doctor_id = $1
			  AND s.status = 'booked'
			  AND s.start_time <= $2
			  AND s.end_time > $2
			  AND a.status NOT IN ('cancelled', 'cancelled_by_doctor', 'rejected', 'expired')
		)
	`, doctorID, at).Scan(&exists)
	return exists, err
}
