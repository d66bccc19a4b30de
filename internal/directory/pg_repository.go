package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	var lat, lon *float64

	err := row.Scan(
		&c.ID,
		&c.Name,
		&lat,
		&lon,
		&c.EmergencyEnabled,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}

	if lat != nil && lon != nil {
		c.Location = &geo.Coordinate{Lat: *lat, Lon: *lon}
	}
	return &c, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.ClinicID,
		&d.Name,
		&specialty,
		&d.Approval,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanLeave(row pgx.Row) (*LeaveRequest, error) {
	var l LeaveRequest
	var reason *string

	err := row.Scan(
		&l.ID,
		&l.DoctorID,
		&l.FromDate,
		&l.ToDate,
		&l.Status,
		&reason,
	)
	if err != nil {
		return nil, err
	}

	l.Reason = reason
	return &l, nil
}

// Interface methods

func (r *PgRepository) GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, lat, lon, emergency_enabled, active, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, specialty, approval_status, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	var email *string

	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func (r *PgRepository) ListApprovedDoctorsByClinic(ctx context.Context, clinicID uuid.UUID) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, name, specialty, approval_status, created_at, updated_at
		FROM doctors
		WHERE clinic_id = $1 AND approval_status = 'approved'
	`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListApprovedLeaves(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]LeaveRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, from_date, to_date, status, reason
		FROM leave_requests
		WHERE doctor_id = $1
		  AND status = 'approved'
		  AND from_date <= $2::date
		  AND to_date >= $2::date
	`, doctorID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeaves(rows)
}

func (r *PgRepository) ListDoctorLeaves(ctx context.Context, doctorID uuid.UUID) ([]LeaveRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, from_date, to_date, status, reason
		FROM leave_requests
		WHERE doctor_id = $1 AND status = 'approved'
		ORDER BY from_date
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeaves(rows)
}

func collectLeaves(rows pgx.Rows) ([]LeaveRequest, error) {
	var result []LeaveRequest
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListEmergencyClinics(ctx context.Context) ([]Clinic, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, lat, lon, emergency_enabled, active, created_at, updated_at
		FROM clinics
		WHERE emergency_enabled AND active
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Clinic
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	return result, rows.Err()
}
