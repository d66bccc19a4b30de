package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateHoldRequest struct {
	DoctorID    string  `json:"doctor_id" validate:"required,uuid4"`
	ClinicID    string  `json:"clinic_id" validate:"required,uuid4"`
	StartTime   string  `json:"start_time" validate:"required"`
	DurationMin int     `json:"duration_min" validate:"required,gt=0,lte=480"`
	Age         *int    `json:"age,omitempty" validate:"omitempty,gte=0,lte=130"`
	Gender      *string `json:"gender,omitempty"`
	Symptoms    *string `json:"symptoms,omitempty"`
}

type ConfirmHoldRequest struct {
	Age      *int    `json:"age,omitempty" validate:"omitempty,gte=0,lte=130"`
	Gender   *string `json:"gender,omitempty"`
	Symptoms *string `json:"symptoms,omitempty"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	ClinicID      uuid.UUID  `json:"clinic_id"`
	SlotID        uuid.UUID  `json:"slot_id"`
	StartTime     time.Time  `json:"start_time"`
	Status        string     `json:"status"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

type BusyEntryResponse struct {
	Type   string    `json:"type"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

type DispatchRequest struct {
	ClinicID *string `json:"clinic_id,omitempty" validate:"omitempty,uuid4"`
	Lat      float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon      float64 `json:"lon" validate:"gte=-180,lte=180"`
	Priority string  `json:"priority" validate:"required,oneof=low medium high critical"`
}

type ReassignRequest struct {
	DoctorID string  `json:"doctor_id" validate:"required,uuid4"`
	UnitID   *string `json:"unit_id,omitempty" validate:"omitempty,uuid4"`
}

type UpdateEmergencyStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending dispatched in_transit arrived completed cancelled"`
}

type AssignmentResponse struct {
	ID          uuid.UUID  `json:"id"`
	EmergencyID uuid.UUID  `json:"emergency_id"`
	UnitID      *uuid.UUID `json:"unit_id,omitempty"`
	DoctorID    *uuid.UUID `json:"doctor_id,omitempty"`
	DistanceKm  *float64   `json:"distance_km,omitempty"`
	AssignedAt  time.Time  `json:"assigned_at"`
}

type EmergencyResponse struct {
	ID           uuid.UUID           `json:"id"`
	ClinicID     uuid.UUID           `json:"clinic_id"`
	Lat          float64             `json:"lat"`
	Lon          float64             `json:"lon"`
	Priority     string              `json:"priority"`
	Status       string              `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	DispatchedAt *time.Time          `json:"dispatched_at,omitempty"`
	ArrivedAt    *time.Time          `json:"arrived_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	Assignment   *AssignmentResponse `json:"assignment,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
