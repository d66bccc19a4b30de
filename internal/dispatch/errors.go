package dispatch

import "errors"

var (
	ErrEmergencyNotFound  = errors.New("emergency not found")
	ErrUnitNotFound       = errors.New("unit not found")
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrNoEmergencyClinic means no active emergency-enabled clinic exists
	// to receive a clinic-less dispatch.
	ErrNoEmergencyClinic = errors.New("no emergency-enabled clinic available")

	// ErrUnitClaimed is the compare-and-set failure: the unit stopped
	// being AVAILABLE between selection and claim.
	ErrUnitClaimed = errors.New("unit is no longer available")

	// ErrDoctorClaimed is its doctor-side counterpart: a concurrent
	// assignment took the doctor between selection and insert.
	ErrDoctorClaimed = errors.New("doctor is no longer free for assignment")

	ErrDoctorUnavailable = errors.New("doctor is not eligible for assignment")
	ErrWrongClinic       = errors.New("resource does not belong to the emergency's clinic")
	ErrInvalidTransition = errors.New("emergency status transition not allowed")
)
