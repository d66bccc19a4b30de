package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clinicware/clinic-ops/internal/auth"
	"github.com/clinicware/clinic-ops/internal/directory"
	"github.com/clinicware/clinic-ops/internal/dispatch"
	"github.com/clinicware/clinic-ops/internal/geo"
	"github.com/clinicware/clinic-ops/internal/reservation"
)

var validate = validator.New()

func decodeAndValidate(r *http.Request, w http.ResponseWriter, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func guard(w http.ResponseWriter, r *http.Request, roles ...auth.Role) (auth.Principal, bool) {
	p, err := auth.Require(r.Context(), roles...)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal")
		} else {
			writeError(w, http.StatusForbidden, "forbidden", "role not permitted")
		}
		return auth.Principal{}, false
	}
	return p, true
}

func appointmentResponse(a *reservation.Appointment, slot *reservation.ScheduleSlot) AppointmentResponse {
	resp := AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		ClinicID:  a.ClinicID,
		SlotID:    a.SlotID,
		StartTime: a.StartTime,
		Status:    string(a.Status),
	}
	if slot != nil {
		resp.HoldExpiresAt = slot.HoldExpiresAt
	}
	return resp
}

// POST /appointments/hold

func createHoldHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := guard(w, r, auth.RolePatient)
		if !ok {
			return
		}

		var req CreateHoldRequest
		if !decodeAndValidate(r, w, &req) {
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		clinicID, err := uuid.Parse(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}
		startTime, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be RFC3339")
			return
		}

		appt, err := svc.CreateHold(r.Context(), reservation.CreateHoldParams{
			DoctorID:    doctorID,
			ClinicID:    clinicID,
			PatientID:   principal.ID,
			StartTime:   startTime,
			DurationMin: req.DurationMin,
			Info: reservation.PatientInfo{
				Age:      req.Age,
				Gender:   req.Gender,
				Symptoms: req.Symptoms,
			},
		})
		if err != nil {
			handleReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, appointmentResponse(appt, nil))
	}
}

// POST /appointments/{id}/confirm

func confirmHoldHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := guard(w, r, auth.RolePatient)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req ConfirmHoldRequest
		if r.ContentLength > 0 {
			if !decodeAndValidate(r, w, &req) {
				return
			}
		}

		appt, err := svc.ConfirmHold(r.Context(), id, principal.ID, reservation.PatientInfo{
			Age:      req.Age,
			Gender:   req.Gender,
			Symptoms: req.Symptoms,
		})
		if err != nil {
			handleReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentResponse(appt, nil))
	}
}

// POST /appointments/{id}/cancel

func cancelAppointmentHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := guard(w, r, auth.RolePatient, auth.RoleDoctor)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Cancel(r.Context(), id, principal.ID)
		if err != nil {
			handleReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, appointmentResponse(appt, nil))
	}
}

// GET /doctors/{id}/schedule

func busyScheduleHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := guard(w, r, auth.RolePatient, auth.RoleDoctor, auth.RoleDispatcher); !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		entries, err := svc.BusySchedule(r.Context(), id)
		if err != nil {
			handleReservationError(w, err)
			return
		}

		resp := make([]BusyEntryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, BusyEntryResponse{
				Type:   string(e.Kind),
				Start:  e.Start,
				End:    e.End,
				Reason: e.Reason,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// POST /emergencies/dispatch

func dispatchHandler(svc *dispatch.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := guard(w, r, auth.RoleDispatcher); !ok {
			return
		}

		var req DispatchRequest
		if !decodeAndValidate(r, w, &req) {
			return
		}

		var clinicID *uuid.UUID
		if req.ClinicID != nil {
			id, err := uuid.Parse(*req.ClinicID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
				return
			}
			clinicID = &id
		}

		result, err := svc.Dispatch(r.Context(), clinicID,
			geo.Coordinate{Lat: req.Lat, Lon: req.Lon},
			dispatch.Priority(req.Priority))
		if err != nil {
			handleDispatchError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, emergencyResponse(result.Emergency, result.Assignment))
	}
}

// POST /emergencies/{id}/reassign

func reassignHandler(svc *dispatch.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := guard(w, r, auth.RoleDispatcher); !ok {
			return
		}

		emergencyID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_emergency_id", "id must be a valid UUID")
			return
		}

		var req ReassignRequest
		if !decodeAndValidate(r, w, &req) {
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		var unitID *uuid.UUID
		if req.UnitID != nil {
			id, err := uuid.Parse(*req.UnitID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_unit_id", "unit_id must be a valid UUID")
				return
			}
			unitID = &id
		}

		assignment, err := svc.Reassign(r.Context(), emergencyID, doctorID, unitID)
		if err != nil {
			handleDispatchError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, assignmentResponse(assignment))
	}
}

// POST /emergencies/{id}/status

func updateEmergencyStatusHandler(svc *dispatch.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := guard(w, r, auth.RoleDispatcher); !ok {
			return
		}

		emergencyID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_emergency_id", "id must be a valid UUID")
			return
		}

		var req UpdateEmergencyStatusRequest
		if !decodeAndValidate(r, w, &req) {
			return
		}

		emergency, err := svc.UpdateStatus(r.Context(), emergencyID, dispatch.EmergencyStatus(req.Status))
		if err != nil {
			handleDispatchError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, emergencyResponse(emergency, nil))
	}
}

func assignmentResponse(a *dispatch.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:          a.ID,
		EmergencyID: a.Emergency,
		UnitID:      a.UnitID,
		DoctorID:    a.DoctorID,
		DistanceKm:  a.DistanceKm,
		AssignedAt:  a.AssignedAt,
	}
}

func emergencyResponse(e *dispatch.Emergency, a *dispatch.Assignment) EmergencyResponse {
	resp := EmergencyResponse{
		ID:           e.ID,
		ClinicID:     e.ClinicID,
		Lat:          e.Location.Lat,
		Lon:          e.Location.Lon,
		Priority:     string(e.Priority),
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt,
		DispatchedAt: e.DispatchedAt,
		ArrivedAt:    e.ArrivedAt,
		CompletedAt:  e.CompletedAt,
	}
	if a != nil {
		ar := assignmentResponse(a)
		resp.Assignment = &ar
	}
	return resp
}

// Error mapping

func handleReservationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrDoctorNotFound),
		errors.Is(err, directory.ErrClinicNotFound),
		errors.Is(err, directory.ErrPatientNotFound),
		errors.Is(err, reservation.ErrAppointmentNotFound),
		errors.Is(err, reservation.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, reservation.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, reservation.ErrHoldExpired):
		writeError(w, http.StatusConflict, "hold_expired", err.Error())
	case errors.Is(err, reservation.ErrOverlap),
		errors.Is(err, reservation.ErrLeaveConflict),
		errors.Is(err, reservation.ErrSlotTaken),
		errors.Is(err, reservation.ErrWrongClinic),
		errors.Is(err, reservation.ErrCalendarBusy):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, reservation.ErrPastAppointment),
		errors.Is(err, reservation.ErrBadDuration),
		errors.Is(err, reservation.ErrCrossesDay):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, reservation.ErrInvalidState):
		writeError(w, http.StatusUnprocessableEntity, "invalid_state", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrEmergencyNotFound),
		errors.Is(err, dispatch.ErrUnitNotFound),
		errors.Is(err, dispatch.ErrAssignmentNotFound),
		errors.Is(err, dispatch.ErrNoEmergencyClinic),
		errors.Is(err, directory.ErrClinicNotFound),
		errors.Is(err, directory.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, dispatch.ErrUnitClaimed),
		errors.Is(err, dispatch.ErrDoctorClaimed),
		errors.Is(err, dispatch.ErrDoctorUnavailable),
		errors.Is(err, dispatch.ErrWrongClinic):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, dispatch.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_state", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
