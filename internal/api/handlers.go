package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medoc/opd-token-engine/internal/booking"
)

func bookTokenHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		if req.PatientName == "" || req.PatientPhone == "" {
			writeError(w, http.StatusBadRequest, "missing_patient", "patient_name and patient_phone are required")
			return
		}

		result, err := svc.BookToken(r.Context(), doctorID, req.PatientName, req.PatientPhone, booking.Source(req.Source))
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := BookTokenResponse{
			AppointmentID: result.AppointmentID,
			TokenNumber:   result.TokenNumber,
			SlotID:        result.SlotID,
			EstimatedTime: result.EstimatedTime,
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func cancelAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, id uuid.UUID) (*booking.Appointment, error) {
		return svc.CancelAppointment(r.Context(), id)
	})
}

func serveAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, id uuid.UUID) (*booking.Appointment, error) {
		return svc.ServeAppointment(r.Context(), id)
	})
}

func transitionHandler(fn func(r *http.Request, id uuid.UUID) (*booking.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "id")
		id, err := uuid.Parse(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := fn(r, id)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getQueueHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		view, err := svc.GetQueue(r.Context(), doctorID)
		if err != nil {
			handleQueueError(w, err)
			return
		}

		items := make([]QueueTokenItem, 0, len(view.Entries))
		for _, e := range view.Entries {
			items = append(items, QueueTokenItem{
				AppointmentID: e.AppointmentID,
				PatientName:   e.PatientName,
				PatientPhone:  e.PatientPhone,
				TokenNumber:   e.TokenNumber,
				CreatedAt:     e.CreatedAt,
			})
		}

		resp := QueueResponse{
			DoctorID:        view.DoctorID,
			SlotID:          view.SlotID,
			SlotStartTime:   view.SlotStartTime,
			SlotEndTime:     view.SlotEndTime,
			Capacity:        view.Capacity,
			Booked:          view.Booked,
			NextTokenNumber: view.NextTokenNumber,
			Tokens:          items,
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		DoctorID:     a.DoctorID,
		PatientID:    a.PatientID,
		SlotID:       a.SlotID,
		Status:       string(a.Status),
		Source:       string(a.Source),
		PriorityRank: a.PriorityRank,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrDoctorInactive):
		writeError(w, http.StatusUnprocessableEntity, "doctor_inactive", err.Error())
	case errors.Is(err, booking.ErrNoSlotsAvailable):
		writeError(w, http.StatusUnprocessableEntity, "no_slots_available", err.Error())
	case errors.Is(err, booking.ErrAllSlotsEnded):
		writeError(w, http.StatusUnprocessableEntity, "all_slots_ended", err.Error())
	case errors.Is(err, booking.ErrSlotFull):
		writeError(w, http.StatusConflict, "slot_full", err.Error())
	case errors.Is(err, booking.ErrAlreadyBooked):
		writeError(w, http.StatusConflict, "already_booked", err.Error())
	case errors.Is(err, booking.ErrTokenAllocationFailed):
		writeError(w, http.StatusConflict, "token_allocation_failed", "token allocation failed under contention, please resubmit")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrNoSlotFound):
		writeError(w, http.StatusNotFound, "no_slot_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
