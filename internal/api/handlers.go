package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/danteprogrammer/clinica-core/internal/billing"
	"github.com/danteprogrammer/clinica-core/internal/booking"
	"github.com/danteprogrammer/clinica-core/internal/civil"
	"github.com/danteprogrammer/clinica-core/internal/encounter"
	"github.com/danteprogrammer/clinica-core/internal/schedule"
)

func availabilityHandler(engine *schedule.AvailabilityEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		from, err := civil.ParseDate(r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
			return
		}
		to, err := civil.ParseDate(r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
			return
		}

		slots, err := engine.ComputeSlots(r.Context(), doctorID, from, to)
		if err != nil {
			switch {
			case errors.Is(err, schedule.ErrDoctorNotFound):
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
			case errors.Is(err, schedule.ErrInvalidRange):
				writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		if slots == nil {
			slots = []schedule.Slot{}
		}
		writeJSON(w, http.StatusOK, slots)
	}
}

func createAppointmentHandler(ledger *booking.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		var roomID *uuid.UUID
		if req.RoomID != "" {
			id, err := uuid.Parse(req.RoomID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_room_id", "room_id must be a valid UUID")
				return
			}
			roomID = &id
		}

		appt, err := ledger.Reserve(r.Context(), booking.ReserveRequest{
			DoctorID:        doctorID,
			PatientID:       patientID,
			RoomID:          roomID,
			Date:            req.Date,
			Start:           req.Time,
			DurationMinutes: req.DurationMinutes,
			Reason:          req.Reason,
		})
		if err != nil {
			handleReserveError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(ledger *booking.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := ledger.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, booking.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listPatientAppointmentsHandler(ledger *booking.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		appts, err := ledger.ListByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			if errors.Is(err, booking.ErrPatientNotFound) {
				writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func cancelAppointmentHandler(ledger *booking.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := ledger.Cancel(r.Context(), id, req.ExpectedVersion, req.Reason)
		if err != nil {
			handleLedgerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(ledger *booking.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := ledger.Reschedule(r.Context(), id, req.NewDate, req.NewTime, req.ExpectedVersion)
		if err != nil {
			handleLedgerError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionHandler(svc *encounter.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var body TransitionRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ev, err := encounter.ParseEvent(body.Event)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "unknown_event", err.Error())
			return
		}
		role, err := encounter.ParseRole(body.ActorRole)
		if err != nil {
			writeError(w, http.StatusForbidden, "unknown_role", "actor_role is not a recognized role")
			return
		}

		labResults := make(map[uuid.UUID]string, len(body.Payload.LabResults))
		for k, v := range body.Payload.LabResults {
			orderID, err := uuid.Parse(k)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_lab_order_id", "lab_results keys must be valid UUIDs")
				return
			}
			labResults[orderID] = v
		}

		result, err := svc.Transition(r.Context(), encounter.TransitionRequest{
			AppointmentID:  id,
			Event:          ev,
			Actor:          role,
			Vitals:         body.Payload.Vitals,
			Consultation:   body.Payload.Consultation,
			RequestedTests: body.Payload.RequestedTests,
			LabResults:     labResults,
			Payment:        body.Payload.Payment,
		})
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, TransitionResponse{
			Appointment: toAppointmentResponse(result.Appointment),
			Noop:        result.Noop,
			Invoice:     toInvoiceResponse(result.Invoice),
		})
	}
}

func getEncounterHandler(svc *encounter.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		enc, err := svc.GetEncounter(r.Context(), id)
		if err != nil {
			if errors.Is(err, encounter.ErrEncounterNotFound) {
				writeError(w, http.StatusNotFound, "encounter_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, enc)
	}
}

func startLabOrderHandler(svc *encounter.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_order_id", "orderID must be a valid UUID")
			return
		}

		role, err := encounter.ParseRole(r.Header.Get("X-Actor-Role"))
		if err != nil {
			writeError(w, http.StatusForbidden, "unknown_role", "X-Actor-Role header is required")
			return
		}

		order, err := svc.StartLabOrder(r.Context(), orderID, role)
		if err != nil {
			switch {
			case errors.Is(err, encounter.ErrNotAuthorized):
				writeError(w, http.StatusForbidden, "not_authorized", err.Error())
			case errors.Is(err, encounter.ErrLabOrderNotFound):
				writeError(w, http.StatusNotFound, "lab_order_not_found", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

func getInvoiceHandler(svc *billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		inv, err := svc.GetInvoiceByAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, billing.ErrInvoiceNotFound) {
				writeError(w, http.StatusNotFound, "invoice_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
	}
}

func handleReserveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidReserve):
		writeError(w, http.StatusBadRequest, "invalid_reservation", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, schedule.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, booking.ErrAgendaBusy):
		writeError(w, http.StatusConflict, "agenda_busy", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, booking.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, "already_terminal", err.Error())
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "slot_unavailable", err.Error())
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, booking.ErrAgendaBusy):
		writeError(w, http.StatusConflict, "agenda_busy", "agenda is being modified, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, encounter.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "not_authorized", err.Error())
	case errors.Is(err, encounter.ErrUnknownEvent):
		writeError(w, http.StatusUnprocessableEntity, "unknown_event", err.Error())
	case errors.Is(err, encounter.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, encounter.ErrAmountMismatch):
		writeError(w, http.StatusUnprocessableEntity, "amount_mismatch", err.Error())
	case errors.Is(err, encounter.ErrSlotElapsed):
		writeError(w, http.StatusConflict, "slot_elapsed", err.Error())
	case errors.Is(err, encounter.ErrGuardFailed):
		writeError(w, http.StatusUnprocessableEntity, "guard_failed", err.Error())
	case errors.Is(err, booking.ErrConcurrentUpdate):
		writeError(w, http.StatusConflict, "concurrent_update", "encounter changed concurrently, refetch and retry")
	case errors.Is(err, billing.ErrTariffNotFound):
		writeError(w, http.StatusUnprocessableEntity, "tariff_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
