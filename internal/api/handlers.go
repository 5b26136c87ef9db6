package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tutorhive/chat-scheduling/internal/appointment"
	"github.com/tutorhive/chat-scheduling/internal/calendar"
)

// requesterID reads the caller identity from the X-User-ID header. The
// gateway in front of this service owns authentication; membership of
// the chat is still checked per request by the service.
func requesterID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Header.Get("X-User-ID"))
	return id, err == nil
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := requesterID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header must be a valid UUID")
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		chatID, err := uuid.Parse(req.ChatID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_chat_id", "chat_id must be a valid UUID")
			return
		}

		location, err := appointment.ParseLocation(req.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_location", err.Error())
			return
		}

		band, err := calendar.ParseAgeBand(req.AgeBand)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_age_band", err.Error())
			return
		}

		createReq := appointment.CreateRequest{
			ChatID:                chatID,
			RequesterID:           requester,
			StartTime:             req.StartTime,
			DurationMinutes:       req.DurationMinutes,
			Location:              location,
			SpecificLocation:      req.SpecificLocation,
			Notes:                 req.Notes,
			ReminderOffsetMinutes: req.ReminderOffsetMinutes,
			AgeBand:               band,
		}

		if req.Recurrence != nil {
			pattern, err := appointment.ParseRecurrencePattern(req.Recurrence.Pattern)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_recurrence_pattern", err.Error())
				return
			}
			createReq.Recurrence = &appointment.RecurrenceRequest{
				Pattern: pattern,
				EndDate: req.Recurrence.EndDate,
			}
		}

		res, err := svc.Create(r.Context(), createReq)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := CreateAppointmentResponse{
			Appointment: toAppointmentResponse(res.Appointment),
			Warnings:    res.Warnings,
		}
		for _, occ := range res.Series {
			resp.Series = append(resp.Series, toAppointmentResponse(occ))
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

func updateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := requesterID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header must be a valid UUID")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		band, err := calendar.ParseAgeBand(req.AgeBand)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_age_band", err.Error())
			return
		}

		updateReq := appointment.UpdateRequest{
			StartTime:             req.StartTime,
			DurationMinutes:       req.DurationMinutes,
			SpecificLocation:      req.SpecificLocation,
			Notes:                 req.Notes,
			ReminderOffsetMinutes: req.ReminderOffsetMinutes,
			AgeBand:               band,
		}
		if req.Location != nil {
			location, err := appointment.ParseLocation(*req.Location)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_location", err.Error())
				return
			}
			updateReq.Location = &location
		}

		res, err := svc.Update(r.Context(), id, requester, updateReq)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, UpdateAppointmentResponse{
			Appointment: toAppointmentResponse(res.Appointment),
			Warnings:    res.Warnings,
		})
	}
}

func changeStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := requesterID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header must be a valid UUID")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req ChangeStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		status, err := appointment.ParseStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}

		updated, err := svc.ChangeStatus(r.Context(), appointment.ChangeStatusRequest{
			AppointmentID: id,
			RequesterID:   requester,
			NewStatus:     status,
			Reason:        req.Reason,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := requesterID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header must be a valid UUID")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Get(r.Context(), id, requester)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := requesterID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_user", "X-User-ID header must be a valid UUID")
			return
		}

		var f appointment.ListFilter
		q := r.URL.Query()

		if s := q.Get("status"); s != "" {
			status, err := appointment.ParseStatus(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
				return
			}
			f.Status = &status
		}
		if s := q.Get("from"); s != "" {
			from, err := time.Parse(time.RFC3339, s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC 3339")
				return
			}
			f.From = &from
		}
		if s := q.Get("to"); s != "" {
			to, err := time.Parse(time.RFC3339, s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC 3339")
				return
			}
			f.To = &to
		}
		f.Limit, _ = strconv.Atoi(q.Get("limit"))
		f.Offset, _ = strconv.Atoi(q.Get("offset"))

		list, err := svc.List(r.Context(), requester, f)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := ListAppointmentsResponse{
			Appointments: make([]AppointmentResponse, 0, len(list)),
			Limit:        f.Limit,
			Offset:       f.Offset,
		}
		for i := range list {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&list[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	var verr *appointment.ValidationError
	switch {
	case errors.As(err, &verr):
		resp := ErrorResponse{Error: "validation_failed", Details: verr.Error(), Problems: verr.Problems}
		for _, c := range verr.Conflicts {
			resp.Problems = append(resp.Problems, "conflicts with appointment "+c.AppointmentID.String())
		}
		writeJSONError(w, http.StatusBadRequest, resp)
	case errors.Is(err, appointment.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "not_a_participant", err.Error())
	case errors.Is(err, appointment.ErrChatNotFound):
		writeError(w, http.StatusNotFound, "chat_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case appointment.IsStateError(err), errors.Is(err, appointment.ErrRescheduleTooLate):
		writeError(w, http.StatusConflict, "transition_not_permitted", err.Error())
	case errors.Is(err, appointment.ErrStatusChanged):
		writeError(w, http.StatusConflict, "concurrent_update", err.Error())
	case errors.Is(err, appointment.ErrChatDayBusy):
		writeError(w, http.StatusConflict, "chat_day_busy", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, resp ErrorResponse) {
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
