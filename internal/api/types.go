package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/tutorhive/chat-scheduling/internal/appointment"
)

type RecurrencePayload struct {
	Pattern string    `json:"pattern"`
	EndDate time.Time `json:"end_date"`
}

type CreateAppointmentRequest struct {
	ChatID                string             `json:"chat_id"`
	StartTime             time.Time          `json:"start_time"`
	DurationMinutes       int                `json:"duration_minutes"`
	Location              string             `json:"location"`
	SpecificLocation      *string            `json:"specific_location,omitempty"`
	Notes                 *string            `json:"notes,omitempty"`
	ReminderOffsetMinutes *int               `json:"reminder_offset_minutes,omitempty"`
	AgeBand               string             `json:"age_band,omitempty"`
	Recurrence            *RecurrencePayload `json:"recurrence,omitempty"`
}

type UpdateAppointmentRequest struct {
	StartTime             *time.Time `json:"start_time,omitempty"`
	DurationMinutes       *int       `json:"duration_minutes,omitempty"`
	Location              *string    `json:"location,omitempty"`
	SpecificLocation      *string    `json:"specific_location,omitempty"`
	Notes                 *string    `json:"notes,omitempty"`
	ReminderOffsetMinutes *int       `json:"reminder_offset_minutes,omitempty"`
	AgeBand               string     `json:"age_band,omitempty"`
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID                    uuid.UUID `json:"id"`
	ChatID                uuid.UUID `json:"chat_id"`
	StartTime             time.Time `json:"start_time"`
	DurationMinutes       int       `json:"duration_minutes"`
	Location              string    `json:"location"`
	SpecificLocation      *string   `json:"specific_location,omitempty"`
	Status                string    `json:"status"`
	TeacherReady          bool      `json:"teacher_ready"`
	StudentReady          bool      `json:"student_ready"`
	BothCompleted         bool      `json:"both_completed"`
	Notes                 *string   `json:"notes,omitempty"`
	CancellationReason    *string   `json:"cancellation_reason,omitempty"`
	ReminderOffsetMinutes *int      `json:"reminder_offset_minutes,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                    a.ID,
		ChatID:                a.ChatID,
		StartTime:             a.StartTime,
		DurationMinutes:       a.DurationMinutes,
		Location:              string(a.Location),
		SpecificLocation:      a.SpecificLocation,
		Status:                string(a.Status),
		TeacherReady:          a.TeacherReady,
		StudentReady:          a.StudentReady,
		BothCompleted:         a.BothCompleted,
		Notes:                 a.Notes,
		CancellationReason:    a.CancellationReason,
		ReminderOffsetMinutes: a.ReminderOffsetMinutes,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

type CreateAppointmentResponse struct {
	Appointment AppointmentResponse   `json:"appointment"`
	Series      []AppointmentResponse `json:"series,omitempty"`
	Warnings    []string              `json:"warnings,omitempty"`
}

type UpdateAppointmentResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Warnings    []string            `json:"warnings,omitempty"`
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Problems []string `json:"problems,omitempty"`
}
