package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorhive/chat-scheduling/internal/calendar"
	redisclient "github.com/tutorhive/chat-scheduling/internal/redis"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventReadinessRecorded      = "READINESS_RECORDED"
)

var (
	// ErrChatDayBusy means another request holds the chat's scheduling
	// lock for that day; the client should retry.
	ErrChatDayBusy = errors.New("an appointment for this chat is currently being scheduled, please retry")

	ErrRescheduleTooLate = errors.New("confirmed appointments cannot be rescheduled within two hours of the start")
)

type Service struct {
	repo      Repository
	chats     ChatDirectory
	notifier  Notifier
	locker    redisclient.Locker
	sweeper   *ExpirySweeper
	conflicts *ConflictDetector
	expander  *RecurrenceExpander
	log       *zap.Logger

	nowFn func() time.Time
}

func NewService(repo Repository, chats ChatDirectory, notifier Notifier, locker redisclient.Locker, log *zap.Logger) *Service {
	conflicts := NewConflictDetector(repo, chats)
	return &Service{
		repo:      repo,
		chats:     chats,
		notifier:  notifier,
		locker:    locker,
		sweeper:   NewExpirySweeper(repo, log),
		conflicts: conflicts,
		expander:  NewRecurrenceExpander(conflicts, log),
		log:       log,
		nowFn:     time.Now,
	}
}

type CreateRequest struct {
	ChatID                uuid.UUID
	RequesterID           uuid.UUID
	StartTime             time.Time
	DurationMinutes       int
	Location              Location
	SpecificLocation      *string
	Notes                 *string
	ReminderOffsetMinutes *int
	AgeBand               calendar.AgeBand
	Recurrence            *RecurrenceRequest
}

type CreateResult struct {
	Appointment *Appointment
	// Series holds the persisted recurrence occurrences, base excluded.
	Series   []*Appointment
	Warnings []string
}

// Create validates and persists a new pending appointment, optionally
// expanding a recurrence series. Warnings never block; they ride along
// in the result.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	chat, err := s.chats.GetChat(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(req.RequesterID) {
		return nil, ErrNotParticipant
	}

	now := s.nowFn()
	var problems []string
	if !chat.Active {
		problems = append(problems, "chat is not active")
	}
	if req.DurationMinutes <= 0 {
		problems = append(problems, "duration must be positive")
	}
	if !req.StartTime.After(now) {
		problems = append(problems, "appointment time must be in the future")
	}

	adv := calendar.Evaluate(req.StartTime, req.AgeBand)
	problems = append(problems, adv.Errors...)
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	warnings := append([]string(nil), adv.Warnings...)

	base := &Appointment{
		ID:                    uuid.New(),
		ChatID:                req.ChatID,
		StartTime:             req.StartTime,
		DurationMinutes:       req.DurationMinutes,
		Location:              req.Location,
		SpecificLocation:      req.SpecificLocation,
		Status:                StatusPending,
		Notes:                 req.Notes,
		ReminderOffsetMinutes: req.ReminderOffsetMinutes,
	}

	// The conflict check and the insert form one critical section per
	// chat and day, so two concurrent overlapping requests cannot both
	// pass validation. The partial unique index in the schema backstops
	// the same rule at the storage layer.
	err = s.locker.WithChatDayLock(ctx, req.ChatID, base.Day(), func(lockCtx context.Context) error {
		conflicts, err := s.conflicts.FindConflicts(lockCtx, req.RequesterID, req.StartTime, req.DurationMinutes, nil)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if len(conflicts) > 0 {
			return &ValidationError{Conflicts: conflicts}
		}

		if _, err := s.repo.FindActiveOnDay(lockCtx, req.ChatID, base.Day()); err == nil {
			return &ValidationError{Problems: []string{"chat already has an appointment on " + base.Day()}}
		} else if !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check chat day: %w", err)
		}

		if err := s.repo.Create(lockCtx, base); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrChatDayBusy
		}
		return nil, err
	}

	s.logEvent(ctx, base.ID, EventAppointmentCreated, map[string]any{
		"chat_id":    base.ChatID.String(),
		"start_time": base.StartTime,
	})

	result := &CreateResult{Appointment: base, Warnings: warnings}

	if req.Recurrence != nil {
		series, seriesWarnings := s.createSeries(ctx, base, req)
		result.Series = series
		result.Warnings = append(result.Warnings, seriesWarnings...)
	}

	return result, nil
}

// createSeries expands and persists the recurrence occurrences. Failures
// on individual occurrences are demoted to warnings: the base
// appointment has already been created and the rest of the series must
// still go through.
func (s *Service) createSeries(ctx context.Context, base *Appointment, req CreateRequest) ([]*Appointment, []string) {
	drafts, skipped, err := s.expander.Expand(ctx, base, req.RequesterID, req.AgeBand, req.Recurrence.Pattern, req.Recurrence.EndDate)
	if err != nil {
		return nil, []string{"recurrence expansion failed: " + err.Error()}
	}

	var warnings []string
	for _, sk := range skipped {
		warnings = append(warnings, fmt.Sprintf("skipped occurrence on %s: %s",
			sk.At.Format("2006-01-02"), sk.Reasons[0]))
	}

	var series []*Appointment
	for _, draft := range drafts {
		if err := s.repo.Create(ctx, draft); err != nil {
			s.log.Warn("failed to persist recurrence occurrence",
				zap.String("chat_id", draft.ChatID.String()),
				zap.Time("at", draft.StartTime),
				zap.Error(err))
			warnings = append(warnings, "skipped occurrence on "+draft.StartTime.Format("2006-01-02")+": could not be saved")
			continue
		}
		series = append(series, draft)
	}
	return series, warnings
}

type UpdateRequest struct {
	StartTime             *time.Time
	DurationMinutes       *int
	Location              *Location
	SpecificLocation      *string
	Notes                 *string
	ReminderOffsetMinutes *int
	AgeBand               calendar.AgeBand
}

type UpdateResult struct {
	Appointment *Appointment
	Warnings    []string
}

// Update rewrites an appointment's mutable details. Terminal records are
// immutable; confirmed appointments cannot be moved inside the two-hour
// window. A time change re-runs the full time validation and conflict
// check, excluding the appointment's own prior slot.
func (s *Service) Update(ctx context.Context, id, requesterID uuid.UUID, req UpdateRequest) (*UpdateResult, error) {
	appt, chat, err := s.loadAuthorized(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}

	if appt.Status.Terminal() {
		return nil, ErrTerminalStatus
	}

	now := s.nowFn()
	updated := *appt
	timeChanged := false

	if req.StartTime != nil && !req.StartTime.Equal(appt.StartTime) {
		updated.StartTime = *req.StartTime
		timeChanged = true
	}
	if req.DurationMinutes != nil && *req.DurationMinutes != appt.DurationMinutes {
		updated.DurationMinutes = *req.DurationMinutes
		timeChanged = true
	}
	if req.Location != nil {
		updated.Location = *req.Location
	}
	if req.SpecificLocation != nil {
		updated.SpecificLocation = req.SpecificLocation
	}
	if req.Notes != nil {
		updated.Notes = req.Notes
	}
	if req.ReminderOffsetMinutes != nil {
		updated.ReminderOffsetMinutes = req.ReminderOffsetMinutes
	}

	var warnings []string
	if timeChanged {
		if appt.Status == StatusConfirmed {
			if !now.Before(appt.StartTime.Add(-CancellationCutoff)) ||
				!now.Before(updated.StartTime.Add(-CancellationCutoff)) {
				return nil, ErrRescheduleTooLate
			}
		}

		var problems []string
		if updated.DurationMinutes <= 0 {
			problems = append(problems, "duration must be positive")
		}
		if !updated.StartTime.After(now) {
			problems = append(problems, "appointment time must be in the future")
		}

		adv := calendar.Evaluate(updated.StartTime, req.AgeBand)
		problems = append(problems, adv.Errors...)
		if len(problems) > 0 {
			return nil, &ValidationError{Problems: problems}
		}
		warnings = adv.Warnings

		conflicts, err := s.conflicts.FindConflicts(ctx, requesterID, updated.StartTime, updated.DurationMinutes, &appt.ID)
		if err != nil {
			return nil, fmt.Errorf("conflict check: %w", err)
		}
		if len(conflicts) > 0 {
			return nil, &ValidationError{Conflicts: conflicts}
		}

		if updated.Day() != appt.Day() {
			occupant, err := s.repo.FindActiveOnDay(ctx, appt.ChatID, updated.Day())
			if err == nil && occupant.ID != appt.ID {
				return nil, &ValidationError{Problems: []string{"chat already has an appointment on " + updated.Day()}}
			} else if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
				return nil, fmt.Errorf("check chat day: %w", err)
			}
		}
	}

	saved, err := s.repo.UpdateDetails(ctx, &updated, appt.Status)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	if timeChanged {
		s.logEvent(ctx, saved.ID, EventAppointmentRescheduled, map[string]any{
			"chat_id":    chat.ID.String(),
			"start_time": saved.StartTime,
		})
	}

	return &UpdateResult{Appointment: saved, Warnings: warnings}, nil
}

type ChangeStatusRequest struct {
	AppointmentID uuid.UUID
	RequesterID   uuid.UUID
	NewStatus     Status
	// Reason is required when cancelling.
	Reason string
}

// ChangeStatus routes a transition request through the state-machine
// guard and applies it with a conditional write. Requesting completed on
// a waiting appointment records the requester's readiness flag; the
// second party's confirmation is the write that flips the status.
func (s *Service) ChangeStatus(ctx context.Context, req ChangeStatusRequest) (*Appointment, error) {
	appt, chat, err := s.loadAuthorized(ctx, req.AppointmentID, req.RequesterID)
	if err != nil {
		return nil, err
	}

	// Promote any overdue confirmed appointments first so a completion
	// confirmation right after the session finds waiting_to_complete.
	if _, err := s.sweeper.Sweep(ctx, chat.ID); err != nil {
		s.log.Warn("pre-transition sweep failed", zap.String("chat_id", chat.ID.String()), zap.Error(err))
	}
	appt, err = s.repo.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	if err := CheckTransition(appt.Status, req.NewStatus, now, appt.StartTime, appt.EndTime()); err != nil {
		return nil, err
	}

	var updated *Appointment
	switch req.NewStatus {
	case StatusConfirmed:
		updated, err = s.repo.UpdateStatus(ctx, appt.ID, appt.Status, StatusConfirmed)
		if err != nil {
			return nil, err
		}
		s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{"by": req.RequesterID.String()})
		s.notifier.AppointmentStatusChanged(ctx, chat.ID, updated, EventAppointmentConfirmed)

	case StatusCancelled:
		if req.Reason == "" {
			return nil, &ValidationError{Problems: []string{"cancellation reason is required"}}
		}
		updated, err = s.repo.CancelWithReason(ctx, appt.ID, appt.Status, req.Reason)
		if err != nil {
			return nil, err
		}
		s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
			"by":     req.RequesterID.String(),
			"reason": req.Reason,
		})
		s.notifier.AppointmentStatusChanged(ctx, chat.ID, updated, EventAppointmentCancelled)

	case StatusWaitingToComplete:
		updated, err = s.repo.UpdateStatus(ctx, appt.ID, appt.Status, StatusWaitingToComplete)
		if err != nil {
			return nil, err
		}

	case StatusCompleted:
		party, ok := chat.PartyOf(req.RequesterID)
		if !ok {
			return nil, &ValidationError{Problems: []string{"chat has no teacher marker, cannot resolve the requester's readiness flag"}}
		}
		res, err := s.repo.RecordReadiness(ctx, appt.ID, party)
		if err != nil {
			return nil, err
		}
		updated = res.Appointment
		s.logEvent(ctx, updated.ID, EventReadinessRecorded, map[string]any{
			"party": string(party),
		})
		if res.Completed {
			s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{})
			s.notifier.AppointmentStatusChanged(ctx, chat.ID, updated, EventAppointmentCompleted)
		}

	default:
		return nil, ErrInvalidTransition
	}

	return updated, nil
}

// List returns the user's appointments across all their chats. Each chat
// is swept first so results reflect current statuses.
func (s *Service) List(ctx context.Context, userID uuid.UUID, f ListFilter) ([]Appointment, error) {
	chatIDs, err := s.chats.ListChatIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats for user: %w", err)
	}
	if len(chatIDs) == 0 {
		return nil, nil
	}

	for _, chatID := range chatIDs {
		if _, err := s.sweeper.Sweep(ctx, chatID); err != nil {
			s.log.Warn("pre-read sweep failed", zap.String("chat_id", chatID.String()), zap.Error(err))
		}
	}

	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	return s.repo.ListByChats(ctx, chatIDs, f)
}

// Get returns a single appointment after an authorization check.
func (s *Service) Get(ctx context.Context, id, requesterID uuid.UUID) (*Appointment, error) {
	appt, _, err := s.loadAuthorized(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) loadAuthorized(ctx context.Context, id, requesterID uuid.UUID) (*Appointment, *Chat, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	chat, err := s.chats.GetChat(ctx, appt.ChatID)
	if err != nil {
		return nil, nil, err
	}
	if !chat.HasParticipant(requesterID) {
		return nil, nil, ErrNotParticipant
	}
	return appt, chat, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.nowFn(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
	}
}
