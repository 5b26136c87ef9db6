package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrChatNotFound        = errors.New("chat not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrNotParticipant is the authorization failure: the requester does
	// not belong to the chat owning the appointment.
	ErrNotParticipant = errors.New("requester is not a participant of the chat")

	// ErrStatusChanged means a conditional write lost its race: the
	// record's status moved between the guard read and the update.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// ValidationError carries all client-correctable problems with a
// create/update request, including any detected booking conflicts.
type ValidationError struct {
	Problems  []string
	Conflicts []ConflictSummary
}

func (e *ValidationError) Error() string {
	msgs := append([]string(nil), e.Problems...)
	for _, c := range e.Conflicts {
		msgs = append(msgs, fmt.Sprintf("conflicts with appointment %s at %s",
			c.AppointmentID, c.StartTime.Format(time.RFC3339)))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ListFilter narrows a List query. Nil fields are ignored.
type ListFilter struct {
	Status *Status
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// ReadinessUpdate is the outcome of recording one party's completion
// confirmation in a single conditional write.
type ReadinessUpdate struct {
	Appointment *Appointment
	// Completed is true when this write was the second confirmation and
	// flipped the appointment to completed.
	Completed bool
}

// Repository contains all datastore interactions needed by the engine.
// Status-changing methods are compare-and-swap: they only apply if the
// record's current status matches the expected one, and report
// ErrAppointmentNotFound when no row matched.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateDetails rewrites the mutable non-status fields, guarded on
	// the current status still being the expected one.
	UpdateDetails(ctx context.Context, a *Appointment, expected Status) (*Appointment, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	CancelWithReason(ctx context.Context, id uuid.UUID, from Status, reason string) (*Appointment, error)

	// RecordReadiness sets one party's readiness flag and, when both
	// flags end up true, completes the appointment in the same
	// conditional write guarded on waiting_to_complete.
	RecordReadiness(ctx context.Context, id uuid.UUID, party Party) (*ReadinessUpdate, error)

	// ListActiveByChats returns pending and confirmed appointments for
	// conflict checks.
	ListActiveByChats(ctx context.Context, chatIDs []uuid.UUID) ([]Appointment, error)

	// FindActiveOnDay returns the non-terminal appointment occupying the
	// chat's calendar day (format 2006-01-02), or ErrAppointmentNotFound.
	FindActiveOnDay(ctx context.Context, chatID uuid.UUID, day string) (*Appointment, error)

	// ListExpiredConfirmed returns confirmed appointments in the chat
	// whose scheduled end is at or before now.
	ListExpiredConfirmed(ctx context.Context, chatID uuid.UUID, now time.Time) ([]Appointment, error)

	ListByChats(ctx context.Context, chatIDs []uuid.UUID, f ListFilter) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

// ChatDirectory is the external chat collaborator: participant lookup
// and the user-to-chats mapping.
type ChatDirectory interface {
	GetChat(ctx context.Context, id uuid.UUID) (*Chat, error)
	ListChatIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Notifier receives a structured hook whenever a status transition
// completes. The caller owns message formatting and locale.
type Notifier interface {
	AppointmentStatusChanged(ctx context.Context, chatID uuid.UUID, a *Appointment, event string)
}
