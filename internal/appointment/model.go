package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusConfirmed         Status = "confirmed"
	StatusWaitingToComplete Status = "waiting_to_complete"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active statuses take part in conflict checks and the
// one-per-chat-per-day rule.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusWaitingToComplete
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusWaitingToComplete, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

type Location string

const (
	LocationOnline       Location = "online"
	LocationTeacherPlace Location = "teacher_place"
	LocationStudentPlace Location = "student_place"
	LocationLibrary      Location = "library"
	LocationOther        Location = "other"
)

func ParseLocation(s string) (Location, error) {
	switch l := Location(s); l {
	case LocationOnline, LocationTeacherPlace, LocationStudentPlace, LocationLibrary, LocationOther:
		return l, nil
	}
	return "", fmt.Errorf("unknown location %q", s)
}

// Party identifies which side of the tutoring chat is acting.
type Party string

const (
	PartyTeacher Party = "teacher"
	PartyStudent Party = "student"
)

type Appointment struct {
	ID                    uuid.UUID
	ChatID                uuid.UUID
	StartTime             time.Time
	DurationMinutes       int
	Location              Location
	SpecificLocation      *string
	Status                Status
	TeacherReady          bool
	StudentReady          bool
	BothCompleted         bool
	Notes                 *string
	CancellationReason    *string
	ReminderOffsetMinutes *int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// EndTime is the scheduled end of the session.
func (a *Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Day is the appointment's UTC calendar day, the key for the
// one-active-appointment-per-chat-day rule. It must stay in UTC to
// match the storage layer's `date(start_time AT TIME ZONE 'UTC')`
// index, whatever offset the client sent the start time in.
func (a *Appointment) Day() string {
	return a.StartTime.UTC().Format("2006-01-02")
}

type RecurrencePattern string

const (
	PatternWeekly   RecurrencePattern = "weekly"
	PatternBiWeekly RecurrencePattern = "bi_weekly"
	PatternMonthly  RecurrencePattern = "monthly"
)

func ParseRecurrencePattern(s string) (RecurrencePattern, error) {
	switch p := RecurrencePattern(s); p {
	case PatternWeekly, PatternBiWeekly, PatternMonthly:
		return p, nil
	}
	return "", fmt.Errorf("unknown recurrence pattern %q", s)
}

// DayStep is the fixed day increment between occurrences. Monthly is a
// flat 30 days, not calendar-month arithmetic.
func (p RecurrencePattern) DayStep() int {
	switch p {
	case PatternWeekly:
		return 7
	case PatternBiWeekly:
		return 14
	case PatternMonthly:
		return 30
	}
	return 0
}

// RecurrenceRequest asks Create to materialize a series of follow-up
// occurrences after the base appointment.
type RecurrenceRequest struct {
	Pattern RecurrencePattern
	EndDate time.Time
}

// Chat is the engine's view of the external chat collaborator: a fixed
// two-party participant set plus an optional teacher marker used to
// resolve readiness flags.
type Chat struct {
	ID           uuid.UUID
	Participants []uuid.UUID
	TeacherID    *uuid.UUID
	Active       bool
}

func (c *Chat) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// PartyOf resolves which readiness flag a participant's completion
// confirmation updates. It requires the teacher marker to be set.
func (c *Chat) PartyOf(userID uuid.UUID) (Party, bool) {
	if c.TeacherID == nil || !c.HasParticipant(userID) {
		return "", false
	}
	if *c.TeacherID == userID {
		return PartyTeacher, true
	}
	return PartyStudent, true
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
