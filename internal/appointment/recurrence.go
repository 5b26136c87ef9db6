package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorhive/chat-scheduling/internal/calendar"
)

// MaxOccurrences caps a generated series regardless of how far out the
// requested end date lies.
const MaxOccurrences = 24

// SkippedOccurrence records a candidate date that failed re-validation
// and was left out of the series.
type SkippedOccurrence struct {
	At      time.Time
	Reasons []string
}

// RecurrenceExpander steps forward from a base appointment by the
// cadence's fixed day increment, re-validating every candidate. Failed
// candidates are skipped rather than aborting the series: one bad date
// must not lose the rest.
type RecurrenceExpander struct {
	conflicts *ConflictDetector
	log       *zap.Logger
}

func NewRecurrenceExpander(conflicts *ConflictDetector, log *zap.Logger) *RecurrenceExpander {
	return &RecurrenceExpander{conflicts: conflicts, log: log}
}

// Expand generates drafts for the occurrences after base, stopping at
// the first candidate strictly after endDate or at MaxOccurrences,
// whichever comes first. Drafts copy the base appointment's details and
// are not yet persisted.
func (e *RecurrenceExpander) Expand(ctx context.Context, base *Appointment, requesterID uuid.UUID, band calendar.AgeBand, pattern RecurrencePattern, endDate time.Time) ([]*Appointment, []SkippedOccurrence, error) {
	step := pattern.DayStep()
	if step == 0 {
		return nil, nil, &ValidationError{Problems: []string{"invalid recurrence pattern"}}
	}

	var drafts []*Appointment
	var skipped []SkippedOccurrence

	next := base.StartTime
	for i := 0; i < MaxOccurrences; i++ {
		next = next.AddDate(0, 0, step)
		if next.After(endDate) {
			break
		}

		reasons := e.validate(ctx, next, base.DurationMinutes, requesterID, band)
		if len(reasons) > 0 {
			e.log.Info("skipping recurrence occurrence",
				zap.String("chat_id", base.ChatID.String()),
				zap.Time("at", next),
				zap.String("reasons", strings.Join(reasons, "; ")))
			skipped = append(skipped, SkippedOccurrence{At: next, Reasons: reasons})
			continue
		}

		draft := *base
		draft.ID = uuid.New()
		draft.StartTime = next
		draft.Status = StatusPending
		drafts = append(drafts, &draft)
	}

	return drafts, skipped, nil
}

func (e *RecurrenceExpander) validate(ctx context.Context, at time.Time, durationMinutes int, requesterID uuid.UUID, band calendar.AgeBand) []string {
	var reasons []string

	if adv := calendar.Evaluate(at, band); !adv.Valid {
		reasons = append(reasons, adv.Errors...)
	}

	conflicts, err := e.conflicts.FindConflicts(ctx, requesterID, at, durationMinutes, nil)
	if err != nil {
		// A lookup failure only skips this occurrence; the series goes on.
		reasons = append(reasons, "conflict check failed: "+err.Error())
		return reasons
	}
	for _, c := range conflicts {
		reasons = append(reasons, "conflicts with appointment "+c.AppointmentID.String())
	}

	return reasons
}
