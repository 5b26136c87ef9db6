package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictBuffer is the travel/reset padding applied to both ends of a
// proposed window before overlap checks. Existing appointments are
// compared with their exact boundaries; buffering both sides would
// double the padding.
const ConflictBuffer = 15 * time.Minute

// ConflictSummary describes one existing booking that overlaps a
// proposed window.
type ConflictSummary struct {
	AppointmentID   uuid.UUID
	ChatID          uuid.UUID
	StartTime       time.Time
	DurationMinutes int
	Status          Status
}

// ConflictDetector checks a proposed window against every pending or
// confirmed appointment in any chat the user participates in.
type ConflictDetector struct {
	repo  Repository
	chats ChatDirectory
}

func NewConflictDetector(repo Repository, chats ChatDirectory) *ConflictDetector {
	return &ConflictDetector{repo: repo, chats: chats}
}

// FindConflicts returns the existing appointments whose intervals
// intersect the buffered proposed window. exclude skips one appointment
// id, used when rescheduling so an appointment does not conflict with
// its own prior slot. An empty result means the window is free.
func (d *ConflictDetector) FindConflicts(ctx context.Context, userID uuid.UUID, start time.Time, durationMinutes int, exclude *uuid.UUID) ([]ConflictSummary, error) {
	chatIDs, err := d.chats.ListChatIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats for user: %w", err)
	}
	if len(chatIDs) == 0 {
		return nil, nil
	}

	existing, err := d.repo.ListActiveByChats(ctx, chatIDs)
	if err != nil {
		return nil, fmt.Errorf("list active appointments: %w", err)
	}

	bufferedStart := start.Add(-ConflictBuffer)
	bufferedEnd := start.Add(time.Duration(durationMinutes) * time.Minute).Add(ConflictBuffer)

	var conflicts []ConflictSummary
	for i := range existing {
		a := &existing[i]
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if !Overlaps(bufferedStart, bufferedEnd, a.StartTime, a.EndTime()) {
			continue
		}
		conflicts = append(conflicts, ConflictSummary{
			AppointmentID:   a.ID,
			ChatID:          a.ChatID,
			StartTime:       a.StartTime,
			DurationMinutes: a.DurationMinutes,
			Status:          a.Status,
		})
	}

	return conflicts, nil
}

// Overlaps reports whether the two closed intervals intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !(bEnd.Before(aStart) || bStart.After(aEnd))
}
