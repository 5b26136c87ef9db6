package appointment

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChat(userA, userB uuid.UUID) *Chat {
	return &Chat{
		ID:           uuid.New(),
		Participants: []uuid.UUID{userA, userB},
		TeacherID:    &userA,
		Active:       true,
	}
}

func seedAppointment(t *testing.T, repo *InMemoryRepository, chatID uuid.UUID, start time.Time, durationMinutes int, status Status) *Appointment {
	t.Helper()
	a := &Appointment{
		ID:              uuid.New(),
		ChatID:          chatID,
		StartTime:       start,
		DurationMinutes: durationMinutes,
		Status:          status,
		Location:        LocationOnline,
	}
	require.NoError(t, repo.Create(context.Background(), a))
	return a
}

func TestFindConflictsBufferedOverlap(t *testing.T) {
	teacher, student := uuid.New(), uuid.New()
	chat := testChat(teacher, student)
	repo := NewInMemoryRepository()
	det := NewConflictDetector(repo, NewStaticChatDirectory(chat))

	base := time.Date(2025, time.May, 20, 15, 0, 0, 0, time.UTC)
	existing := seedAppointment(t, repo, chat.ID, base, 60, StatusConfirmed)

	cases := []struct {
		name     string
		start    time.Time
		conflict bool
	}{
		{"same slot", base, true},
		{"thirty minutes in", base.Add(30 * time.Minute), true},
		{"right after, inside buffer", base.Add(70 * time.Minute), true},
		{"right before, inside buffer", base.Add(-65 * time.Minute), true},
		{"well after", base.Add(2 * time.Hour), false},
		{"well before", base.Add(-3 * time.Hour), false},
		{"next day", base.AddDate(0, 0, 1), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := det.FindConflicts(context.Background(), student, tc.start, 60, nil)
			require.NoError(t, err)
			if tc.conflict {
				require.Len(t, got, 1)
				assert.Equal(t, existing.ID, got[0].AppointmentID)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestFindConflictsIgnoresSettledStatuses(t *testing.T) {
	teacher, student := uuid.New(), uuid.New()
	chat := testChat(teacher, student)
	repo := NewInMemoryRepository()
	det := NewConflictDetector(repo, NewStaticChatDirectory(chat))

	base := time.Date(2025, time.May, 20, 15, 0, 0, 0, time.UTC)
	seedAppointment(t, repo, chat.ID, base, 60, StatusCancelled)
	seedAppointment(t, repo, chat.ID, base, 60, StatusCompleted)
	seedAppointment(t, repo, chat.ID, base, 60, StatusWaitingToComplete)

	got, err := det.FindConflicts(context.Background(), student, base, 60, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindConflictsExcludesOwnSlot(t *testing.T) {
	teacher, student := uuid.New(), uuid.New()
	chat := testChat(teacher, student)
	repo := NewInMemoryRepository()
	det := NewConflictDetector(repo, NewStaticChatDirectory(chat))

	base := time.Date(2025, time.May, 20, 15, 0, 0, 0, time.UTC)
	existing := seedAppointment(t, repo, chat.ID, base, 60, StatusPending)

	// Rescheduling within its own window must not self-conflict.
	got, err := det.FindConflicts(context.Background(), student, base.Add(30*time.Minute), 60, &existing.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindConflictsSpansAllUserChats(t *testing.T) {
	teacher, student, otherTeacher := uuid.New(), uuid.New(), uuid.New()
	chatA := testChat(teacher, student)
	chatB := testChat(otherTeacher, student)
	repo := NewInMemoryRepository()
	det := NewConflictDetector(repo, NewStaticChatDirectory(chatA, chatB))

	base := time.Date(2025, time.May, 20, 15, 0, 0, 0, time.UTC)
	other := seedAppointment(t, repo, chatB.ID, base, 60, StatusConfirmed)

	got, err := det.FindConflicts(context.Background(), student, base.Add(30*time.Minute), 60, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, other.ID, got[0].AppointmentID)
}

// TestFindConflictsProperty checks the detector against a brute-force
// reference on randomized appointment sets: it must flag exactly the
// buffered pairwise overlaps, nothing more and nothing less.
func TestFindConflictsProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	day := time.Date(2025, time.May, 19, 0, 0, 0, 0, time.UTC)

	for round := 0; round < 50; round++ {
		teacher, student := uuid.New(), uuid.New()
		chat := testChat(teacher, student)
		repo := NewInMemoryRepository()
		det := NewConflictDetector(repo, NewStaticChatDirectory(chat))

		existing := make([]*Appointment, 0, 8)
		for i := 0; i < 8; i++ {
			start := day.AddDate(0, 0, rng.Intn(5)).Add(time.Duration(rng.Intn(14*4)) * 15 * time.Minute)
			dur := (1 + rng.Intn(8)) * 15
			existing = append(existing, seedAppointment(t, repo, chat.ID, start, dur, StatusConfirmed))
		}

		propStart := day.AddDate(0, 0, rng.Intn(5)).Add(time.Duration(rng.Intn(14*4)) * 15 * time.Minute)
		propDur := (1 + rng.Intn(8)) * 15

		got, err := det.FindConflicts(context.Background(), student, propStart, propDur, nil)
		require.NoError(t, err)

		flagged := make(map[uuid.UUID]bool, len(got))
		for _, c := range got {
			flagged[c.AppointmentID] = true
		}

		bufStart := propStart.Add(-ConflictBuffer)
		bufEnd := propStart.Add(time.Duration(propDur) * time.Minute).Add(ConflictBuffer)
		for _, e := range existing {
			eEnd := e.StartTime.Add(time.Duration(e.DurationMinutes) * time.Minute)
			want := !(eEnd.Before(bufStart) || e.StartTime.After(bufEnd))
			assert.Equal(t, want, flagged[e.ID],
				"round %d: appointment %s..%s vs window %s..%s", round,
				e.StartTime.Format("Mon 15:04"), eEnd.Format("15:04"),
				bufStart.Format("Mon 15:04"), bufEnd.Format("15:04"))
		}
	}
}

func TestOverlaps(t *testing.T) {
	at := func(h int) time.Time {
		return time.Date(2025, time.May, 20, h, 0, 0, 0, time.UTC)
	}

	assert.True(t, Overlaps(at(10), at(12), at(11), at(13)))
	assert.True(t, Overlaps(at(10), at(12), at(12), at(13)), "touching boundaries intersect")
	assert.True(t, Overlaps(at(10), at(12), at(9), at(10)))
	assert.False(t, Overlaps(at(10), at(12), at(13), at(14)))
	assert.False(t, Overlaps(at(13), at(14), at(10), at(12)))
}
