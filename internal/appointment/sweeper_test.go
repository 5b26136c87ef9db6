package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweepPromotesExpiredConfirmed(t *testing.T) {
	teacher, student := uuid.New(), uuid.New()
	chat := testChat(teacher, student)
	repo := NewInMemoryRepository()
	sw := NewExpirySweeper(repo, zap.NewNop())

	now := time.Date(2025, time.May, 21, 12, 0, 0, 0, time.UTC)
	sw.nowFn = func() time.Time { return now }

	ended := seedAppointment(t, repo, chat.ID, now.Add(-3*time.Hour), 60, StatusConfirmed)
	endingExactlyNow := seedAppointment(t, repo, chat.ID, now.Add(-60*time.Minute), 60, StatusConfirmed)
	running := seedAppointment(t, repo, chat.ID, now.Add(-30*time.Minute), 60, StatusConfirmed)
	upcoming := seedAppointment(t, repo, chat.ID, now.Add(4*time.Hour), 60, StatusConfirmed)
	pending := seedAppointment(t, repo, chat.ID, now.Add(-5*time.Hour), 60, StatusPending)

	promoted, err := sw.Sweep(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, promoted)

	assertStatus := func(id uuid.UUID, want Status) {
		a, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, want, a.Status)
	}
	assertStatus(ended.ID, StatusWaitingToComplete)
	assertStatus(endingExactlyNow.ID, StatusWaitingToComplete)
	assertStatus(running.ID, StatusConfirmed)
	assertStatus(upcoming.ID, StatusConfirmed)
	assertStatus(pending.ID, StatusPending)
}

func TestSweepIsIdempotent(t *testing.T) {
	teacher, student := uuid.New(), uuid.New()
	chat := testChat(teacher, student)
	repo := NewInMemoryRepository()
	sw := NewExpirySweeper(repo, zap.NewNop())

	now := time.Date(2025, time.May, 21, 12, 0, 0, 0, time.UTC)
	sw.nowFn = func() time.Time { return now }

	seedAppointment(t, repo, chat.ID, now.Add(-3*time.Hour), 60, StatusConfirmed)

	first, err := sw.Sweep(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := sw.Sweep(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second, "a repeat sweep with no intervening writes promotes nothing")
}

func TestSweepSkipsRecordsLostToConcurrentWrites(t *testing.T) {
	teacher, student := uuid.New(), uuid.New()
	chat := testChat(teacher, student)
	repo := NewInMemoryRepository()
	sw := NewExpirySweeper(repo, zap.NewNop())

	now := time.Date(2025, time.May, 21, 12, 0, 0, 0, time.UTC)
	sw.nowFn = func() time.Time { return now }

	victim := seedAppointment(t, repo, chat.ID, now.Add(-3*time.Hour), 60, StatusConfirmed)
	survivor := seedAppointment(t, repo, chat.ID, now.Add(-26*time.Hour), 60, StatusConfirmed)

	// Simulate a cancellation racing in between the sweep's read and its
	// conditional write.
	racingRepo := &statusRacingRepo{Repository: repo, target: victim.ID}
	swRacing := NewExpirySweeper(racingRepo, zap.NewNop())
	swRacing.nowFn = sw.nowFn

	promoted, err := swRacing.Sweep(context.Background(), chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted, "the lost race is non-fatal and skipped")

	a, err := repo.GetByID(context.Background(), victim.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, a.Status)

	a, err = repo.GetByID(context.Background(), survivor.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusWaitingToComplete, a.Status)
}

// statusRacingRepo cancels the target appointment right after it is
// listed, before the sweeper's conditional write lands.
type statusRacingRepo struct {
	Repository
	target uuid.UUID
	fired  bool
}

func (r *statusRacingRepo) ListExpiredConfirmed(ctx context.Context, chatID uuid.UUID, now time.Time) ([]Appointment, error) {
	list, err := r.Repository.ListExpiredConfirmed(ctx, chatID, now)
	if err == nil && !r.fired {
		r.fired = true
		_, _ = r.Repository.CancelWithReason(ctx, r.target, StatusConfirmed, "teacher called it off")
	}
	return list, err
}
