package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckTransitionTable(t *testing.T) {
	start := time.Date(2025, time.May, 20, 15, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	wellBefore := start.Add(-24 * time.Hour)
	afterEnd := end.Add(2 * time.Hour)

	cases := []struct {
		name      string
		current   Status
		requested Status
		now       time.Time
		wantErr   error
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, wellBefore, nil},
		{"pending to cancelled", StatusPending, StatusCancelled, wellBefore, nil},
		{"pending to completed", StatusPending, StatusCompleted, wellBefore, ErrInvalidTransition},
		{"pending to waiting", StatusPending, StatusWaitingToComplete, afterEnd, ErrInvalidTransition},
		{"confirmed to waiting after end", StatusConfirmed, StatusWaitingToComplete, afterEnd, nil},
		{"confirmed to waiting exactly at end", StatusConfirmed, StatusWaitingToComplete, end, nil},
		{"confirmed to waiting mid-session", StatusConfirmed, StatusWaitingToComplete, start.Add(30 * time.Minute), ErrSessionNotFinished},
		{"confirmed to waiting before start", StatusConfirmed, StatusWaitingToComplete, wellBefore, ErrSessionNotFinished},
		{"confirmed to cancelled early", StatusConfirmed, StatusCancelled, wellBefore, nil},
		{"confirmed to completed", StatusConfirmed, StatusCompleted, afterEnd, ErrInvalidTransition},
		{"waiting to completed", StatusWaitingToComplete, StatusCompleted, afterEnd, nil},
		{"waiting to cancelled", StatusWaitingToComplete, StatusCancelled, afterEnd, ErrInvalidTransition},
		{"completed is terminal", StatusCompleted, StatusCancelled, afterEnd, ErrTerminalStatus},
		{"cancelled is terminal", StatusCancelled, StatusConfirmed, wellBefore, ErrTerminalStatus},
		{"cancelled cannot complete", StatusCancelled, StatusCompleted, afterEnd, ErrTerminalStatus},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(tc.current, tc.requested, tc.now, start, end)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				assert.True(t, CanTransition(tc.current, tc.requested, tc.now, start, end))
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.False(t, CanTransition(tc.current, tc.requested, tc.now, start, end))
			}
		})
	}
}

func TestCancellationWindow(t *testing.T) {
	start := time.Date(2025, time.May, 20, 15, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	cases := []struct {
		name    string
		now     time.Time
		allowed bool
	}{
		{"three hours before", start.Add(-3 * time.Hour), true},
		{"just over two hours before", start.Add(-121 * time.Minute), true},
		{"exactly two hours before", start.Add(-2 * time.Hour), false},
		{"thirty minutes before", start.Add(-30 * time.Minute), false},
		{"after start", start.Add(10 * time.Minute), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(StatusConfirmed, StatusCancelled, tc.now, start, end)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrCancellationTooLate)
			}
		})
	}
}

func TestTerminalStatusesNeverExit(t *testing.T) {
	start := time.Date(2025, time.May, 20, 15, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	all := []Status{StatusPending, StatusConfirmed, StatusWaitingToComplete, StatusCompleted, StatusCancelled}

	for _, terminal := range []Status{StatusCompleted, StatusCancelled} {
		for _, to := range all {
			assert.False(t, CanTransition(terminal, to, end.Add(5*time.Hour), start, end),
				"%s -> %s must be rejected", terminal, to)
		}
	}
}

func TestIsStateError(t *testing.T) {
	assert.True(t, IsStateError(ErrCancellationTooLate))
	assert.True(t, IsStateError(ErrTerminalStatus))
	assert.False(t, IsStateError(ErrAppointmentNotFound))
}
