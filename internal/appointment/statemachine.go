package appointment

import (
	"errors"
	"time"
)

// CancellationCutoff is how long before the scheduled start a confirmed
// appointment may still be cancelled.
const CancellationCutoff = 2 * time.Hour

var (
	ErrTerminalStatus      = errors.New("appointment is in a terminal status")
	ErrInvalidTransition   = errors.New("status transition not permitted")
	ErrCancellationTooLate = errors.New("confirmed appointments cannot be cancelled within two hours of the start")
	ErrSessionNotFinished  = errors.New("session has not finished yet")
)

// CheckTransition evaluates the transition guard without side effects.
// startTime and endTime bound the scheduled session; now is the instant
// the transition is requested.
func CheckTransition(current, requested Status, now, startTime, endTime time.Time) error {
	if current.Terminal() {
		return ErrTerminalStatus
	}

	switch current {
	case StatusPending:
		switch requested {
		case StatusConfirmed, StatusCancelled:
			return nil
		}
	case StatusConfirmed:
		switch requested {
		case StatusWaitingToComplete:
			if now.Before(endTime) {
				return ErrSessionNotFinished
			}
			return nil
		case StatusCancelled:
			if !now.Before(startTime.Add(-CancellationCutoff)) {
				return ErrCancellationTooLate
			}
			return nil
		}
	case StatusWaitingToComplete:
		if requested == StatusCompleted {
			return nil
		}
	}

	return ErrInvalidTransition
}

// CanTransition is the boolean form of CheckTransition.
func CanTransition(current, requested Status, now, startTime, endTime time.Time) bool {
	return CheckTransition(current, requested, now, startTime, endTime) == nil
}

// IsStateError reports whether err is one of the transition-guard
// failures.
func IsStateError(err error) bool {
	return errors.Is(err, ErrTerminalStatus) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrCancellationTooLate) ||
		errors.Is(err, ErrSessionNotFinished)
}
