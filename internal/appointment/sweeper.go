package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExpirySweeper lazily promotes confirmed appointments whose scheduled
// end has passed into waiting_to_complete. There is no timer process:
// the service runs a sweep before reads and status changes that touch
// the chat.
type ExpirySweeper struct {
	repo Repository
	log  *zap.Logger

	nowFn func() time.Time
}

func NewExpirySweeper(repo Repository, log *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{repo: repo, log: log, nowFn: time.Now}
}

// Sweep promotes every expired confirmed appointment in the chat and
// returns how many records it moved. Each promotion is a conditional
// write guarded on the status still being confirmed, so a concurrent
// cancellation wins the race and the sweep simply skips that record.
// Running Sweep twice in a row promotes nothing the second time.
func (s *ExpirySweeper) Sweep(ctx context.Context, chatID uuid.UUID) (int, error) {
	now := s.nowFn()

	expired, err := s.repo.ListExpiredConfirmed(ctx, chatID, now)
	if err != nil {
		return 0, fmt.Errorf("list expired confirmed: %w", err)
	}

	promoted := 0
	for i := range expired {
		a := &expired[i]
		_, err := s.repo.UpdateStatus(ctx, a.ID, StatusConfirmed, StatusWaitingToComplete)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrStatusChanged) {
				// Lost the conditional write; leave it for the next sweep.
				continue
			}
			s.log.Warn("expiry promotion failed",
				zap.String("appointment_id", a.ID.String()),
				zap.Error(err))
			continue
		}
		promoted++
	}

	return promoted, nil
}
