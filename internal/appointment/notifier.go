package appointment

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ZapNotifier is the shipped Notifier: it logs the structured status
// line for the chat system to pick up. Message formatting and locale
// belong to the consumer, not here.
type ZapNotifier struct {
	log *zap.Logger
}

func NewZapNotifier(log *zap.Logger) *ZapNotifier {
	return &ZapNotifier{log: log}
}

func (n *ZapNotifier) AppointmentStatusChanged(_ context.Context, chatID uuid.UUID, a *Appointment, event string) {
	n.log.Info("appointment status changed",
		zap.String("chat_id", chatID.String()),
		zap.String("appointment_id", a.ID.String()),
		zap.String("event", event),
		zap.String("status", string(a.Status)),
		zap.Time("start_time", a.StartTime))
}
