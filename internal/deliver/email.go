package deliver

import (
	"context"
	"fmt"
	"log/slog"

	"tramita/internal/logging"
	"tramita/internal/store"
)

// EmailChannel stands in for a real mail transport. When enabled it records
// each send in the log; when disabled every attempt fails so the outcome is
// visible in the delivery status map.
type EmailChannel struct {
	enabled bool
	from    string
	logger  *slog.Logger
}

func NewEmailChannel(enabled bool, from string, logger *slog.Logger) *EmailChannel {
	return &EmailChannel{
		enabled: enabled,
		from:    from,
		logger:  logging.NewComponentLogger(logger, "deliver"),
	}
}

func (e *EmailChannel) Method() store.DeliveryMethod { return store.MethodEmail }

func (e *EmailChannel) Deliver(ctx context.Context, notification *store.Notification, userID string) error {
	if !e.enabled {
		return fmt.Errorf("email delivery disabled")
	}
	e.logger.Info("email queued",
		logging.String("from", e.from),
		logging.String(logging.FieldUserID, userID),
		logging.String(logging.FieldNotificationID, notification.ID),
		logging.String("subject", notification.Title))
	return nil
}
