package deliver

import (
	"context"
	"log/slog"

	"tramita/internal/logging"
	"tramita/internal/store"
)

// Channel pushes one notification to one recipient over a single transport.
// Implementations return an error on failure; the dispatcher captures it and
// never lets it escape to the caller.
type Channel interface {
	Method() store.DeliveryMethod
	Deliver(ctx context.Context, notification *store.Notification, userID string) error
}

// Status maps each attempted channel to its outcome. StatusSent marks
// success; anything else is the failure description.
type Status map[store.DeliveryMethod]string

const StatusSent = "sent"

// Failed reports whether any attempted channel did not complete.
func (s Status) Failed() bool {
	for _, outcome := range s {
		if outcome != StatusSent {
			return true
		}
	}
	return false
}

// Dispatcher fans a notification out to the channels a delivery record asks
// for. Channel failures are logged and collected, never returned.
type Dispatcher struct {
	channels map[store.DeliveryMethod]Channel
	logger   *slog.Logger
}

func NewDispatcher(logger *slog.Logger, channels ...Channel) *Dispatcher {
	byMethod := make(map[store.DeliveryMethod]Channel, len(channels))
	for _, ch := range channels {
		byMethod[ch.Method()] = ch
	}
	return &Dispatcher{
		channels: byMethod,
		logger:   logging.NewComponentLogger(logger, "deliver"),
	}
}

// Deliver attempts every method listed on the delivery record and returns the
// per-channel outcome. Methods with no registered channel are reported as
// unavailable rather than skipped silently.
func (d *Dispatcher) Deliver(ctx context.Context, notification *store.Notification, delivery store.Delivery) Status {
	status := make(Status, len(delivery.Methods))
	for _, method := range delivery.Methods {
		channel, ok := d.channels[method]
		if !ok {
			status[method] = "no channel registered"
			continue
		}
		if err := channel.Deliver(ctx, notification, delivery.UserID); err != nil {
			d.logger.Warn("channel delivery failed",
				logging.String("method", string(method)),
				logging.String(logging.FieldNotificationID, notification.ID),
				logging.String(logging.FieldUserID, delivery.UserID),
				logging.Error(err))
			status[method] = err.Error()
			continue
		}
		status[method] = StatusSent
	}
	return status
}
