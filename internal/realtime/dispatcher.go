package realtime

import (
	"github.com/anonto42/findmate/backend/internal/models"
	"go.uber.org/zap"
)

// Dispatcher pushes frames to users that currently have a live channel.
// Delivery is best effort: the notification store is the source of truth,
// so a missing or broken channel is never an error for the caller.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// closer is implemented by channels that own a transport, such as *Stream.
type closer interface {
	Close()
}

// Dispatch sends f to userID if the user is online. A failed send drops the
// stale registry entry and the frame; nothing is retried or queued. The
// channel is closed as well so its transport ends and the client reconnects.
func (d *Dispatcher) Dispatch(userID string, f Frame) {
	ch, ok := d.registry.Lookup(userID)
	if !ok {
		return
	}
	if err := ch.Send(f); err != nil {
		d.registry.Release(userID, ch)
		if c, ok := ch.(closer); ok {
			c.Close()
		}
		d.logger.Debug("live push dropped",
			zap.String("user_id", userID),
			zap.String("frame", f.Type),
			zap.Error(err))
	}
}

// DispatchNotification pushes a new_notification frame for n.
func (d *Dispatcher) DispatchNotification(userID string, n *models.Notification) {
	d.Dispatch(userID, NotificationFrame(n))
}
