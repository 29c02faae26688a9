// Package messaging fans grid events out to the configured publishers.
package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/ports"
)

// Dispatcher delivers each event to the in-process push-stream hub and,
// when configured, mirrors it to a remote bus. Local delivery is the contract
// the services rely on; remote failures are logged and swallowed so a bus
// outage never fails a user request.
type Dispatcher struct {
	local  ports.EventPublisher
	remote ports.EventPublisher
	logger *zap.Logger
}

// NewDispatcher creates an event dispatcher. remote may be nil.
func NewDispatcher(local, remote ports.EventPublisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{local: local, remote: remote, logger: logger}
}

// Publish implements ports.EventPublisher.
func (d *Dispatcher) Publish(ctx context.Context, userID, eventType string, payload interface{}) error {
	if d.remote != nil {
		if err := d.remote.Publish(ctx, userID, eventType, payload); err != nil {
			d.logger.Warn("Remote event publish failed",
				zap.String("eventType", eventType),
				zap.Error(err),
			)
		}
	}
	return d.local.Publish(ctx, userID, eventType, payload)
}
