package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSPublisher mirrors run events to NATS so external systems can
// observe progress without holding the HTTP stream open.
//
// Events are published to subjects:
//
//	agents.{task_type}.{request_id}.{event_type}
type NATSPublisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// NewNATSPublisher connects to a NATS server and returns a publisher.
func NewNATSPublisher(url string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, logger: logger}, nil
}

// Emit publishes the event. Publish failures are logged, not returned;
// the mirror is observational and must never fail a run.
func (p *NATSPublisher) Emit(event Event) {
	subject := fmt.Sprintf("agents.%s.%s.%s", event.TaskType, event.RequestID, event.Type)
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("marshal event failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn("publish event failed", zap.String("subject", subject), zap.Error(err))
	}
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("drain failed", zap.Error(err))
	}
}

var _ Sink = (*NATSPublisher)(nil)
