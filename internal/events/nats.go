package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/internal/metrics"
	"github.com/jobmarket/marketplace-client/pkg/model"
)

// JetStream is the publishing subset of nats.JetStreamContext.
type JetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher forwards session events to JetStream as canonical envelopes.
type NATSPublisher struct {
	nc      *nats.Conn
	js      JetStream
	prefix  string
	service string
	logger  *zap.Logger
}

// ConnectNATS dials url and opens a JetStream context.
func ConnectNATS(url, prefix, service string, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(service),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats jetstream: %w", err)
	}
	p := NewNATSPublisher(js, prefix, service, logger)
	p.nc = nc
	return p, nil
}

func NewNATSPublisher(js JetStream, prefix, service string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{js: js, prefix: prefix, service: service, logger: logger}
}

// Publish wraps ev in an envelope and publishes it on its subject.
func (p *NATSPublisher) Publish(_ context.Context, ev model.SessionEvent) error {
	subject := Subject(p.prefix, ev.Type)
	env, err := model.NewEnvelope(subject, ev)
	if err != nil {
		metrics.IncEventPublishError("nats")
		return fmt.Errorf("build envelope: %w", err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		metrics.IncEventPublishError("nats")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}
	if _, err := p.js.PublishMsg(msg); err != nil {
		metrics.IncEventPublishError("nats")
		p.logger.Error("events.nats.publish_failed",
			zap.String("subject", subject),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		return err
	}

	p.logger.Debug("events.nats.published", zap.String("subject", subject), zap.String("event_id", ev.ID.String()))
	return nil
}

// Attach forwards every bus event to JetStream. Errors are logged and counted.
func (p *NATSPublisher) Attach(bus *Bus) func() {
	return bus.Subscribe(func(ctx context.Context, ev model.SessionEvent) {
		_ = p.Publish(ctx, ev)
	})
}

func (p *NATSPublisher) Close() {
	if p.nc != nil && !p.nc.IsClosed() {
		p.nc.Close()
	}
}
