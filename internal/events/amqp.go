package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/internal/metrics"
	"github.com/jobmarket/marketplace-client/pkg/model"
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher forwards session events to RabbitMQ on the default exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
	prefix   string
	logger   *zap.Logger
}

// DialAMQP connects to RabbitMQ and opens a channel.
func DialAMQP(url, prefix string, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	p := NewAMQPPublisher(ch, "", prefix, logger)
	p.conn = conn
	return p, nil
}

func NewAMQPPublisher(ch Channel, exchange, prefix string, logger *zap.Logger) *AMQPPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPublisher{channel: ch, exchange: exchange, prefix: prefix, logger: logger}
}

// Publish sends ev as an envelope; expiry events get a higher priority.
func (p *AMQPPublisher) Publish(ctx context.Context, ev model.SessionEvent) error {
	key := RoutingKey(p.prefix, ev.Type)
	env, err := model.NewEnvelope(key, ev)
	if err != nil {
		metrics.IncEventPublishError("amqp")
		return fmt.Errorf("build envelope: %w", err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		metrics.IncEventPublishError("amqp")
		return err
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     env.ID.String(),
		CorrelationId: env.CorrelationID.String(),
		Type:          env.EventType,
		Timestamp:     env.Timestamp,
		Body:          body,
	}
	if ev.Type == model.SessionExpired {
		msg.Priority = 10
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		msg,
	)
	if err != nil {
		metrics.IncEventPublishError("amqp")
		p.logger.Error("events.amqp.publish_failed",
			zap.String("routing_key", key),
			zap.String("event_type", env.EventType),
			zap.Error(err))
		return err
	}
	p.logger.Debug("events.amqp.published", zap.String("routing_key", key), zap.String("event_id", ev.ID.String()))
	return nil
}

// Attach forwards every bus event to RabbitMQ. Errors are logged and counted.
func (p *AMQPPublisher) Attach(bus *Bus) func() {
	return bus.Subscribe(func(ctx context.Context, ev model.SessionEvent) {
		_ = p.Publish(ctx, ev)
	})
}

// Close closes the publisher.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
