// Package rabbitmq publishes range reports to a RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"fmt"

	"github.com/artpar/maxrange/adapters/codec"
	"github.com/artpar/maxrange/domain/ranges"
	"github.com/artpar/maxrange/ports"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Config configures the publisher.
type Config struct {
	URL              string
	Exchange         string
	RoutingKeyPrefix string
}

// Channel is the subset of *amqp.Channel used by the publisher.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends one persistent message per device with routing key
// "<prefix>.<imei>".
type Publisher struct {
	ch       Channel
	conn     *amqp.Connection
	codec    codec.Codec
	exchange string
	prefix   string
	logger   zerolog.Logger
}

// Dial connects to the broker, opens a channel and declares the exchange.
func Dial(cfg Config, c codec.Codec, logger zerolog.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := NewPublisherWithChannel(ch, cfg, c, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisherWithChannel declares the exchange on an existing channel.
func NewPublisherWithChannel(ch Channel, cfg Config, c codec.Codec, logger zerolog.Logger) (*Publisher, error) {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	return &Publisher{
		ch:       ch,
		codec:    c,
		exchange: cfg.Exchange,
		prefix:   cfg.RoutingKeyPrefix,
		logger:   logger.With().Str("component", "rabbitmq_publisher").Str("exchange", cfg.Exchange).Logger(),
	}, nil
}

// RoutingKey returns the routing key for a device.
func (p *Publisher) RoutingKey(deviceID string) string {
	if p.prefix == "" {
		return deviceID
	}
	return p.prefix + "." + deviceID
}

// Publish sends each device's results; the first failure stops the run.
func (p *Publisher) Publish(ctx context.Context, report ranges.Report) error {
	for _, d := range report.ByDevice() {
		body, err := p.codec.Marshal(codec.NewDeviceMessage(d))
		if err != nil {
			return fmt.Errorf("encode %s: %w", d.DeviceID, err)
		}

		err = p.ch.PublishWithContext(ctx, p.exchange, p.RoutingKey(d.DeviceID), false, false, amqp.Publishing{
			ContentType:   p.codec.ContentType(),
			DeliveryMode:  amqp.Persistent,
			CorrelationId: report.InvocationID,
			Timestamp:     report.GeneratedAt,
			Body:          body,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", d.DeviceID, err)
		}

		p.logger.Debug().
			Str("invocation_id", report.InvocationID).
			Str("imei", d.DeviceID).
			Msg("device ranges published")
	}
	return nil
}

// Close closes the channel and, when owned, the connection.
func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

var _ ports.RangePublisher = (*Publisher)(nil)
