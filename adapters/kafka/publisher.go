// Package kafka publishes range reports to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/maxrange/adapters/codec"
	"github.com/artpar/maxrange/domain/ranges"
	"github.com/artpar/maxrange/ports"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// Config configures the publisher.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes one message per device, keyed by IMEI, synchronously.
type Publisher struct {
	writer MessageWriter
	codec  codec.Codec
	topic  string
	logger zerolog.Logger
}

// NewPublisher creates a publisher backed by a kafka-go writer.
func NewPublisher(cfg Config, c codec.Codec, logger zerolog.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}
	return NewPublisherWithWriter(w, cfg.Topic, c, logger), nil
}

// NewPublisherWithWriter wires an existing writer into the publisher.
func NewPublisherWithWriter(w MessageWriter, topic string, c codec.Codec, logger zerolog.Logger) *Publisher {
	return &Publisher{
		writer: w,
		codec:  c,
		topic:  topic,
		logger: logger.With().Str("component", "kafka_publisher").Str("topic", topic).Logger(),
	}
}

// Publish sends the report as a single batch.
func (p *Publisher) Publish(ctx context.Context, report ranges.Report) error {
	devices := report.ByDevice()
	if len(devices) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, 0, len(devices))
	for _, d := range devices {
		value, err := p.codec.Marshal(codec.NewDeviceMessage(d))
		if err != nil {
			return fmt.Errorf("encode %s: %w", d.DeviceID, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(d.DeviceID),
			Value: value,
			Headers: []kafkago.Header{
				{Key: "content-type", Value: []byte(p.codec.ContentType())},
				{Key: "invocation-id", Value: []byte(report.InvocationID)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}

	p.logger.Debug().
		Str("invocation_id", report.InvocationID).
		Int("messages", len(msgs)).
		Msg("report published")
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ ports.RangePublisher = (*Publisher)(nil)
