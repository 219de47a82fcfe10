package rabbitmq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/maxrange/adapters/codec"
	"github.com/artpar/maxrange/adapters/rabbitmq"
	"github.com/artpar/maxrange/domain/ranges"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type mockChannel struct {
	declared   []string
	kinds      []string
	published  []published
	declareErr error
	publishErr error
	closed     bool
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	if m.declareErr != nil {
		return m.declareErr
	}
	m.declared = append(m.declared, name)
	m.kinds = append(m.kinds, kind)
	return nil
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (m *mockChannel) Close() error {
	m.closed = true
	return nil
}

var cfg = rabbitmq.Config{Exchange: "ride.ranges", RoutingKeyPrefix: "ranges"}

func testReport() ranges.Report {
	m := ranges.Month{Year: 2024, Month: time.March}
	return ranges.Report{
		InvocationID: "inv-3",
		Monthly: []ranges.MonthlyAggregate{
			{DeviceID: "d2", Month: m, MaxDistance: 1},
			{DeviceID: "d1", Month: m, MaxDistance: 2},
		},
		Yearly:      []ranges.YearlyAggregate{{DeviceID: "d1", MaxDistance: 2}, {DeviceID: "d2", MaxDistance: 1}},
		GeneratedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewPublisherWithChannel_DeclaresTopicExchange(t *testing.T) {
	ch := &mockChannel{}
	if _, err := rabbitmq.NewPublisherWithChannel(ch, cfg, codec.JSON{}, zerolog.Nop()); err != nil {
		t.Fatalf("NewPublisherWithChannel: %v", err)
	}
	if len(ch.declared) != 1 || ch.declared[0] != "ride.ranges" || ch.kinds[0] != "topic" {
		t.Errorf("declared = %v %v, want ride.ranges topic", ch.declared, ch.kinds)
	}
}

func TestNewPublisherWithChannel_DeclareError(t *testing.T) {
	ch := &mockChannel{declareErr: errors.New("access refused")}
	if _, err := rabbitmq.NewPublisherWithChannel(ch, cfg, codec.JSON{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPublisher_Publish(t *testing.T) {
	ch := &mockChannel{}
	pub, err := rabbitmq.NewPublisherWithChannel(ch, cfg, codec.MsgPack{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewPublisherWithChannel: %v", err)
	}

	if err := pub.Publish(context.Background(), testReport()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(ch.published) != 2 {
		t.Fatalf("published = %d, want 2", len(ch.published))
	}
	first := ch.published[0]
	if first.exchange != "ride.ranges" || first.key != "ranges.d1" {
		t.Errorf("first = %s/%s, want ride.ranges/ranges.d1", first.exchange, first.key)
	}
	if first.msg.ContentType != "application/x-msgpack" {
		t.Errorf("ContentType = %s", first.msg.ContentType)
	}
	if first.msg.DeliveryMode != amqp.Persistent {
		t.Errorf("DeliveryMode = %d, want persistent", first.msg.DeliveryMode)
	}
	if first.msg.CorrelationId != "inv-3" {
		t.Errorf("CorrelationId = %s, want inv-3", first.msg.CorrelationId)
	}

	var msg codec.DeviceMessage
	if err := (codec.MsgPack{}).Unmarshal(first.msg.Body, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.IMEI != "d1" || msg.YearlyMax != 2 {
		t.Errorf("message = %+v", msg)
	}
}

func TestPublisher_PublishError(t *testing.T) {
	ch := &mockChannel{}
	pub, _ := rabbitmq.NewPublisherWithChannel(ch, cfg, codec.JSON{}, zerolog.Nop())
	ch.publishErr = errors.New("channel closed")

	if err := pub.Publish(context.Background(), testReport()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPublisher_RoutingKeyWithoutPrefix(t *testing.T) {
	pub, _ := rabbitmq.NewPublisherWithChannel(&mockChannel{}, rabbitmq.Config{Exchange: "x"}, codec.JSON{}, zerolog.Nop())
	if got := pub.RoutingKey("d1"); got != "d1" {
		t.Errorf("RoutingKey = %s, want d1", got)
	}
}

func TestPublisher_Close(t *testing.T) {
	ch := &mockChannel{}
	pub, _ := rabbitmq.NewPublisherWithChannel(ch, cfg, codec.JSON{}, zerolog.Nop())
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ch.closed {
		t.Error("channel not closed")
	}
}
