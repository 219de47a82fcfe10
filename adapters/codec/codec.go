// Package codec encodes published range reports as JSON or MessagePack.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/artpar/maxrange/domain/ranges"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec marshals messages for a transport.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	ContentType() string
}

// New returns the codec for "json" or "msgpack".
func New(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return MsgPack{}, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
}

// JSON encodes with encoding/json.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) ContentType() string                { return "application/json" }

// MsgPack encodes with MessagePack, reusing json struct tags so both
// encodings share field names.
type MsgPack struct{}

func (MsgPack) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgPack) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func (MsgPack) ContentType() string { return "application/x-msgpack" }

// MonthlyRange is one month in a DeviceMessage.
type MonthlyRange struct {
	RideMonth string  `json:"ride_month"`
	MaxRange  float64 `json:"max_range"`
}

// DeviceMessage is the published form of one device's results.
type DeviceMessage struct {
	InvocationID string         `json:"invocation_id"`
	IMEI         string         `json:"imei"`
	MonthFilter  string         `json:"month_filter,omitempty"`
	Monthly      []MonthlyRange `json:"monthly"`
	YearlyMax    float64        `json:"yearly_max"`
	GeneratedAt  string         `json:"generated_at"`
}

// NewDeviceMessage converts a device report to its wire form.
func NewDeviceMessage(r ranges.DeviceReport) DeviceMessage {
	msg := DeviceMessage{
		InvocationID: r.InvocationID,
		IMEI:         r.DeviceID,
		Monthly:      make([]MonthlyRange, 0, len(r.Monthly)),
		YearlyMax:    r.Yearly,
		GeneratedAt:  r.GeneratedAt.UTC().Format(time.RFC3339),
	}
	if r.Filter != nil {
		msg.MonthFilter = r.Filter.String()
	}
	for _, m := range r.Monthly {
		msg.Monthly = append(msg.Monthly, MonthlyRange{RideMonth: m.Month.String(), MaxRange: m.MaxDistance})
	}
	return msg
}
