// Package ranges provides ride event types, the trip segmentation scan and
// the max-merge aggregate store.
// All functions are pure - no side effects.
package ranges

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Kind classifies a ride event.
type Kind string

const (
	KindTrip     Kind = "trip"     // Vehicle moving, carries a distance
	KindCharging Kind = "charging" // Closes an open trip segment
	KindOther    Kind = "other"    // Any other ride_type, transparent to the scan
)

// ParseKind maps a stored ride_type to a Kind.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindTrip:
		return KindTrip
	case KindCharging:
		return KindCharging
	default:
		return KindOther
	}
}

// OffsetSeconds is the fixed UTC offset (+05:30) used to derive calendar months.
const OffsetSeconds = 5*3600 + 1800

// Offset is the zone months are computed in.
var Offset = time.FixedZone("+0530", OffsetSeconds)

// RecognizedYears are the only years that participate in a scan.
var RecognizedYears = map[int]bool{
	2023: true,
	2024: true,
}

// IsRecognizedYear reports whether events in year y are scanned.
func IsRecognizedYear(y int) bool {
	return RecognizedYears[y]
}

// ErrMalformedRecord is returned when a stored record lacks a required field.
var ErrMalformedRecord = errors.New("malformed ride record")

// Record is a ride record as projected from the store.
// Nil fields were absent in the stored item.
type Record struct {
	RideType     *string
	RideStart    *int64 // epoch seconds
	RideDistance *string
}

// Event is a decoded ride event (immutable value type).
type Event struct {
	Kind  Kind
	Start time.Time

	// Distance is the stored string encoding of the trip distance.
	// It is parsed during the scan; unparsable values count as zero.
	Distance    string
	HasDistance bool
}

// DecodeRecord converts a stored record into an Event.
// Records without ride_type or ride_start are malformed.
func DecodeRecord(r Record) (Event, error) {
	if r.RideType == nil {
		return Event{}, fmt.Errorf("%w: missing ride_type", ErrMalformedRecord)
	}
	if r.RideStart == nil {
		return Event{}, fmt.Errorf("%w: missing ride_start", ErrMalformedRecord)
	}
	if *r.RideStart < 0 {
		return Event{}, fmt.Errorf("%w: negative ride_start %d", ErrMalformedRecord, *r.RideStart)
	}

	e := Event{
		Kind:  ParseKind(*r.RideType),
		Start: time.Unix(*r.RideStart, 0).UTC(),
	}
	if r.RideDistance != nil {
		e.Distance = *r.RideDistance
		e.HasDistance = true
	}
	return e, nil
}

// Trip creates a trip event. Used by adapters and tests.
func Trip(start time.Time, distance string) Event {
	return Event{Kind: KindTrip, Start: start, Distance: distance, HasDistance: true}
}

// Charging creates a charging event.
func Charging(start time.Time) Event {
	return Event{Kind: KindCharging, Start: start}
}

// Month is a calendar month under the fixed offset.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month t falls in at +05:30.
func MonthOf(t time.Time) Month {
	local := t.In(Offset)
	return Month{Year: local.Year(), Month: local.Month()}
}

// ParseMonth parses a "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// String formats the month as "YYYY-MM".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// IsZero reports whether m is unset.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Before orders months chronologically.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// MonthlyKey identifies a monthly aggregate.
type MonthlyKey struct {
	DeviceID string
	Month    Month
}

// MonthlyAggregate is the largest contiguous distance for a device in a month.
type MonthlyAggregate struct {
	DeviceID    string
	Month       Month
	MaxDistance float64
}

// YearlyAggregate is the largest contiguous distance for a device across
// all recognized years.
type YearlyAggregate struct {
	DeviceID    string
	MaxDistance float64
}

// Report is the full result of one invocation, handed to publishers.
type Report struct {
	InvocationID string
	Filter       *Month
	Monthly      []MonthlyAggregate
	Yearly       []YearlyAggregate
	GeneratedAt  time.Time
}

// DeviceReport is the slice of a Report that belongs to one device.
type DeviceReport struct {
	InvocationID string
	DeviceID     string
	Filter       *Month
	Monthly      []MonthlyAggregate
	Yearly       float64
	GeneratedAt  time.Time
}

// ByDevice splits the report per device, ordered by device ID.
// Devices that only have a yearly aggregate are included.
func (r Report) ByDevice() []DeviceReport {
	idx := make(map[string]int)
	var out []DeviceReport
	get := func(id string) *DeviceReport {
		i, ok := idx[id]
		if !ok {
			i = len(out)
			idx[id] = i
			out = append(out, DeviceReport{
				InvocationID: r.InvocationID,
				DeviceID:     id,
				Filter:       r.Filter,
				GeneratedAt:  r.GeneratedAt,
			})
		}
		return &out[i]
	}

	for _, m := range r.Monthly {
		d := get(m.DeviceID)
		d.Monthly = append(d.Monthly, m)
	}
	for _, y := range r.Yearly {
		get(y.DeviceID).Yearly = y.MaxDistance
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}
