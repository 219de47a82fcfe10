// Package memory provides in-memory implementations of the store and
// publisher ports, used for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/artpar/maxrange/domain/ranges"
	"github.com/artpar/maxrange/ports"
)

// RideStore is an in-memory implementation of ports.RideStore.
type RideStore struct {
	mu      sync.RWMutex
	rides   map[string][]ranges.Record
	monthly map[ranges.MonthlyKey]float64
	yearly  map[string]float64

	fetches  []string
	fetchErr error
	writeErr error
}

// NewRideStore creates a new in-memory ride store.
func NewRideStore() *RideStore {
	return &RideStore{
		rides:   make(map[string][]ranges.Record),
		monthly: make(map[ranges.MonthlyKey]float64),
		yearly:  make(map[string]float64),
	}
}

// AddRecords appends raw records for a device.
func (s *RideStore) AddRecords(deviceID string, recs ...ranges.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rides[deviceID] = append(s.rides[deviceID], recs...)
}

// AddTrip appends a trip record.
func (s *RideStore) AddTrip(deviceID string, start time.Time, distance string) {
	typ, ts := string(ranges.KindTrip), start.Unix()
	s.AddRecords(deviceID, ranges.Record{RideType: &typ, RideStart: &ts, RideDistance: &distance})
}

// AddCharging appends a charging record.
func (s *RideStore) AddCharging(deviceID string, start time.Time) {
	typ, ts := string(ranges.KindCharging), start.Unix()
	s.AddRecords(deviceID, ranges.Record{RideType: &typ, RideStart: &ts})
}

// FetchRides returns the device's records ordered by ride_start.
func (s *RideStore) FetchRides(ctx context.Context, deviceID string) ([]ranges.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches = append(s.fetches, deviceID)
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}

	recs := append([]ranges.Record(nil), s.rides[deviceID]...)
	sort.SliceStable(recs, func(i, j int) bool {
		return startOf(recs[i]) < startOf(recs[j])
	})
	return recs, nil
}

func startOf(r ranges.Record) int64 {
	if r.RideStart == nil {
		return 0
	}
	return *r.RideStart
}

// WriteMonthly stores a monthly aggregate, replacing any previous value.
func (s *RideStore) WriteMonthly(ctx context.Context, agg ranges.MonthlyAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.monthly[ranges.MonthlyKey{DeviceID: agg.DeviceID, Month: agg.Month}] = agg.MaxDistance
	return nil
}

// WriteYearly stores a yearly aggregate, replacing any previous value.
func (s *RideStore) WriteYearly(ctx context.Context, agg ranges.YearlyAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.yearly[agg.DeviceID] = agg.MaxDistance
	return nil
}

// Close is a no-op.
func (s *RideStore) Close() error {
	return nil
}

// FailFetches makes every subsequent fetch return err (nil to reset).
func (s *RideStore) FailFetches(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

// FailWrites makes every subsequent write return err (nil to reset).
func (s *RideStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Fetches returns the device IDs fetched so far, in call order (for testing).
func (s *RideStore) Fetches() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.fetches...)
}

// Monthly returns a written monthly value (for testing).
func (s *RideStore) Monthly(deviceID string, month ranges.Month) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.monthly[ranges.MonthlyKey{DeviceID: deviceID, Month: month}]
	return v, ok
}

// MonthlyCount returns the number of written monthly records.
func (s *RideStore) MonthlyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.monthly)
}

// Yearly returns a written yearly value (for testing).
func (s *RideStore) Yearly(deviceID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.yearly[deviceID]
	return v, ok
}

// Ensure interface compliance.
var (
	_ ports.RideStore         = (*RideStore)(nil)
	_ ports.YearlyRangeWriter = (*RideStore)(nil)
)
