// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/artpar/maxrange/adapters/metrics"
	"github.com/artpar/maxrange/domain/ranges"
	"github.com/artpar/maxrange/ports"
	"github.com/rs/zerolog"
)

// Soft error messages returned in the normal response channel.
const (
	ErrMsgEmptyIMEIs   = "IMEI cannot be empty"
	ErrMsgInvalidMonth = "input_ride_month must be in YYYY-MM format"
)

// Fatal invocation errors.
var (
	ErrFetch   = errors.New("fetch rides")
	ErrPersist = errors.New("persist ranges")
	ErrPublish = errors.New("publish ranges")
)

// RangeConfig contains hot-reloadable configuration for RangeService.
type RangeConfig struct {
	IMEIs []string

	// Lenient skips malformed records instead of failing the invocation.
	Lenient bool

	// PersistYearly also writes yearly aggregates when the store supports it.
	PersistYearly bool
}

// RangeDeps contains dependencies for RangeService.
type RangeDeps struct {
	Source       ports.RideSource
	Writer       ports.RangeWriter
	YearlyWriter ports.YearlyRangeWriter // optional
	Publisher    ports.RangePublisher    // optional
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	Metrics      *metrics.Collector // optional
	Logger       zerolog.Logger
}

// RangeService runs max-range invocations: fetch, segment, merge,
// persist, publish, respond.
type RangeService struct {
	source       ports.RideSource
	writer       ports.RangeWriter
	yearlyWriter ports.YearlyRangeWriter
	publisher    ports.RangePublisher
	clock        ports.Clock
	idGen        ports.IDGenerator
	metrics      *metrics.Collector
	logger       zerolog.Logger

	cfg atomic.Pointer[RangeConfig]
}

// NewRangeService creates a new range service.
func NewRangeService(cfg RangeConfig, deps RangeDeps) *RangeService {
	s := &RangeService{
		source:       deps.Source,
		writer:       deps.Writer,
		yearlyWriter: deps.YearlyWriter,
		publisher:    deps.Publisher,
		clock:        deps.Clock,
		idGen:        deps.IDGen,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
	}
	s.UpdateConfig(cfg)
	return s
}

// UpdateConfig swaps the configuration used by subsequent invocations.
func (s *RangeService) UpdateConfig(cfg RangeConfig) {
	cfg.IMEIs = NormalizeIMEIs(cfg.IMEIs)
	s.cfg.Store(&cfg)
}

// Config returns the current configuration.
func (s *RangeService) Config() RangeConfig {
	return *s.cfg.Load()
}

// NormalizeIMEIs trims entries and drops blanks.
func NormalizeIMEIs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// SplitIMEIs parses a comma separated device list.
func SplitIMEIs(s string) []string {
	return NormalizeIMEIs(strings.Split(s, ","))
}

// Request is the invocation input.
type Request struct {
	// InputRideMonth optionally restricts the scan to one "YYYY-MM" month.
	InputRideMonth string `json:"input_ride_month,omitempty"`
}

// Output is one monthly entry of the invocation response.
type Output struct {
	IMEI       string  `json:"imei"`
	RideMonth  string  `json:"ride_month"`
	TotalRange float64 `json:"total_range"`
}

// ErrorPayload is the soft error object returned for configuration errors.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Result is the outcome of one invocation.
type Result struct {
	InvocationID string
	Error        string // soft error; Ranges is empty when set
	Ranges       []Output
	Yearly       []ranges.YearlyAggregate
	Stats        ranges.ScanStats
}

// Payload returns the value serialized to the caller: the soft error
// object, or the list of monthly entries.
func (r Result) Payload() any {
	if r.Error != "" {
		return ErrorPayload{Error: r.Error}
	}
	if r.Ranges == nil {
		return []Output{}
	}
	return r.Ranges
}

// Run executes one invocation. Devices are processed strictly one after
// another; any fetch, decode, write or publish failure aborts the run.
func (s *RangeService) Run(ctx context.Context, req Request) (Result, error) {
	start := s.clock.Now()
	cfg := s.Config()

	res := Result{InvocationID: s.idGen.New()}
	log := s.logger.With().Str("invocation_id", res.InvocationID).Logger()

	if len(cfg.IMEIs) == 0 {
		log.Warn().Msg("no devices configured")
		res.Error = ErrMsgEmptyIMEIs
		s.metrics.ObserveInvocation("config_error", s.clock.Now().Sub(start))
		return res, nil
	}

	opts := ranges.ScanOptions{Lenient: cfg.Lenient}
	if req.InputRideMonth != "" {
		m, err := ranges.ParseMonth(req.InputRideMonth)
		if err != nil {
			log.Warn().Str("input_ride_month", req.InputRideMonth).Msg("invalid month filter")
			res.Error = ErrMsgInvalidMonth
			s.metrics.ObserveInvocation("config_error", s.clock.Now().Sub(start))
			return res, nil
		}
		opts.Filter = &m
	}

	log.Info().
		Int("devices", len(cfg.IMEIs)).
		Str("input_ride_month", req.InputRideMonth).
		Bool("lenient", cfg.Lenient).
		Msg("invocation started")

	aggs := ranges.NewAggregates()
	for _, imei := range cfg.IMEIs {
		dr, err := s.scanDevice(ctx, log, imei, opts)
		if err != nil {
			log.Error().Err(err).Str("imei", imei).Msg("invocation aborted")
			s.metrics.ObserveInvocation("error", s.clock.Now().Sub(start))
			return Result{}, err
		}
		aggs.Merge(dr)
		res.Stats.Add(dr.Stats)
	}

	monthly := aggs.Monthly()
	res.Yearly = aggs.Yearly()

	if err := s.persist(ctx, cfg, monthly, res.Yearly); err != nil {
		log.Error().Err(err).Msg("invocation aborted")
		s.metrics.ObserveInvocation("error", s.clock.Now().Sub(start))
		return Result{}, err
	}

	if s.publisher != nil {
		report := ranges.Report{
			InvocationID: res.InvocationID,
			Filter:       opts.Filter,
			Monthly:      monthly,
			Yearly:       res.Yearly,
			GeneratedAt:  s.clock.Now(),
		}
		err := s.publisher.Publish(ctx, report)
		s.metrics.ObservePublish(err)
		if err != nil {
			log.Error().Err(err).Msg("invocation aborted")
			s.metrics.ObserveInvocation("error", s.clock.Now().Sub(start))
			return Result{}, fmt.Errorf("%w: %w", ErrPublish, err)
		}
	}

	res.Ranges = make([]Output, 0, len(monthly))
	for _, m := range monthly {
		res.Ranges = append(res.Ranges, Output{
			IMEI:       m.DeviceID,
			RideMonth:  m.Month.String(),
			TotalRange: m.MaxDistance,
		})
	}

	elapsed := s.clock.Now().Sub(start)
	s.metrics.ObserveInvocation("ok", elapsed)
	log.Info().
		Int("monthly", len(res.Ranges)).
		Int("events", res.Stats.Events).
		Int("qualifying", res.Stats.Qualifying).
		Int("malformed", res.Stats.Malformed).
		Dur("duration", elapsed).
		Msg("invocation finished")

	return res, nil
}

// scanDevice fetches, decodes, orders and scans one device's rides.
func (s *RangeService) scanDevice(ctx context.Context, log zerolog.Logger, imei string, opts ranges.ScanOptions) (ranges.DeviceResult, error) {
	fetchStart := s.clock.Now()
	recs, err := s.source.FetchRides(ctx, imei)
	s.metrics.ObserveStore("fetch", s.clock.Now().Sub(fetchStart), err)
	if err != nil {
		return ranges.DeviceResult{}, fmt.Errorf("%w: device %s: %w", ErrFetch, imei, err)
	}

	events := make([]ranges.Event, 0, len(recs))
	malformed := 0
	for i, rec := range recs {
		e, err := ranges.DecodeRecord(rec)
		if err != nil {
			if !opts.Lenient {
				return ranges.DeviceResult{}, fmt.Errorf("device %s record %d: %w", imei, i, err)
			}
			log.Warn().Err(err).Str("imei", imei).Int("record", i).Msg("skipping malformed record")
			malformed++
			continue
		}
		events = append(events, e)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	dr, err := ranges.Scan(imei, events, opts)
	if err != nil {
		return ranges.DeviceResult{}, err
	}
	dr.Stats.Events += malformed
	dr.Stats.Malformed += malformed
	s.metrics.ObserveScan(dr.Stats)

	log.Debug().
		Str("imei", imei).
		Int("records", len(recs)).
		Int("months", len(dr.Monthly)).
		Float64("yearly_max", dr.Yearly).
		Msg("device scanned")

	return dr, nil
}

// persist writes monthly aggregates, then yearly ones when enabled.
// There is no rollback: a failure leaves earlier writes in place.
func (s *RangeService) persist(ctx context.Context, cfg RangeConfig, monthly []ranges.MonthlyAggregate, yearly []ranges.YearlyAggregate) error {
	for _, m := range monthly {
		writeStart := s.clock.Now()
		err := s.writer.WriteMonthly(ctx, m)
		s.metrics.ObserveStore("write_monthly", s.clock.Now().Sub(writeStart), err)
		if err != nil {
			return fmt.Errorf("%w: device %s month %s: %w", ErrPersist, m.DeviceID, m.Month, err)
		}
		s.metrics.ObserveWrite("monthly")
	}

	if !cfg.PersistYearly || s.yearlyWriter == nil {
		return nil
	}
	for _, y := range yearly {
		writeStart := s.clock.Now()
		err := s.yearlyWriter.WriteYearly(ctx, y)
		s.metrics.ObserveStore("write_yearly", s.clock.Now().Sub(writeStart), err)
		if err != nil {
			return fmt.Errorf("%w: device %s yearly: %w", ErrPersist, y.DeviceID, err)
		}
		s.metrics.ObserveWrite("yearly")
	}
	return nil
}
