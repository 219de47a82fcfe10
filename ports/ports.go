// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/maxrange/domain/ranges"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// RideSource reads a device's ride log.
type RideSource interface {
	// FetchRides returns every stored record for the device, projected to
	// ride_type, ride_start and ride_stats.ride_distance.
	// Records should be ordered by ride_start ascending.
	FetchRides(ctx context.Context, deviceID string) ([]ranges.Record, error)
}

// RangeWriter persists monthly aggregates.
type RangeWriter interface {
	// WriteMonthly upserts the record keyed by (device, "YYYY-MM").
	WriteMonthly(ctx context.Context, agg ranges.MonthlyAggregate) error
}

// YearlyRangeWriter persists yearly aggregates.
// Optional; stores implement it when they carry a yearly table.
type YearlyRangeWriter interface {
	// WriteYearly upserts the record keyed by device.
	WriteYearly(ctx context.Context, agg ranges.YearlyAggregate) error
}

// RideStore is a store that is both a source and a sink.
type RideStore interface {
	RideSource
	RangeWriter
	Close() error
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// RangePublisher delivers an invocation's report to downstream consumers.
type RangePublisher interface {
	// Publish sends the report. A failure aborts the invocation.
	Publish(ctx context.Context, report ranges.Report) error

	// Close releases the underlying connection.
	Close() error
}
