package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/artpar/maxrange/domain/ranges"
	"github.com/artpar/maxrange/ports"
)

// RideStore implements ports.RideStore and ports.YearlyRangeWriter using SQLite.
type RideStore struct {
	db *DB
}

// NewRideStore creates a new ride store.
func NewRideStore(db *DB) *RideStore {
	return &RideStore{db: db}
}

// FetchRides returns every record for the device ordered by ride_start.
func (s *RideStore) FetchRides(ctx context.Context, deviceID string) ([]ranges.Record, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT ride_type, ride_start, ride_distance FROM ride_data
		 WHERE imei = ? ORDER BY ride_start, id`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query rides: %w", err)
	}
	defer rows.Close()

	var recs []ranges.Record
	for rows.Next() {
		var (
			typ   sql.NullString
			start sql.NullInt64
			dist  sql.NullString
		)
		if err := rows.Scan(&typ, &start, &dist); err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}

		var rec ranges.Record
		if typ.Valid {
			rec.RideType = &typ.String
		}
		if start.Valid {
			rec.RideStart = &start.Int64
		}
		if dist.Valid {
			rec.RideDistance = &dist.String
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// InsertRide appends a record to the device's ride log.
func (s *RideStore) InsertRide(ctx context.Context, deviceID string, rec ranges.Record) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO ride_data (imei, ride_type, ride_start, ride_distance) VALUES (?, ?, ?, ?)`,
		deviceID, rec.RideType, rec.RideStart, rec.RideDistance,
	)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

// WriteMonthly upserts the record keyed by (imei, ride_month).
func (s *RideStore) WriteMonthly(ctx context.Context, agg ranges.MonthlyAggregate) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO ride_data_monthly_range (imei, ride_month, max_range, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(imei, ride_month) DO UPDATE SET
		   max_range = excluded.max_range,
		   updated_at = excluded.updated_at`,
		agg.DeviceID, agg.Month.String(), agg.MaxDistance,
	)
	if err != nil {
		return fmt.Errorf("write monthly range: %w", err)
	}
	return nil
}

// WriteYearly upserts the record keyed by imei.
func (s *RideStore) WriteYearly(ctx context.Context, agg ranges.YearlyAggregate) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO ride_data_yearly_range (imei, max_range, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(imei) DO UPDATE SET
		   max_range = excluded.max_range,
		   updated_at = excluded.updated_at`,
		agg.DeviceID, agg.MaxDistance,
	)
	if err != nil {
		return fmt.Errorf("write yearly range: %w", err)
	}
	return nil
}

// MonthlyRange returns the stored value for (imei, month).
func (s *RideStore) MonthlyRange(ctx context.Context, deviceID string, month ranges.Month) (float64, bool, error) {
	var v float64
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT max_range FROM ride_data_monthly_range WHERE imei = ? AND ride_month = ?`,
		deviceID, month.String(),
	).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read monthly range: %w", err)
	}
	return v, true, nil
}

// DB returns the underlying database.
func (s *RideStore) DB() *DB {
	return s.db
}

// HealthCheck pings the database.
func (s *RideStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *RideStore) Close() error {
	return s.db.Close()
}

// Ensure interface compliance.
var (
	_ ports.RideStore         = (*RideStore)(nil)
	_ ports.YearlyRangeWriter = (*RideStore)(nil)
)
