// Package postgres provides the PostgreSQL ride store.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/artpar/maxrange/domain/ranges"
	"github.com/artpar/maxrange/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RideStore implements ports.RideStore and ports.YearlyRangeWriter on a pgx pool.
type RideStore struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*RideStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	return &RideStore{pool: pool}, nil
}

// Migrate applies pending migrations and returns the versions it applied.
func (s *RideStore) Migrate(ctx context.Context) ([]string, error) {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var done []string
	for _, name := range names {
		version := strings.TrimSuffix(name, ".sql")
		applied, err := s.apply(ctx, name, version)
		if err != nil {
			return done, err
		}
		if applied {
			done = append(done, version)
		}
	}
	return done, nil
}

func (s *RideStore) apply(ctx context.Context, name, version string) (bool, error) {
	content, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, version)
	if err != nil {
		return false, fmt.Errorf("record migration %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return false, fmt.Errorf("execute migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", name, err)
	}
	return true, nil
}

// FetchRides returns every record for the device ordered by ride_start.
func (s *RideStore) FetchRides(ctx context.Context, deviceID string) ([]ranges.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ride_type, ride_start, ride_distance FROM ride_data
		 WHERE imei = $1 ORDER BY ride_start, id`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query rides: %w", err)
	}
	defer rows.Close()

	var recs []ranges.Record
	for rows.Next() {
		var rec ranges.Record
		if err := rows.Scan(&rec.RideType, &rec.RideStart, &rec.RideDistance); err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// InsertRides bulk loads records for one device with COPY.
func (s *RideStore) InsertRides(ctx context.Context, deviceID string, recs []ranges.Record) (int64, error) {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []any{deviceID, r.RideStart, r.RideType, r.RideDistance})
	}

	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"ride_data"},
		[]string{"imei", "ride_start", "ride_type", "ride_distance"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return n, fmt.Errorf("copy rides: %w", err)
	}
	return n, nil
}

// WriteMonthly upserts the record keyed by (imei, ride_month).
func (s *RideStore) WriteMonthly(ctx context.Context, agg ranges.MonthlyAggregate) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ride_data_monthly_range (imei, ride_month, max_range, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (imei, ride_month) DO UPDATE SET
		   max_range = EXCLUDED.max_range,
		   updated_at = EXCLUDED.updated_at`,
		agg.DeviceID, agg.Month.String(), agg.MaxDistance,
	)
	if err != nil {
		return fmt.Errorf("write monthly range: %w", err)
	}
	return nil
}

// WriteYearly upserts the record keyed by imei.
func (s *RideStore) WriteYearly(ctx context.Context, agg ranges.YearlyAggregate) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ride_data_yearly_range (imei, max_range, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (imei) DO UPDATE SET
		   max_range = EXCLUDED.max_range,
		   updated_at = EXCLUDED.updated_at`,
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
	err := s.pool.QueryRow(ctx,
		`SELECT max_range FROM ride_data_monthly_range WHERE imei = $1 AND ride_month = $2`,
		deviceID, month.String(),
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read monthly range: %w", err)
	}
	return v, true, nil
}

// HealthCheck pings the database.
func (s *RideStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *RideStore) Close() error {
	s.pool.Close()
	return nil
}

// Ensure interface compliance.
var (
	_ ports.RideStore         = (*RideStore)(nil)
	_ ports.YearlyRangeWriter = (*RideStore)(nil)
)
