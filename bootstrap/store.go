package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/maxrange/adapters/codec"
	"github.com/artpar/maxrange/adapters/dynamodb"
	apihttp "github.com/artpar/maxrange/adapters/http"
	"github.com/artpar/maxrange/adapters/kafka"
	"github.com/artpar/maxrange/adapters/memory"
	"github.com/artpar/maxrange/adapters/postgres"
	"github.com/artpar/maxrange/adapters/rabbitmq"
	"github.com/artpar/maxrange/adapters/sqlite"
	"github.com/artpar/maxrange/config"
	"github.com/artpar/maxrange/domain/ranges"
	"github.com/artpar/maxrange/ports"
	"github.com/rs/zerolog"
)

// openStore opens the configured ride store. SQL stores are migrated on
// open. The returned checker is nil when the store has nothing to ping.
func openStore(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (ports.RideStore, apihttp.HealthChecker, error) {
	switch cfg.Driver {
	case "dynamodb":
		store, err := dynamodb.New(ctx, dynamodb.Options{
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Tables: dynamodb.Tables{
				Rides:   cfg.Tables.Rides,
				Monthly: cfg.Tables.Monthly,
				Yearly:  cfg.Tables.Yearly,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info().
			Str("region", cfg.Region).
			Str("rides_table", cfg.Tables.Rides).
			Str("monthly_table", cfg.Tables.Monthly).
			Msg("using dynamodb store")
		return store, nil, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		applied, err := db.Migrate(ctx)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Str("path", cfg.DSN).Strs("migrations", applied).Msg("using sqlite store")
		store := sqlite.NewRideStore(db)
		return store, store, nil

	case "postgres":
		store, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		applied, err := store.Migrate(ctx)
		if err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Strs("migrations", applied).Msg("using postgres store")
		return store, store, nil

	case "memory":
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		return memory.NewRideStore(), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// openPublisher returns nil when publishing is disabled.
func openPublisher(cfg config.PublishConfig, logger zerolog.Logger) (ports.RangePublisher, error) {
	if cfg.Driver == "" || cfg.Driver == "none" {
		return nil, nil
	}

	c, err := codec.New(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case "kafka":
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, c, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing to kafka")
		return pub, nil

	case "rabbitmq":
		pub, err := rabbitmq.Dial(rabbitmq.Config{
			URL:              cfg.RabbitMQ.URL,
			Exchange:         cfg.RabbitMQ.Exchange,
			RoutingKeyPrefix: cfg.RabbitMQ.RoutingKeyPrefix,
		}, c, logger)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("publishing to rabbitmq")
		return pub, nil
	}
	return nil, fmt.Errorf("unknown publish driver %q", cfg.Driver)
}

// timeoutStore bounds every store call with its own deadline.
type timeoutStore struct {
	ports.RideStore
	timeout time.Duration
}

// timeoutYearlyStore also forwards yearly writes.
type timeoutYearlyStore struct {
	timeoutStore
	yearly ports.YearlyRangeWriter
}

func withTimeout(store ports.RideStore, d time.Duration) ports.RideStore {
	ts := timeoutStore{RideStore: store, timeout: d}
	if y, ok := store.(ports.YearlyRangeWriter); ok {
		return &timeoutYearlyStore{timeoutStore: ts, yearly: y}
	}
	return &ts
}

func (s *timeoutStore) FetchRides(ctx context.Context, deviceID string) ([]ranges.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.RideStore.FetchRides(ctx, deviceID)
}

func (s *timeoutStore) WriteMonthly(ctx context.Context, agg ranges.MonthlyAggregate) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.RideStore.WriteMonthly(ctx, agg)
}

func (s *timeoutYearlyStore) WriteYearly(ctx context.Context, agg ranges.YearlyAggregate) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.yearly.WriteYearly(ctx, agg)
}
