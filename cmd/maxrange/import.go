package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/artpar/maxrange/adapters/postgres"
	"github.com/artpar/maxrange/adapters/sqlite"
	"github.com/artpar/maxrange/config"
	"github.com/artpar/maxrange/domain/ranges"
	"github.com/spf13/cobra"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load ride records into a SQL store",
	Long: `Read ride records as JSON lines and append them to the ride table of a
sqlite or postgres store. Each line is one record:

  {"imei": "861100000000001", "ride_type": "trip", "ride_start": 1672531200, "ride_distance": "7.5"}

ride_type, ride_start and ride_distance may be omitted; such records are
stored as-is and reported as malformed by invocations.

Examples:
  maxrange import --file rides.jsonl
  cat rides.jsonl | maxrange import`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importFile, "file", "f", "-", "JSON lines file, - for stdin")
}

// rideLine is one imported record.
type rideLine struct {
	IMEI         string  `json:"imei"`
	RideType     *string `json:"ride_type"`
	RideStart    *int64  `json:"ride_start"`
	RideDistance *string `json:"ride_distance"`
}

// deviceRides keeps records grouped per device in first-seen order.
type deviceRides struct {
	order   []string
	records map[string][]ranges.Record
	total   int
}

func readRides(r io.Reader) (*deviceRides, error) {
	out := &deviceRides{records: make(map[string][]ranges.Record)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rl rideLine
		if err := json.Unmarshal(b, &rl); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rl.IMEI == "" {
			return nil, fmt.Errorf("line %d: imei is required", line)
		}
		if _, ok := out.records[rl.IMEI]; !ok {
			out.order = append(out.order, rl.IMEI)
		}
		out.records[rl.IMEI] = append(out.records[rl.IMEI], ranges.Record{
			RideType:     rl.RideType,
			RideStart:    rl.RideStart,
			RideDistance: rl.RideDistance,
		})
		out.total++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// rideInserter is implemented by the SQL stores.
type rideInserter interface {
	InsertRides(ctx context.Context, deviceID string, recs []ranges.Record) (int64, error)
	Close() error
}

// sqliteInserter inserts row by row inside the store's own statements.
type sqliteInserter struct {
	store *sqlite.RideStore
}

func (s sqliteInserter) InsertRides(ctx context.Context, deviceID string, recs []ranges.Record) (int64, error) {
	var n int64
	for _, rec := range recs {
		if err := s.store.InsertRide(ctx, deviceID, rec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s sqliteInserter) Close() error { return s.store.Close() }

func openInserter(ctx context.Context, cfg config.StoreConfig) (rideInserter, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if _, err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return sqliteInserter{store: sqlite.NewRideStore(db)}, nil
	case "postgres":
		store, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if _, err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("import supports sqlite and postgres stores, not %q", cfg.Driver)
}

func importRides(ctx context.Context, ins rideInserter, rides *deviceRides) (int64, error) {
	var total int64
	for _, imei := range rides.order {
		n, err := ins.InsertRides(ctx, imei, rides.records[imei])
		total += n
		if err != nil {
			return total, fmt.Errorf("device %s: %w", imei, err)
		}
	}
	return total, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	var in io.Reader = cmd.InOrStdin()
	if importFile != "-" {
		f, err := os.Open(importFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	rides, err := readRides(in)
	if err != nil {
		return err
	}
	if rides.total == 0 {
		return errors.New("no records to import")
	}

	ins, err := openInserter(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer ins.Close()

	n, err := importRides(cmd.Context(), ins, rides)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records for %d devices.\n", n, len(rides.order))
	return nil
}
