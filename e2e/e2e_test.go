// Package e2e provides end-to-end tests for the complete maxrange flow.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/maxrange/adapters/sqlite"
	"github.com/artpar/maxrange/app"
	"github.com/artpar/maxrange/bootstrap"
	"github.com/artpar/maxrange/config"
	"github.com/artpar/maxrange/domain/ranges"
	"github.com/rs/zerolog"
)

func ist(year int, month time.Month, day, hour int) int64 {
	return time.Date(year, month, day, hour, 0, 0, 0, ranges.Offset).Unix()
}

type ride struct {
	imei     string
	kind     string
	start    int64
	distance string
}

// TestE2E_FullFlow tests the complete invocation flow:
// 1. Seed a SQLite ride table
// 2. Start maxrange over it
// 3. POST /v1/ranges
// 4. Verify the response and the persisted monthly and yearly tables
func TestE2E_FullFlow(t *testing.T) {
	env := setupTestApp(t, `["A", "B"]`, true, []ride{
		{"A", "trip", ist(2023, time.January, 31, 10), "7"},
		{"A", "trip", ist(2023, time.February, 1, 10), "4"},
		{"A", "charging", ist(2023, time.February, 1, 12), ""},
		{"A", "trip", ist(2023, time.February, 2, 10), "3.5"},
		{"B", "trip", ist(2024, time.March, 1, 8), "2"},
		{"B", "trip", ist(2024, time.March, 1, 9), "not-a-number"},
		{"B", "trip", ist(2022, time.December, 31, 9), "100"},
	})
	addr := startServer(t, env.app)

	got := postRanges(t, addr, "")
	want := []app.Output{
		{IMEI: "A", RideMonth: "2023-01", TotalRange: 7},
		{IMEI: "A", RideMonth: "2023-02", TotalRange: 4},
		{IMEI: "B", RideMonth: "2024-03", TotalRange: 2},
	}
	assertOutputs(t, got, want)

	store := reopenStore(t, env.dbPath)
	for _, w := range want {
		m, _ := ranges.ParseMonth(w.RideMonth)
		v, ok, err := store.MonthlyRange(context.Background(), w.IMEI, m)
		if err != nil || !ok || v != w.TotalRange {
			t.Errorf("stored %s %s = %v %v %v, want %v", w.IMEI, w.RideMonth, v, ok, err, w.TotalRange)
		}
	}

	var yearly float64
	if err := store.DB().QueryRow(`SELECT max_range FROM ride_data_yearly_range WHERE imei = 'A'`).Scan(&yearly); err != nil {
		t.Fatalf("read yearly: %v", err)
	}
	// Jan 7 + Feb 4 form one segment across the month boundary.
	if yearly != 11 {
		t.Errorf("yearly A = %v, want 11", yearly)
	}
}

func TestE2E_MonthFilterAndRerun(t *testing.T) {
	env := setupTestApp(t, `["A"]`, false, []ride{
		{"A", "trip", ist(2023, time.July, 1, 10), "5"},
		{"A", "trip", ist(2023, time.August, 1, 10), "6"},
	})
	addr := startServer(t, env.app)

	first := postRanges(t, addr, `{"input_ride_month":"2023-08"}`)
	assertOutputs(t, first, []app.Output{{IMEI: "A", RideMonth: "2023-08", TotalRange: 6}})

	// Re-running overwrites the same keys with the same values.
	second := postRanges(t, addr, `{"input_ride_month":"2023-08"}`)
	assertOutputs(t, second, first)

	var rows int
	reopenStore(t, env.dbPath).DB().QueryRow(`SELECT COUNT(*) FROM ride_data_monthly_range`).Scan(&rows)
	if rows != 1 {
		t.Errorf("monthly rows = %d, want 1", rows)
	}
}

func TestE2E_SoftErrors(t *testing.T) {
	env := setupTestApp(t, `[]`, false, nil)
	addr := startServer(t, env.app)

	resp := post(t, addr, "")
	var got app.ErrorPayload
	json.Unmarshal(resp, &got)
	if got.Error != app.ErrMsgEmptyIMEIs {
		t.Errorf("error = %q, want %q", got.Error, app.ErrMsgEmptyIMEIs)
	}
}

func TestE2E_HotReload(t *testing.T) {
	env := setupTestApp(t, `["A"]`, false, []ride{
		{"A", "trip", ist(2024, time.May, 1, 10), "1"},
		{"B", "trip", ist(2024, time.May, 1, 10), "2"},
	})
	addr := startServer(t, env.app)

	holder, err := config.NewHolder(env.cfgPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	env.app.Watch(holder)

	if got := postRanges(t, addr, ""); len(got) != 1 {
		t.Fatalf("before reload = %+v, want one device", got)
	}

	writeConfig(t, env.cfgPath, env.dbPath, `["A", "B"]`, false)
	if err := holder.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	assertOutputs(t, postRanges(t, addr, ""), []app.Output{
		{IMEI: "A", RideMonth: "2024-05", TotalRange: 1},
		{IMEI: "B", RideMonth: "2024-05", TotalRange: 2},
	})
}

func TestE2E_HealthEndpoints(t *testing.T) {
	env := setupTestApp(t, `["A"]`, false, nil)
	addr := startServer(t, env.app)

	client := &http.Client{Timeout: 5 * time.Second}
	for _, path := range []string{"/health", "/health/live", "/health/ready", "/version"} {
		resp, err := client.Get("http://" + addr + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

type testEnv struct {
	app     *bootstrap.App
	cfgPath string
	dbPath  string
}

func setupTestApp(t *testing.T, imeis string, persistYearly bool, seed []ride) *testEnv {
	t.Helper()
	for _, key := range []string{"IMEIS", "MAXRANGE_IMEIS", "MAXRANGE_STORE_DRIVER", "MAXRANGE_STORE_DSN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	dir := t.TempDir()
	env := &testEnv{
		cfgPath: filepath.Join(dir, "maxrange.yaml"),
		dbPath:  filepath.Join(dir, "rides.db"),
	}
	writeConfig(t, env.cfgPath, env.dbPath, imeis, persistYearly)

	if len(seed) > 0 {
		store := reopenStore(t, env.dbPath)
		for _, r := range seed {
			rec := ranges.Record{RideType: &r.kind, RideStart: &r.start}
			if r.distance != "" {
				rec.RideDistance = &r.distance
			}
			if err := store.InsertRide(context.Background(), r.imei, rec); err != nil {
				t.Fatalf("seed ride: %v", err)
			}
		}
		store.Close()
	}

	a, err := bootstrap.Load(context.Background(), env.cfgPath, bootstrap.Options{
		Version:   "e2e",
		LogOutput: io.Discard,
	})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	t.Cleanup(func() { a.Shutdown() })
	env.app = a
	return env
}

func writeConfig(t *testing.T, path, dbPath, imeis string, persistYearly bool) {
	t.Helper()
	content := "store:\n  driver: sqlite\n  dsn: " + dbPath + "\n" +
		"ranges:\n  imeis: " + imeis + "\n"
	if persistYearly {
		content += "  persist_yearly: true\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// reopenStore opens the test database the way a second process would.
func reopenStore(t *testing.T, dbPath string) *sqlite.RideStore {
	t.Helper()
	db, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if _, err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := sqlite.NewRideStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func post(t *testing.T, addr, body string) []byte {
	t.Helper()
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post("http://"+addr+"/v1/ranges", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/ranges: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body: %s", resp.StatusCode, data)
	}
	return data
}

func postRanges(t *testing.T, addr, body string) []app.Output {
	t.Helper()
	data := post(t, addr, body)
	var out []app.Output
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", strings.TrimSpace(string(data)), err)
	}
	return out
}

func assertOutputs(t *testing.T, got, want []app.Output) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func startServer(t *testing.T, a *bootstrap.App) string {
	t.Helper()

	// Find free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	a.HTTPServer.Addr = addr
	listener.Close()

	go func() {
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log but don't fail - server might be shutting down
		}
	}()

	waitForServer(t, addr)
	return addr
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	client := &http.Client{Timeout: 100 * time.Millisecond}

	for i := 0; i < 50; i++ {
		resp, err := client.Get("http://" + addr + "/health")
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server at %s did not become ready", addr)
}
