// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file when one exists, otherwise from the
// environment (the Lambda deployment sets IMEIS and MAXRANGE_* only).
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/artpar/maxrange/adapters/clock"
	apihttp "github.com/artpar/maxrange/adapters/http"
	"github.com/artpar/maxrange/adapters/idgen"
	"github.com/artpar/maxrange/adapters/lambda"
	"github.com/artpar/maxrange/adapters/metrics"
	"github.com/artpar/maxrange/app"
	"github.com/artpar/maxrange/config"
	"github.com/artpar/maxrange/ports"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Metrics    *metrics.Collector
	Ranges     *app.RangeService
	HTTPServer *http.Server

	// Adapters (for cleanup)
	store     ports.RideStore
	publisher ports.RangePublisher
	health    apihttp.HealthChecker
	holder    *config.Holder
	version   string
	imeis     []string // command line override, survives reloads
}

// Options provides optional configuration for application initialization.
type Options struct {
	// Version is reported by /version.
	Version string

	// IMEIs overrides the configured device list when non-empty.
	IMEIs []string

	// LogOutput defaults to os.Stdout.
	LogOutput io.Writer

	// Metrics overrides the collector built from config. Tests pass one
	// backed by a private registry.
	Metrics *metrics.Collector
}

// Load reads the configuration file, falling back to the environment when
// the file does not exist, and creates the application.
func Load(ctx context.Context, path string, opts Options) (*App, error) {
	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts)
}

// New creates and initializes the application from a loaded configuration.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := NewLogger(cfg.Logging, out)

	logger.Info().
		Str("store", cfg.Store.Driver).
		Str("publisher", cfg.Publish.Driver).
		Msg("initializing maxrange")

	a := &App{
		Logger:  logger,
		Config:  cfg,
		Metrics: opts.Metrics,
		version: opts.Version,
		imeis:   opts.IMEIs,
	}

	if a.Metrics == nil && cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	if err := a.initPublisher(); err != nil {
		a.store.Close()
		return nil, fmt.Errorf("init publisher: %w", err)
	}

	a.Ranges = app.NewRangeService(a.rangeConfig(cfg), app.RangeDeps{
		Source:       a.store,
		Writer:       a.store,
		YearlyWriter: yearlyWriter(a.store),
		Publisher:    a.publisher,
		Clock:        clock.Real{},
		IDGen:        idgen.UUID{},
		Metrics:      a.Metrics,
		Logger:       logger,
	})

	a.initHTTPServer()

	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	store, health, err := openStore(ctx, a.Config.Store, a.Logger)
	if err != nil {
		return err
	}
	if a.Config.Store.Timeout > 0 {
		store = withTimeout(store, a.Config.Store.Timeout)
	}
	a.store = store
	a.health = health
	return nil
}

func (a *App) initPublisher() error {
	pub, err := openPublisher(a.Config.Publish, a.Logger)
	if err != nil {
		return err
	}
	a.publisher = pub
	return nil
}

func (a *App) initHTTPServer() {
	cfg := a.Config
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = a.Metrics
	}

	router := apihttp.NewRouterWithConfig(
		apihttp.NewRangesHandler(a.Ranges, a.Logger),
		apihttp.NewHealthHandler(a.health),
		a.Logger,
		apihttp.RouterConfig{
			Metrics:       collector,
			MetricsPath:   cfg.Metrics.Path,
			EnableOpenAPI: cfg.OpenAPI.Enabled,
			Version:       a.version,
			Timeout:       cfg.Server.WriteTimeout,
		},
	)

	a.HTTPServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + 5*time.Second,
	}
}

// Watch attaches a config holder: reloaded files update the device list,
// lenient and persist_yearly flags, and the log level. Store and publisher
// changes need a restart.
func (a *App) Watch(h *config.Holder) {
	a.holder = h
	h.OnChange(a.ApplyConfig)
	h.OnReloadError(func(error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
	})
}

// ApplyConfig applies the hot-reloadable parts of cfg.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Ranges.UpdateConfig(a.rangeConfig(cfg))

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if a.Metrics != nil {
		a.Metrics.ConfigReloads.Inc()
	}
}

// Invoke runs a single invocation.
func (a *App) Invoke(ctx context.Context, req app.Request) (app.Result, error) {
	return a.Ranges.Run(ctx, req)
}

// RunLambda hands control to the Lambda runtime. It does not return.
func (a *App) RunLambda() {
	a.Logger.Info().Msg("starting lambda handler")
	lambda.NewHandler(a.Ranges, a.Logger).Start()
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("publisher close error")
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("store close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// NewLogger builds the process logger and sets the global level.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

func (a *App) rangeConfig(cfg *config.Config) app.RangeConfig {
	imeis := cfg.Ranges.IMEIs
	if len(a.imeis) > 0 {
		imeis = a.imeis
	}
	return app.RangeConfig{
		IMEIs:         imeis,
		Lenient:       cfg.Ranges.Lenient,
		PersistYearly: cfg.Ranges.PersistYearly,
	}
}

func yearlyWriter(store ports.RideStore) ports.YearlyRangeWriter {
	if w, ok := store.(ports.YearlyRangeWriter); ok {
		return w
	}
	return nil
}
