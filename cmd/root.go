package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/geotweet/internal/cache"
	"github.com/UnknownOlympus/geotweet/internal/config"
	"github.com/UnknownOlympus/geotweet/internal/geocoding"
	"github.com/UnknownOlympus/geotweet/internal/metrics"
	"github.com/UnknownOlympus/geotweet/internal/quota"
	"github.com/UnknownOlympus/geotweet/internal/service"
	"github.com/UnknownOlympus/geotweet/internal/throttle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// app is the wiring shared by every command.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    cache.Store
	geocoder *service.Geocoder
}

var printStats bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "geotweet",
		Short: "geotweet locates social media statuses",
		Long: `
geotweet resolves profile locations and embedded coordinates of social media statuses
to addresses and coordinates, caching every geocoded place and staying within the
geocoding provider's rate limit and daily quota.
`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&printStats, "stats", false, "print geocoding and cache statistics when done")

	root.AddCommand(
		newForwardCmd(),
		newReverseCmd(),
		newRegionCmd(),
		newResolveCmd(),
		newStreamCmd(),
	)

	return root
}

// withApp opens the application, runs fn and releases everything again.
// Statistics are printed even when fn fails.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.store.Close(); closeErr != nil {
			a.log.ErrorContext(ctx, "Failed to close cache", "error", closeErr)
		}
	}()

	runErr := fn(ctx, a)
	if runErr != nil {
		a.log.ErrorContext(ctx, "Command stopped", "error", runErr)
	}

	if printStats {
		stats, err := a.geocoder.Stats(ctx)
		if err != nil {
			a.log.ErrorContext(ctx, "Failed to collect statistics", "error", err)
		} else {
			fmt.Fprint(cmd.OutOrStdout(), stats.String())
		}
	}

	return runErr
}

func newApp(ctx context.Context) (*app, error) {
	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	store, err := cache.Open(ctx, cache.Options{
		Driver:   cache.Driver(cfg.CacheDriver),
		Path:     cfg.CachePath,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Name:     cfg.Database.Name,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	// Create geocoding provider using factory pattern based on configuration
	provider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:    geocoding.ProviderType(cfg.ProviderType),
		APIKey:  cfg.APIKey,
		BaseURL: cfg.ProviderURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create geocoding provider: %w", err)
	}
	logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.ProviderType)

	thr := throttle.New(cfg.ThrottleInterval, cfg.ThrottleIncrement, nil)
	guard := quota.NewGuard(thr, quota.Options{ProbeDelay: cfg.ProbeDelay, Logger: logger})

	return &app{
		cfg:      cfg,
		log:      logger,
		registry: reg,
		metrics:  appMetrics,
		store:    store,
		geocoder: service.NewGeocoder(logger, store, provider, cfg.ProviderType, guard, appMetrics),
	}, nil
}
