package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pkordes/travelog/internal/classify"
	"github.com/pkordes/travelog/internal/config"
	"github.com/pkordes/travelog/internal/geocode"
	"github.com/pkordes/travelog/internal/logging"
	"github.com/pkordes/travelog/internal/repo"
	"github.com/pkordes/travelog/internal/service"
	"github.com/pkordes/travelog/internal/telemetry"
	"github.com/pkordes/travelog/internal/venue"
)

// app holds the components shared by the commands.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	pool    *pgxpool.Pool
	metrics *telemetry.Metrics

	locks   *service.UserLocks
	trips   repo.TripRepo
	tracker *service.TrackerService
	parse   *service.ParseService
	photos  *service.PhotoService
	trip    *service.TripService
}

// loadConfig loads the configuration and builds the logger.
func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}

// newApp connects to the database and wires the services. reg receives the
// metrics; pass nil to run without them.
func newApp(ctx context.Context, cfg config.Config, log *zap.Logger, reg prometheus.Registerer) (*app, error) {
	// pgxpool manages a pool of Postgres connections.
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}
	// Verify the DB is reachable before accepting work.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("database connection established")

	var metrics *telemetry.Metrics
	if reg != nil {
		metrics = telemetry.NewMetrics(reg)
	}

	geocoder := geocode.New(geocode.Config{
		BaseURL:       cfg.Geocode.BaseURL,
		UserAgent:     cfg.Geocode.UserAgent,
		RatePerSecond: cfg.Geocode.RatePerSecond,
	}, log)

	var finder classify.VenueFinder = venue.Disabled{}
	if cfg.Venue.APIKey != "" {
		client, err := venue.New(venue.Config{
			BaseURL: cfg.Venue.BaseURL,
			APIKey:  cfg.Venue.APIKey,
			RadiusM: cfg.Venue.RadiusM,
		}, log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		finder = client
	} else {
		log.Warn("venue lookups disabled: venue.api_key is not set")
	}

	t := cfg.Tracker
	engineCfg := classify.DefaultConfig()
	engineCfg.PingInterval = t.MinPingInterval
	engineCfg.VisitedFactor = t.VisitedFactor
	engineCfg.VenueLookupDelay = t.VenueLookupDelay
	engine := classify.NewEngine(geocoder, finder, engineCfg, metrics, log)

	trackerCfg := service.TrackerConfig{
		MinPingInterval: t.MinPingInterval,
		MinTripDuration: t.MinTripDuration,
		MinTripPings:    t.MinTripPings,
	}
	photoCfg := service.PhotoConfig{
		HomeRadiusKm: cfg.Photos.HomeRadiusKm,
		ProximityKm:  cfg.Photos.ProximityKm,
		PageSize:     cfg.Photos.PageSize,
	}
	parseCfg := service.ParseConfig{RetryBackoff: t.RetryBackoff, MaxRetries: t.MaxRetries}

	trips := repo.NewTripRepo(pool)
	locks := service.NewUserLocks()
	return &app{
		cfg:     cfg,
		log:     log,
		pool:    pool,
		metrics: metrics,
		locks:   locks,
		trips:   trips,
		tracker: service.NewTrackerService(trips, locks, trackerCfg, metrics, log),
		parse:   service.NewParseService(trips, engine, locks, parseCfg, metrics, log),
		photos:  service.NewPhotoService(trips, geocoder, engine, locks, photoCfg, metrics, log),
		trip:    service.NewTripService(trips, locks, trackerCfg),
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
	_ = a.log.Sync()
}
