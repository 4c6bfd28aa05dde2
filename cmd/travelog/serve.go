package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/pkordes/travelog/internal/handler"
	"github.com/pkordes/travelog/internal/middleware"
	"github.com/pkordes/travelog/internal/service"
	"github.com/pkordes/travelog/internal/syncer"
	"github.com/pkordes/travelog/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background parse loop",
	Long: `Run the HTTP API, the periodic deferred classification pass and, when
nats.url is set, the trip sync subscriber.

Examples:
  # Serve with environment configuration
  DATABASE_URL=postgres://localhost/travelog travelog serve

  # Serve with a config file
  travelog serve --config /etc/travelog.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	// Graceful shutdown: the context is cancelled on SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Endpoint:   cfg.Tracing.Endpoint,
		Insecure:   cfg.Tracing.Insecure,
		SampleRate: cfg.Tracing.SampleRate,
	}, version)
	if err != nil {
		log.Error("failed to set up tracing", zap.Error(err))
		return err
	}
	if tp != nil {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(flushCtx); err != nil {
				log.Warn("trace flush failed", zap.Error(err))
			}
		}()
		log.Info("trace export enabled", zap.String("endpoint", cfg.Tracing.Endpoint))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(ctx, cfg, log, reg)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return err
	}
	defer a.Close()

	// Sync is optional: without NATS the /sync route answers 502.
	var publisher service.TripPublisher
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name("travelog"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn("nats disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		)
		if err != nil {
			log.Error("failed to connect to nats", zap.Error(err))
			return err
		}
		defer nc.Close()

		origin := uuid.NewString()
		publisher = syncer.NewPublisher(nc, cfg.NATS.SubjectPrefix, origin)
		applier := service.NewSyncService(a.trips, nil, a.locks, log)
		sub, err := syncer.Subscribe(nc, cfg.NATS.SubjectPrefix, origin, applier, log)
		if err != nil {
			log.Error("failed to subscribe to trip sync", zap.Error(err))
			return err
		}
		defer func() { _ = sub.Close() }()
		log.Info("trip sync enabled", zap.String("subject_prefix", cfg.NATS.SubjectPrefix), zap.String("origin", origin))
	}
	sync := service.NewSyncService(a.trips, publisher, a.locks, log)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID -> RealIP -> Logger ->
	// Recoverer -> CORS -> body limit.
	api := handler.NewServer(handler.Services{
		Tracker: a.tracker,
		Parse:   a.parse,
		Photos:  a.photos,
		Sync:    sync,
		Trips:   a.trip,
	}, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewZapLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORS.Origins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.HTTP.MaxBodyBytes))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount("/", api.Routes())

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	// Photo imports run synchronously, hence the generous write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go runParseLoop(ctx, a.parse, cfg.Tracker.ParseInterval, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
			return err
		}
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	// Give in-flight requests up to 15 seconds to complete before forcefully
	// closing.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}

// runParseLoop runs the deferred classification pass for every user with
// pending pings until ctx is cancelled. A zero interval disables it.
func runParseLoop(ctx context.Context, parse *service.ParseService, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		log.Info("background parse disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := parse.RunAll(ctx); err != nil && ctx.Err() == nil {
				log.Error("background parse failed", zap.Error(err))
			}
		}
	}
}
