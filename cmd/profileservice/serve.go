package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	cfhttp "github.com/Strob0t/userprofile/internal/adapter/http"
	cfnats "github.com/Strob0t/userprofile/internal/adapter/nats"
	cfotel "github.com/Strob0t/userprofile/internal/adapter/otel"
	"github.com/Strob0t/userprofile/internal/adapter/photoservice"
	"github.com/Strob0t/userprofile/internal/adapter/postgres"
	"github.com/Strob0t/userprofile/internal/config"
	"github.com/Strob0t/userprofile/internal/logger"
	"github.com/Strob0t/userprofile/internal/middleware"
	"github.com/Strob0t/userprofile/internal/pool"
	"github.com/Strob0t/userprofile/internal/resilience"
	"github.com/Strob0t/userprofile/internal/service"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [flags]",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server.

Flags override environment variables, which override the YAML file:
  -c, --config PATH     YAML config (default profileservice.yaml or $PROFILE_CONFIG)
  -p, --port PORT       HTTP listen port
      --log-level LVL   debug | info | warn | error
      --dsn DSN         PostgreSQL DSN
      --nats-url URL    NATS server URL
      --photo-url URL   photo service base URL
      --photos-only     serve only the photo endpoints`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := config.ParseFlags(args)
			if errors.Is(err, flag.ErrHelp) {
				return cmd.Help()
			}
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, flags)
		},
	}
}

func runServe(ctx context.Context, flags config.CLIFlags) error {
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"file", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"photos_only", cfg.Server.PhotosOnly,
		"l2_backend", cfg.Cache.L2Backend,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	// --- Observability ---

	shutdownOTEL, err := cfotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	pgPool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pgPool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := cfnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() {
		if err := queue.Drain(); err != nil {
			slog.Warn("nats drain", "error", err)
		}
	}()

	// --- Services ---

	store := postgres.NewStore(pgPool)
	handlers := &cfhttp.Handlers{
		MaxUploadMB: cfg.Server.MaxUploadMB,
		Version:     Version,
		DB:          store,
		Queue:       queue,
	}

	if cfg.Server.PhotosOnly || cfg.Server.MountPhotos {
		photoSvc := service.NewPhotoService(store)
		photoSvc.SetQueue(queue)
		photoSvc.SetMetrics(metrics)
		handlers.Photos = photoSvc
	}

	if !cfg.Server.PhotosOnly {
		caches, err := buildProfileCache(ctx, cfg, queue, metrics)
		if err != nil {
			return fmt.Errorf("profile cache: %w", err)
		}
		defer caches.close()

		prober := photoservice.NewClient(cfg.PhotoService.URL, cfg.PhotoService.Timeout, newPhotoBreaker(cfg.Breaker, metrics))
		prober.SetMetrics(metrics)

		profileSvc := service.NewProfileService(store, caches.shared, prober,
			pool.New(cfg.Enrichment.MaxParallel), cfg.Cache.TTL, cfg.Enrichment.Deadline)
		profileSvc.SetQueue(queue)
		profileSvc.SetMetrics(metrics)

		invalidation := service.NewInvalidationSubscriber(queue, caches.shared, caches.local)
		if err := invalidation.Start(ctx); err != nil {
			return fmt.Errorf("invalidation subscriber: %w", err)
		}
		defer invalidation.Stop()

		handlers.Profiles = profileSvc
		handlers.Breaker = prober
	}

	// --- HTTP ---

	idemKV, err := queue.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
	if err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	limiter.StartCleanup(ctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cfhttp.SecurityHeaders)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))

	cfhttp.MountRoutes(r, handlers, cfhttp.RouteOptions{
		Idempotency: middleware.Idempotency(idemKV),
		RateLimit:   limiter.Handler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// newPhotoBreaker creates the one breaker guarding the photo service for
// this process. Transitions are logged and counted.
func newPhotoBreaker(cfg config.Breaker, metrics *cfotel.Metrics) *resilience.Breaker {
	return resilience.NewBreaker(photoservice.BreakerName, resilience.BreakerConfig{
		WindowSize:       cfg.WindowSize,
		MinCalls:         cfg.MinCalls,
		FailureRatio:     cfg.FailureRatio,
		CoolDown:         cfg.CoolDown,
		HalfOpenMaxCalls: cfg.HalfOpenMaxCalls,
		IsFailure:        photoservice.IsBreakerFailure,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if metrics != nil {
				metrics.BreakerTransitions.Add(context.Background(), 1, metric.WithAttributes(
					attribute.String("breaker", name),
					attribute.String("to", to.String()),
				))
			}
		},
	})
}
