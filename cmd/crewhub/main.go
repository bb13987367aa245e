package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/crewhub/crewhub/pkg/api"
	"github.com/crewhub/crewhub/pkg/applications"
	"github.com/crewhub/crewhub/pkg/auth"
	"github.com/crewhub/crewhub/pkg/config"
	"github.com/crewhub/crewhub/pkg/observability"
	"github.com/crewhub/crewhub/pkg/orgs"
	"github.com/crewhub/crewhub/pkg/perm"
	"github.com/crewhub/crewhub/pkg/projects"
	"github.com/crewhub/crewhub/pkg/storage/postgres"
	"github.com/crewhub/crewhub/pkg/vacancies"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file")
	flag.Parse()

	if *configFile != "" {
		os.Setenv("CREWHUB_CONFIG_FILE", *configFile)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}
	logrus.Info("Database ready")

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var grantStore perm.Store = perm.NewStore(db)
	if cfg.Redis.CacheEnabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logrus.WithError(err).Fatal("Failed to connect to redis")
		}
		defer redisClient.Close()
		grantStore = perm.NewCachedStore(grantStore, redisClient, cfg.Redis.GrantCacheTTL, metrics)
		logrus.WithField("addr", cfg.Redis.Addr).Info("Grant cache enabled")
	}

	evaluator := perm.NewEvaluator(db, grantStore, perm.EvaluatorOptions{
		RestrictOrgCreate: cfg.Permissions.RestrictOrgCreate,
		OrgCacheSize:      cfg.Permissions.OrgFactsCacheSize,
		OrgCacheTTL:       cfg.Permissions.OrgFactsCacheTTL,
		Metrics:           metrics,
	})

	orgService := orgs.NewService(db, evaluator, logger)

	server := api.NewServer(api.Config{
		Evaluator:    evaluator,
		Users:        auth.NewStore(db),
		TokenManager: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Orgs:         orgService,
		Projects:     projects.NewService(db, evaluator, logger),
		Vacancies:    vacancies.NewService(db, evaluator, logger),
		Applications: applications.NewService(db, logger),
		Logger:       logger,
		Metrics:      metrics,
	})

	scheduler := cron.New()
	if err := orgService.ScheduleJoinCodeCleanup(scheduler, cfg.Permissions.JoinCodeCleanupSchedule, logger); err != nil {
		logrus.WithError(err).Fatal("Failed to schedule join code cleanup")
	}
	scheduler.Start()
	defer scheduler.Stop()

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthRouter(db, registry, cfg.Observability.MetricsEnabled),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logrus.WithField("addr", apiServer.Addr).Info("Starting API server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		logrus.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if path := os.Getenv("CREWHUB_CONFIG_FILE"); path != "" {
		group.Go(func() error {
			return config.Watch(groupCtx, path, logger)
		})
	}

	if metrics != nil {
		go postgres.StartPoolMetrics(groupCtx, db, metrics, 15*time.Second)
		go orgService.StartMetricsLoop(groupCtx, metrics, time.Minute)
	}

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		logrus.Info("Shutting down")
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("API server shutdown failed")
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logrus.WithError(err).Fatal("Server exited with error")
	}
	logrus.Info("Shutdown complete")
}

// healthRouter serves liveness/readiness probes and metrics on the
// internal port.
func healthRouter(db interface{ PingContext(context.Context) error }, registry *prometheus.Registry, metricsEnabled bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if metricsEnabled {
		mux.Handle("/metrics", observability.Handler(registry))
	}

	return mux
}
