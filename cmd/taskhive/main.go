package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/taskhive/taskhive/pkg/analytics"
	"github.com/taskhive/taskhive/pkg/api"
	"github.com/taskhive/taskhive/pkg/audit"
	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/authz"
	"github.com/taskhive/taskhive/pkg/companies"
	"github.com/taskhive/taskhive/pkg/config"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/notes"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/projects"
	"github.com/taskhive/taskhive/pkg/storage/migrate"
	"github.com/taskhive/taskhive/pkg/storage/postgres"
	"github.com/taskhive/taskhive/pkg/tasks"
	"github.com/taskhive/taskhive/pkg/users"
)

func main() {
	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		fatal(logger, err, "Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		fatal(logger, err, "Invalid configuration")
	}
	logger = observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx := context.Background()

	// Database
	dbm, err := postgres.NewConnectionManager(cfg.Database)
	if err != nil {
		fatal(logger, err, "Failed to connect to database")
	}
	db := dbm.Primary()

	if err := runMigrations(ctx, db); err != nil {
		fatal(logger, err, "Failed to run migrations")
	}

	// Authorization engine
	store := authz.NewStore(db)
	if err := authz.SeedRoles(ctx, store); err != nil {
		fatal(logger, err, "Failed to seed roles")
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	gate := authz.NewGate(authz.NewResolver(store, authz.NewIndex(db)), metrics.AuthzDecisionsTotal)
	grants := authz.NewGrantService(store, gate)

	auditStore := audit.NewStore(db)
	recorder := audit.NewRecorder(auditStore, logger)
	recorder.SetMutationCounter(metrics.GrantMutationsTotal)
	grants.SetAuditor(recorder)

	// Domain services
	userStore := users.NewStore(db)
	companyService := companies.NewService(db, gate, grants)
	projectService := projects.NewService(db, gate, grants)
	taskService := tasks.NewService(db, gate, grants)
	noteService := notes.NewService(db, gate)
	tokenManager := auth.NewTokenManager(db)

	// Tracing and metrics export
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		fatal(logger, err, "Failed to initialize OpenTelemetry")
	}

	deps := api.Deps{
		Logger:      logger,
		Users:       userStore,
		Companies:   companyService,
		Projects:    projectService,
		Tasks:       taskService,
		Notes:       noteService,
		Tokens:      tokenManager,
		Audit:       auditStore,
		Recorder:    recorder,
		CORSOrigins: cfg.Server.CORSOrigins,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics
	}
	server := api.NewServer(deps)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port so probes bypass auth and
	// rate limiting
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: httputil.Chain(httputil.RecoveryMiddleware)(healthMux),
	}

	scheduler := startScheduler(logger, metrics, db, companyService, tokenManager, auditStore)

	var group errgroup.Group
	group.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		manager := observability.NewShutdownManager(logger, apiServer, cfg.Server.ShutdownTimeout)
		manager.RegisterShutdownFunc(func(ctx context.Context) error {
			return healthServer.Shutdown(ctx)
		})
		manager.RegisterShutdownFunc(func(ctx context.Context) error {
			stopped := scheduler.Stop()
			select {
			case <-stopped.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		manager.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
		manager.RegisterShutdownFunc(func(context.Context) error {
			return dbm.Close()
		})
		return manager.WaitForShutdown()
	})

	if err := group.Wait(); err != nil {
		fatal(logger, err, "Server exited with error")
	}
	logger.Info("Server stopped")
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	for _, set := range []struct {
		table      string
		migrations []migrate.Migration
	}{
		{"users_migrations", users.Migrations()},
		{"authz_migrations", authz.Migrations()},
		{"companies_migrations", companies.Migrations()},
		{"projects_migrations", projects.Migrations()},
		{"tasks_migrations", tasks.Migrations()},
		{"notes_migrations", notes.Migrations()},
		{"auth_migrations", auth.Migrations()},
		{"audit_migrations", audit.Migrations()},
	} {
		if err := migrate.Run(ctx, db, set.table, set.migrations); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", set.table, err)
		}
	}
	return nil
}

// startScheduler runs periodic maintenance: expired invitation and token
// cleanup, audit log retention and connection pool gauges
func startScheduler(logger *observability.Logger, metrics *observability.Metrics, db *sql.DB, companyService *companies.Service, tokenManager *auth.TokenManager, auditStore *audit.Store) *cron.Cron {
	c := cron.New()

	schedule := func(spec string, job func()) {
		if _, err := c.AddFunc(spec, job); err != nil {
			logger.WithError(err).WithField("schedule", spec).Error("Failed to register scheduled job")
		}
	}

	schedule("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		removed, err := companyService.CleanupExpiredInvitations(ctx)
		if err != nil {
			logger.WithError(err).Error("Invitation cleanup failed")
			return
		}
		if removed > 0 {
			metrics.InvitationsExpiredTotal.Add(float64(removed))
			logger.Infof("Removed %d expired invitations", removed)
		}
	})

	schedule("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		removed, err := tokenManager.CleanupExpiredTokens(ctx)
		if err != nil {
			logger.WithError(err).Error("Token cleanup failed")
			return
		}
		if removed > 0 {
			logger.Infof("Removed %d expired tokens", removed)
		}
	})

	// Keep 90 days of audit history
	schedule("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		removed, err := auditStore.CleanupBefore(ctx, time.Now().AddDate(0, 0, -90))
		if err != nil {
			logger.WithError(err).Error("Audit log cleanup failed")
			return
		}
		if removed > 0 {
			logger.Infof("Removed %d audit events past retention", removed)
		}
	})

	schedule("@every 15s", func() {
		metrics.UpdateDBStats(db)
	})

	stats := analytics.NewService(db)
	schedule("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := stats.CollectGauges(ctx, metrics); err != nil {
			logger.WithError(err).Error("Stats collection failed")
		}
	})

	c.Start()
	return c
}

func fatal(logger *observability.Logger, err error, message string) {
	logger.WithError(err).Error(message)
	os.Exit(1)
}
