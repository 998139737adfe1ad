package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/maintenance-ticketing/internal/api/http"
	"github.com/spec-kit/maintenance-ticketing/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-ticketing/internal/auth"
	"github.com/spec-kit/maintenance-ticketing/internal/config"
	"github.com/spec-kit/maintenance-ticketing/internal/credentials"
	"github.com/spec-kit/maintenance-ticketing/internal/domain"
	"github.com/spec-kit/maintenance-ticketing/internal/events"
	"github.com/spec-kit/maintenance-ticketing/internal/generation"
	"github.com/spec-kit/maintenance-ticketing/internal/observability"
	"github.com/spec-kit/maintenance-ticketing/internal/persistence"
	"github.com/spec-kit/maintenance-ticketing/internal/repository"
	"github.com/spec-kit/maintenance-ticketing/internal/service"
	"github.com/spec-kit/maintenance-ticketing/internal/ticketing"
	"github.com/spec-kit/maintenance-ticketing/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	location, _ := cfg.Generation.Location()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	broker := credentials.NewBroker(credentials.Config{
		TokenURL:     cfg.Identity.TokenURL,
		ClientID:     cfg.Identity.ClientID,
		ClientSecret: cfg.Identity.ClientSecret,
		Scope:        cfg.Identity.Scope,
		Timeout:      cfg.Identity.Timeout(),
	}, credentials.WithLogger(logger), credentials.WithMetrics(metrics))

	ticketClient := ticketing.NewClient(ticketing.Endpoints{
		BaseURL:       cfg.Ticketing.BaseURL,
		Create:        cfg.Ticketing.CreatePath,
		List:          cfg.Ticketing.ListPath,
		KPI:           cfg.Ticketing.KPIPath,
		StatusOptions: cfg.Ticketing.StatusOptionsPath,
	}, broker,
		ticketing.WithTimeout(cfg.Ticketing.Timeout()),
		ticketing.WithRateLimit(cfg.Ticketing.RateLimitPerSecond),
		ticketing.WithTokenAttempts(cfg.Identity.MaxAttempts),
		ticketing.WithLogger(logger),
	)

	pool := pg.PoolHandle()
	scheduleRepo := repository.NewScheduleRepository(pool)
	coverageRepo := repository.NewCoverageRepository(pool)
	auditRepo := repository.NewRunAuditRepository(redis.Cmdable(), cfg.Redis.AuditKeyspace, cfg.Redis.AuditMaxRuns)

	builder := ticketing.NewPayloadBuilder(ticketing.Envelope{
		TenantID: cfg.Ticketing.TenantID,
		OrgID:    cfg.Ticketing.OrgID,
		Channel:  cfg.Ticketing.Channel,
	})
	orchestrator := generation.NewOrchestrator(ticketClient,
		[]generation.TicketFamily{
			generation.NewMaintenanceFamily(scheduleRepo, builder),
			generation.NewRenewalFamily(coverageRepo, builder),
		},
		generation.WithLogger(logger),
		generation.WithMetrics(metrics),
		generation.WithLocation(location),
		generation.WithHorizon(cfg.Generation.HorizonDays, cfg.Generation.WindowDays),
		generation.WithConcurrency(cfg.Generation.Concurrency),
		generation.WithDedupPaging(cfg.Ticketing.DedupPageSize, cfg.Ticketing.DedupMaxPages),
		generation.WithSystemActor(domain.Actor{
			ID:    cfg.Generation.SystemUserID,
			Name:  cfg.Generation.SystemUserName,
			Email: cfg.Generation.SystemUserEmail,
		}),
	)

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, auditRepo, logger).RegisterHandlers()

	generationService := service.NewGenerationService(service.GenerationDependencies{
		Generator:  orchestrator,
		Audit:      auditRepo,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(ticketClient, broker)

	var scheduler *worker.GenerationWorker
	if cfg.Generation.SchedulerEnabled {
		scheduler = worker.NewGenerationWorker(generationService, cfg.Generation.SchedulerSpec, location, logger)
		if err := scheduler.Start(); err != nil {
			logger.Fatal("failed to start generation scheduler", zap.Error(err))
		}
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Generation:     handlers.NewGenerationHandler(generationService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, 0)),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	_ = app.ShutdownWithContext(shutdownCtx)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
