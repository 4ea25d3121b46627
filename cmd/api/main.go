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

	httptransport "github.com/helpline-hq/support-desk/internal/api/http"
	"github.com/helpline-hq/support-desk/internal/api/http/handlers"
	"github.com/helpline-hq/support-desk/internal/auth"
	"github.com/helpline-hq/support-desk/internal/config"
	"github.com/helpline-hq/support-desk/internal/email"
	"github.com/helpline-hq/support-desk/internal/events"
	"github.com/helpline-hq/support-desk/internal/observability"
	"github.com/helpline-hq/support-desk/internal/persistence"
	"github.com/helpline-hq/support-desk/internal/repository"
	"github.com/helpline-hq/support-desk/internal/service"
	"github.com/helpline-hq/support-desk/internal/worker"
	"github.com/helpline-hq/support-desk/internal/workflow"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	store := repository.NewStore(pool)
	slaPolicies := repository.NewCachedSLAPolicyRepository(
		repository.NewSLAPolicyRepository(pool), redis.Client, cfg.Redis.SLACacheTTL(), logger)
	agentRepo := repository.NewAgentRepository(pool)

	metrics := observability.NewMetrics()
	runner := worker.NewRunner(logger, metrics, cfg.Tickets.BackgroundTaskTimeout())
	dispatcher := events.NewInMemoryDispatcher(logger)

	mailer, err := email.NewTemplateMailer(newSender(cfg.Email, logger))
	if err != nil {
		logger.Fatal("failed to load email templates", zap.Error(err))
	}

	repos := store.Repositories()
	engine := workflow.NewEngine(repository.NewWorkflowRepository(pool, logger), repos.Tickets, repos.Notifications, mailer, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store: store,
		SLA:   service.NewSLAResolver(slaPolicies),
		Router: service.NewAssignmentRouter(service.AssignmentDependencies{
			RuleRepo: repository.NewAssignmentRuleRepository(pool),
			TeamRepo: repository.NewTeamRepository(pool),
		}),
		Codes:      service.NewSequenceCodeGenerator(redis, cfg.Tickets.CodePrefix, logger),
		Workflows:  engine,
		Runner:     runner,
		Dispatcher: dispatcher,
		Logger:     logger,
		BulkMaxIDs: cfg.Tickets.BulkMaxIDs,
	})

	service.NewNotificationService(dispatcher, repos.Tickets, mailer, logger, cfg.Email).RegisterHandlers()

	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		kafkaPublisher.Register(dispatcher)
		logger.Info("publishing ticket events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{AgentRepo: agentRepo})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), agentRepo)

	checks := []handlers.DependencyCheck{
		{Name: "postgres", Pinger: pg},
		{Name: "redis", Pinger: redis, Optional: true},
	}
	if kafkaPublisher != nil {
		checks = append(checks, handlers.DependencyCheck{Name: "kafka", Pinger: kafkaPublisher, Optional: true})
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Intake:         handlers.NewIntakeHandler(ticketService, cfg.Webhook.InboundEmailSecret),
		AuthMiddleware: authMiddleware.Handle,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer drainCancel()
	if err := runner.Wait(drainCtx); err != nil {
		logger.Warn("background tasks still running at shutdown", zap.Error(err))
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Warn("close kafka writer", zap.Error(err))
		}
	}
}

func newSender(cfg config.EmailConfig, logger *zap.Logger) email.Sender {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not provided; lifecycle emails are logged only")
		return email.LogSender{Logger: logger}
	}
	return email.NewSMTPSender(cfg)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
