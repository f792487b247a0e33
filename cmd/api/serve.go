package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-tickets/internal/api/dto"
	httptransport "github.com/spec-kit/helpdesk-tickets/internal/api/http"
	"github.com/spec-kit/helpdesk-tickets/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-tickets/internal/auth"
	"github.com/spec-kit/helpdesk-tickets/internal/config"
	"github.com/spec-kit/helpdesk-tickets/internal/events"
	"github.com/spec-kit/helpdesk-tickets/internal/identity"
	"github.com/spec-kit/helpdesk-tickets/internal/observability"
	"github.com/spec-kit/helpdesk-tickets/internal/persistence"
	"github.com/spec-kit/helpdesk-tickets/internal/repository"
	"github.com/spec-kit/helpdesk-tickets/internal/scoring"
	"github.com/spec-kit/helpdesk-tickets/internal/service"
	"github.com/spec-kit/helpdesk-tickets/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, cfg.Postgres.DSN, persistence.MigrateUp, logger); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pg.Close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.Pool
	ticketRepo := repository.NewTicketRepository(pool)
	scoreRepo := repository.NewScoreRepository(pool)

	directory := identity.NewClient(cfg.Identity, logger,
		identity.WithCache(identity.NewRedisCache(redis.Client, cfg.Identity.CacheTTL, logger)),
		identity.WithMetrics(metrics),
	)

	dispatcher := events.NewInMemoryDispatcher(logger)
	sink := events.NewKafkaSink(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, logger)
	defer sink.Close() //nolint:errcheck
	worker.StartEventSubscribers(dispatcher, service.NewNotificationService(dispatcher, logger), sink)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TxManager:   repository.NewTransactionManager(pool),
		TicketRepo:  ticketRepo,
		CommentRepo: repository.NewCommentRepository(pool),
		RatingRepo:  repository.NewRatingRepository(pool),
		HistoryRepo: repository.NewTicketHistoryRepository(pool),
		Scoring:     scoring.NewEngine(scoreRepo, logger),
		Identity:    directory,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, 24*time.Hour)
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService, dto.NewValidator()),
		Scores:         handlers.NewScoresHandler(ticketService, cfg.Scoring.LeaderboardDefault),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, cfg.Auth.TrustGatewayHeaders),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		errCh <- app.Listen(cfg.App.Addr())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	return app.ShutdownWithTimeout(10 * time.Second)
}
