package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ervin210/oauth-app-marketplace/internal/config"
	"github.com/ervin210/oauth-app-marketplace/internal/credential"
	"github.com/ervin210/oauth-app-marketplace/internal/database"
	"github.com/ervin210/oauth-app-marketplace/internal/handler"
	"github.com/ervin210/oauth-app-marketplace/internal/middleware"
	"github.com/ervin210/oauth-app-marketplace/internal/repository"
	"github.com/ervin210/oauth-app-marketplace/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var skipMigrations bool

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations at startup")
	}
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("Starting marketplace API",
		slog.String("environment", cfg.Server.Environment),
		slog.Int("port", cfg.Server.Port),
	)

	if !skipMigrations {
		if err := database.RunMigrations(cfg.Database); err != nil {
			return err
		}
		logger.Info("Database migrations completed")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	redis, err := database.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      newRouter(cfg, db, redis, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("Shutting down server", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func newRouter(cfg *config.Config, db *database.Postgres, redis *database.Redis, logger *slog.Logger) http.Handler {
	pool := db.Pool()

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	sessionRepo := repository.NewSessionRepository(redis)
	appRepo := repository.NewApplicationRepository(pool)
	planRepo := repository.NewPlanRepository(pool)
	reviewRepo := repository.NewReviewRepository(pool)
	subRepo := repository.NewSubscriptionRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	// Services
	issuer := credential.NewIssuer(credential.WithMaxAttempts(cfg.Credentials.MaxAttempts))
	auditService := service.NewAuditService(auditRepo)
	oauthService := service.NewOAuthService(&cfg.Auth, userRepo, sessionRepo, logger)
	appService := service.NewAppService(appRepo, issuer, auditService, logger)
	reviewService := service.NewReviewService(appRepo, reviewRepo, auditService, logger)
	planService := service.NewPlanService(appRepo, planRepo, auditService, logger)
	subscriptionService := service.NewSubscriptionService(appRepo, planRepo, subRepo, auditService, logger)
	marketplaceService := service.NewMarketplaceService(appRepo, reviewRepo, planRepo, cfg.Marketplace)

	authCfg := middleware.AuthConfig{
		Store: middleware.NewSessionStore(
			cfg.Auth.SessionSecret,
			cfg.Auth.SessionExpiry,
			strings.HasPrefix(cfg.Auth.OAuthCallbackURL, "https://"),
		),
		CookieName: cfg.Auth.CookieName,
	}

	// Handlers
	authHandler := handler.NewAuthHandler(oauthService, authCfg, cfg.Auth.DashboardURL, logger)
	api := &handler.API{
		Apps:          handler.NewAppHandler(appService, auditService),
		Reviews:       handler.NewReviewHandler(reviewService),
		Plans:         handler.NewPlanHandler(planService),
		Subscriptions: handler.NewSubscriptionHandler(subscriptionService),
		Marketplace:   handler.NewMarketplaceHandler(marketplaceService),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))

	r.Get("/health", handler.Health)
	r.Get("/ready", handler.Ready(map[string]handler.Pinger{
		"database": db,
		"redis":    redis,
	}))
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/auth", authHandler.Routes())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.OptionalUser(authCfg, oauthService.ResolveSession))
		r.Use(middleware.RateLimit(redis, middleware.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			BurstSize:         cfg.RateLimit.Burst,
		}, logger))

		r.Mount("/", api.Routes())
	})

	return r
}
