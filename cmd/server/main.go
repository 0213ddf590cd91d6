// reviewpilot - marketplace review auto-reply service
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/reviewpilot/internal/ai"
	"github.com/ashureev/reviewpilot/internal/api"
	"github.com/ashureev/reviewpilot/internal/config"
	"github.com/ashureev/reviewpilot/internal/domain"
	"github.com/ashureev/reviewpilot/internal/middleware"
	"github.com/ashureev/reviewpilot/internal/ozon"
	"github.com/ashureev/reviewpilot/internal/ratelimit"
	"github.com/ashureev/reviewpilot/internal/session"
	"github.com/ashureev/reviewpilot/internal/store"
	syncpkg "github.com/ashureev/reviewpilot/internal/sync"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "sync_interval", cfg.SyncInterval)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	if err := ensureDefaultSettings(context.Background(), repo); err != nil {
		slog.Error("Failed to seed default settings", "error", err)
		os.Exit(1)
	}

	// One rate-limit gate per call class, shared by scheduled and manual
	// work: the portal keys its anti-automation heuristics on total request
	// cadence, not per-session cadence.
	marketLimiter := ratelimit.New()
	generationLimiter := ratelimit.New()

	health := session.NewFileHealthStore()
	portal := ozon.NewClient(health, marketLimiter,
		ozon.WithHTTPClient(&http.Client{Timeout: cfg.MarketplaceTimeout}))

	factory := generatorFactory(cfg, generationLimiter)
	orchestrator := syncpkg.NewOrchestrator(repo, portal, factory, cfg.Generation.APIKey)
	poller := syncpkg.NewPoller(orchestrator, cfg.SyncInterval)

	// Initialize handlers.
	handler := api.NewHandler(repo, portal, poller)
	eventsHandler := api.NewEventsHandler(poller)

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	handler.RegisterRoutes(r)
	r.Get("/ws/events", eventsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // Websocket event streams stay open indefinitely.
		IdleTimeout:  120 * time.Second,
	}

	// Start the review poller.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller.Start(ctx)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// generatorFactory builds a reply generator for the credential resolved at
// cycle time. Without a credential the generator serves the deterministic
// fallback only.
func generatorFactory(cfg *config.Config, limiter *ratelimit.Limiter) syncpkg.GeneratorFactory {
	return func(apiKey string) syncpkg.ReplyGenerator {
		var client ai.TextGenerator
		if apiKey != "" {
			client = ai.NewClient(apiKey,
				ai.WithBaseURL(cfg.Generation.BaseURL),
				ai.WithModel(cfg.Generation.Model),
				ai.WithSampling(cfg.Generation.Sampling),
				ai.WithHTTPClient(&http.Client{Timeout: cfg.Generation.Timeout}),
			)
		}
		return ai.NewGenerator(client, limiter)
	}
}

// ensureDefaultSettings seeds the delay settings on first start.
func ensureDefaultSettings(ctx context.Context, repo store.Repository) error {
	defaults := domain.Settings{
		MinInterval:  domain.DefaultMinInterval,
		MaxInterval:  domain.DefaultMaxInterval,
		SendInterval: domain.DefaultSendInterval,
	}.ToMap()
	delete(defaults, domain.SettingOpenAIAPIKey)
	delete(defaults, domain.SettingAutoSendEnabled)

	for key, value := range defaults {
		current, err := repo.GetSetting(ctx, key)
		if err != nil {
			return err
		}
		if current == "" {
			if err := repo.SetSetting(ctx, key, value); err != nil {
				return err
			}
		}
	}
	return nil
}
