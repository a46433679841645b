// Choosie - Manila restaurant concierge with single-use promo redemption
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

	"github.com/choosielabs/choosie/internal/catalog"
	"github.com/choosielabs/choosie/internal/chat"
	"github.com/choosielabs/choosie/internal/config"
	"github.com/choosielabs/choosie/internal/engine"
	"github.com/choosielabs/choosie/internal/llm"
	"github.com/choosielabs/choosie/internal/middleware"
	"github.com/choosielabs/choosie/internal/session"
	"github.com/choosielabs/choosie/internal/token"
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

	slog.Info("Starting server", "port", cfg.Port, "model", cfg.GeminiModel, "dev", cfg.IsDevelopment())

	// Initialize stores. Everything is in-memory; a restart loses all
	// sessions and tokens.
	tokens := token.NewStore(cfg.PublicBaseURL)
	sessions := session.NewStore()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Error("Failed to load restaurant catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}
	if cat.Len() == 0 {
		slog.Warn("Restaurant catalog is empty, offer lookups will find nothing", "path", cfg.CatalogPath)
	} else {
		slog.Info("Restaurant catalog loaded", "path", cfg.CatalogPath, "restaurants", cat.Len())
	}

	// Initialize services.
	eng := engine.New(tokens, cat, engine.NewKeywordClassifier(), cfg.OfferTTL)
	generator := llm.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ModelTimeout)

	turnLog, err := chat.NewTurnLogger(chat.TurnLogConfig{
		Enabled:   cfg.TurnLog.Enabled,
		Dir:       cfg.TurnLog.Dir,
		QueueSize: cfg.TurnLog.QueueSize,
	})
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := turnLog.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	orchestrator := chat.NewOrchestrator(sessions, eng, generator, cfg.HistoryLimit, turnLog)

	rateLimiter := chat.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	defer rateLimiter.Close()

	// Initialize handlers.
	chatHandler := chat.NewHandler(orchestrator, rateLimiter, cfg.MaxUploadSize)
	qrHandler := token.NewHandler(tokens)
	wsHandler := chat.NewWebSocketHandler(orchestrator, cfg.AllowedOrigin, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	corsOrigins := []string{"*"}
	if cfg.AllowedOrigin != "" {
		corsOrigins = []string{cfg.AllowedOrigin}
	}
	r.Use(middleware.CORS(corsOrigins))

	chatHandler.RegisterRoutes(r)
	qrHandler.RegisterRoutes(r)
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // generation calls can be slow
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Expired pending offers are also dropped lazily; the sweeper keeps
	// dormant sessions from holding stale offers.
	session.StartOfferSweeper(ctx, sessions)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

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
