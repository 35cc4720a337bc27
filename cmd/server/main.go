// Namewise - OTP-gated domain suggestion chat server
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

	"github.com/ashureev/namewise/internal/api"
	"github.com/ashureev/namewise/internal/config"
	"github.com/ashureev/namewise/internal/flow"
	"github.com/ashureev/namewise/internal/llm"
	"github.com/ashureev/namewise/internal/mailer"
	"github.com/ashureev/namewise/internal/middleware"
	"github.com/ashureev/namewise/internal/session"
	"github.com/ashureev/namewise/internal/store"
	"github.com/ashureev/namewise/web"
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

	slog.Info("Starting server", "port", cfg.Port, "backend", cfg.StoreBackend, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	var repo store.Repository
	switch cfg.StoreBackend {
	case config.BackendRedis:
		repo = store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		sqliteRepo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		repo = sqliteRepo
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected")

	if len(cfg.SeedEmails) > 0 {
		if err := repo.SeedUsers(context.Background(), cfg.SeedEmails); err != nil {
			slog.Error("Failed to seed user records", "error", err)
			os.Exit(1)
		}
		slog.Info("Seeded user records", "count", len(cfg.SeedEmails))
	}

	var mail mailer.Mailer
	if cfg.SMTPEnabled() {
		mail = mailer.NewSMTP(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		slog.Info("SMTP mailer initialized", "host", cfg.SMTP.Host)
	} else {
		mail = mailer.NewLog()
		slog.Info("SMTP not configured, OTP mail will be logged")
	}

	if cfg.LLM.APIKey == "" {
		slog.Warn("OPENAI_API_KEY not set, completion requests will fail")
	}
	completions := llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.MaxTokens)

	// Initialize services.
	sessions := session.NewManager(cfg.SessionTTL)
	flowSvc := flow.New(repo, mail, completions, cfg.OTPTTL)

	// Initialize handlers.
	handler := api.NewHandler(flowSvc)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(corsOrigins(cfg)))
	r.Use(session.Middleware(sessions, cfg.IsDevelopment()))

	handler.RegisterRoutes(r)

	// Serve the embedded front-end.
	r.Handle("/*", web.StaticHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start session reaper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions.StartReaper(ctx, cfg.ReaperInterval, repo.CleanupExpiredOTPs)

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

func corsOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL != "" {
		return []string{cfg.FrontendURL}
	}
	return []string{"*"}
}
