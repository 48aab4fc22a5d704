// Challengely - habit challenge server
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

	"github.com/challengely/challengely/internal/api"
	"github.com/challengely/challengely/internal/app"
	"github.com/challengely/challengely/internal/catalog"
	"github.com/challengely/challengely/internal/chat"
	"github.com/challengely/challengely/internal/config"
	"github.com/challengely/challengely/internal/identity"
	"github.com/challengely/challengely/internal/middleware"
	"github.com/challengely/challengely/internal/store"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies. A broken database degrades to in-memory
	// state rather than refusing to start; persistence is best-effort.
	var st store.Store
	sqliteStore, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database, falling back to in-memory state", "error", err)
		st = store.NewMemory()
	} else {
		st = sqliteStore
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("Failed to close store", "error", closeErr)
		}
	}()

	if err := st.Ping(context.Background()); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected")

	cat := catalog.LoadFile(cfg.CatalogPath)
	slog.Info("Challenge catalog loaded", "challenges", cat.Len())

	conversationLogger, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	streams := api.NewStreamManager()

	manager := app.NewManager(cat, st, cfg.SessionTTL, app.Options{
		Matcher:       chat.NewMatcher(),
		Logger:        conversationLogger,
		ChatListeners: []chat.Listener{streams.Dispatch},
		ChatOptions: []chat.SessionOption{
			chat.WithReplyDelay(cfg.ReplyDelay),
			chat.WithPromptDelay(cfg.PromptDelay),
		},
	})
	defer manager.CloseAll()

	// Initialize handlers.
	apiHandler := api.NewHandler(manager, st, streams, cfg)
	streamHandler := api.NewStreamHandler(streams, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(st, cfg.IsDevelopment()))

	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint for pushed chat events.
	r.Get("/ws/chat", streamHandler.ServeHTTP)

	// Create server.
	// Note: the chat stream holds connections open (no WriteTimeout).
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start idle session sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager.StartSweeper(ctx)

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
