// Package main is the entry point for the session daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/capitalize-ai/docsession/internal/config"
	"github.com/capitalize-ai/docsession/internal/handler"
	"github.com/capitalize-ai/docsession/internal/hint"
	"github.com/capitalize-ai/docsession/internal/llm"
	"github.com/capitalize-ai/docsession/internal/middleware"
	natsclient "github.com/capitalize-ai/docsession/internal/nats"
	"github.com/capitalize-ai/docsession/internal/remote"
	"github.com/capitalize-ai/docsession/internal/service"
	"github.com/capitalize-ai/docsession/pkg/logger"
	"github.com/capitalize-ai/docsession/pkg/tracing"
)

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting session daemon")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "docsession", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	var deps []handler.Dependency

	// Notice journal on NATS, when configured
	var (
		journal  handler.NoticeJournal
		notifier service.Notifier
	)
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		journal = streamManager
		notifier = natsclient.NewPublisher(streamManager, log)
		deps = append(deps, handler.Dependency{Name: "nats", Check: natsClient.Ping})
	}

	// Active tenant hints
	var hints service.HintStore = hint.NewMemoryStore(cfg.MaxWorkspaces, cfg.HintTTL)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		store := hint.NewRedisStore(rdb, cfg.HintTTL)
		if err := store.Ping(ctx); err != nil {
			log.Warn("redis not reachable at startup", zap.Error(err))
		}
		hints = store
		deps = append(deps, handler.Dependency{Name: "redis", Check: store.Ping})
	}

	// Remote collaborators
	records := remote.Options{BaseURL: cfg.RecordStoreURL, Timeout: cfg.RemoteTimeout, Token: middleware.GetToken}
	documentOpts := remote.Options{BaseURL: cfg.DocumentServiceURL, Timeout: cfg.RemoteTimeout, Token: middleware.GetToken}
	documents := remote.NewDocumentClient(documentOpts)

	var replier service.Replier = documents
	if cfg.ReplyBackend != config.ReplyProcessing {
		apiKey := cfg.AnthropicAPIKey
		if cfg.ReplyBackend == config.ReplyOpenAI {
			apiKey = cfg.OpenAIAPIKey
		}
		llmClient, err := llm.NewClient(llm.Config{
			Provider: llm.Provider(cfg.ReplyBackend),
			APIKey:   apiKey,
			BaseURL:  cfg.LLMBaseURL,
		})
		if err != nil {
			log.Fatal("failed to create LLM client", zap.Error(err))
		}
		replier = llm.NewReplier(llmClient, cfg.LLMModel)
		log.Info("replies served by LLM", zap.String("provider", llmClient.Name()))
	}

	backends := service.Backends{
		Tenants:       remote.NewTenantClient(records),
		Conversations: remote.NewConversationClient(records),
		Replier:       replier,
		Documents:     documents,
		Sheets:        remote.NewSheetClient(documentOpts),
		Receipts:      documents,
		Hints:         hints,
	}
	wsCfg := service.WorkspaceConfig{
		UploadRemoveDelay: cfg.UploadRemoveDelay,
		UploadErrorTTL:    cfg.UploadErrorTTL,
		MinSwitchDuration: cfg.SwitchMinDuration,
		InboxSize:         cfg.InboxSize,
	}

	registry, err := service.NewRegistry(cfg.MaxWorkspaces, func(principal string) *service.Workspace {
		return service.NewWorkspace(principal, backends, wsCfg, notifier, log)
	}, log)
	if err != nil {
		log.Fatal("failed to create workspace registry", zap.Error(err))
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(deps...)
	api := handler.NewAPI(registry, journal, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		api.Routes(r)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
