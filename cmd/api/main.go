// Package main is the entry point for the API server.
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

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scrumpts/cocoa-concierge/internal/catalog"
	"github.com/scrumpts/cocoa-concierge/internal/config"
	"github.com/scrumpts/cocoa-concierge/internal/database"
	"github.com/scrumpts/cocoa-concierge/internal/handler"
	"github.com/scrumpts/cocoa-concierge/internal/llm"
	"github.com/scrumpts/cocoa-concierge/internal/middleware"
	natsclient "github.com/scrumpts/cocoa-concierge/internal/nats"
	"github.com/scrumpts/cocoa-concierge/internal/recommend"
	"github.com/scrumpts/cocoa-concierge/internal/relay"
	"github.com/scrumpts/cocoa-concierge/internal/service"
	"github.com/scrumpts/cocoa-concierge/internal/store"
	"github.com/scrumpts/cocoa-concierge/pkg/logger"
	"github.com/scrumpts/cocoa-concierge/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel, logger.WithService("cocoa-concierge"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("starting API server", zap.String("store", cfg.StoreBackend))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "cocoa-concierge", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// NATS is optional: it backs the cycle event stream and the KV store.
	var (
		natsClient *natsclient.Client
		events     service.EventPublisher
		ready      handler.ReadinessChecker
		err        error
	)
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()
		ready = natsClient

		if cfg.NATSEventsEnabled {
			streamManager := natsclient.NewStreamManager(natsClient)
			if err := streamManager.EnsureStream(ctx); err != nil {
				return fmt.Errorf("failed to ensure stream: %w", err)
			}
			events = streamManager
		}
	}

	// Storage
	var db *gorm.DB
	switch cfg.StoreBackend {
	case config.StorePostgres:
		db, err = database.Open(database.DriverPostgres, cfg.DatabaseURL, log)
	case config.StoreSQLite:
		db, err = database.Open(database.DriverSQLite, cfg.SQLitePath, log)
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	convStore, err := openStore(ctx, cfg, db, natsClient)
	if err != nil {
		return err
	}

	var products catalog.Catalog = catalog.NewStaticCatalog(catalog.SeedProducts())
	if db != nil {
		sqlCatalog, err := catalog.NewSQLCatalog(db)
		if err != nil {
			return fmt.Errorf("failed to open product catalog: %w", err)
		}
		seeded, err := sqlCatalog.SeedIfEmpty(ctx, catalog.SeedProducts())
		if err != nil {
			return fmt.Errorf("failed to seed product catalog: %w", err)
		}
		if seeded > 0 {
			log.Info("seeded product catalog", zap.Int("products", seeded))
		}
		products = sqlCatalog
	}

	// Completion gateway. Without credentials every call degrades to the
	// fallback reply instead of failing startup.
	llmClient, err := llm.NewClient(llm.ProviderConfig{
		Provider:        llm.Provider(cfg.LLMProvider),
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		OpenAIModel:     cfg.OpenAIModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
	})
	if err != nil {
		log.Warn("LLM client unavailable, chat will use fallback replies", zap.Error(err))
		llmClient = nil
	}
	gateway := llm.NewGateway(llmClient, llm.GatewayConfig{
		Timeout:     cfg.CompletionTimeout,
		MaxInflight: int64(cfg.MaxInflightCompletions),
	}, log)

	// Services
	chatSvc := service.NewChatService(convStore, gateway, events, cfg.BrandName, log)
	engine := recommend.NewEngine(products, gateway, log)

	relayCfg := relay.Config{
		PingInterval: cfg.WSPingInterval,
		ReadLimit:    cfg.WSReadLimit,
		CheckOrigin:  relay.AllowOrigins(cfg.AllowedOrigins),
	}
	if cfg.AuthRequired {
		relayCfg.Authenticate = middleware.Authenticator(cfg.JWTSecret)
	}
	chatRelay := relay.NewServer(chatSvc, relayCfg, log)

	router := newRouter(cfg, log, routes{
		health:    handler.NewHealthHandler(ready, gateway.Provider()),
		chat:      handler.NewChatHandler(chatSvc, log),
		recommend: handler.NewRecommendHandler(engine, log),
		products:  handler.NewProductHandler(products, log),
		relay:     chatRelay,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	// hijacked websocket connections are not covered by server.Shutdown
	if err := chatRelay.Shutdown(shutdownCtx); err != nil {
		log.Error("chat relay forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

// openStore builds the configured conversation store.
func openStore(ctx context.Context, cfg *config.Config, db *gorm.DB, nc *natsclient.Client) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory, "":
		return store.NewMemoryStore(), nil
	case config.StoreNATS:
		if nc == nil {
			return nil, errors.New("STORE_BACKEND=nats requires NATS_URL")
		}
		st, err := store.NewKVStore(ctx, nc.JetStream())
		if err != nil {
			return nil, fmt.Errorf("failed to open KV store: %w", err)
		}
		return st, nil
	case config.StoreRedis:
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return store.NewRedisStore(rdb), nil
	case config.StorePostgres, config.StoreSQLite:
		st, err := store.NewSQLStore(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQL store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
