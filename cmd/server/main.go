package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cabbook/internal/app"
	"cabbook/internal/config"
	"cabbook/internal/handler"
	"cabbook/internal/logger"
	internalRedis "cabbook/internal/redis"
	"cabbook/internal/repository/remote"
	"cabbook/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	zl, err := logger.New(cfg.Log.Development)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			zl.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			zl.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	// The database is only needed for the postgres token store.
	var db *sql.DB
	if cfg.TokenStore.Backend == config.TokenStorePostgres {
		db, err = app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			zl.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := app.Migrate(ctx, db, zl); err != nil {
			zl.Fatal("failed to migrate database", zap.Error(err))
		}
		zl.Info("Connected to PostgreSQL")
	}

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			zl.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		zl.Info("Connected to Redis")
	}

	server, drafts, err := wireServer(db, redisClient, nrApp, cfg, zl)
	if err != nil {
		zl.Fatal("failed to wire server", zap.Error(err))
	}

	// Start server in goroutine.
	go func() {
		zl.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	drafts.CloseAll()

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	zl.Info("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, zl *zap.Logger) (*http.Server, *service.DraftRegistry, error) {
	tokens, err := app.NewTokenStore(cfg.TokenStore, db, redisClient)
	if err != nil {
		return nil, nil, err
	}

	var suggestions service.SuggestionCache
	if redisClient != nil {
		suggestions = internalRedis.NewSuggestionCache(redisClient, cfg.Booking.SuggestionCacheTTL)
	}

	api := remote.NewClient(cfg.API, zl)
	navigator := service.NewNavigationService(zl)

	// Initialize services.
	authenticator := service.NewSessionAuthenticator(service.SessionDeps{
		Auth:      api,
		Profiles:  api,
		Tokens:    tokens,
		Navigator: navigator,
		Logger:    zl,
	}, service.SessionConfig{
		UserType:       cfg.API.UserType,
		OtpLength:      cfg.Auth.OtpLength,
		ResendCooldown: cfg.Auth.ResendCooldown,
	})

	drafts := service.NewDraftRegistry(service.ComposerDeps{
		Places:    api,
		Bookings:  api,
		Tokens:    tokens,
		Cache:     suggestions,
		Navigator: navigator,
		Logger:    zl,
	}, service.ComposerConfig{
		DebounceDelay:  cfg.Booking.DebounceDelay,
		DefaultCabType: cfg.Booking.DefaultCabType,
	}, authenticator.CanProceed)

	negotiation := service.NewNegotiationService(cfg.Booking.DefaultPreferredPrice, navigator, zl)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		SessionHandler:     handler.NewSessionHandler(authenticator, drafts),
		DraftHandler:       handler.NewDraftHandler(drafts, negotiation),
		NegotiationHandler: handler.NewNegotiationHandler(negotiation),
		RedisClient:        redisClient,
		NewRelicApp:        nrApp,
		Logger:             zl,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, drafts, nil
}
