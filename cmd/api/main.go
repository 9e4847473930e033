package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/visioncraft/storefront/internal/audit"
	"github.com/visioncraft/storefront/internal/auth"
	"github.com/visioncraft/storefront/internal/checkout"
	"github.com/visioncraft/storefront/internal/config"
	"github.com/visioncraft/storefront/internal/database"
	"github.com/visioncraft/storefront/internal/handlers"
	"github.com/visioncraft/storefront/internal/logging"
	"github.com/visioncraft/storefront/internal/payment"
	"github.com/visioncraft/storefront/internal/routes"
	"github.com/visioncraft/storefront/internal/settings"
	"github.com/visioncraft/storefront/internal/store"
)

func main() {
	// 0. --- Load Environment Variables (.env) ---
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: Could not find or load .env file. Relying on system environment variables.")
	}

	// 1. --- Configuration & Logging ---
	configPath := os.Getenv("STOREFRONT_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// 2. --- Database ---
	db, err := database.OpenDB(ctx, &cfg.MySQL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.MySQL.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
	}

	// 3. --- Settings Cache (Redis optional) ---
	var cache settings.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis unavailable, using in-process settings cache", zap.Error(err))
		} else {
			cache = settings.NewRedisCache(rdb, cfg.Redis.TTL)
			logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}
		cancel()
	}

	// 4. --- Audit Sink (MongoDB optional) ---
	var sink audit.Sink = audit.NewLogSink(logger)
	if cfg.MongoDB.URI != "" {
		mongoSink, err := audit.NewMongoSink(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Collection, logger)
		if err != nil {
			logger.Warn("MongoDB unavailable, audit events go to the log only", zap.Error(err))
		} else {
			defer mongoSink.Close(context.Background())
			sink = mongoSink
			logger.Info("Connected to MongoDB audit store", zap.String("database", cfg.MongoDB.Database))
		}
	}

	// 5. --- Payment Provider ---
	var provider payment.Provider
	if cfg.Payment.StripeSecretKey != "" {
		stripeProvider, err := payment.NewStripeProvider(cfg.Payment.StripeSecretKey)
		if err != nil {
			logger.Fatal("Failed to create payment provider", zap.Error(err))
		}
		provider = stripeProvider
	} else {
		logger.Warn("No payment provider configured", zap.Bool("dev_intents", cfg.Payment.AllowDevFallback))
	}

	// 6. --- Services ---
	users := store.NewUserStore(db)
	carts := store.NewCartStore(db)
	orders := store.NewOrderStore(db)
	settingsService := settings.NewService(store.NewSettingsStore(db), cache, logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	coordinator := checkout.NewCoordinator(provider, orders, carts, settingsService, sink, logger, checkout.Options{
		AllowDevIntents: cfg.Payment.AllowDevFallback,
		ProviderTimeout: cfg.Payment.Timeout,
		DefaultCurrency: cfg.Payment.Currency,
	})

	app := &handlers.Handlers{
		Users:      users,
		Products:   store.NewProductStore(db),
		Categories: store.NewCategoryStore(db),
		Carts:      carts,
		Orders:     orders,
		Guard:      store.NewGuard(db),
		Checkout:   coordinator,
		Settings:   settingsService,
		Stats:      store.NewStatsStore(db),
		Tokens:     tokens,
		Audit:      sink,
		Logger:     logger,
	}

	// --- Router Setup ---
	router := routes.SetupRouter(app, routes.Options{
		Tokens:      tokens,
		Roles:       users,
		Maintenance: settingsService,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Start Server ---
	go func() {
		logger.Info("Starting storefront API server", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}
