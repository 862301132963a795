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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpAdapter "github.com/finvault/realtime-backend/internal/adapters/primary/http"
	mw "github.com/finvault/realtime-backend/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/finvault/realtime-backend/internal/adapters/primary/websocket"
	"github.com/finvault/realtime-backend/internal/adapters/secondary/postgres"
	redisAdapter "github.com/finvault/realtime-backend/internal/adapters/secondary/redis"
	"github.com/finvault/realtime-backend/internal/auth"
	"github.com/finvault/realtime-backend/internal/config"
	"github.com/finvault/realtime-backend/internal/core/services"
	"github.com/finvault/realtime-backend/internal/infrastructure/logging"
	"github.com/finvault/realtime-backend/internal/realtime/ratelimit"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Database Pool (user-record lookups for auth re-checks)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 4. Initialize Presence Store
	presenceStore, err := redisAdapter.NewPresenceStore(ctx, cfg.Redis.URL, cfg.Presence.TTL)
	if err != nil {
		logger.Error("failed to connect to presence store", "error", err)
		os.Exit(1)
	}
	defer presenceStore.Close()
	logger.Info("presence store connection established")

	// 5. Initialize Security & Real-time Components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)
	hub := wsAdapter.NewHub(logger)
	go hub.Run(ctx)

	// 6. Initialize Rate Limiters
	var ipLimiter *ratelimit.IPRateLimiter
	var socketLimiter *ratelimit.SocketRateLimiter
	var limiterCleanups []func()
	if cfg.RateLimit.Enabled {
		ipLimiter = ratelimit.NewIPRateLimiter(
			cfg.RateLimit.IPMaxRequests,
			cfg.RateLimit.IPWindow,
			cfg.RateLimit.IPBlockDuration,
			time.Now,
		)
		socketLimiter = ratelimit.NewSocketRateLimiter(
			cfg.RateLimit.UserMaxConnections,
			cfg.RateLimit.UserWindow,
			cfg.RateLimit.UserCooldown,
			time.Now,
		)
		limiterCleanups = []func(){ipLimiter.Cleanup, socketLimiter.Cleanup}
	}

	// 7. Dependency Injection (Wiring the Hexagon)

	// Repositories (Secondary Adapters)
	userRepo := postgres.NewUserRepository(pool)

	// Services (Core)
	authService := services.NewAuthService(tokenManager, userRepo)
	gateway := wsAdapter.NewGateway(hub, presenceStore, logger)
	dispatcher := services.NewEventDispatcher(hub, logger)

	// Background maintenance (roster rebroadcast, stale sweep, limiter eviction)
	maintenance := wsAdapter.NewMaintenance(gateway, wsAdapter.MaintenanceConfig{
		RosterInterval:  cfg.Presence.RosterInterval,
		SweepInterval:   cfg.Presence.SweepInterval,
		StaleAfter:      cfg.Presence.StaleAfter,
		CleanupInterval: cfg.RateLimit.CleanupInterval,
	}, limiterCleanups, logger)
	go maintenance.Run(ctx)

	// Handlers (Primary Adapters)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, gateway, authService, ipLimiter, socketLimiter, cfg, logger)
	broadcastHandler := httpAdapter.NewBroadcastHandler(dispatcher, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, presenceStore, hub, cfg.App.Version)

	// 8. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints (outside /api/v1 for standard probe paths)
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/live", healthHandler.HandleLiveness)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket route (Authentication is handled inside the handler)
		r.Get("/ws", wsHandler.ServeHTTP)
	})

	// Internal routes (trusted backend services only, guarded at the network
	// layer)
	r.Route("/internal/v1", broadcastHandler.RegisterRoutes)

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop admitting new connections first, then tear down the hub and the
	// background tasks.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	cancel()

	logger.Info("server shutdown complete")
}
