package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lumen-labs/lumen-gateway/internal/accounting"
	"github.com/lumen-labs/lumen-gateway/internal/auth"
	"github.com/lumen-labs/lumen-gateway/internal/cache"
	"github.com/lumen-labs/lumen-gateway/internal/config"
	"github.com/lumen-labs/lumen-gateway/internal/orchestrator"
	"github.com/lumen-labs/lumen-gateway/internal/params"
	"github.com/lumen-labs/lumen-gateway/internal/policy"
	"github.com/lumen-labs/lumen-gateway/internal/provider"
	"github.com/lumen-labs/lumen-gateway/internal/ratelimit"
	"github.com/lumen-labs/lumen-gateway/internal/telemetry"
	"github.com/lumen-labs/lumen-gateway/internal/tokenizer"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	cfg := loader.Config()
	if cfg.Server.Debug || cfg.Telemetry.LogLevel == "debug" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		slog.SetDefault(logger)
	}

	// Connect to PostgreSQL (usage accounting; optional)
	var dbPool *pgxpool.Pool
	if cfg.Database.Host != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			logger.Warn("failed to create database pool (usage accounting disabled)", "error", err)
		} else if err := pool.Ping(context.Background()); err != nil {
			logger.Warn("database not reachable (usage accounting disabled)", "error", err)
			pool.Close()
		} else {
			dbPool = pool
			defer dbPool.Close()
			logger.Info("database connected")
		}
	}

	// Connect to Redis (session cache, rate limits, optional cache backend)
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (session cache and rate limits disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	// Credential verification
	sessions := auth.NewSessionCache(rdb, cfg.Auth.SessionCacheTTL)
	verifier := auth.NewMultiVerifier(func() config.AuthConfig {
		return loader.Config().Auth
	}, sessions)

	// Policy authorization
	policyEval := policy.NewEvaluator(func() config.PolicyConfig {
		return loader.Config().Policy
	})
	if cfg.Policy.Enabled {
		if err := policyEval.Load(); err != nil {
			logger.Error("failed to load authorization policies", "error", err)
			os.Exit(1)
		}
	}
	loader.OnReload(func() {
		if !policyEval.Enabled() {
			return
		}
		if err := policyEval.Load(); err != nil {
			logger.Error("failed to reload authorization policies", "error", err)
		}
	})

	metrics := telemetry.NewMetrics()

	// Provider client
	providerCfg := func() config.ProviderConfig { return loader.Config().Provider }
	breaker := provider.NewCircuitBreaker(
		cfg.Provider.CircuitBreaker.FailureThreshold,
		cfg.Provider.CircuitBreaker.RecoveryProbeInterval,
	)
	adapter := provider.NewOpenAIAdapter(providerCfg)
	client := provider.NewClient(adapter, providerCfg, breaker, metrics.RecordUpstreamAttempt)

	// Response cache backend
	var store cache.Store
	switch {
	case cfg.Cache.Backend == "redis" && rdb != nil:
		store = cache.NewRedisStore(rdb, cfg.Cache.TTL)
		logger.Info("response cache backend: redis")
	default:
		store = cache.NewMemoryStore(cfg.Cache.MaxEntries, cfg.Cache.TTL)
		logger.Info("response cache backend: memory", "max_entries", cfg.Cache.MaxEntries)
	}

	orch := orchestrator.New(orchestrator.Options{
		Config:    loader.Config,
		Estimator: tokenizer.NewEstimator(),
		Resolver: params.NewResolver(func() config.GenerationConfig {
			return loader.Config().Generation
		}),
		Policy:   policyEval,
		Store:    store,
		Client:   client,
		Tokens:   ratelimit.NewTokenTracker(rdb),
		Recorder: accounting.NewRecorder(dbPool),
		Metrics:  metrics,
	})
	handler := orchestrator.NewHandler(orch)

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	// Unauthenticated routes
	r.Get("/lumen/v1/health", healthHandler)
	r.Get("/lumen/v1/auth/login", loginURLHandler(verifier))

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, metrics))
		r.Use(ratelimit.Middleware(ratelimit.NewLimiter(rdb), func() config.RateLimitConfig {
			return loader.Config().RateLimit
		}, metrics))
		r.Post("/v1/generate", handler.Generate)
	})

	// Metrics endpoint on its own port
	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics server starting", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

// loginURLHandler tells browser clients where to obtain a CAS ticket.
func loginURLHandler(verifier *auth.MultiVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"login_url": verifier.CAS().LoginURL(),
		})
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
