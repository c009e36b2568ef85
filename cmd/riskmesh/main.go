package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/riskmesh/riskmesh/internal/analytics"
	"github.com/riskmesh/riskmesh/internal/auth"
	"github.com/riskmesh/riskmesh/internal/cache"
	"github.com/riskmesh/riskmesh/internal/config"
	"github.com/riskmesh/riskmesh/internal/graph"
	"github.com/riskmesh/riskmesh/internal/graph/cluster"
	"github.com/riskmesh/riskmesh/internal/graph/propagate"
	"github.com/riskmesh/riskmesh/internal/guard"
	"github.com/riskmesh/riskmesh/internal/handler"
	"github.com/riskmesh/riskmesh/internal/metrics"
	"github.com/riskmesh/riskmesh/internal/risk/engine"
	"github.com/riskmesh/riskmesh/internal/sink"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	jwtExpiry, err := time.ParseDuration(cfg.JWTExpiry)
	if err != nil {
		return fmt.Errorf("parse JWT expiry: %w", err)
	}

	pool, err := sink.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if err := sink.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	g := graph.New()

	resultCache, err := newCache(cfg, logger)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	deadLetter := sink.NewDeadLetterProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer deadLetter.Close()

	postgresSink := sink.NewPostgresSink(pool)
	sinkPool := sink.NewPool(ctx, postgresSink, deadLetter, logger, sink.DefaultPoolConfig())

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	engineCfg := engine.Config{
		Propagation: propagate.Params{
			Alpha:     cfg.PropagationAlpha,
			MaxDepth:  cfg.PropagationMaxDepth,
			Threshold: cfg.PropagationThreshold,
		},
		Cluster: cluster.Params{
			RingMinSize:   cfg.RingMinSize,
			DenseMinRatio: cfg.DenseMinRatio,
			DenseMinNodes: cfg.DenseMinNodes,
			StarMinDegree: cfg.StarMinDegree,
			RingBoost:     cluster.DefaultParams().RingBoost,
			DenseBoost:    cluster.DefaultParams().DenseBoost,
			StarBoost:     cluster.DefaultParams().StarBoost,
		},
		DecayFactor:   cfg.DecayFactor,
		EventDeadline: time.Duration(cfg.EventDeadlineMS) * time.Millisecond,
	}
	riskEngine := engine.New(g, resultCache, sinkPool, m, logger, engineCfg)

	rateLimiter := guard.NewRateLimiter(guard.Config{
		DefaultCapacity:      cfg.RateLimitDefaultRPS,
		PerKeyCapacity:       parseRateLimitKeys(cfg.RateLimitKeys, logger),
		WindowSeconds:        cfg.RateLimitWindowSecs,
		DenyUnknownPrincipal: cfg.DenyUnknownPrincipal,
	})

	principalMgr := auth.NewPrincipalManager(cfg.JWTSecret, jwtExpiry)

	analyticsReader := analytics.NewReader(pool)
	performance := analytics.NewPerformance()

	ingestHandler := handler.NewIngestHandler(riskEngine, rateLimiter, performance)
	statsHandler := handler.NewStatsHandler(g, riskEngine)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsReader, performance)
	cacheHandler := handler.NewCacheHandler(resultCache)

	r := chi.NewRouter()

	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS(cfg.CORSAllowedOrigins))
	r.Use(handler.JSONContentType)

	r.Get("/health", handler.HealthHandler)
	r.Handle("/metrics", metrics.Handler(registry))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(principalMgr))

		r.Post("/v1/events", ingestHandler.Score)
		r.Get("/v1/stats", statsHandler.Get)
		r.Get("/v1/stats/entity/{type}/{id}", statsHandler.Entity)
		r.Get("/v1/cache/stats", cacheHandler.Stats)

		r.Route("/v1/analytics", func(r chi.Router) {
			r.Get("/distribution", analyticsHandler.Distribution)
			r.Get("/top-risky", analyticsHandler.TopRisky)
			r.Get("/users/{id}", analyticsHandler.UserProfile)
			r.Get("/performance", analyticsHandler.Performance)
		})
	})

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("riskmesh server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// newCache builds the cache backend named by cfg.CacheMode.
func newCache(cfg *config.Config, logger *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheMode {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		return cache.NewRedisCache(client, logger), nil
	default:
		return cache.New(), nil
	}
}

// parseRateLimitKeys parses "key1:rps1,key2:rps2" into a per-key capacity
// map. Malformed entries are skipped with a warning rather than failing
// startup over one bad override.
func parseRateLimitKeys(raw string, logger *slog.Logger) map[string]int {
	result := make(map[string]int)
	if raw == "" {
		return result
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			logger.Warn("skipping malformed rate limit entry", "entry", pair)
			continue
		}
		capacity, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			logger.Warn("skipping malformed rate limit entry", "entry", pair, "error", err)
			continue
		}
		result[strings.TrimSpace(parts[0])] = capacity
	}
	return result
}
