package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"bikeflow/internal/cache"
	"bikeflow/internal/config"
	"bikeflow/internal/handler"
	"bikeflow/internal/hub"
	"bikeflow/internal/ingestor"
	"bikeflow/internal/middleware"
	"bikeflow/internal/store"
	"bikeflow/internal/traffic"
	"bikeflow/pkg/bluebikes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting bikeflow server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"redis_enabled", cfg.RedisEnabled,
		"tile_zoom", cfg.TileZoomLevel,
		"filter_debounce", cfg.FilterDebounce,
	)

	datasetStore := store.New()
	memo := cache.NewMemoryCache(cfg.CacheTTL)

	var shared traffic.SharedCache
	if cfg.RedisEnabled {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, logger)
		if err != nil {
			logger.Warn("redis unavailable, continuing with in-process cache only", "error", err)
		} else {
			defer redisCache.Close()
			shared = redisCache
		}
	}

	trafficSvc := traffic.NewService(datasetStore, memo, shared, cfg.TileZoomLevel, cfg.TimeLocale, logger)
	warmer := cache.NewCacheWarmer(trafficSvc, logger)
	wsHub := hub.NewHub(logger)

	feeds := bluebikes.New(cfg.StationFeedURL, cfg.TripFeedURL, cfg.TripLocation, cfg.FeedTimeout, logger)
	ing := ingestor.New(feeds, datasetStore, cfg.ParseCacheDir, cfg.FeedRefreshInterval, logger)

	httpHandler := handler.NewHTTPHandler(datasetStore, trafficSvc, cfg.TimeLocale, logger)
	wsHandler := handler.NewWSHandler(wsHub, trafficSvc, cfg.TileZoomLevel, cfg.FilterDebounce, logger)
	healthHandler := handler.NewHealthHandler(ing, datasetStore)
	statsHandler := handler.NewStatsHandler(datasetStore, trafficSvc)

	ing.SetOnUpdate(func(ctx context.Context, oldVersion string) {
		trafficSvc.Invalidate(ctx, oldVersion)
		if cfg.CacheWarmOnStart {
			if err := warmer.WarmAll(ctx); err != nil {
				logger.Warn("cache warm-up interrupted", "error", err)
			}
		}
		wsHub.Refresh(wsHandler.Render)
	})

	api := http.NewServeMux()
	api.HandleFunc("GET /v1/stations", httpHandler.ListStations)
	api.HandleFunc("GET /v1/stations/nearest", httpHandler.NearestStations)
	api.HandleFunc("GET /v1/traffic", httpHandler.GetTraffic)
	api.HandleFunc("GET /v1/traffic/{station}", httpHandler.GetStationTraffic)
	api.HandleFunc("GET /v1/time/label", httpHandler.TimeLabel)
	api.HandleFunc("GET /v1/stats", statsHandler.GetStats)
	api.HandleFunc("GET /healthz", healthHandler.Healthz)
	api.HandleFunc("GET /readyz", healthHandler.Readyz)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)
	limiter.OnBlocked(handler.ServerStats.IncRateLimitBlocked)

	// The websocket route skips gzip and request logging so the upgrade
	// reaches the raw connection.
	mux := http.NewServeMux()
	mux.Handle("/v1/ws", limiter.Middleware(http.HandlerFunc(wsHandler.ServeWS)))
	mux.Handle("/", limiter.Middleware(
		handler.CORSMiddleware(
			handler.GzipMiddleware(
				handler.LoggingMiddleware(logger)(api),
			),
		),
	))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go wsHub.Run(ctx)
	go limiter.Run(ctx)
	go ing.Run(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	cancel()

	logger.Info("shutdown complete")
}
