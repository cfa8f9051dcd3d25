package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"

	"bikeflow/pkg/bluebikes"
	"bikeflow/pkg/timeofday"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	StationFeedURL      string
	TripFeedURL         string
	FeedTimeout         time.Duration
	FeedRefreshInterval time.Duration
	TripLocation        *time.Location
	ParseCacheDir       string

	TimeLocale     monday.Locale
	TileZoomLevel  int
	FilterDebounce time.Duration

	RedisEnabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	CacheTTL         time.Duration
	CacheWarmOnStart bool

	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	RateLimitWhitelist []string
}

func Load() (*Config, error) {
	tz := getEnv("TRIP_TIMEZONE", "America/New_York")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TRIP_TIMEZONE %q: %w", tz, err)
	}

	zoom := getIntEnv("TILE_ZOOM_LEVEL", 14)
	if zoom < 0 || zoom > 22 {
		return nil, fmt.Errorf("TILE_ZOOM_LEVEL must be between 0 and 22, got %d", zoom)
	}

	locale := monday.Locale(getEnv("TIME_LOCALE", string(monday.LocaleEnUS)))
	if !timeofday.ValidLocale(locale) {
		return nil, fmt.Errorf("invalid TIME_LOCALE %q", locale)
	}

	parseCacheDir := getEnv("PARSE_CACHE_DIR", bluebikes.DefaultParseCacheDir())
	if parseCacheDir == "off" {
		parseCacheDir = ""
	}

	return &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		StationFeedURL:      getEnv("STATION_FEED_URL", "https://dsc106.com/labs/lab07/data/bluebikes-stations.json"),
		TripFeedURL:         getEnv("TRIP_FEED_URL", "https://dsc106.com/labs/lab07/data/bluebikes-traffic-2024-03.csv"),
		FeedTimeout:         getDurationEnv("FEED_TIMEOUT", 2*time.Minute),
		FeedRefreshInterval: getDurationEnv("FEED_REFRESH_INTERVAL", 0),
		TripLocation:        loc,
		ParseCacheDir:       parseCacheDir,

		TimeLocale:     locale,
		TileZoomLevel:  zoom,
		FilterDebounce: getDurationEnv("FILTER_DEBOUNCE", 0),

		RedisEnabled:     getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getIntEnv("REDIS_DB", 0),
		CacheTTL:         getDurationEnv("CACHE_TTL", 24*time.Hour),
		CacheWarmOnStart: getBoolEnv("CACHE_WARM_ON_START", true),

		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 600),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
