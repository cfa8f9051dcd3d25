package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRIP_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.TileZoomLevel != 14 || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.FeedRefreshInterval != 0 || cfg.FilterDebounce != 0 {
		t.Fatal("refresh and debounce should be off by default")
	}
	if cfg.TimeLocale != "en_US" || cfg.TripLocation != time.UTC {
		t.Fatalf("unexpected locale/location: %v %v", cfg.TimeLocale, cfg.TripLocation)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRIP_TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FILTER_DEBOUNCE", "150ms")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.1, ,127.0.0.1")
	t.Setenv("PARSE_CACHE_DIR", "off")
	t.Setenv("READ_TIMEOUT", "not-a-duration")
	t.Setenv("TIME_LOCALE", "fr_FR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.FilterDebounce != 150*time.Millisecond || !cfg.RedisEnabled {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.RateLimitWhitelist) != 2 || cfg.RateLimitWhitelist[0] != "10.0.0.1" {
		t.Fatalf("unexpected whitelist %v", cfg.RateLimitWhitelist)
	}
	if cfg.ParseCacheDir != "" {
		t.Fatal("parse cache should be disabled")
	}
	if cfg.TimeLocale != "fr_FR" {
		t.Fatalf("unexpected locale %q", cfg.TimeLocale)
	}
	if cfg.ReadTimeout != 10*time.Second {
		t.Fatal("invalid duration should fall back to the default")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TRIP_TIMEZONE", "Mars/Olympus_Mons")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown time zone")
	}

	t.Setenv("TRIP_TIMEZONE", "UTC")
	t.Setenv("TILE_ZOOM_LEVEL", "40")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zoom out of range")
	}

	t.Setenv("TILE_ZOOM_LEVEL", "14")
	t.Setenv("TIME_LOCALE", "xx_YY")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown locale")
	}
}
