package traffic

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/goodsign/monday"

	"bikeflow/internal/cache"
	"bikeflow/internal/domain"
	"bikeflow/internal/store"
)

// ErrNotLoaded is returned while the feeds have not been loaded yet.
var ErrNotLoaded = errors.New("station data not loaded")

type DatasetSource interface {
	Snapshot() store.Dataset
}

// SharedCache is the optional cross-instance cache (Redis).
type SharedCache interface {
	Put(ctx context.Context, key string, value interface{}) error
	Fetch(ctx context.Context, key string, dest interface{}) (bool, error)
	DeletePattern(ctx context.Context, pattern string) error
}

type CacheCounters struct {
	Hits   int64
	Misses int64
}

// Service serves views of the current dataset. Views are immutable once
// built and may be shared between callers.
type Service struct {
	source   DatasetSource
	memo     *cache.MemoryCache
	shared   SharedCache
	tileZoom int
	locale   monday.Locale
	logger   *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewService wires the view pipeline. shared may be nil.
func NewService(source DatasetSource, memo *cache.MemoryCache, shared SharedCache, tileZoom int, locale monday.Locale, logger *slog.Logger) *Service {
	return &Service{
		source:   source,
		memo:     memo,
		shared:   shared,
		tileZoom: tileZoom,
		locale:   locale,
		logger:   logger.With("component", "traffic_service"),
	}
}

func (s *Service) View(ctx context.Context, filter domain.TimeFilter) (*View, error) {
	if !filter.Valid() {
		return nil, domain.ErrInvalidTimeFilter
	}

	ds := s.source.Snapshot()
	if !ds.Loaded() {
		return nil, ErrNotLoaded
	}

	key := cache.KeyTraffic(ds.Version, filter.String())

	if s.memo != nil {
		if v, ok := s.memo.Get(key); ok {
			s.hits.Add(1)
			return v.(*View), nil
		}
	}

	if s.shared != nil {
		var v View
		found, err := s.shared.Fetch(ctx, key, &v)
		if err != nil {
			s.logger.Warn("shared cache fetch failed", "key", key, "error", err)
		} else if found {
			s.hits.Add(1)
			s.remember(key, &v)
			return &v, nil
		}
	}

	s.misses.Add(1)
	start := time.Now()

	v, err := BuildView(ds.Stations, ds.Trips, filter, ViewOptions{
		TileZoom: s.tileZoom,
		Locale:   s.locale,
		Version:  ds.Version,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("built traffic view",
		"filter", filter.String(),
		"stations", len(v.Stations),
		"trips", v.TripCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	s.remember(key, v)
	if s.shared != nil {
		if err := s.shared.Put(ctx, key, v); err != nil {
			s.logger.Warn("shared cache put failed", "key", key, "error", err)
		}
	}

	return v, nil
}

// Warm builds the view for filter so later requests hit the cache.
func (s *Service) Warm(ctx context.Context, filter domain.TimeFilter) error {
	_, err := s.View(ctx, filter)
	return err
}

// Invalidate drops cached views of a dataset version that has been replaced.
func (s *Service) Invalidate(ctx context.Context, oldVersion string) {
	if s.memo != nil {
		s.memo.Flush()
	}
	if s.shared != nil && oldVersion != "" {
		if err := s.shared.DeletePattern(ctx, cache.KeyTrafficPattern(oldVersion)); err != nil {
			s.logger.Warn("failed to drop old views", "version", oldVersion, "error", err)
		}
	}
}

func (s *Service) Counters() CacheCounters {
	return CacheCounters{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
	}
}

func (s *Service) remember(key string, v *View) {
	if s.memo != nil {
		s.memo.Set(key, v)
	}
}
