package cache

import (
	"context"
	"log/slog"
	"time"

	"bikeflow/internal/domain"
)

// Viewer computes and caches the view for one filter value.
type Viewer interface {
	Warm(ctx context.Context, filter domain.TimeFilter) error
}

type CacheWarmer struct {
	views  Viewer
	logger *slog.Logger
}

func NewCacheWarmer(views Viewer, logger *slog.Logger) *CacheWarmer {
	return &CacheWarmer{
		views:  views,
		logger: logger.With("component", "cache_warmer"),
	}
}

// WarmFilters returns the slider positions worth precomputing: any time and
// every full hour.
func WarmFilters() []domain.TimeFilter {
	filters := make([]domain.TimeFilter, 0, 25)
	filters = append(filters, domain.AnyTime)
	for h := 0; h < 24; h++ {
		filters = append(filters, domain.TimeFilter(h*60))
	}
	return filters
}

func (w *CacheWarmer) WarmAll(ctx context.Context) error {
	start := time.Now()
	w.logger.Info("starting cache warming")

	warmed := 0
	for _, f := range WarmFilters() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.views.Warm(ctx, f); err != nil {
			w.logger.Warn("failed to warm filter", "filter", f.String(), "error", err)
			continue
		}
		warmed++
	}

	w.logger.Info("cache warming completed",
		"filters_warmed", warmed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
