package ingestor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bikeflow/internal/domain"
	"bikeflow/internal/store"
	"bikeflow/pkg/bluebikes"
)

type FeedClient interface {
	FetchStations(ctx context.Context) ([]domain.Station, error)
	FetchTrips(ctx context.Context, cacheDir string) (*bluebikes.TripFeed, error)
}

// Ingestor loads the two feeds into the store. A failed load is logged and
// leaves the previous dataset (or none) in place.
type Ingestor struct {
	client          FeedClient
	store           *store.Store
	cacheDir        string
	refreshInterval time.Duration
	logger          *slog.Logger
	onUpdate        func(ctx context.Context, oldVersion string)

	mu       sync.RWMutex
	ready    bool
	lastErr  error
	lastLoad time.Time
}

func New(client FeedClient, store *store.Store, cacheDir string, refreshInterval time.Duration, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		client:          client,
		store:           store,
		cacheDir:        cacheDir,
		refreshInterval: refreshInterval,
		logger:          logger.With("component", "ingestor"),
	}
}

// Run loads once and then refreshes on the configured interval until ctx is
// done. A zero interval loads once.
func (i *Ingestor) Run(ctx context.Context) {
	_ = i.Load(ctx)

	if i.refreshInterval <= 0 {
		return
	}

	ticker := time.NewTicker(i.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = i.Load(ctx)
		}
	}
}

// Load fetches stations, then trips, and swaps them into the store.
func (i *Ingestor) Load(ctx context.Context) error {
	start := time.Now()
	i.logger.Info("starting feed load")

	stations, err := i.client.FetchStations(ctx)
	if err != nil {
		return i.fail(fmt.Errorf("load stations: %w", err))
	}

	feed, err := i.client.FetchTrips(ctx, i.cacheDir)
	if err != nil {
		return i.fail(fmt.Errorf("load trips: %w", err))
	}

	version := datasetVersion(stations, feed.Fingerprint)
	oldVersion := i.store.Version()

	if version == oldVersion {
		i.logger.Info("feeds unchanged", "version", version)
		i.succeed()
		return nil
	}

	i.store.Replace(stations, feed.Trips, version)
	i.succeed()

	if i.onUpdate != nil {
		i.onUpdate(ctx, oldVersion)
	}

	i.logger.Info("feed load completed",
		"version", version,
		"stations", len(stations),
		"trips", len(feed.Trips),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func datasetVersion(stations []domain.Station, tripFingerprint string) string {
	return prefix(tripFingerprint, 16) + prefix(bluebikes.StationsFingerprint(stations), 16)
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func (i *Ingestor) fail(err error) error {
	i.logger.Error("feed load failed", "error", err)
	i.mu.Lock()
	i.lastErr = err
	i.mu.Unlock()
	return err
}

func (i *Ingestor) succeed() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.ready {
		i.logger.Info("ingestor ready")
	}
	i.ready = true
	i.lastErr = nil
	i.lastLoad = time.Now()
}

func (i *Ingestor) IsReady() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.ready
}

// LastError returns the error of the most recent load, if it failed.
func (i *Ingestor) LastError() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lastErr
}

func (i *Ingestor) LastLoad() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.lastLoad
}

// SetOnUpdate registers fn to run after a new dataset is stored.
func (i *Ingestor) SetOnUpdate(fn func(ctx context.Context, oldVersion string)) {
	i.onUpdate = fn
}
