package store

import (
	"sort"
	"sync"
	"time"

	"bikeflow/internal/domain"
)

// Dataset is one loaded pair of feeds. Trips are shared between snapshots
// and must be treated as read-only; stations are copied.
type Dataset struct {
	Stations []domain.Station
	Trips    []domain.Trip
	Version  string
	LoadedAt time.Time
}

func (d Dataset) Loaded() bool {
	return !d.LoadedAt.IsZero()
}

type Stats struct {
	StationCount int
	TripCount    int
	Version      string
	IsLoaded     bool
	LastUpdate   time.Time
}

type Store struct {
	mu       sync.RWMutex
	stations []domain.Station
	byName   map[string]int
	trips    []domain.Trip
	version  string

	lastUpdate time.Time
}

func New() *Store {
	return &Store{
		byName: make(map[string]int),
	}
}

// Replace swaps in a new dataset. The caller must not modify trips afterwards.
func (s *Store) Replace(stations []domain.Station, trips []domain.Trip, version string) {
	own := make([]domain.Station, len(stations))
	copy(own, stations)

	byName := make(map[string]int, len(own))
	for i, st := range own {
		byName[st.ShortName] = i
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stations = own
	s.byName = byName
	s.trips = trips
	s.version = version
	s.lastUpdate = time.Now()
}

func (s *Store) Snapshot() Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stations := make([]domain.Station, len(s.stations))
	copy(stations, s.stations)

	return Dataset{
		Stations: stations,
		Trips:    s.trips,
		Version:  s.version,
		LoadedAt: s.lastUpdate,
	}
}

func (s *Store) GetStation(shortName string) (domain.Station, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byName[shortName]
	if !ok {
		return domain.Station{}, false
	}
	return s.stations[i], true
}

// ListStations returns stations sorted by short name, optionally limited to bbox.
func (s *Store) ListStations(bbox *domain.BoundingBox) []domain.Station {
	s.mu.RLock()
	result := make([]domain.Station, 0, len(s.stations))
	for _, st := range s.stations {
		if bbox != nil && !bbox.Contains(st.Lat, st.Lon) {
			continue
		}
		result = append(result, st)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ShortName < result[j].ShortName
	})
	return result
}

func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		StationCount: len(s.stations),
		TripCount:    len(s.trips),
		Version:      s.version,
		IsLoaded:     !s.lastUpdate.IsZero(),
		LastUpdate:   s.lastUpdate,
	}
}
