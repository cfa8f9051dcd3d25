package traffic

import (
	"fmt"

	"github.com/goodsign/monday"

	"bikeflow/internal/domain"
	"bikeflow/internal/hub"
	"bikeflow/pkg/timeofday"
)

// View is everything the map needs to draw one state of the slider.
type View struct {
	Filter      domain.TimeFilter    `json:"filter"`
	Label       string               `json:"label"`
	Version     string               `json:"version"`
	TripCount   int                  `json:"tripCount"`
	MaxTraffic  int                  `json:"maxTraffic"`
	RadiusRange [2]float64           `json:"radiusRange"`
	Stations    []domain.StationView `json:"stations"`
}

type ViewOptions struct {
	TileZoom int
	Locale   monday.Locale
	Version  string
}

// BuildView filters trips, aggregates them per station and sizes a marker
// for every station. The radius domain is the unfiltered maximum so marker
// sizes stay comparable while the slider moves.
func BuildView(stations []domain.Station, trips []domain.Trip, filter domain.TimeFilter, opts ViewOptions) (*View, error) {
	if !filter.Valid() {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidTimeFilter, int(filter))
	}

	label, err := timeofday.Label(int(filter), opts.Locale)
	if err != nil {
		return nil, fmt.Errorf("format label: %w", err)
	}

	unfiltered := ComputeStationTraffic(stations, trips)
	counted := unfiltered
	filtered := trips
	if !filter.IsAnyTime() {
		filtered = FilterTripsByTime(trips, filter)
		counted = ComputeStationTraffic(stations, filtered)
	}

	maxTraffic := MaxTraffic(unfiltered)
	scale := NewRadiusScale(maxTraffic, filter)

	views := make([]domain.StationView, len(counted))
	for i, st := range counted {
		views[i] = domain.StationView{
			StationTraffic: st,
			Radius:         scale.Radius(st.TotalTraffic),
			TileID:         hub.TileID(st.Lat, st.Lon, opts.TileZoom),
			Tooltip:        Tooltip(st),
		}
	}

	return &View{
		Filter:      filter,
		Label:       label,
		Version:     opts.Version,
		TripCount:   len(filtered),
		MaxTraffic:  maxTraffic,
		RadiusRange: scale.Range(),
		Stations:    views,
	}, nil
}

// Tooltip is the hover text for a station marker.
func Tooltip(st domain.StationTraffic) string {
	return fmt.Sprintf("%d trips (%d departures, %d arrivals)", st.TotalTraffic, st.Departures, st.Arrivals)
}

// InTiles returns a copy of v holding only stations in the given tiles.
func (v *View) InTiles(tileIDs []string) *View {
	want := make(map[string]struct{}, len(tileIDs))
	for _, id := range tileIDs {
		want[id] = struct{}{}
	}
	return v.subset(func(s *domain.StationView) bool {
		_, ok := want[s.TileID]
		return ok
	})
}

// InBBox returns a copy of v holding only stations inside bbox.
func (v *View) InBBox(bbox *domain.BoundingBox) *View {
	return v.subset(func(s *domain.StationView) bool {
		return bbox.Contains(s.Lat, s.Lon)
	})
}

// Station looks up a single station view by short name.
func (v *View) Station(shortName string) (domain.StationView, bool) {
	for _, s := range v.Stations {
		if s.ShortName == shortName {
			return s, true
		}
	}
	return domain.StationView{}, false
}

func (v *View) subset(keep func(*domain.StationView) bool) *View {
	out := *v
	out.Stations = make([]domain.StationView, 0, len(v.Stations))
	for i := range v.Stations {
		if keep(&v.Stations[i]) {
			out.Stations = append(out.Stations, v.Stations[i])
		}
	}
	return &out
}
