// Package spatial answers distance queries over station positions.
package spatial

import (
	"sort"

	"github.com/golang/geo/s2"

	"bikeflow/internal/domain"
)

const EarthRadiusMeters = 6371000.0

// DistanceMeters is the great-circle distance between two points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

type StationDistance struct {
	domain.Station
	DistanceMeters float64 `json:"distanceMeters"`
}

// Nearest returns up to limit stations ordered by distance from the point.
// Ties keep the input order.
func Nearest(stations []domain.Station, lat, lon float64, limit int) []StationDistance {
	origin := s2.LatLngFromDegrees(lat, lon)

	result := make([]StationDistance, len(stations))
	for i, st := range stations {
		d := origin.Distance(s2.LatLngFromDegrees(st.Lat, st.Lon)).Radians() * EarthRadiusMeters
		result[i] = StationDistance{Station: st, DistanceMeters: d}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DistanceMeters < result[j].DistanceMeters
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
