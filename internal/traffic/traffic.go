// Package traffic aggregates trips into per-station arrival and departure
// counts and turns them into the marker sizes the map draws.
package traffic

import (
	"bikeflow/internal/domain"
	"bikeflow/pkg/timeofday"
)

// FilterTripsByTime returns the trips with at least one endpoint within
// FilterWindowMinutes of filter. AnyTime returns trips unchanged.
// Relative order is preserved and trips is never modified.
func FilterTripsByTime(trips []domain.Trip, filter domain.TimeFilter) []domain.Trip {
	if filter.IsAnyTime() {
		return trips
	}

	f := int(filter)
	result := make([]domain.Trip, 0, len(trips)/4)
	for _, trip := range trips {
		started := timeofday.MinutesSinceMidnight(trip.StartedAt)
		ended := timeofday.MinutesSinceMidnight(trip.EndedAt)
		if absDiff(started, f) <= domain.FilterWindowMinutes || absDiff(ended, f) <= domain.FilterWindowMinutes {
			result = append(result, trip)
		}
	}
	return result
}

// ComputeStationTraffic counts departures and arrivals per station.
// The result is a new slice in the order of stations; trips that reference
// unknown stations are ignored and stations without trips get zero counts.
func ComputeStationTraffic(stations []domain.Station, trips []domain.Trip) []domain.StationTraffic {
	departures := make(map[string]int, len(stations))
	arrivals := make(map[string]int, len(stations))
	for _, trip := range trips {
		departures[trip.StartStationID]++
		arrivals[trip.EndStationID]++
	}

	result := make([]domain.StationTraffic, len(stations))
	for i, station := range stations {
		dep := departures[station.ShortName]
		arr := arrivals[station.ShortName]
		result[i] = domain.StationTraffic{
			Station:      station,
			Departures:   dep,
			Arrivals:     arr,
			TotalTraffic: dep + arr,
		}
	}
	return result
}

// MaxTraffic returns the largest TotalTraffic, or 0 for an empty slice.
func MaxTraffic(stations []domain.StationTraffic) int {
	highest := 0
	for _, s := range stations {
		if s.TotalTraffic > highest {
			highest = s.TotalTraffic
		}
	}
	return highest
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
