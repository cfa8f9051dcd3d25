package domain

import (
	"fmt"
	"math"
)

// Station is a bike-share dock location from the station feed.
type Station struct {
	ShortName string  `json:"short_name"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Capacity  int     `json:"capacity"`
}

// Validate checks the fields the aggregation and the map depend on.
func (s Station) Validate() error {
	if s.ShortName == "" {
		return fmt.Errorf("missing short_name")
	}
	if math.IsNaN(s.Lat) || s.Lat < -90 || s.Lat > 90 {
		return fmt.Errorf("latitude out of range: %v", s.Lat)
	}
	if math.IsNaN(s.Lon) || s.Lon < -180 || s.Lon > 180 {
		return fmt.Errorf("longitude out of range: %v", s.Lon)
	}
	return nil
}

// StationTraffic is a station annotated with counts over one trip set.
// A fresh value is built for every aggregation.
type StationTraffic struct {
	Station
	Departures   int `json:"departures"`
	Arrivals     int `json:"arrivals"`
	TotalTraffic int `json:"totalTraffic"`
}

// StationView is what the map client draws for one station.
type StationView struct {
	StationTraffic
	Radius  float64 `json:"radius"`
	TileID  string  `json:"tileId"`
	Tooltip string  `json:"tooltip"`
}

// BoundingBox represents a geographic rectangle
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MaxLat float64 `json:"maxLat"`
	MinLon float64 `json:"minLon"`
	MaxLon float64 `json:"maxLon"`
}

// Contains checks if a point is within the bounding box
func (bb *BoundingBox) Contains(lat, lon float64) bool {
	return lat >= bb.MinLat && lat <= bb.MaxLat &&
		lon >= bb.MinLon && lon <= bb.MaxLon
}
