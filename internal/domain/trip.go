package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Trip is one rental from the trip feed. Only the time of day of
// StartedAt and EndedAt is meaningful to the aggregation.
type Trip struct {
	RideID         string    `json:"ride_id,omitempty"`
	StartStationID string    `json:"start_station_id"`
	EndStationID   string    `json:"end_station_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
}

// TimeFilter selects trips near a minute of the day. AnyTime disables filtering.
type TimeFilter int

const (
	AnyTime TimeFilter = -1

	// MaxMinuteOfDay is the last minute of a day (23:59).
	MaxMinuteOfDay = 24*60 - 1

	// FilterWindowMinutes is how far either side of the filter a trip endpoint may fall.
	FilterWindowMinutes = 60
)

var ErrInvalidTimeFilter = errors.New("invalid time filter")

func (f TimeFilter) IsAnyTime() bool {
	return f == AnyTime
}

func (f TimeFilter) Valid() bool {
	return f == AnyTime || (f >= 0 && f <= MaxMinuteOfDay)
}

func (f TimeFilter) String() string {
	if f.IsAnyTime() {
		return "any"
	}
	return strconv.Itoa(int(f))
}

// ParseTimeFilter reads a slider value. An empty string means AnyTime.
func ParseTimeFilter(s string) (TimeFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AnyTime, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return AnyTime, fmt.Errorf("%w: %q is not an integer", ErrInvalidTimeFilter, s)
	}

	f := TimeFilter(v)
	if !f.Valid() {
		return AnyTime, fmt.Errorf("%w: %d outside [-1, %d]", ErrInvalidTimeFilter, v, MaxMinuteOfDay)
	}
	return f, nil
}
