package bluebikes

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"bikeflow/internal/domain"
)

const tripsFeed = "trips"

var requiredTripColumns = []string{"start_station_id", "end_station_id", "started_at", "ended_at"}

// Fractional seconds are accepted by time.Parse without being in the layout.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
}

// TripFeed is a downloaded trip CSV with its parsed records.
type TripFeed struct {
	Trips       []domain.Trip
	Fingerprint string
}

// FetchTrips downloads the trip CSV and parses it, reusing a previous parse
// of identical content from cacheDir when one exists. An empty cacheDir
// disables the parse cache.
func (c *Client) FetchTrips(ctx context.Context, cacheDir string) (*TripFeed, error) {
	data, err := c.download(ctx, tripsFeed, c.tripsURL, "text/csv")
	if err != nil {
		return nil, err
	}

	fingerprint := DataFingerprint(data, c.location.String())

	if cacheDir != "" {
		trips, path, err := LoadParsedTrips(cacheDir, fingerprint)
		if err == nil {
			c.logger.Info("loaded parsed trip cache", "path", path, "trips", len(trips))
			return &TripFeed{Trips: trips, Fingerprint: fingerprint}, nil
		}
		c.logger.Info("parsed trip cache miss, parsing CSV", "path", path, "error", err)
	}

	start := time.Now()
	trips, err := ParseTrips(bytes.NewReader(data), c.location)
	if err != nil {
		return nil, err
	}
	c.logger.Info("parsed trip feed",
		"count", len(trips),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if cacheDir != "" {
		if path, err := SaveParsedTrips(cacheDir, fingerprint, trips); err != nil {
			c.logger.Warn("failed to persist parsed trip cache", "error", err)
		} else {
			c.logger.Info("persisted parsed trip cache", "path", path)
		}
	}

	return &TripFeed{Trips: trips, Fingerprint: fingerprint}, nil
}

// ParseTrips reads a trip CSV with a header row. Columns are found by name;
// extra columns are ignored.
func ParseTrips(r io.Reader, loc *time.Location) ([]domain.Trip, error) {
	if loc == nil {
		loc = time.UTC
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w", tripsFeed, ErrEmptyFeed)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", tripsFeed, err)
	}

	idx := makeIndex(header)
	for _, col := range requiredTripColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%s: %w: %s", tripsFeed, ErrMissingColumn, col)
		}
	}

	var trips []domain.Trip
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", tripsFeed, err)
		}

		line, _ := cr.FieldPos(0)

		startedAt, err := parseTimestamp(getField(record, idx, "started_at"), loc)
		if err != nil {
			return nil, &MalformedRecordError{Feed: tripsFeed, Line: line, Field: "started_at", Value: getField(record, idx, "started_at"), Err: err}
		}
		endedAt, err := parseTimestamp(getField(record, idx, "ended_at"), loc)
		if err != nil {
			return nil, &MalformedRecordError{Feed: tripsFeed, Line: line, Field: "ended_at", Value: getField(record, idx, "ended_at"), Err: err}
		}

		trips = append(trips, domain.Trip{
			RideID:         getField(record, idx, "ride_id"),
			StartStationID: strings.TrimSpace(getField(record, idx, "start_station_id")),
			EndStationID:   strings.TrimSpace(getField(record, idx, "end_station_id")),
			StartedAt:      startedAt,
			EndedAt:        endedAt,
		})
	}

	return trips, nil
}

func parseTimestamp(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format")
}

func makeIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		idx[name] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return record[i]
	}
	return ""
}
