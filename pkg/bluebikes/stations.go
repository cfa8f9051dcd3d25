package bluebikes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"bikeflow/internal/domain"
)

const stationsFeed = "stations"

type stationsResponse struct {
	Data struct {
		Stations []apiStation `json:"stations"`
	} `json:"data"`
}

type apiStation struct {
	ShortName string     `json:"short_name"`
	Name      string     `json:"name"`
	Lat       flexNumber `json:"lat"`
	Lon       flexNumber `json:"lon"`
	Capacity  flexNumber `json:"capacity"`
}

// flexNumber accepts both 42.1 and "42.1"; the feed has used both.
type flexNumber struct {
	raw   string
	value float64
	set   bool
	err   error
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	s := string(b)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	n.raw = s
	n.set = true
	if strings.TrimSpace(s) == "" {
		n.set = false
		return nil
	}
	n.value, n.err = strconv.ParseFloat(strings.TrimSpace(s), 64)
	return nil
}

func (c *Client) FetchStations(ctx context.Context) ([]domain.Station, error) {
	data, err := c.download(ctx, stationsFeed, c.stationsURL, "application/json")
	if err != nil {
		return nil, err
	}
	stations, err := ParseStations(data)
	if err != nil {
		return nil, err
	}
	c.logger.Info("parsed station feed", "count", len(stations))
	return stations, nil
}

// ParseStations decodes the station feed document and validates every record.
func ParseStations(data []byte) ([]domain.Station, error) {
	var resp stationsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding stations: %w", err)
	}
	if len(resp.Data.Stations) == 0 {
		return nil, fmt.Errorf("%s: %w", stationsFeed, ErrEmptyFeed)
	}

	result := make([]domain.Station, 0, len(resp.Data.Stations))
	seen := make(map[string]struct{}, len(resp.Data.Stations))

	for i, as := range resp.Data.Stations {
		lat, err := requireNumber(i, "lat", as.Lat)
		if err != nil {
			return nil, err
		}
		lon, err := requireNumber(i, "lon", as.Lon)
		if err != nil {
			return nil, err
		}
		capacity := 0
		if as.Capacity.set && as.Capacity.err == nil {
			capacity = int(as.Capacity.value)
		}

		st := domain.Station{
			ShortName: strings.TrimSpace(as.ShortName),
			Name:      as.Name,
			Lat:       lat,
			Lon:       lon,
			Capacity:  capacity,
		}
		if err := st.Validate(); err != nil {
			return nil, &MalformedRecordError{Feed: stationsFeed, Line: i, Field: "station", Value: as.ShortName, Err: err}
		}
		if _, dup := seen[st.ShortName]; dup {
			return nil, &MalformedRecordError{Feed: stationsFeed, Line: i, Field: "short_name", Value: st.ShortName, Err: fmt.Errorf("duplicate short_name")}
		}
		seen[st.ShortName] = struct{}{}

		result = append(result, st)
	}

	return result, nil
}

func requireNumber(index int, field string, n flexNumber) (float64, error) {
	if !n.set {
		return 0, &MalformedRecordError{Feed: stationsFeed, Line: index, Field: field, Err: fmt.Errorf("missing value")}
	}
	if n.err != nil {
		return 0, &MalformedRecordError{Feed: stationsFeed, Line: index, Field: field, Value: n.raw, Err: n.err}
	}
	return n.value, nil
}
