package bluebikes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bikeflow/internal/domain"
)

const stationsJSON = `{
  "data": {
    "stations": [
      {"short_name": "A32000", "name": "Fan Pier", "lat": 42.353391, "lon": -71.044571, "capacity": 15},
      {"short_name": "M32006", "name": "MIT at Mass Ave", "lat": "42.3581", "lon": "-71.093198", "capacity": "25"}
    ]
  }
}`

const tripsCSV = `ride_id,rideable_type,started_at,ended_at,start_station_id,end_station_id,is_member
R1,classic_bike,2024-03-01 08:55:12.123,2024-03-01 09:10:00,A32000,M32006,1
R2,electric_bike,2024-03-01 17:01:00,2024-03-01 17:30:45,M32006,,0
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseStations(t *testing.T) {
	stations, err := ParseStations([]byte(stationsJSON))
	if err != nil {
		t.Fatalf("ParseStations: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stations))
	}
	m := stations[1]
	if m.ShortName != "M32006" || m.Lat != 42.3581 || m.Lon != -71.093198 || m.Capacity != 25 {
		t.Fatalf("string-encoded numbers not decoded: %+v", m)
	}
}

func TestParseStationsMalformed(t *testing.T) {
	cases := map[string]string{
		"bad lat":       `{"data":{"stations":[{"short_name":"A","lat":"north","lon":1}]}}`,
		"missing lon":   `{"data":{"stations":[{"short_name":"A","lat":1}]}}`,
		"no short name": `{"data":{"stations":[{"short_name":"","lat":1,"lon":1}]}}`,
		"lat range":     `{"data":{"stations":[{"short_name":"A","lat":91,"lon":1}]}}`,
		"duplicate":     `{"data":{"stations":[{"short_name":"A","lat":1,"lon":1},{"short_name":"A","lat":2,"lon":2}]}}`,
	}
	for name, doc := range cases {
		_, err := ParseStations([]byte(doc))
		var mre *MalformedRecordError
		if !errors.As(err, &mre) {
			t.Fatalf("%s: expected MalformedRecordError, got %v", name, err)
		}
		if mre.Feed != "stations" {
			t.Fatalf("%s: unexpected feed %q", name, mre.Feed)
		}
	}
}

func TestParseStationsEmpty(t *testing.T) {
	if _, err := ParseStations([]byte(`{"data":{"stations":[]}}`)); !errors.Is(err, ErrEmptyFeed) {
		t.Fatalf("expected ErrEmptyFeed, got %v", err)
	}
	if _, err := ParseStations([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParseTrips(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	trips, err := ParseTrips(strings.NewReader(tripsCSV), loc)
	if err != nil {
		t.Fatalf("ParseTrips: %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(trips))
	}

	first := trips[0]
	if first.RideID != "R1" || first.StartStationID != "A32000" || first.EndStationID != "M32006" {
		t.Fatalf("unexpected trip %+v", first)
	}
	if first.StartedAt.Hour() != 8 || first.StartedAt.Minute() != 55 || first.StartedAt.Location() != loc {
		t.Fatalf("timestamp not parsed in feed location: %v", first.StartedAt)
	}
	if trips[1].EndStationID != "" {
		t.Fatalf("empty station id should be kept as unmatched, got %q", trips[1].EndStationID)
	}
}

func TestParseTripsConvertsOffsetsToFeedLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}
	doc := "started_at,ended_at,start_station_id,end_station_id\n" +
		"2024-03-01T15:00:00Z,2024-03-01 10:30:00,A,B\n" +
		"2024-03-01 16:15:00+00:00,2024-03-01 11:20:00,B,A\n"

	trips, err := ParseTrips(strings.NewReader(doc), loc)
	if err != nil {
		t.Fatalf("ParseTrips: %v", err)
	}

	cases := []struct {
		got  time.Time
		want int
	}{
		{trips[0].StartedAt, 600},
		{trips[0].EndedAt, 630},
		{trips[1].StartedAt, 675},
		{trips[1].EndedAt, 680},
	}
	for i, tc := range cases {
		minutes := tc.got.Hour()*60 + tc.got.Minute()
		if minutes != tc.want || tc.got.Location() != loc {
			t.Errorf("case %d: got minute %d in %v, want %d in %v", i, minutes, tc.got.Location(), tc.want, loc)
		}
	}
}

func TestParseTripsMissingColumn(t *testing.T) {
	_, err := ParseTrips(strings.NewReader("started_at,ended_at,start_station_id\n"), time.UTC)
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestParseTripsMalformedTimestamp(t *testing.T) {
	doc := "started_at,ended_at,start_station_id,end_station_id\n" +
		"2024-03-01 08:00:00,2024-03-01 08:10:00,A,B\n" +
		"yesterday,2024-03-01 08:10:00,A,B\n"
	_, err := ParseTrips(strings.NewReader(doc), time.UTC)

	var mre *MalformedRecordError
	if !errors.As(err, &mre) {
		t.Fatalf("expected MalformedRecordError, got %v", err)
	}
	if mre.Line != 3 || mre.Field != "started_at" || mre.Value != "yesterday" {
		t.Fatalf("unexpected error detail: %+v", mre)
	}
}

func TestParseTripsEmpty(t *testing.T) {
	if _, err := ParseTrips(strings.NewReader(""), time.UTC); !errors.Is(err, ErrEmptyFeed) {
		t.Fatalf("expected ErrEmptyFeed, got %v", err)
	}
}

func TestParseCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	trips := []domain.Trip{{RideID: "R1", StartStationID: "A", EndStationID: "B",
		StartedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), EndedAt: time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)}}

	fp := DataFingerprint([]byte("csv"), "UTC")
	if _, _, err := LoadParsedTrips(dir, fp); err == nil {
		t.Fatal("expected miss on empty cache")
	}
	if _, err := SaveParsedTrips(dir, fp, trips); err != nil {
		t.Fatalf("SaveParsedTrips: %v", err)
	}
	got, _, err := LoadParsedTrips(dir, fp)
	if err != nil {
		t.Fatalf("LoadParsedTrips: %v", err)
	}
	if len(got) != 1 || got[0].RideID != "R1" || !got[0].EndedAt.Equal(trips[0].EndedAt) {
		t.Fatalf("unexpected cached trips %+v", got)
	}
}

func TestDataFingerprintSalted(t *testing.T) {
	if DataFingerprint([]byte("x"), "UTC") == DataFingerprint([]byte("x"), "America/New_York") {
		t.Fatal("time zone must change the fingerprint")
	}
}

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("missing user agent")
		}
		switch r.URL.Path {
		case "/stations.json":
			w.Write([]byte(stationsJSON))
		case "/trips.csv":
			w.Write([]byte(tripsCSV))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/stations.json", srv.URL+"/trips.csv", time.UTC, 5*time.Second, testLogger())
	ctx := context.Background()

	stations, err := c.FetchStations(ctx)
	if err != nil || len(stations) != 2 {
		t.Fatalf("FetchStations: %v (%d)", err, len(stations))
	}

	dir := t.TempDir()
	feed, err := c.FetchTrips(ctx, dir)
	if err != nil || len(feed.Trips) != 2 || feed.Fingerprint == "" {
		t.Fatalf("FetchTrips: %v", err)
	}

	again, err := c.FetchTrips(ctx, dir)
	if err != nil || again.Fingerprint != feed.Fingerprint || len(again.Trips) != 2 {
		t.Fatalf("cached FetchTrips: %v", err)
	}
}

func TestClientFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, nil, time.Second, testLogger())
	if _, err := c.FetchStations(context.Background()); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
