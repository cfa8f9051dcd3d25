package traffic

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"bikeflow/internal/domain"
	"bikeflow/pkg/timeofday"
)

var day = time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return day.Add(time.Duration(minutes) * time.Minute)
}

func trip(start, end string, startMin, endMin int) domain.Trip {
	return domain.Trip{
		StartStationID: start,
		EndStationID:   end,
		StartedAt:      at(startMin),
		EndedAt:        at(endMin),
	}
}

func TestComputeStationTrafficScenario(t *testing.T) {
	stations := []domain.Station{{ShortName: "A"}}
	trips := []domain.Trip{trip("A", "B", 0, 10), trip("B", "A", 20, 30)}

	got := ComputeStationTraffic(stations, trips)
	if len(got) != 1 {
		t.Fatalf("expected 1 station, got %d", len(got))
	}
	if got[0].Departures != 1 || got[0].Arrivals != 1 || got[0].TotalTraffic != 2 {
		t.Fatalf("unexpected counts: %+v", got[0])
	}
}

func TestComputeStationTrafficNoTrips(t *testing.T) {
	stations := []domain.Station{{ShortName: "A"}, {ShortName: "B"}, {ShortName: "C"}}
	for _, st := range ComputeStationTraffic(stations, nil) {
		if st.TotalTraffic != 0 || st.Arrivals != 0 || st.Departures != 0 {
			t.Fatalf("expected zero counts, got %+v", st)
		}
	}
}

func TestComputeStationTrafficKeepsOrder(t *testing.T) {
	stations := []domain.Station{{ShortName: "C"}, {ShortName: "A"}, {ShortName: "B"}}
	got := ComputeStationTraffic(stations, []domain.Trip{trip("A", "C", 0, 0)})
	for i, st := range got {
		if st.ShortName != stations[i].ShortName {
			t.Fatalf("position %d: got %s, want %s", i, st.ShortName, stations[i].ShortName)
		}
	}
}

func TestComputeStationTrafficSums(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ids := []string{"A", "B", "C", "D", "X", "Y"}
	stations := []domain.Station{{ShortName: "A"}, {ShortName: "B"}, {ShortName: "C"}, {ShortName: "D"}}

	trips := make([]domain.Trip, 500)
	for i := range trips {
		trips[i] = trip(ids[rng.Intn(len(ids))], ids[rng.Intn(len(ids))], rng.Intn(1440), rng.Intn(1440))
	}

	var dep, arr int
	for _, st := range ComputeStationTraffic(stations, trips) {
		dep += st.Departures
		arr += st.Arrivals
		if st.TotalTraffic != st.Departures+st.Arrivals {
			t.Fatalf("total mismatch: %+v", st)
		}
	}
	if dep > len(trips) || arr > len(trips) {
		t.Fatalf("sums exceed trip count: dep=%d arr=%d", dep, arr)
	}

	known := trips[:0:0]
	for _, tr := range trips {
		if tr.StartStationID <= "D" && tr.EndStationID <= "D" {
			known = append(known, tr)
		}
	}
	dep, arr = 0, 0
	for _, st := range ComputeStationTraffic(stations, known) {
		dep += st.Departures
		arr += st.Arrivals
	}
	if dep != len(known) || arr != len(known) {
		t.Fatalf("expected equality when all ids match: dep=%d arr=%d trips=%d", dep, arr, len(known))
	}
}

func TestComputeStationTrafficDoesNotMutateInput(t *testing.T) {
	stations := []domain.Station{{ShortName: "A", Name: "Alpha"}}
	before := append([]domain.Station(nil), stations...)
	_ = ComputeStationTraffic(stations, []domain.Trip{trip("A", "A", 0, 0)})
	if !reflect.DeepEqual(before, stations) {
		t.Fatal("input stations were modified")
	}
}

func TestFilterTripsByTimeAnyTimeIsIdentity(t *testing.T) {
	trips := []domain.Trip{trip("A", "B", 0, 10), trip("B", "A", 700, 800)}
	got := FilterTripsByTime(trips, domain.AnyTime)
	if !reflect.DeepEqual(got, trips) {
		t.Fatalf("expected identity, got %+v", got)
	}
}

func TestFilterTripsByTimeIncludedViaStart(t *testing.T) {
	trips := []domain.Trip{trip("A", "B", 540, 700)}
	got := FilterTripsByTime(trips, 600)
	if len(got) != 1 {
		t.Fatalf("trip starting 60 minutes before the filter should be kept, got %d", len(got))
	}
}

func TestFilterTripsByTimeWindowEdges(t *testing.T) {
	cases := []struct {
		start, end int
		keep       bool
	}{
		{540, 540, true},
		{660, 660, true},
		{539, 539, false},
		{661, 661, false},
		{300, 650, true},
		{0, 1439, false},
	}
	for _, c := range cases {
		got := FilterTripsByTime([]domain.Trip{trip("A", "B", c.start, c.end)}, 600)
		if (len(got) == 1) != c.keep {
			t.Fatalf("start=%d end=%d: keep=%v, want %v", c.start, c.end, len(got) == 1, c.keep)
		}
	}
}

func TestFilterTripsByTimeIgnoresDate(t *testing.T) {
	tr := domain.Trip{
		StartStationID: "A",
		EndStationID:   "B",
		StartedAt:      time.Date(2019, time.July, 4, 10, 15, 0, 0, time.UTC),
		EndedAt:        time.Date(2019, time.July, 4, 10, 30, 0, 0, time.UTC),
	}
	if len(FilterTripsByTime([]domain.Trip{tr}, 600)) != 1 {
		t.Fatal("trip on a different date should still match by time of day")
	}
}

func TestFilterTripsByTimePartition(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	trips := make([]domain.Trip, 300)
	for i := range trips {
		trips[i] = trip("A", "B", rng.Intn(1440), rng.Intn(1440))
	}

	const f = 480
	kept := FilterTripsByTime(trips, f)
	inWindow := func(tr domain.Trip) bool {
		s := timeofday.MinutesSinceMidnight(tr.StartedAt)
		e := timeofday.MinutesSinceMidnight(tr.EndedAt)
		return absDiff(s, f) <= 60 || absDiff(e, f) <= 60
	}

	for _, tr := range kept {
		if !inWindow(tr) {
			t.Fatalf("kept trip outside window: %+v", tr)
		}
	}

	expected := 0
	for _, tr := range trips {
		if inWindow(tr) {
			expected++
		}
	}
	if expected != len(kept) {
		t.Fatalf("kept %d trips, %d satisfy the window", len(kept), expected)
	}
}

func TestFilterTripsByTimePreservesOrder(t *testing.T) {
	trips := []domain.Trip{
		{RideID: "1", StartedAt: at(600), EndedAt: at(610)},
		{RideID: "2", StartedAt: at(100), EndedAt: at(110)},
		{RideID: "3", StartedAt: at(590), EndedAt: at(605)},
	}
	got := FilterTripsByTime(trips, 600)
	if len(got) != 2 || got[0].RideID != "1" || got[1].RideID != "3" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestRadiusScale(t *testing.T) {
	s := NewRadiusScale(100, domain.AnyTime)
	if r := s.Radius(0); r != 0 {
		t.Fatalf("Radius(0) = %v", r)
	}
	if r := s.Radius(100); r != 25 {
		t.Fatalf("Radius(100) = %v", r)
	}
	if r := s.Radius(25); r != 12.5 {
		t.Fatalf("Radius(25) = %v", r)
	}

	f := NewRadiusScale(100, 600)
	if f.Range() != [2]float64{3, 50} {
		t.Fatalf("unexpected filtered range %v", f.Range())
	}
	if r := f.Radius(0); r != 3 {
		t.Fatalf("filtered Radius(0) = %v", r)
	}
	if r := f.Radius(100); r != 50 {
		t.Fatalf("filtered Radius(100) = %v", r)
	}
}

func TestRadiusScaleEmptyDomain(t *testing.T) {
	s := NewRadiusScale(0, 600)
	if r := s.Radius(0); r != 3 {
		t.Fatalf("expected range minimum, got %v", r)
	}
}
