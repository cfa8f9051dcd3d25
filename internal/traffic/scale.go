package traffic

import (
	"math"

	"bikeflow/internal/domain"
)

// Marker radius ranges in pixels. A filtered view spreads over a wider range
// so that the smaller per-hour counts still differ visibly.
var (
	AnyTimeRadiusRange  = [2]float64{0, 25}
	FilteredRadiusRange = [2]float64{3, 50}
)

// RadiusScale maps traffic counts to marker radii on a square-root scale.
type RadiusScale struct {
	domainMax float64
	rangeMin  float64
	rangeMax  float64
}

// NewRadiusScale builds a scale over [0, maxTraffic]. maxTraffic is the
// unfiltered maximum; only the range depends on the filter.
func NewRadiusScale(maxTraffic int, filter domain.TimeFilter) RadiusScale {
	r := AnyTimeRadiusRange
	if !filter.IsAnyTime() {
		r = FilteredRadiusRange
	}
	return RadiusScale{
		domainMax: float64(maxTraffic),
		rangeMin:  r[0],
		rangeMax:  r[1],
	}
}

func (s RadiusScale) Range() [2]float64 {
	return [2]float64{s.rangeMin, s.rangeMax}
}

// Radius returns the marker radius for a traffic count. An empty domain maps
// everything to the bottom of the range.
func (s RadiusScale) Radius(traffic int) float64 {
	if s.domainMax <= 0 || traffic <= 0 {
		return s.rangeMin
	}
	t := math.Sqrt(float64(traffic)) / math.Sqrt(s.domainMax)
	return s.rangeMin + t*(s.rangeMax-s.rangeMin)
}
