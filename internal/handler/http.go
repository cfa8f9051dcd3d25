package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"

	"bikeflow/internal/domain"
	"bikeflow/internal/spatial"
	"bikeflow/internal/store"
	"bikeflow/internal/traffic"
	"bikeflow/pkg/timeofday"
)

const (
	defaultNearestLimit = 5
	maxNearestLimit     = 50
)

type HTTPHandler struct {
	store   *store.Store
	traffic *traffic.Service
	locale  monday.Locale
	logger  *slog.Logger
}

func NewHTTPHandler(store *store.Store, svc *traffic.Service, locale monday.Locale, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		store:   store,
		traffic: svc,
		locale:  locale,
		logger:  logger.With("handler", "http"),
	}
}

type StationsResponse struct {
	Stations   []domain.Station `json:"stations"`
	Count      int              `json:"count"`
	ServerTime time.Time        `json:"serverTime"`
}

func (h *HTTPHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	bbox, ok := bboxParam(w, r)
	if !ok {
		return
	}
	if !h.store.GetStats().IsLoaded {
		respondError(w, http.StatusServiceUnavailable, traffic.ErrNotLoaded.Error())
		return
	}

	stations := h.store.ListStations(bbox)
	respondJSON(w, http.StatusOK, StationsResponse{
		Stations:   stations,
		Count:      len(stations),
		ServerTime: time.Now(),
	})
}

type TrafficResponse struct {
	*traffic.View
	Count      int       `json:"count"`
	ServerTime time.Time `json:"serverTime"`
}

// GetTraffic serves the view for ?time=<minute|-1>, optionally clipped to
// ?bbox=minLat,minLon,maxLat,maxLon.
func (h *HTTPHandler) GetTraffic(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()
	start := time.Now()

	filter, ok := filterParam(w, r)
	if !ok {
		return
	}
	bbox, ok := bboxParam(w, r)
	if !ok {
		return
	}

	view, err := h.traffic.View(r.Context(), filter)
	if err != nil {
		h.respondViewError(w, err)
		return
	}
	if bbox != nil {
		view = view.InBBox(bbox)
	}

	h.logger.Debug("GetTraffic response",
		"filter", filter.String(),
		"stations", len(view.Stations),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	respondJSON(w, http.StatusOK, TrafficResponse{
		View:       view,
		Count:      len(view.Stations),
		ServerTime: time.Now(),
	})
}

func (h *HTTPHandler) GetStationTraffic(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	id := r.PathValue("station")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing station")
		return
	}
	filter, ok := filterParam(w, r)
	if !ok {
		return
	}

	view, err := h.traffic.View(r.Context(), filter)
	if err != nil {
		h.respondViewError(w, err)
		return
	}

	st, found := view.Station(id)
	if !found {
		respondError(w, http.StatusNotFound, "station not found")
		return
	}
	respondJSON(w, http.StatusOK, st)
}

type NearestResponse struct {
	Stations []spatial.StationDistance `json:"stations"`
	Count    int                       `json:"count"`
}

func (h *HTTPHandler) NearestStations(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		respondError(w, http.StatusBadRequest, "invalid lat/lon parameters")
		return
	}

	limit := defaultNearestLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxNearestLimit {
			respondError(w, http.StatusBadRequest, "invalid limit parameter: must be 1-50")
			return
		}
		limit = n
	}

	if !h.store.GetStats().IsLoaded {
		respondError(w, http.StatusServiceUnavailable, traffic.ErrNotLoaded.Error())
		return
	}

	nearest := spatial.Nearest(h.store.ListStations(nil), lat, lon, limit)
	respondJSON(w, http.StatusOK, NearestResponse{
		Stations: nearest,
		Count:    len(nearest),
	})
}

type LabelResponse struct {
	Filter  domain.TimeFilter `json:"filter"`
	Label   string            `json:"label"`
	AnyTime bool              `json:"anyTime"`
}

// TimeLabel returns the slider label for ?time=.
func (h *HTTPHandler) TimeLabel(w http.ResponseWriter, r *http.Request) {
	ServerStats.IncRequests()

	filter, ok := filterParam(w, r)
	if !ok {
		return
	}

	label, err := timeofday.Label(int(filter), h.locale)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, LabelResponse{
		Filter:  filter,
		Label:   label,
		AnyTime: filter.IsAnyTime(),
	})
}

func (h *HTTPHandler) respondViewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, traffic.ErrNotLoaded):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrInvalidTimeFilter):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("failed to build traffic view", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func filterParam(w http.ResponseWriter, r *http.Request) (domain.TimeFilter, bool) {
	filter, err := domain.ParseTimeFilter(r.URL.Query().Get("time"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid time parameter: must be -1 or 0-1439")
		return domain.AnyTime, false
	}
	return filter, true
}

func bboxParam(w http.ResponseWriter, r *http.Request) (*domain.BoundingBox, bool) {
	bboxStr := r.URL.Query().Get("bbox")
	if bboxStr == "" {
		return nil, true
	}
	parts := strings.Split(bboxStr, ",")
	if len(parts) != 4 {
		respondError(w, http.StatusBadRequest, "invalid bbox format: expected minLat,minLon,maxLat,maxLon")
		return nil, false
	}
	bbox, err := parseBBox(parts)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid bbox values: "+err.Error())
		return nil, false
	}
	return bbox, true
}

func parseBBox(parts []string) (*domain.BoundingBox, error) {
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	if vals[0] > vals[2] || vals[1] > vals[3] {
		return nil, errors.New("min must not exceed max")
	}
	return &domain.BoundingBox{
		MinLat: vals[0], MinLon: vals[1],
		MaxLat: vals[2], MaxLon: vals[3],
	}, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
