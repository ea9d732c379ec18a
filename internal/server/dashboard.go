package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/afroash/flaura/internal/care"
	"github.com/afroash/flaura/internal/catalog"
	"github.com/afroash/flaura/internal/models"
)

// DashboardResponse is the plant dashboard: the plant, its space, the
// current reading and how each metric compares to the plant's ideals
type DashboardResponse struct {
	Plant       *models.Plant      `json:"plant"`
	Space       *models.Space      `json:"space"`
	Reading     *models.Reading    `json:"reading"`
	Metrics     []care.Metric      `json:"metrics"`
	Status      care.OverallStatus `json:"status"`
	LastUpdated *time.Time         `json:"lastUpdated"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserFromContext(ctx)
	spaceID := r.URL.Query().Get("spaceId")
	plantID := r.URL.Query().Get("plantId")

	if spaceID == "" || plantID == "" {
		writeError(w, s.logger, badRequest("spaceId and plantId are required"))
		return
	}

	space, err := s.store.GetSpace(ctx, userID, spaceID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	plant, err := s.store.GetPlant(ctx, userID, plantID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if plant.SpaceID != space.ID {
		writeError(w, s.logger, errNotFound)
		return
	}

	reading, err := s.currentReading(ctx, space.SensorID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	resp := DashboardResponse{
		Plant:   plant,
		Space:   space,
		Reading: reading,
		Metrics: []care.Metric{},
	}
	if reading != nil {
		resp.Metrics = s.evaluator.EvaluateSample(
			care.Sample{Temperature: reading.Temperature, Humidity: reading.Humidity, Brightness: reading.Brightness},
			care.Ideals{Temperature: plant.IdealTemperature, Brightness: plant.IdealBrightness},
		)
		resp.LastUpdated = &reading.CollectedAt
	}
	resp.Status = care.Overall(resp.Metrics)

	writeJSON(w, http.StatusOK, resp)
}

// handleMetrics returns the 24-slot hourly series, scoped to the device of
// the plant's space when plantId is given
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	hours := 0
	if raw := q.Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, s.logger, badRequest("hours must be a positive integer"))
			return
		}
		if _, err := s.series.ResolveHours(n); err != nil {
			writeError(w, s.logger, err)
			return
		}
		hours = n
	}

	sensorID := ""
	plantID := q.Get("plantId")
	if plantID != "" {
		userID := UserFromContext(ctx)
		plant, err := s.store.GetPlant(ctx, userID, plantID)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		space, err := s.store.GetSpace(ctx, userID, plant.SpaceID)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		sensorID = space.SensorID
	}

	series, err := s.series.Hourly(ctx, sensorID, hours)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	series.PlantID = plantID

	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, s.logger, badRequest("query is required"))
		return
	}

	results, err := s.catalog.Search(r.Context(), query)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if results == nil {
		results = []catalog.Summary{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleCatalogDetails(w http.ResponseWriter, r *http.Request) {
	item, err := s.catalog.Detail(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, catalog.ErrUnknownPlant) {
		writeError(w, s.logger, errNotFound)
		return
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog.BuildDetails(item))
}

// currentReading prefers the live cache and falls back to the database.
// It returns nil when the device has never reported.
func (s *Server) currentReading(ctx context.Context, sensorID string) (*models.Reading, error) {
	if r := s.live.Current(sensorID); r != nil {
		return r, nil
	}
	return s.store.GetLatestReading(ctx, sensorID)
}
