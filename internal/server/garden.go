package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/afroash/flaura/internal/catalog"
	"github.com/afroash/flaura/internal/models"
)

type createSpaceRequest struct {
	Tag      string `json:"tag"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
	SensorID string `json:"sensorId"`
}

type createPlantRequest struct {
	APIID   string `json:"apiId"`
	SpaceID string `json:"spaceId"`
}

type wateredRequest struct {
	Watered *bool `json:"watered"`
}

func (s *Server) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.EnsureUser(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

func (s *Server) handleListSpaces(w http.ResponseWriter, r *http.Request) {
	spaces, err := s.store.ListSpaces(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if spaces == nil {
		spaces = []*models.Space{}
	}
	writeJSON(w, http.StatusOK, spaces)
}

func (s *Server) handleCreateSpace(w http.ResponseWriter, r *http.Request) {
	var req createSpaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		writeError(w, s.logger, badRequest("Invalid space name"))
		return
	}

	space := &models.Space{
		Tag:      tag,
		Color:    req.Color,
		Icon:     req.Icon,
		UserID:   UserFromContext(r.Context()),
		SensorID: strings.TrimSpace(req.SensorID),
	}
	if err := s.store.CreateSpace(r.Context(), space); err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.logger.Info().Str("space_id", space.ID).Str("user_id", space.UserID).Msg("Space created")
	writeJSON(w, http.StatusCreated, space)
}

func (s *Server) handleDeleteSpace(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.DeleteSpace(r.Context(), UserFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSpacePlants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserFromContext(ctx)
	spaceID := mux.Vars(r)["id"]

	if _, err := s.store.GetSpace(ctx, userID, spaceID); err != nil {
		writeError(w, s.logger, err)
		return
	}

	plants, err := s.store.ListPlants(ctx, userID, spaceID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if plants == nil {
		plants = []*models.Plant{}
	}
	writeJSON(w, http.StatusOK, plants)
}

// handleCreatePlant links a catalog record to a space. An unknown catalog
// id is rejected; an unreachable catalog still creates the plant, just
// without ideal values.
func (s *Server) handleCreatePlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserFromContext(ctx)

	var req createPlantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	req.APIID = strings.TrimSpace(req.APIID)
	if req.APIID == "" || req.SpaceID == "" {
		writeError(w, s.logger, badRequest("Invalid plant data"))
		return
	}

	if _, err := s.store.GetSpace(ctx, userID, req.SpaceID); err != nil {
		writeError(w, s.logger, err)
		return
	}

	plant := &models.Plant{APIID: req.APIID, SpaceID: req.SpaceID}

	item, err := s.catalog.Detail(ctx, req.APIID)
	var upErr *catalog.UpstreamError
	switch {
	case err == nil:
		s.applyReference(plant, item)
	case errors.As(err, &upErr):
		s.logger.Warn().Err(err).Str("api_id", req.APIID).Msg("Catalog unavailable, creating plant without ideal values")
	default:
		writeError(w, s.logger, err)
		return
	}

	if err := s.store.CreatePlant(ctx, plant); err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.logger.Info().Str("plant_id", plant.ID).Str("api_id", plant.APIID).Msg("Plant created")
	writeJSON(w, http.StatusCreated, plant)
}

func (s *Server) handleRefreshPlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	plant, err := s.store.GetPlant(ctx, UserFromContext(ctx), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	item, err := s.catalog.Detail(ctx, plant.APIID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.applyReference(plant, item)

	if err := s.store.UpdatePlantReference(ctx, plant); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plant)
}

func (s *Server) handleSetWatered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserFromContext(ctx)
	plantID := mux.Vars(r)["id"]

	var req wateredRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if req.Watered == nil {
		writeError(w, s.logger, badRequest("watered is required"))
		return
	}

	if err := s.store.SetPlantWatered(ctx, userID, plantID, *req.Watered); err != nil {
		writeError(w, s.logger, err)
		return
	}

	plant, err := s.store.GetPlant(ctx, userID, plantID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plant)
}

func (s *Server) handleDeletePlant(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePlant(r.Context(), UserFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyReference copies the derived catalog fields onto plant. Fields that
// fail to parse are logged and left empty.
func (s *Server) applyReference(plant *models.Plant, item *catalog.Item) {
	ref, errs := catalog.Derive(item)
	for _, err := range errs {
		s.logger.Warn().Err(err).Str("api_id", plant.APIID).Msg("Skipped catalog field")
	}

	plant.Name = ref.Name
	plant.IdealTemperature = ref.IdealTemperature
	plant.IdealBrightness = ref.IdealBrightness
	plant.ImageURL = ref.ImageURL
}
