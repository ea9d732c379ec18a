package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/aggregate"
	"github.com/afroash/flaura/internal/catalog"
	"github.com/afroash/flaura/internal/storage"
)

// APIError is an error with a status code and a message safe to show clients
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

func badRequest(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: msg}
}

var (
	errUnauthorized = &APIError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	errNotFound     = &APIError{Status: http.StatusNotFound, Message: "Not found"}
)

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps err onto a status code. Anything unrecognised is logged
// and answered with a generic 500.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var apiErr *APIError
	var upErr *catalog.UpstreamError

	switch {
	case errors.As(err, &apiErr):
		writeJSON(w, apiErr.Status, errorBody{Error: apiErr.Message})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: errNotFound.Message})
	case errors.Is(err, aggregate.ErrInvalidHours):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, catalog.ErrUnknownPlant):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Unknown plant"})
	case errors.As(err, &upErr):
		logger.Warn().Err(err).Msg("Plant catalog unavailable")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "Plant catalog unavailable"})
	default:
		logger.Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal Server Error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// decodeJSON reads a request body of at most 1 MiB into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return badRequest("Invalid request body")
	}
	return nil
}
