// Package server implements the HTTP API, the sensor stream endpoint and
// the in-memory live reading cache.
package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/afroash/flaura/internal/aggregate"
	"github.com/afroash/flaura/internal/care"
	"github.com/afroash/flaura/internal/catalog"
	"github.com/afroash/flaura/internal/storage"
	"github.com/afroash/flaura/internal/telemetry"
)

// Options are the collaborators the API is built from. Writer, Retention,
// Stream and Metrics are optional.
type Options struct {
	Store     storage.Store
	Live      *LiveCache
	Series    *aggregate.Service
	Evaluator *care.Evaluator
	Catalog   catalog.Lookup
	Auth      *Authenticator
	Stream    *StreamHandler
	Writer    *storage.DBWriter
	Retention *storage.RetentionCleaner
	Metrics   *telemetry.Metrics

	AllowedOrigins []string
	Version        string
}

// Server serves the plant monitor API
type Server struct {
	store     storage.Store
	live      *LiveCache
	series    *aggregate.Service
	evaluator *care.Evaluator
	catalog   catalog.Lookup
	auth      *Authenticator
	stream    *StreamHandler
	writer    *storage.DBWriter
	retention *storage.RetentionCleaner
	metrics   *telemetry.Metrics

	allowedOrigins []string
	version        string
	started        time.Time
	logger         zerolog.Logger
}

// New creates a server
func New(opts Options, logger zerolog.Logger) *Server {
	if opts.Live == nil {
		opts.Live = NewLiveCache(0)
	}
	if opts.Evaluator == nil {
		opts.Evaluator = care.NewEvaluator(care.DefaultConfig())
	}

	return &Server{
		store:          opts.Store,
		live:           opts.Live,
		series:         opts.Series,
		evaluator:      opts.Evaluator,
		catalog:        opts.Catalog,
		auth:           opts.Auth,
		stream:         opts.Stream,
		writer:         opts.Writer,
		retention:      opts.Retention,
		metrics:        opts.Metrics,
		allowedOrigins: opts.AllowedOrigins,
		version:        opts.Version,
		started:        time.Now(),
		logger:         logger.With().Str("component", "api").Logger(),
	}
}

// Handler returns the fully wired HTTP handler
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/debug/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	if s.stream != nil {
		r.Handle("/sensor-stream", s.stream)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.auth.Middleware)

	api.HandleFunc("/auth-check", s.handleAuthCheck).Methods(http.MethodGet)
	api.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	api.HandleFunc("/plants", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/plants", s.handleCreatePlant).Methods(http.MethodPost)
	api.HandleFunc("/plants/{id}/refresh", s.handleRefreshPlant).Methods(http.MethodPost)
	api.HandleFunc("/plants/{id}/watered", s.handleSetWatered).Methods(http.MethodPost)
	api.HandleFunc("/plants/{id}", s.handleDeletePlant).Methods(http.MethodDelete)

	api.HandleFunc("/spaces", s.handleListSpaces).Methods(http.MethodGet)
	api.HandleFunc("/spaces", s.handleCreateSpace).Methods(http.MethodPost)
	api.HandleFunc("/spaces/{id}", s.handleDeleteSpace).Methods(http.MethodDelete)
	api.HandleFunc("/spaces/{id}/plants", s.handleSpacePlants).Methods(http.MethodGet)

	api.HandleFunc("/catalog/search", s.handleCatalogSearch).Methods(http.MethodGet)
	api.HandleFunc("/catalog/plants/{id}", s.handleCatalogDetails).Methods(http.MethodGet)

	api.HandleFunc("/readings/current", s.handleCurrentReading).Methods(http.MethodGet)
	api.HandleFunc("/readings/history", s.handleReadingHistory).Methods(http.MethodGet)
	api.HandleFunc("/readings/daily", s.handleDailyStats).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, s.logger, errNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, s.logger, &APIError{Status: http.StatusMethodNotAllowed, Message: "Method not allowed"})
	})

	var h http.Handler = r
	if len(s.allowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.allowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		)(h)
	}
	h = handlers.CustomLoggingHandler(io.Discard, h, s.logRequest)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)
	return h
}

// instrument records request metrics under the matched route template
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.WrapHandler(route, next).ServeHTTP(w, r)
	})
}

func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	event := s.logger.Info()
	if p.StatusCode >= http.StatusInternalServerError {
		event = s.logger.Warn()
	}
	event.
		Str("method", p.Request.Method).
		Str("path", p.URL.Path).
		Int("status", p.StatusCode).
		Int("size", p.Size).
		Dur("elapsed", time.Since(p.TimeStamp)).
		Msg("HTTP request")
}

type recoveryLogger struct {
	logger zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error().Interface("panic", v).Msg("Recovered from panic")
}
