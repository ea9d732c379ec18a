package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/araddon/dateparse"

	"github.com/afroash/flaura/internal/models"
	"github.com/afroash/flaura/internal/storage"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	defaultDailyDays    = 7
	maxDailyDays        = 90
)

// StatsResponse combines the live cache, database and worker statistics
type StatsResponse struct {
	Live      LiveStats                      `json:"live"`
	Storage   *storage.StorageStats          `json:"storage"`
	Writer    *storage.DBWriterStats         `json:"writer,omitempty"`
	Retention *storage.RetentionCleanerStats `json:"retention,omitempty"`
	Sensors   []SensorConnection             `json:"connected_sensors"`
}

// handleCurrentReading returns the newest reading of sensor_id, or of any
// sensor when it is omitted
func (s *Server) handleCurrentReading(w http.ResponseWriter, r *http.Request) {
	reading, err := s.currentReading(r.Context(), r.URL.Query().Get("sensor_id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if reading == nil {
		writeError(w, s.logger, &APIError{Status: http.StatusNotFound, Message: "No readings available"})
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// handleReadingHistory pages through stored readings, newest first.
// Accepts start+end, before or after; without any it returns the latest.
func (s *Server) handleReadingHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	sensorID := q.Get("sensor_id")

	limit := defaultHistoryLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, s.logger, badRequest("limit must be a positive integer"))
			return
		}
		if n > maxHistoryLimit {
			n = maxHistoryLimit
		}
		limit = n
	}

	times := map[string]time.Time{}
	for _, name := range []string{"start", "end", "before", "after"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := dateparse.ParseIn(raw, time.UTC)
		if err != nil {
			writeError(w, s.logger, badRequest("invalid "+name+" timestamp"))
			return
		}
		times[name] = t
	}

	var readings []*models.Reading
	var err error
	start, hasStart := times["start"]
	end, hasEnd := times["end"]
	switch {
	case hasStart || hasEnd:
		if !hasEnd {
			end = time.Now().UTC()
		}
		if end.Before(start) {
			writeError(w, s.logger, badRequest("end is before start"))
			return
		}
		readings, err = s.store.GetReadingsInRange(ctx, sensorID, start, end, limit)
	case !times["before"].IsZero():
		readings, err = s.store.GetReadingsBefore(ctx, sensorID, times["before"], limit)
	case !times["after"].IsZero():
		readings, err = s.store.GetReadingsAfter(ctx, sensorID, times["after"], limit)
	default:
		if sensorID != "" {
			if cached := s.live.Latest(sensorID, limit); len(cached) == limit {
				writeJSON(w, http.StatusOK, cached)
				return
			}
		}
		readings, err = s.store.GetReadingsBefore(ctx, sensorID, time.Now().UTC().Add(time.Minute), limit)
	}
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if readings == nil {
		readings = []*models.Reading{}
	}

	writeJSON(w, http.StatusOK, readings)
}

// handleDailyStats returns per-day aggregates for the last days days
func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	days := defaultDailyDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxDailyDays {
			writeError(w, s.logger, badRequest("days must be between 1 and "+strconv.Itoa(maxDailyDays)))
			return
		}
		days = n
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	stats, err := s.store.GetDailyStats(r.Context(), r.URL.Query().Get("sensor_id"), start, end)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if stats == nil {
		stats = []storage.DailyStat{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	dbStats, err := s.store.GetStorageStats(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	resp := StatsResponse{
		Live:    s.live.Stats(),
		Storage: dbStats,
		Sensors: []SensorConnection{},
	}
	if s.writer != nil {
		ws := s.writer.Stats()
		resp.Writer = &ws
	}
	if s.retention != nil {
		rs := s.retention.Stats()
		resp.Retention = &rs
	}
	if s.stream != nil {
		resp.Sensors = s.stream.ActiveSensors()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"sensors": len(s.live.SensorIDs()),
	})
}
