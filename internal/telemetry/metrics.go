// Package telemetry exposes Prometheus collectors for the server
package telemetry

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server reports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	readingsIngested *prometheus.CounterVec
	readingsRejected *prometheus.CounterVec
	connectedSensors prometheus.Gauge

	dbFlushes      *prometheus.CounterVec
	dbFlushedRows  prometheus.Counter
	dbFlushSeconds prometheus.Histogram
	dbDrops        prometheus.Counter

	catalogRequests *prometheus.CounterVec
	catalogSeconds  *prometheus.HistogramVec
	catalogCache    *prometheus.CounterVec

	prunedReadings prometheus.Counter
}

// New creates the collectors on a private registry with the Go and
// process collectors attached
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flaura",
			Name:      "http_requests_total",
			Help:      "HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flaura",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		readingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flaura",
			Name:      "readings_ingested_total",
			Help:      "Sensor readings accepted by transport.",
		}, []string{"transport"}),
		readingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flaura",
			Name:      "readings_rejected_total",
			Help:      "Sensor readings rejected by transport.",
		}, []string{"transport"}),
		connectedSensors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flaura",
			Name:      "sensor_connections",
			Help:      "Currently open sensor websocket connections.",
		}),
		dbFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flaura",
			Name:      "db_flushes_total",
			Help:      "Batch flushes by result.",
		}, []string{"result"}),
		dbFlushedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flaura",
			Name:      "db_flushed_readings_total",
			Help:      "Readings written by successful flushes.",
		}),
		dbFlushSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flaura",
			Name:      "db_flush_duration_seconds",
			Help:      "Batch flush durations.",
			Buckets:   prometheus.DefBuckets,
		}),
		dbDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flaura",
			Name:      "db_dropped_readings_total",
			Help:      "Readings dropped because the write queue was full.",
		}),
		catalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flaura",
			Name:      "catalog_requests_total",
			Help:      "Plant catalog requests by operation and result.",
		}, []string{"op", "result"}),
		catalogSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flaura",
			Name:      "catalog_request_duration_seconds",
			Help:      "Plant catalog request durations by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		catalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flaura",
			Name:      "catalog_cache_lookups_total",
			Help:      "Plant catalog cache lookups by operation and outcome.",
		}, []string{"op", "outcome"}),
		prunedReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flaura",
			Name:      "retention_pruned_readings_total",
			Help:      "Readings removed by the retention job.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.readingsIngested,
		m.readingsRejected,
		m.connectedSensors,
		m.dbFlushes,
		m.dbFlushedRows,
		m.dbFlushSeconds,
		m.dbDrops,
		m.catalogRequests,
		m.catalogSeconds,
		m.catalogCache,
		m.prunedReadings,
	)

	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the recorder
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// WrapHandler counts requests and their latency under route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ReadingIngested counts an accepted reading
func (m *Metrics) ReadingIngested(transport string) {
	if m == nil {
		return
	}
	m.readingsIngested.WithLabelValues(transport).Inc()
}

// ReadingRejected counts a reading that failed validation or decoding
func (m *Metrics) ReadingRejected(transport string) {
	if m == nil {
		return
	}
	m.readingsRejected.WithLabelValues(transport).Inc()
}

// SensorConnected tracks open sensor connections
func (m *Metrics) SensorConnected(delta int) {
	if m == nil {
		return
	}
	m.connectedSensors.Add(float64(delta))
}

// ObserveFlush records one DBWriter flush
func (m *Metrics) ObserveFlush(count int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.dbFlushSeconds.Observe(elapsed.Seconds())
	if err != nil {
		m.dbFlushes.WithLabelValues("error").Inc()
		return
	}
	m.dbFlushes.WithLabelValues("ok").Inc()
	m.dbFlushedRows.Add(float64(count))
}

// ObserveDrop records a reading dropped by the DBWriter
func (m *Metrics) ObserveDrop() {
	if m == nil {
		return
	}
	m.dbDrops.Inc()
}

// ObserveCatalogRequest records one upstream catalog call
func (m *Metrics) ObserveCatalogRequest(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.catalogRequests.WithLabelValues(op, result).Inc()
	m.catalogSeconds.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveCatalogCache records a catalog cache lookup
func (m *Metrics) ObserveCatalogCache(op string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.catalogCache.WithLabelValues(op, outcome).Inc()
}

// ObservePrune records readings removed by retention
func (m *Metrics) ObservePrune(deleted int64) {
	if m == nil {
		return
	}
	m.prunedReadings.Add(float64(deleted))
}
