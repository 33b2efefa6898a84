// Package metrics provides Prometheus metrics collection for the access router.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "access_router"
	version   = "1.0.0"
)

var (
	// Global metrics - used by the application
	// Using atomic.Pointer for lock-free initialization checks on hot path metrics.
	requestsTotal      atomic.Pointer[prometheus.CounterVec]
	requestDuration    atomic.Pointer[prometheus.HistogramVec]
	authFailuresTotal  atomic.Pointer[prometheus.CounterVec]
	connections        atomic.Pointer[prometheus.GaugeVec]
	scansTotal         atomic.Pointer[prometheus.CounterVec]
	broadcastsTotal    atomic.Pointer[prometheus.CounterVec]
	droppedFramesTotal atomic.Pointer[prometheus.Counter]
)

// Init initializes all Prometheus metrics and registers them with the provided registry.
// This should be called once at application startup.
func Init(reg prometheus.Registerer) error {
	// HTTP request counter for the operational surface (health, ready, /api/*)
	requestsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the operational API",
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestsTotalVec); err != nil {
		return fmt.Errorf("failed to register requestsTotal: %w", err)
	}

	requestDurationVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestDurationVec); err != nil {
		return fmt.Errorf("failed to register requestDuration: %w", err)
	}

	// Auth failures: rejected handshakes and rejected bearer tokens
	authFailuresTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)
	if err := reg.Register(authFailuresTotalVec); err != nil {
		return fmt.Errorf("failed to register authFailuresTotal: %w", err)
	}

	connectionsVec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of authenticated live connections",
		},
		[]string{"client_type"},
	)
	if err := reg.Register(connectionsVec); err != nil {
		return fmt.Errorf("failed to register connections: %w", err)
	}

	scansTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of tag scans routed, by location and outcome",
		},
		[]string{"location", "outcome"},
	)
	if err := reg.Register(scansTotalVec); err != nil {
		return fmt.Errorf("failed to register scansTotal: %w", err)
	}

	broadcastsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Total number of fan-out events, by message type",
		},
		[]string{"type"},
	)
	if err := reg.Register(broadcastsTotalVec); err != nil {
		return fmt.Errorf("failed to register broadcastsTotal: %w", err)
	}

	droppedFrames := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "Total number of outbound frames dropped because a client queue was full",
		},
	)
	if err := reg.Register(droppedFrames); err != nil {
		return fmt.Errorf("failed to register droppedFrames: %w", err)
	}

	// Info gauge: static metric with constant label values for build info
	infoGaugeVec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Access router version and build information",
		},
		[]string{"version"},
	)
	infoGaugeInstance := infoGaugeVec.WithLabelValues(version)
	if err := reg.Register(infoGaugeVec); err != nil {
		return fmt.Errorf("failed to register infoGauge: %w", err)
	}
	infoGaugeInstance.Set(1)

	// Store metrics in atomics for lock-free access in record functions
	requestsTotal.Store(requestsTotalVec)
	requestDuration.Store(requestDurationVec)
	authFailuresTotal.Store(authFailuresTotalVec)
	connections.Store(connectionsVec)
	scansTotal.Store(scansTotalVec)
	broadcastsTotal.Store(broadcastsTotalVec)
	droppedFramesTotal.Store(&droppedFrames)

	return nil
}

// RecordRequest increments the requests counter for the given method, path, and status code.
// The path should be normalized (e.g., "/api/connections/:id").
func RecordRequest(method, path, statusCode string) {
	if counter := requestsTotal.Load(); counter != nil {
		counter.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordRequestDuration records the latency for a request in seconds.
func RecordRequestDuration(method, path, statusCode string, durationSeconds float64) {
	if histogram := requestDuration.Load(); histogram != nil {
		histogram.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
	}
}

// RecordAuthFailure increments the auth failures counter for the given reason.
// Common reasons: "missing_token", "invalid_token", "invalid_secret", "handshake_timeout".
func RecordAuthFailure(reason string) {
	if counter := authFailuresTotal.Load(); counter != nil {
		counter.WithLabelValues(reason).Inc()
	}
}

// ConnectionOpened increments the live connection gauge for the client type.
func ConnectionOpened(clientType string) {
	if gauge := connections.Load(); gauge != nil {
		gauge.WithLabelValues(clientType).Inc()
	}
}

// ConnectionClosed decrements the live connection gauge for the client type.
func ConnectionClosed(clientType string) {
	if gauge := connections.Load(); gauge != nil {
		gauge.WithLabelValues(clientType).Dec()
	}
}

// RecordScan counts one routed scan. Outcome is "granted", "denied", "error",
// or the name of the scan-mode path that consumed it.
func RecordScan(location, outcome string) {
	if counter := scansTotal.Load(); counter != nil {
		counter.WithLabelValues(location, outcome).Inc()
	}
}

// RecordBroadcast counts one fan-out event of the given message type.
func RecordBroadcast(msgType string) {
	if counter := broadcastsTotal.Load(); counter != nil {
		counter.WithLabelValues(msgType).Inc()
	}
}

// RecordDroppedFrame counts one frame dropped on a full client queue.
func RecordDroppedFrame() {
	if counter := droppedFramesTotal.Load(); counter != nil {
		(*counter).Inc()
	}
}

// Handler returns an HTTP handler for Prometheus metrics in text format.
// This handler should be registered at /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// GetMetricsText returns the Prometheus text-format output from a registry.
// This is useful for testing and debugging.
func GetMetricsText(reg prometheus.Gatherer) (string, error) {
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	body, err := io.ReadAll(w.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metrics output: %w", err)
	}

	return string(body), nil
}
