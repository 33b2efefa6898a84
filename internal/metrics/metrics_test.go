package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestInitRegistersAllMetrics verifies that every metric appears once recorded
func TestInitRegistersAllMetrics(t *testing.T) {
	// Don't run in parallel since we're testing global state
	reg := prometheus.NewRegistry()
	if err := Init(reg); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	RecordRequest("GET", "/health", "OK")
	RecordRequestDuration("GET", "/health", "OK", 0.01)
	RecordAuthFailure("invalid_secret")
	ConnectionOpened("device")
	RecordScan("ENTRY", "granted")
	RecordBroadcast("member-update")
	RecordDroppedFrame()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}

	for _, want := range []string{
		"access_router_http_requests_total",
		"access_router_http_request_duration_seconds",
		"access_router_auth_failures_total",
		"access_router_connections",
		"access_router_scans_total",
		"access_router_broadcasts_total",
		"access_router_dropped_frames_total",
		"access_router_info",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered; found %v", want, names)
		}
	}
}

// TestRecordFunctionsDoNotPanic verifies that record functions handle nil metrics gracefully
func TestRecordFunctionsDoNotPanic(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Record function panicked: %v", r)
		}
	}()

	RecordRequest("GET", "/test", "200")
	RecordRequestDuration("GET", "/test", "200", 0.1)
	RecordAuthFailure("test_reason")
	ConnectionOpened("dashboard")
	ConnectionClosed("dashboard")
	RecordScan("EXIT", "denied")
	RecordBroadcast("staff-scan")
	RecordDroppedFrame()
}

func TestHandlerReturnsHTTPHandler(t *testing.T) {
	t.Parallel()
	if Handler() == nil {
		t.Fatal("Handler() returned nil")
	}
}

// TestConnectionGaugeTracksOpenAndClose checks the gauge goes up and back down
func TestConnectionGaugeTracksOpenAndClose(t *testing.T) {
	// Don't run in parallel - calls Init() which modifies global state
	reg := prometheus.NewRegistry()
	if err := Init(reg); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	ConnectionOpened("device")
	ConnectionOpened("device")
	ConnectionOpened("dashboard")
	ConnectionClosed("device")

	output, err := GetMetricsText(reg)
	if err != nil {
		t.Fatalf("GetMetricsText() error: %v", err)
	}

	for _, want := range []string{
		`access_router_connections{client_type="device"} 1`,
		`access_router_connections{client_type="dashboard"} 1`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

// TestRecordScanAndBroadcastLabels checks label values reach the output
func TestRecordScanAndBroadcastLabels(t *testing.T) {
	// Don't run in parallel - modifies global metrics state
	reg := prometheus.NewRegistry()
	if err := Init(reg); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	RecordScan("ENTRY", "granted")
	RecordScan("ENTRY", "granted")
	RecordScan("EXIT", "denied")
	RecordBroadcast("member-update")
	RecordDroppedFrame()
	RecordDroppedFrame()

	output, err := GetMetricsText(reg)
	if err != nil {
		t.Fatalf("GetMetricsText() error: %v", err)
	}
	if !strings.Contains(output, "# TYPE") {
		t.Error("Expected Prometheus format in output")
	}

	for _, want := range []string{
		`access_router_scans_total{location="ENTRY",outcome="granted"} 2`,
		`access_router_scans_total{location="EXIT",outcome="denied"} 1`,
		`access_router_broadcasts_total{type="member-update"} 1`,
		`access_router_dropped_frames_total 2`,
		`access_router_info{version="1.0.0"} 1`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output", want)
		}
	}
}

// TestInitRegistrationErrors tests that Init returns errors when metrics are already registered
func TestInitRegistrationErrors(t *testing.T) {
	reg := prometheus.NewRegistry()

	if err := Init(reg); err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	if err := Init(reg); err == nil {
		t.Fatal("expected error on duplicate registration, got nil")
	}
}
