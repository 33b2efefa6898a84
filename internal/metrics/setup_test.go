package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMain(m *testing.M) {
	// Initialize metrics once so parallel tests find the globals set
	_ = Init(prometheus.NewRegistry())

	m.Run()
}
