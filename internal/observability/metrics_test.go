package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/tickets", "GET", 200, 30*time.Millisecond)
	m.RecordError("/api/tickets/:id", "POST", "CONFLICT")
	m.RecordIdentityFallback()

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.Requests["/api/tickets|GET|200"])
	assert.InDelta(t, 20.0, snap.AvgLatencyMillis["/api/tickets|GET|200"], 0.001)
	assert.EqualValues(t, 1, snap.Errors["/api/tickets/:id|POST|CONFLICT"])
	assert.EqualValues(t, 1, snap.IdentityFallback)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.RecordIdentityFallback()
	assert.Empty(t, m.Snapshot().Requests)
}
