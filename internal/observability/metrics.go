package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	totalDuration map[string]time.Duration
	fallbacks     int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests         map[string]int64   `json:"requests"`
	Errors           map[string]int64   `json:"errors"`
	AvgLatencyMillis map[string]float64 `json:"avg_latency_ms"`
	IdentityFallback int64              `json:"identity_fallbacks"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		totalDuration: make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.totalDuration[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordIdentityFallback counts placeholder identities served to callers.
func (m *Metrics) RecordIdentityFallback() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Requests:         map[string]int64{},
		Errors:           map[string]int64{},
		AvgLatencyMillis: map[string]float64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
		if v > 0 {
			snap.AvgLatencyMillis[k] = float64(m.totalDuration[k].Microseconds()) / 1000 / float64(v)
		}
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	snap.IdentityFallback = m.fallbacks
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
