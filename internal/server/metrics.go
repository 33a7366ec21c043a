package server

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const latencySamples = 1024

// Metrics keeps in-process request counters served by /v1/meta/stats.
// A nil *Metrics records nothing.
type Metrics struct {
	mu       sync.Mutex
	requests map[string]map[string]int64
	latency  map[string]*latencyRing

	inflight atomic.Int64
	bytesIn  atomic.Int64
	bytesOut atomic.Int64
}

// LatencyStats holds percentiles in milliseconds over the recent window.
type LatencyStats struct {
	P50 float64 `json:"p50_ms"`
	P95 float64 `json:"p95_ms"`
	P99 float64 `json:"p99_ms"`
	N   int     `json:"n"`
}

// Stats is a point-in-time copy of Metrics.
type Stats struct {
	Requests map[string]map[string]int64 `json:"requests"`
	Latency  map[string]LatencyStats     `json:"latency"`
	Inflight int64                       `json:"inflight"`
	BytesIn  int64                       `json:"bytes_in"`
	BytesOut int64                       `json:"bytes_out"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests: make(map[string]map[string]int64),
		latency:  make(map[string]*latencyRing),
	}
}

func (m *Metrics) begin() {
	if m != nil {
		m.inflight.Add(1)
	}
}

func (m *Metrics) end() {
	if m != nil {
		m.inflight.Add(-1)
	}
}

func (m *Metrics) addBytes(in, out int64) {
	if m == nil {
		return
	}
	if in > 0 {
		m.bytesIn.Add(in)
	}
	if out > 0 {
		m.bytesOut.Add(out)
	}
}

// Record counts one finished request under op and its status class.
func (m *Metrics) Record(op string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	class := "0xx"
	if status >= 100 && status < 1000 {
		class = strconv.Itoa(status/100) + "xx"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byClass := m.requests[op]
	if byClass == nil {
		byClass = make(map[string]int64)
		m.requests[op] = byClass
	}
	byClass[class]++
	ring := m.latency[op]
	if ring == nil {
		ring = &latencyRing{values: make([]int64, latencySamples)}
		m.latency[op] = ring
	}
	ring.add(dur.Milliseconds())
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Stats {
	out := Stats{
		Requests: map[string]map[string]int64{},
		Latency:  map[string]LatencyStats{},
	}
	if m == nil {
		return out
	}
	m.mu.Lock()
	for op, byClass := range m.requests {
		cp := make(map[string]int64, len(byClass))
		for class, n := range byClass {
			cp[class] = n
		}
		out.Requests[op] = cp
	}
	for op, ring := range m.latency {
		out.Latency[op] = ring.stats()
	}
	m.mu.Unlock()
	out.Inflight = m.inflight.Load()
	out.BytesIn = m.bytesIn.Load()
	out.BytesOut = m.bytesOut.Load()
	return out
}

// latencyRing is guarded by Metrics.mu.
type latencyRing struct {
	values []int64
	next   int
	full   bool
}

func (r *latencyRing) add(ms int64) {
	r.values[r.next] = ms
	r.next++
	if r.next == len(r.values) {
		r.next = 0
		r.full = true
	}
}

func (r *latencyRing) stats() LatencyStats {
	n := r.next
	if r.full {
		n = len(r.values)
	}
	if n == 0 {
		return LatencyStats{}
	}
	sorted := append([]int64(nil), r.values[:n]...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return LatencyStats{
		P50: quantile(sorted, 0.50),
		P95: quantile(sorted, 0.95),
		P99: quantile(sorted, 0.99),
		N:   n,
	}
}

// quantile interpolates linearly between the two nearest ranks.
func quantile(sorted []int64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return float64(sorted[len(sorted)-1])
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
