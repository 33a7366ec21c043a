package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	for i := 1; i <= 100; i++ {
		m.Record("select", 200, time.Duration(i)*time.Millisecond)
	}
	m.Record("select", 406, time.Millisecond)
	m.Record("", 0, 0)
	m.addBytes(10, 20)
	m.addBytes(-1, 0)

	s := m.Snapshot()
	assert.EqualValues(t, 100, s.Requests["select"]["2xx"])
	assert.EqualValues(t, 1, s.Requests["select"]["4xx"])
	assert.EqualValues(t, 1, s.Requests["unknown"]["0xx"])
	assert.EqualValues(t, 10, s.BytesIn)
	assert.EqualValues(t, 20, s.BytesOut)

	lat := s.Latency["select"]
	assert.Equal(t, 101, lat.N)
	assert.InDelta(t, 50, lat.P50, 1)
	assert.InDelta(t, 95, lat.P95, 1)
	assert.LessOrEqual(t, lat.P95, lat.P99)
}

func TestMetricsWindowWraps(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < latencySamples+10; i++ {
		m.Record("blob_get", 200, 5*time.Millisecond)
	}
	lat := m.Snapshot().Latency["blob_get"]
	assert.Equal(t, latencySamples, lat.N)
	assert.Equal(t, 5.0, lat.P99)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.begin()
	m.Record("x", 200, time.Second)
	m.addBytes(1, 1)
	m.end()
	s := m.Snapshot()
	require.NotNil(t, s.Requests)
	assert.Empty(t, s.Requests)
}

func TestMetricsInflight(t *testing.T) {
	m := NewMetrics()
	m.begin()
	m.begin()
	m.end()
	assert.EqualValues(t, 1, m.Snapshot().Inflight)
}

func TestQuantile(t *testing.T) {
	assert.Equal(t, 7.0, quantile([]int64{7}, 0.99))
	assert.Equal(t, 15.0, quantile([]int64{10, 20}, 0.5))
	assert.Equal(t, 20.0, quantile([]int64{10, 20}, 1))
}
