package cuckoomap

import "sync/atomic"

// Metrics tracks put/remove/bump counters: how much work Put has had to
// do beyond a plain in-place update, surfaced for diagnostics export and
// tests.
type Metrics struct {
	puts    atomic.Int64
	removes atomic.Int64
	bumps   atomic.Int64
}

func newMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordPut()    { m.puts.Add(1) }
func (m *Metrics) recordRemove() { m.removes.Add(1) }
func (m *Metrics) recordBump()   { m.bumps.Add(1) }

// MetricsSnapshot is a read-only view of the current counters.
type MetricsSnapshot struct {
	Puts    int64
	Removes int64
	Bumps   int64
}

// Snapshot returns a point-in-time read of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Puts:    m.puts.Load(),
		Removes: m.removes.Load(),
		Bumps:   m.bumps.Load(),
	}
}

// Metrics exposes the Map's collector: the one passed to WithMetrics, or
// the default one New creates when that option is not given.
func (m *Map) Metrics() *Metrics {
	return m.metrics
}
