package core

import "sync/atomic"

// Metrics counts what the resource pipeline did. Workers bump the load
// counters concurrently so every field is atomic.
type Metrics struct {
	Requested atomic.Uint64
	Rejected  atomic.Uint64
	Spurious  atomic.Uint64
	Loaded    atomic.Uint64
	Failed    atomic.Uint64
	Requeued  atomic.Uint64
	Onlined   atomic.Uint64
	Offlined  atomic.Uint64
}

// MetricsSnapshot is a plain copy of Metrics, safe to compare and print.
type MetricsSnapshot struct {
	Requested uint64
	Rejected  uint64
	Spurious  uint64
	Loaded    uint64
	Failed    uint64
	Requeued  uint64
	Onlined   uint64
	Offlined  uint64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Requested: m.Requested.Load(),
		Rejected:  m.Rejected.Load(),
		Spurious:  m.Spurious.Load(),
		Loaded:    m.Loaded.Load(),
		Failed:    m.Failed.Load(),
		Requeued:  m.Requeued.Load(),
		Onlined:   m.Onlined.Load(),
		Offlined:  m.Offlined.Load(),
	}
}
