// Package cuckoomap implements a lock-free int64-to-int64 map using
// cuckoo hashing with a revision-guarded read protocol: readers never
// block and never take a lock, and writers coordinate purely through
// compare-and-swap on individual bucket fields.
package cuckoomap

import (
	"sync/atomic"
)

// Map is a concurrent int64->int64 map. The zero value is not usable; use
// New.
type Map struct {
	tbl         atomic.Pointer[table]
	rehashCount atomic.Uint32
	metrics     *Metrics
	bumpDepth   int
}

// Option configures a Map at construction time.
type Option func(*Map)

// WithMetrics attaches a Metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(mp *Map) { mp.metrics = m }
}

// WithMaxBumpDepth overrides how many evictions a single insert will
// chase before reporting needsRehash, in place of the package default.
func WithMaxBumpDepth(depth int) Option {
	return func(mp *Map) { mp.bumpDepth = depth }
}

// New creates a Map with an initial capacity hint. Following the table's
// load-factor target, the actual starting capacity is rounded up to the
// smallest prime >= 2*capacityHint+1, with a floor of 7 buckets.
func New(capacityHint int, opts ...Option) *Map {
	m := &Map{metrics: newMetrics(), bumpDepth: maxBumpDepth}
	for _, opt := range opts {
		opt(m)
	}
	m.tbl.Store(newTable(2*capacityHint+1, m.bumpDepth))
	return m
}

func (m *Map) loadTable() *table {
	t := m.tbl.Load()
	if t == nil {
		return m.waitForTable()
	}
	return t
}

// Get returns the value stored for k, or absent if no such key exists.
func (m *Map) Get(k, absent int64) int64 {
	v, ok := m.loadTable().lookup(k)
	if !ok {
		return absent
	}
	return v
}

// ContainsKey reports whether k is present.
func (m *Map) ContainsKey(k int64) bool {
	_, ok := m.loadTable().lookup(k)
	return ok
}

// ContainsValue reports whether any entry currently holds value v. This is
// inherently best-effort: a concurrent Put/Remove may make the answer
// stale the instant it's returned.
func (m *Map) ContainsValue(v int64) bool {
	return m.loadTable().containsValue(v)
}

// Put inserts or updates k, returning the previous value or Sentinel if
// k had none.
func (m *Map) Put(k, v int64) int64 {
	for {
		t := m.loadTable()
		result, previous := t.insert(k, v)
		if result == needsRehash {
			m.metrics.recordBump()
			m.rehash(t)
			continue
		}
		if result == insertedNew {
			m.metrics.recordPut()
		}
		return previous
	}
}

// PutOr behaves like Put but returns absent, rather than Sentinel, when k
// had no previous value.
func (m *Map) PutOr(k, v, absent int64) int64 {
	prev := m.Put(k, v)
	if prev == Sentinel {
		return absent
	}
	return prev
}

// PutIfAbsent inserts v for k only if k is not already present. It
// returns the value now associated with k: the newly inserted v, or
// whatever was already there.
func (m *Map) PutIfAbsent(k, v, absent int64) int64 {
	for {
		t := m.loadTable()
		if existing, ok := t.lookup(k); ok {
			return existing
		}
		result, previous := t.insert(k, v)
		if result == needsRehash {
			m.metrics.recordBump()
			m.rehash(t)
			continue
		}
		if result == updatedExisting {
			// A racing writer inserted between our lookup and insert;
			// previous is what they wrote.
			return previous
		}
		m.metrics.recordPut()
		return v
	}
}

// ComputeIfAbsent returns k's current value, or computes one with factory,
// stores it, and returns that if k was absent. factory may be called more
// than once if a racing writer also inserts k first; only one computed
// value is kept.
func (m *Map) ComputeIfAbsent(k int64, factory func(int64) int64) int64 {
	for {
		t := m.loadTable()
		if existing, ok := t.lookup(k); ok {
			return existing
		}
		v := factory(k)
		result, previous := t.insert(k, v)
		if result == needsRehash {
			m.metrics.recordBump()
			m.rehash(t)
			continue
		}
		if result == updatedExisting {
			return previous
		}
		m.metrics.recordPut()
		return v
	}
}

// Remove deletes k if present, returning its value, or absent if k was
// not present.
func (m *Map) Remove(k, absent int64) int64 {
	prev, ok := m.loadTable().remove(k)
	if !ok {
		return absent
	}
	m.metrics.recordRemove()
	return prev
}

// Clear discards every entry by swapping in a fresh, empty table at the
// current capacity.
func (m *Map) Clear() {
	old := m.loadTable()
	fresh := newTable(old.capacity, m.bumpDepth)
	m.tbl.Store(fresh)
}

// Capacity returns the number of buckets in the current table generation.
func (m *Map) Capacity() int {
	return m.loadTable().capacity
}

// RehashCount returns how many rehashes have been attempted, including
// any that rolled back. It only ever increases.
func (m *Map) RehashCount() uint32 {
	return m.rehashCount.Load()
}
