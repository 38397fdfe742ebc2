package cuckoomap

import (
	"math"
	"sync/atomic"
)

// Sentinel is the reserved int64 used both as the "empty" marker for a
// bucket's key and as the "mutation in progress" marker for its value.
// Because it can never be a legal key or value, a reader can always tell
// a bucket apart from one that is mid-write.
const Sentinel = math.MinInt64

// bucket is one slot of a table: a KEY/VALUE/REVISION triple updated only
// through compare-and-swap, never under a lock. revision is bumped every
// time value transitions to or from Sentinel, which is what lets readers
// detect a write that happened mid-read.
type bucket struct {
	key      atomic.Int64
	value    atomic.Int64
	revision atomic.Int64
}

func (b *bucket) isEmpty() bool {
	return b.key.Load() == Sentinel
}

// load implements the revision-guarded read protocol for a bucket already
// known (or suspected) to hold key: read the revision, read the key, and
// only if it matches do we read the value — retrying if the value reads
// as Sentinel (a write is in flight) or if the revision changed under us.
func (b *bucket) load(key int64) (value int64, matched bool, retry bool) {
	rev1 := b.revision.Load()
	k := b.key.Load()
	if k != key {
		return 0, false, false
	}
	v := b.value.Load()
	if v == Sentinel {
		return 0, false, true
	}
	rev2 := b.revision.Load()
	if rev1 != rev2 {
		return 0, false, true
	}
	return v, true, false
}

// claimEmpty attempts to take ownership of an empty bucket for key. On
// success the bucket's key is set but its value is still Sentinel; the
// caller must follow up with installValue.
func (b *bucket) claimEmpty(key int64) bool {
	return b.key.CompareAndSwap(Sentinel, key)
}

// installValue publishes v into a bucket whose value is currently
// Sentinel (freshly claimed, or freshly vacated by beginUpdate), bumping
// the revision so any concurrent reader retries rather than observing a
// torn state.
func (b *bucket) installValue(v int64) {
	b.revision.Add(1)
	b.value.Store(v)
	b.revision.Add(1)
}

// beginUpdate vacates the current value (CAS old -> Sentinel) so the
// bucket can be safely mutated. Returns false if the value changed
// concurrently and the caller should retry.
func (b *bucket) beginUpdate(old int64) bool {
	if !b.value.CompareAndSwap(old, Sentinel) {
		return false
	}
	b.revision.Add(1)
	return true
}

// takeover flips a bucket's key from oldKey to newKey. The caller must
// already have vacated the value via beginUpdate so no reader can observe
// newKey paired with oldKey's value.
func (b *bucket) takeover(oldKey, newKey int64) bool {
	return b.key.CompareAndSwap(oldKey, newKey)
}
