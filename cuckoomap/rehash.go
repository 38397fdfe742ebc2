package cuckoomap

import "runtime"

// maxGrowAttempts bounds how many times growTable will escalate to a
// larger prime capacity before giving up. Each failed attempt means the
// bump-eviction chain ran out of depth at that capacity; a miss this
// persistent signals something structurally wrong rather than a
// transient size guess, so it is reported rather than retried forever.
const maxGrowAttempts = 32

// rehash grows the table and relocates every live entry into it. Only one
// goroutine performs a given rehash: losers observe the table pointer
// swapped to nil and spin until the winner republishes a non-nil table.
// If the winner exhausts every capacity it tries it rolls back to the old
// one via a plain store — readers and writers that were spinning simply
// resume against the table they started with.
func (m *Map) rehash(old *table) {
	if !m.tbl.CompareAndSwap(old, nil) {
		// Someone else already won the race to rehash; just wait for them.
		m.waitForTable()
		return
	}

	grown, err := m.growTable(old)
	if err != nil {
		m.tbl.Store(old)
		return
	}
	m.tbl.Store(grown)
}

// growTable allocates a larger generation and copies every occupied
// bucket of old into it. A single doubling can still fail to place every
// entry within the bump-depth budget; when that happens growTable escalates
// to the next candidate prime and retries rather than giving up, since a
// larger prime is exactly what the cuckoo scheme calls for when a table is
// too full for its current size.
func (m *Map) growTable(old *table) (*table, error) {
	capacity := old.capacity*2 + 1
	for attempt := 0; attempt < maxGrowAttempts; attempt++ {
		m.rehashCount.Add(1)
		next := newTable(capacity, m.bumpDepth)
		if copyLiveEntries(next, old) {
			return next, nil
		}
		capacity = nextPrime(capacity*2 + 1)
	}
	return nil, ErrAllocationFailure
}

func copyLiveEntries(next, old *table) bool {
	for i := range old.buckets {
		b := &old.buckets[i]
		k := b.key.Load()
		if k == Sentinel {
			continue
		}
		v := b.value.Load()
		if v == Sentinel {
			// Bucket mid-mutation at the moment we froze old; its writer
			// already holds a reference to old and will retry against
			// the republished table once we're done.
			continue
		}
		if result, _ := next.insert(k, v); result == needsRehash {
			return false
		}
	}
	return true
}

// waitForTable spins until the table pointer is non-nil again, yielding
// the processor between checks so the winner's goroutine can make progress.
func (m *Map) waitForTable() *table {
	for {
		if t := m.tbl.Load(); t != nil {
			return t
		}
		runtime.Gosched()
	}
}
