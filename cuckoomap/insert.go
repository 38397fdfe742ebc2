package cuckoomap

// maxBumpDepth is the default bound on how many times a single insert
// will evict an occupant before giving up and asking the caller to
// rehash, for tables built without an explicit WithMaxBumpDepth override.
// 64 is the depth every published lock-free cuckoo table uses before
// concluding the table is too full for its current size, rather than
// that the keys are pathologically chosen.
const maxBumpDepth = 64

// insertResult reports what happened when insert tried to place a key.
type insertResult int

const (
	insertedNew insertResult = iota
	updatedExisting
	needsRehash
)

// insert places key/value into t, evicting and relocating existing
// occupants (the cuckoo "bump" step) as needed. previous is the value
// that existed at key before this call, or Sentinel if there was none.
func (t *table) insert(key, value int64) (result insertResult, previous int64) {
	// First, an unconditional check for an existing entry at either
	// candidate bucket: Put always updates in place rather than bumping
	// when the key is already present.
	primary, secondary := t.indices(key)
	for _, idx := range [2]int{primary, secondary} {
		b := &t.buckets[idx]
		if prev, ok := t.updateIfPresent(b, key, value); ok {
			return updatedExisting, prev
		}
	}

	curKey, curVal := key, value
	idx := primary
	var path []int
	for depth := 0; depth < t.maxBumpDepth; depth++ {
		b := &t.buckets[idx]

		for {
			k := b.key.Load()
			if k == Sentinel {
				if !b.claimEmpty(curKey) {
					continue // someone else claimed it first, recheck
				}
				b.installValue(curVal)
				return insertedNew, Sentinel
			}
			if k == curKey {
				// Raced with another writer that just inserted this
				// exact key at this bucket; fold into an update.
				if prev, ok := t.updateIfPresent(b, curKey, curVal); ok {
					return updatedExisting, prev
				}
				continue
			}

			// Bucket is occupied by a different key: evict it so we can
			// take its place, and carry the evicted entry to relocate.
			evictedKey := k
			evictedVal := b.value.Load()
			if evictedVal == Sentinel {
				// Mid-mutation elsewhere; give the other writer a turn.
				continue
			}
			if !b.beginUpdate(evictedVal) {
				continue
			}
			if !b.takeover(evictedKey, curKey) {
				// Extremely unlikely: key changed between beginUpdate
				// and takeover. Restore the value and retry the bucket.
				b.installValue(evictedVal)
				continue
			}
			b.installValue(curVal)
			path = append(path, idx)

			curKey, curVal = evictedKey, evictedVal
			idx = t.otherIndex(curKey, idx)
			break
		}
	}
	// Out of depth: undo the chain newest-first so every evicted entry is
	// back in the bucket it came from and only key itself is left unplaced.
	for i := len(path) - 1; i >= 0; i-- {
		b := &t.buckets[path[i]]
		v := b.value.Load()
		for v == Sentinel || !b.beginUpdate(v) {
			v = b.value.Load()
		}
		k := b.key.Load()
		b.takeover(k, curKey)
		b.installValue(curVal)
		curKey, curVal = k, v
	}
	return needsRehash, Sentinel
}

// updateIfPresent updates b's value if it currently holds key, using the
// beginUpdate/installValue two-phase write so concurrent readers never
// observe a torn value.
func (t *table) updateIfPresent(b *bucket, key, value int64) (previous int64, ok bool) {
	for {
		k := b.key.Load()
		if k != key {
			return 0, false
		}
		old := b.value.Load()
		if old == Sentinel {
			continue // another writer mid-update, retry
		}
		if !b.beginUpdate(old) {
			continue
		}
		b.installValue(value)
		return old, true
	}
}

// remove clears key's bucket if present, returning its value.
func (t *table) remove(key int64) (previous int64, ok bool) {
	primary, secondary := t.indices(key)
	for _, idx := range [2]int{primary, secondary} {
		b := &t.buckets[idx]
		for {
			k := b.key.Load()
			if k != key {
				break
			}
			old := b.value.Load()
			if old == Sentinel {
				continue
			}
			if !b.beginUpdate(old) {
				continue
			}
			if !b.takeover(key, Sentinel) {
				b.installValue(old)
				continue
			}
			b.revision.Add(1)
			return old, true
		}
	}
	return 0, false
}
