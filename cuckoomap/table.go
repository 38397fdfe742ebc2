package cuckoomap

// table is one generation of buckets. The cuckoo addressing scheme gives
// every key exactly two candidate buckets, derived from a single hash so
// that a degenerate capacity can never make both candidates resolve to
// the same bucket (see indices).
type table struct {
	buckets      []bucket
	capacity     int
	seed1        uint64
	seed2        uint64
	maxBumpDepth int
}

// newTable allocates a table of the given capacity (rounded up to the
// next suitable prime). bumpDepth bounds how many evictions insert will
// chase before reporting needsRehash; callers pass maxBumpDepth for the
// package default, or a Map's configured override.
func newTable(capacity, bumpDepth int) *table {
	capacity = nextPrime(capacity)
	if bumpDepth <= 0 {
		bumpDepth = maxBumpDepth
	}
	t := &table{
		buckets:      make([]bucket, capacity),
		capacity:     capacity,
		seed1:        0x9e3779b97f4a7c15,
		seed2:        0xbf58476d1ce4e5b9,
		maxBumpDepth: bumpDepth,
	}
	for i := range t.buckets {
		t.buckets[i].key.Store(Sentinel)
		t.buckets[i].value.Store(Sentinel)
	}
	return t
}

func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// indices derives both of key's candidate buckets from one hash. If the
// capacity happens to fold the secondary hash onto the same bucket as the
// primary, the secondary is nudged to primary+1 rather than left to
// collide — otherwise bump/eviction would degenerate into a same-bucket
// no-op.
func (t *table) indices(key int64) (primary, secondary int) {
	h := mix64(uint64(key) ^ t.seed1)
	primary = int(h % uint64(t.capacity))
	secondary = int(mix64(h^t.seed2) % uint64(t.capacity))
	if secondary == primary {
		secondary = (primary + 1) % t.capacity
	}
	return primary, secondary
}

// otherIndex returns key's alternate candidate bucket, given that it (or
// an entry being evicted in its name) currently sits at idx.
func (t *table) otherIndex(key int64, idx int) int {
	primary, secondary := t.indices(key)
	if idx == primary {
		return secondary
	}
	return primary
}

// lookup implements Get: try both candidate buckets, retrying in place on
// a torn read, and falling through to the other bucket only once a
// bucket's key is confirmed not to match.
func (t *table) lookup(key int64) (int64, bool) {
	primary, secondary := t.indices(key)
	for _, idx := range [2]int{primary, secondary} {
		b := &t.buckets[idx]
		for {
			v, matched, retry := b.load(key)
			if retry {
				continue
			}
			if matched {
				return v, true
			}
			break
		}
	}
	return 0, false
}

func (t *table) containsValue(v int64) bool {
	for i := range t.buckets {
		b := &t.buckets[i]
		k := b.key.Load()
		if k == Sentinel {
			continue
		}
		val, matched, retry := b.load(k)
		if retry {
			// A concurrent writer is touching this bucket; not our
			// problem, move on — ContainsValue is inherently best-effort
			// under concurrent mutation.
			continue
		}
		if matched && val == v {
			return true
		}
	}
	return false
}
