package cuckoomap

// Cursor is a best-effort iterator over a Map. Because entries can be
// bumped or mutated concurrently with iteration, a Cursor may skip an
// entry that moved out from under it or observe one twice. It stays on the
// table generation it was created against, so entries written after a
// rehash are not seen. It never returns a torn key/value pair.
type Cursor struct {
	m    *Map
	t    *table
	next int
	key  int64
	val  int64
}

// Iterator returns a Cursor over the Map's current table generation.
func (m *Map) Iterator() *Cursor {
	return &Cursor{m: m, t: m.loadTable()}
}

// Next advances the cursor, returning false once every bucket has been
// visited.
func (c *Cursor) Next() bool {
	for c.next < len(c.t.buckets) {
		b := &c.t.buckets[c.next]
		c.next++
		k := b.key.Load()
		if k == Sentinel {
			continue
		}
		v, matched, retry := b.load(k)
		if retry || !matched {
			continue
		}
		c.key, c.val = k, v
		return true
	}
	return false
}

// Key returns the current entry's key.
func (c *Cursor) Key() int64 { return c.key }

// Value returns the current entry's value.
func (c *Cursor) Value() int64 { return c.val }

// Remove deletes the current entry's key from the Map. It is a no-op if
// that key was removed since Next last returned true.
func (c *Cursor) Remove() {
	c.m.Remove(c.key, Sentinel)
}
