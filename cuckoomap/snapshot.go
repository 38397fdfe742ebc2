package cuckoomap

// Entry is one key/value pair as observed by Snapshot.
type Entry struct {
	Key   int64
	Value int64
}

// Snapshot returns a best-effort point-in-time copy of every entry, built
// by draining an Iterator. Like iteration itself, it may miss or
// duplicate an entry that relocates mid-snapshot.
func (m *Map) Snapshot() []Entry {
	it := m.Iterator()
	var out []Entry
	for it.Next() {
		out = append(out, Entry{Key: it.Key(), Value: it.Value()})
	}
	return out
}
