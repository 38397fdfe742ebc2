package lockmgr

// LockDump is one NamedLock's point-in-time holder/waiter state, the unit
// the diagnostics exporter serializes before compressing.
type LockDump struct {
	Name       string
	Holders    []HolderDump
	WaitCount  int
}

// HolderDump is one owner's reentrant hold on a dumped lock.
type HolderDump struct {
	Owner uint64
	Mode  string
	Count int
}

// WaitEdgeDump is one owner's current wait-for edge: which lock it is
// blocked on.
type WaitEdgeDump struct {
	Owner     uint64
	WaitingOn string
}

// Diagnostics is the full wait-for graph snapshot: every lock's holders
// plus every blocked owner's wait edge, from which a cycle can be
// reconstructed offline even though the colour walk that actually detects
// cycles never exposes its working state.
type Diagnostics struct {
	Locks      []LockDump
	WaitEdges  []WaitEdgeDump
}

// Dump captures the current state of every lock and thread index. It
// takes the coordination mutex for the duration of the copy, exactly as
// any other Manager operation does.
func (m *Manager) Dump() Diagnostics {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := Diagnostics{}
	for name, lock := range m.locks {
		ld := LockDump{Name: name, WaitCount: lock.waitCount}
		for owner, e := range lock.holders {
			ld.Holders = append(ld.Holders, HolderDump{Owner: owner, Mode: e.mode.String(), Count: e.count})
		}
		d.Locks = append(d.Locks, ld)
	}
	for owner, ti := range m.threads {
		if ti.waitingOn != "" {
			d.WaitEdges = append(d.WaitEdges, WaitEdgeDump{Owner: owner, WaitingOn: ti.waitingOn})
		}
	}
	return d
}
