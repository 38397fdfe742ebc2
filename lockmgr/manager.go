// Package lockmgr implements a reentrant, named shared/exclusive lock
// registry with online deadlock detection performed on every blocking
// acquisition, rather than by a background sweep.
package lockmgr

import (
	"context"
	"sync"
	"time"
)

// LogSink receives one line per notable event (deadlock, acquire). Manager works fine with a nil sink.
type LogSink func(level Level, msg string, fields map[string]interface{})

// Level mirrors monitoring.LogLevel without importing it, so lockmgr has
// no hard dependency on the monitoring package; a caller wanting events
// routed through monitoring.Logger supplies a LogSink that forwards to it.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Manager owns every NamedLock and threadIndex in one registry. A single
// coordination mutex and a single sync.Cond bound to it serialize all
// bookkeeping: a speculative try-acquire happens while m.mu is held, and
// blocking happens via cond.Wait, which atomically releases m.mu for the
// duration of the wait. This is the only mutex guarding lock state; the
// Profiler keeps a separate one for its counters.
type Manager struct {
	mu   sync.Mutex
	cond *sync.Cond

	locks   map[string]*NamedLock
	threads map[uint64]*threadIndex

	walkGen      int64
	maxWalkDepth int

	defaultTimeout time.Duration
	sink           LogSink

	profiler *Profiler
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithDefaultTimeout sets the timeout TryAcquireFor uses when callers pass
// a non-positive duration; Acquire itself never times out.
func WithDefaultTimeout(d time.Duration) Option {
	return func(m *Manager) { m.defaultTimeout = d }
}

// WithLogSink attaches a sink for deadlock/acquire events.
func WithLogSink(sink LogSink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithMaxWalkDepth bounds how many hops the online colour-walk will
// follow before giving up on a prospective wait edge without reporting a
// deadlock. depth <= 0 means unbounded, the default.
func WithMaxWalkDepth(depth int) Option {
	return func(m *Manager) { m.maxWalkDepth = depth }
}

// New creates an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		locks:          make(map[string]*NamedLock),
		threads:        make(map[uint64]*threadIndex),
		defaultTimeout: 0,
		profiler:       newProfiler(),
	}
	m.cond = sync.NewCond(&m.mu)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) log(level Level, msg string, fields map[string]interface{}) {
	if m.sink == nil {
		return
	}
	m.sink(level, msg, fields)
}

// logLock is log gated by lock's own verbosity level: events below
// lock.logLevel are dropped before reaching the sink, so SetLogLevel can
// quiet (or open up) a single hot lock without touching every other one.
func (m *Manager) logLock(lock *NamedLock, level Level, msg string, fields map[string]interface{}) {
	if level < lock.logLevel {
		return
	}
	m.log(level, msg, fields)
}

// Must be called with m.mu held.
func (m *Manager) lockFor(name string) *NamedLock {
	l, ok := m.locks[name]
	if !ok {
		l = newNamedLock(name)
		m.locks[name] = l
	}
	return l
}

// Must be called with m.mu held.
func (m *Manager) threadFor(owner uint64) *threadIndex {
	t, ok := m.threads[owner]
	if !ok {
		t = newThreadIndex(owner)
		m.threads[owner] = t
	}
	return t
}

// Handle is a bound (lock name, lock mode) pair returned by Shared/
// Exclusive; every acquire variant takes the owner as an explicit
// parameter since Go has no portable notion of thread-local identity.
type Handle struct {
	m    *Manager
	name string
	mode LockMode
}

// Shared returns a handle requesting shared access to name.
func (m *Manager) Shared(name string) *Handle {
	return &Handle{m: m, name: name, mode: Shared}
}

// Exclusive returns a handle requesting exclusive access to name.
func (m *Manager) Exclusive(name string) *Handle {
	return &Handle{m: m, name: name, mode: Exclusive}
}

// Name returns the lock name this handle addresses.
func (h *Handle) Name() string { return h.name }

// Mode returns the mode this handle requests.
func (h *Handle) Mode() LockMode { return h.mode }

// Acquire blocks until the lock is granted to owner.
func (h *Handle) Acquire(owner uint64) error {
	_, err := h.acquire(owner, context.Background(), -1)
	return err
}

// AcquireContext blocks until the lock is granted or ctx is done, in which
// case it returns ErrInterrupted.
func (h *Handle) AcquireContext(ctx context.Context, owner uint64) error {
	_, err := h.acquire(owner, ctx, -1)
	return err
}

// TryAcquire attempts to acquire the lock without blocking.
func (h *Handle) TryAcquire(owner uint64) (bool, error) {
	return h.acquire(owner, context.Background(), 0)
}

// TryAcquireFor attempts to acquire the lock, blocking for at most d. A
// timed wait may return success slightly after the deadline if the
// goroutine doesn't get scheduled promptly after the wakeup broadcast;
// that overshoot is accepted rather than guarded against. A non-positive d
// is replaced by the Manager's default timeout (see WithDefaultTimeout).
func (h *Handle) TryAcquireFor(owner uint64, d time.Duration) (bool, error) {
	if d <= 0 {
		d = h.m.defaultTimeout
	}
	return h.acquire(owner, context.Background(), d)
}

// acquire is the single entry point behind every public acquire variant.
// timeout < 0 means block indefinitely (subject to ctx); timeout == 0
// means a pure non-blocking try; timeout > 0 bounds the wait.
func (h *Handle) acquire(owner uint64, ctx context.Context, timeout time.Duration) (bool, error) {
	m := h.m
	start := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	lock := m.lockFor(h.name)
	ti := m.threadFor(owner)

	// Reentrant fast path: owner already holds something on this lock.
	if entry, ok := lock.holders[owner]; ok {
		switch {
		case entry.mode == Exclusive:
			// Exclusive already covers shared or exclusive re-requests.
			entry.count++
			ti.recordHeld(h.name, entry.mode)
			m.logLock(lock, LevelDebug, "lock acquired (reentrant)", map[string]interface{}{"owner": owner, "lock": h.name})
			return true, nil
		case entry.mode == Shared && h.mode == Shared:
			entry.count++
			ti.recordHeld(h.name, entry.mode)
			return true, nil
		case entry.mode == Shared && h.mode == Exclusive:
			// Upgrade is never supported; treat it as an immediate
			// self-deadlock without running the general colour walk.
			m.logLock(lock, LevelWarn, "deadlock: shared to exclusive upgrade refused", map[string]interface{}{"owner": owner, "lock": h.name})
			return false, ErrDeadlock
		}
	}

	var deadlineTimer *time.Timer
	var deadline time.Time
	hasDeadline := timeout >= 0
	if timeout > 0 {
		deadline = start.Add(timeout)
		deadlineTimer = time.AfterFunc(timeout, func() {
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		})
		defer deadlineTimer.Stop()
	}

	ctxDone := ctx.Done()
	if ctxDone != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctxDone:
				m.mu.Lock()
				m.cond.Broadcast()
				m.mu.Unlock()
			case <-stop:
			}
		}()
	}

	blocked := false
	for !lock.compatible(h.mode, owner) {
		if timeout == 0 {
			return false, nil
		}

		ti.waitingOn = h.name
		lock.waitCount++
		if !blocked {
			blocked = true
			m.profiler.recordContention(h.name)
		}
		if m.wouldDeadlock(owner, h.name) {
			lock.waitCount--
			ti.waitingOn = ""
			m.logLock(lock, LevelWarn, "deadlock detected", map[string]interface{}{"owner": owner, "lock": h.name})
			return false, ErrDeadlock
		}

		m.cond.Wait()

		lock.waitCount--
		ti.waitingOn = ""

		if ctxDone != nil {
			select {
			case <-ctxDone:
				return false, ErrInterrupted
			default:
			}
		}
		if hasDeadline && timeout > 0 && !time.Now().Before(deadline) {
			// One last compatibility check: the holder may have released
			// in the same instant the timer fired.
			if !lock.compatible(h.mode, owner) {
				return false, nil
			}
		}
	}

	lock.holders[owner] = &heldEntry{mode: h.mode, count: 1}
	ti.recordHeld(h.name, h.mode)
	m.profiler.recordAcquire(h.name, time.Since(start))
	m.logLock(lock, LevelDebug, "lock acquired", map[string]interface{}{"owner": owner, "lock": h.name, "waited": time.Since(start).String()})
	return true, nil
}

// Release releases one reentrant level of owner's hold on the lock. It
// returns ErrNotHeld if owner does not currently hold it.
func (h *Handle) Release(owner uint64) error {
	m := h.m
	m.mu.Lock()
	defer m.mu.Unlock()

	lock := m.locks[h.name]
	if lock == nil {
		return ErrNotHeld
	}
	entry, ok := lock.holders[owner]
	if !ok {
		return ErrNotHeld
	}

	entry.count--
	ti := m.threads[owner]
	if entry.count > 0 {
		if ti != nil && ti.held[h.name] != nil {
			ti.held[h.name].count--
		}
		return nil
	}
	delete(lock.holders, owner)
	if ti != nil {
		ti.forget(h.name)
	}
	m.cond.Broadcast()
	return nil
}

// IsHeldByOwner reports whether owner currently holds this lock in any mode.
func (h *Handle) IsHeldByOwner(owner uint64) bool {
	m := h.m
	m.mu.Lock()
	defer m.mu.Unlock()
	lock := m.locks[h.name]
	if lock == nil {
		return false
	}
	_, ok := lock.holders[owner]
	return ok
}

// SaveState captures every lock owner currently holds.
func (m *Manager) SaveState(owner uint64) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{Owner: owner, takenAt: time.Now()}
	ti := m.threads[owner]
	if ti == nil {
		return snap
	}
	for name, e := range ti.held {
		snap.Entries = append(snap.Entries, SnapshotEntry{Name: name, Mode: e.mode, Count: e.count})
	}
	return snap
}

// RestoreState is strictly a release-only operation: it can only bring
// owner's holds down to what snap recorded, never up. Every entry in snap
// must already be held by owner, in the same mode, at a count no lower
// than the snapshot's; any lock owner holds now but snap does not mention
// is released entirely. A snapshot entry that would require acquiring a
// lock owner no longer holds, escalating its mode, or raising its count
// fails the whole call with ErrIllegalRestore, and no state is changed.
func (m *Manager) RestoreState(owner uint64, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ti := m.threads[owner]
	var current map[string]*heldEntry
	if ti != nil {
		current = ti.held
	}

	target := make(map[string]SnapshotEntry, len(snap.Entries))
	for _, e := range snap.Entries {
		held, ok := current[e.Name]
		if !ok || held.mode != e.Mode || held.count < e.Count {
			return ErrIllegalRestore
		}
		target[e.Name] = e
	}

	if ti == nil {
		return nil
	}
	for name := range current {
		if _, ok := target[name]; ok {
			continue
		}
		if lock := m.locks[name]; lock != nil {
			delete(lock.holders, owner)
		}
		delete(ti.held, name)
	}
	for name, e := range target {
		lock := m.lockFor(name)
		lock.holders[owner] = &heldEntry{mode: e.Mode, count: e.Count}
		ti.held[name] = &heldEntry{mode: e.Mode, count: e.Count}
	}
	m.cond.Broadcast()
	return nil
}

// DropAllLocks releases every lock owner holds. It reports whether owner
// held anything.
func (m *Manager) DropAllLocks(owner uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropAllLocksLocked(owner)
}

func (m *Manager) dropAllLocksLocked(owner uint64) bool {
	ti, ok := m.threads[owner]
	if !ok || len(ti.held) == 0 {
		return false
	}
	for name := range ti.held {
		if lock := m.locks[name]; lock != nil {
			delete(lock.holders, owner)
		}
	}
	ti.held = make(map[string]*heldEntry)
	m.cond.Broadcast()
	return true
}

// SetLogSink installs or replaces the event sink.
func (m *Manager) SetLogSink(sink LogSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

// SetLogLevel sets the minimum verbosity at which events touching name
// are passed to the sink. It creates the named lock if it doesn't exist
// yet, so the level sticks even if no owner has acquired it.
func (m *Manager) SetLogLevel(name string, lvl Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockFor(name).logLevel = lvl
}

// Stats returns a point-in-time contention/acquire snapshot for
// diagnostics export.
func (m *Manager) Stats() ProfilerSnapshot {
	return m.profiler.snapshot()
}
