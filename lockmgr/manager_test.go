package lockmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSharedLocksAreConcurrent(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := uint64(1); i <= 5; i++ {
		wg.Add(1)
		go func(owner uint64) {
			defer wg.Done()
			h := m.Shared("R")
			if err := h.Acquire(owner); err != nil {
				t.Errorf("owner %d: %v", owner, err)
				return
			}
			defer h.Release(owner)
		}(i)
	}
	wg.Wait()
}

func TestExclusiveExcludesShared(t *testing.T) {
	m := New()
	ex := m.Exclusive("R")
	if err := ex.Acquire(1); err != nil {
		t.Fatalf("acquire exclusive: %v", err)
	}

	sh := m.Shared("R")
	ok, err := sh.TryAcquire(2)
	if err != nil {
		t.Fatalf("try acquire shared: %v", err)
	}
	if ok {
		t.Fatalf("expected shared try-acquire to fail while exclusive is held")
	}

	if err := ex.Release(1); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = sh.TryAcquire(2)
	if err != nil || !ok {
		t.Fatalf("expected shared to succeed after release, got ok=%v err=%v", ok, err)
	}
}

func TestReentrantExclusive(t *testing.T) {
	m := New()
	h := m.Exclusive("R")
	if err := h.Acquire(1); err != nil {
		t.Fatal(err)
	}
	if err := h.Acquire(1); err != nil {
		t.Fatalf("reentrant acquire should succeed: %v", err)
	}
	if err := h.Release(1); err != nil {
		t.Fatal(err)
	}
	if !h.IsHeldByOwner(1) {
		t.Fatalf("expected owner to still hold lock after one of two releases")
	}
	if err := h.Release(1); err != nil {
		t.Fatal(err)
	}
	if h.IsHeldByOwner(1) {
		t.Fatalf("expected owner to have released the lock entirely")
	}
}

func TestSelfUpgradeIsDeadlock(t *testing.T) {
	m := New()
	sh := m.Shared("R")
	if err := sh.Acquire(1); err != nil {
		t.Fatal(err)
	}
	ex := m.Exclusive("R")
	_, err := ex.TryAcquire(1)
	if !errors.Is(err, ErrDeadlock) {
		t.Fatalf("expected ErrDeadlock on self-upgrade, got %v", err)
	}
}

func TestTwoPartyDeadlockDetected(t *testing.T) {
	m := New()
	a := m.Exclusive("A")
	b := m.Exclusive("B")
	if err := a.Acquire(1); err != nil {
		t.Fatal(err)
	}
	if err := b.Acquire(2); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- b.Acquire(1)
	}()

	// Give the goroutine time to park on B before B's owner asks for A
	// from the other direction.
	time.Sleep(20 * time.Millisecond)

	err := a.Acquire(2)
	if !errors.Is(err, ErrDeadlock) {
		t.Fatalf("expected ErrDeadlock, got %v", err)
	}

	if err := b.Release(2); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("expected waiting acquirer to succeed once released, got %v", err)
	}
}

func TestTryAcquireForTimesOut(t *testing.T) {
	m := New()
	h := m.Exclusive("R")
	if err := h.Acquire(1); err != nil {
		t.Fatal(err)
	}
	ok, err := h.TryAcquireFor(2, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected timeout, got success")
	}
}

func TestAcquireContextCancellation(t *testing.T) {
	m := New()
	h := m.Exclusive("R")
	if err := h.Acquire(1); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.AcquireContext(ctx, 2)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
}

func TestSaveRestoreState(t *testing.T) {
	m := New()
	h1 := m.Exclusive("A")
	h2 := m.Shared("B")
	if err := h1.Acquire(1); err != nil {
		t.Fatal(err)
	}
	if err := h2.Acquire(1); err != nil {
		t.Fatal(err)
	}

	snap := m.SaveState(1)
	if len(snap.Entries) != 2 {
		t.Fatalf("expected 2 snapshot entries, got %d", len(snap.Entries))
	}

	// Acquire a third lock and a second reentrant level on B after the
	// snapshot was taken; restoring must undo exactly that and nothing
	// more, since it can only release, never reacquire.
	h3 := m.Shared("C")
	if err := h3.Acquire(1); err != nil {
		t.Fatal(err)
	}
	if err := h2.Acquire(1); err != nil {
		t.Fatal(err)
	}

	if err := m.RestoreState(1, snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !h1.IsHeldByOwner(1) || !h2.IsHeldByOwner(1) {
		t.Fatalf("expected snapshotted locks to still be held")
	}
	if h3.IsHeldByOwner(1) {
		t.Fatalf("expected lock acquired after the snapshot to be released")
	}
}

func TestRestoreStateRejectsReacquire(t *testing.T) {
	m := New()
	h1 := m.Exclusive("A")
	h2 := m.Shared("B")
	if err := h1.Acquire(1); err != nil {
		t.Fatal(err)
	}
	if err := h2.Acquire(1); err != nil {
		t.Fatal(err)
	}

	snap := m.SaveState(1)

	if !m.DropAllLocks(1) {
		t.Fatalf("expected DropAllLocks to report locks were held")
	}
	if h1.IsHeldByOwner(1) || h2.IsHeldByOwner(1) {
		t.Fatalf("expected all locks released")
	}

	if err := m.RestoreState(1, snap); !errors.Is(err, ErrIllegalRestore) {
		t.Fatalf("expected ErrIllegalRestore, got %v", err)
	}
	if h1.IsHeldByOwner(1) || h2.IsHeldByOwner(1) {
		t.Fatalf("rejected restore must not reacquire anything")
	}
}

func TestReleaseNotHeld(t *testing.T) {
	m := New()
	h := m.Exclusive("R")
	if err := h.Release(1); !errors.Is(err, ErrNotHeld) {
		t.Fatalf("expected ErrNotHeld, got %v", err)
	}
}
