package cuckoomap

import (
	"sync"
	"testing"
)

const absent = int64(-1)

func TestPutGet(t *testing.T) {
	m := New(8)
	if prev := m.Put(1, 100); prev != Sentinel {
		t.Fatalf("expected no previous value, got %d", prev)
	}
	if got := m.Get(1, absent); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	if prev := m.Put(1, 200); prev != 100 {
		t.Fatalf("expected previous value 100, got %d", prev)
	}
	if got := m.Get(1, absent); got != 200 {
		t.Fatalf("expected 200, got %d", got)
	}
}

func TestGetMissing(t *testing.T) {
	m := New(8)
	if got := m.Get(42, absent); got != absent {
		t.Fatalf("expected absent sentinel, got %d", got)
	}
}

func TestContainsKeyAndValue(t *testing.T) {
	m := New(8)
	m.Put(7, 777)
	if !m.ContainsKey(7) {
		t.Fatalf("expected key 7 to be present")
	}
	if !m.ContainsValue(777) {
		t.Fatalf("expected value 777 to be present")
	}
	if m.ContainsKey(8) {
		t.Fatalf("expected key 8 to be absent")
	}
}

func TestPutIfAbsent(t *testing.T) {
	m := New(8)
	got := m.PutIfAbsent(1, 10, absent)
	if got != 10 {
		t.Fatalf("expected 10 on first insert, got %d", got)
	}
	got = m.PutIfAbsent(1, 20, absent)
	if got != 10 {
		t.Fatalf("expected existing value 10, got %d", got)
	}
	if v := m.Get(1, absent); v != 10 {
		t.Fatalf("expected value to remain 10, got %d", v)
	}
}

func TestComputeIfAbsent(t *testing.T) {
	m := New(8)
	calls := 0
	factory := func(k int64) int64 {
		calls++
		return k * 10
	}
	if v := m.ComputeIfAbsent(3, factory); v != 30 {
		t.Fatalf("expected 30, got %d", v)
	}
	if v := m.ComputeIfAbsent(3, factory); v != 30 {
		t.Fatalf("expected cached 30, got %d", v)
	}
	if calls != 1 {
		t.Fatalf("expected factory called once, got %d", calls)
	}
}

func TestRemove(t *testing.T) {
	m := New(8)
	m.Put(5, 50)
	if v := m.Remove(5, absent); v != 50 {
		t.Fatalf("expected removed value 50, got %d", v)
	}
	if m.ContainsKey(5) {
		t.Fatalf("expected key 5 to be gone")
	}
	if v := m.Remove(5, absent); v != absent {
		t.Fatalf("expected absent on second remove, got %d", v)
	}
}

func TestClear(t *testing.T) {
	m := New(8)
	for i := int64(0); i < 5; i++ {
		m.Put(i, i*100)
	}
	m.Clear()
	for i := int64(0); i < 5; i++ {
		if m.ContainsKey(i) {
			t.Fatalf("expected key %d to be cleared", i)
		}
	}
}

func TestRehashGrowsWithManyEntries(t *testing.T) {
	m := New(8)
	const n = 2000
	for i := int64(0); i < n; i++ {
		m.Put(i, i)
	}
	for i := int64(0); i < n; i++ {
		if got := m.Get(i, absent); got != i {
			t.Fatalf("key %d: expected %d, got %d", i, i, got)
		}
	}
	if m.RehashCount() == 0 {
		t.Fatalf("expected at least one rehash after inserting %d entries", n)
	}
	if m.Capacity() <= 8 {
		t.Fatalf("expected capacity to have grown past 8, got %d", m.Capacity())
	}
}

func TestConcurrentPutGet(t *testing.T) {
	m := New(16)
	var wg sync.WaitGroup
	const goroutines = 8
	const perGoroutine = 200

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for i := int64(0); i < perGoroutine; i++ {
				key := base*perGoroutine + i
				m.Put(key, key*2)
			}
		}(int64(g))
	}
	wg.Wait()

	for g := 0; g < goroutines; g++ {
		for i := int64(0); i < perGoroutine; i++ {
			key := int64(g)*perGoroutine + i
			if got := m.Get(key, absent); got != key*2 {
				t.Fatalf("key %d: expected %d, got %d", key, key*2, got)
			}
		}
	}
}

func TestIteratorVisitsInsertedKeys(t *testing.T) {
	m := New(16)
	want := map[int64]int64{1: 10, 2: 20, 3: 30}
	for k, v := range want {
		m.Put(k, v)
	}

	seen := make(map[int64]int64)
	it := m.Iterator()
	for it.Next() {
		seen[it.Key()] = it.Value()
	}

	for k, v := range want {
		if seen[k] != v {
			t.Fatalf("iterator missed or mismatched key %d: want %d got %d", k, v, seen[k])
		}
	}
}
