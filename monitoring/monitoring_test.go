package monitoring

import (
	"bytes"
	"testing"

	"github.com/mantis-labs/corebridge/cuckoomap"
	"github.com/mantis-labs/corebridge/lockmgr"
)

func TestMetricsCollectorCounters(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordLockAcquired()
	mc.RecordLockAcquired()
	mc.RecordCuckooRehash(true)

	snap := mc.Snapshot()
	found := map[string]int64{}
	for _, m := range snap {
		found[m.Name] = m.Value
	}
	if found["lock_acquired_total"] != 2 {
		t.Fatalf("expected lock_acquired_total=2, got %d", found["lock_acquired_total"])
	}
	if found["cuckoo_rehash_total"] != 1 || found["cuckoo_rehash_rollback_total"] != 1 {
		t.Fatalf("expected rehash and rollback counters to both be 1, got %+v", found)
	}
}

func TestExportLockManagerRoundTrips(t *testing.T) {
	m := lockmgr.New()
	h := m.Exclusive("R")
	if err := h.Acquire(1); err != nil {
		t.Fatal(err)
	}

	de := NewDiagnosticsExporter()
	var buf bytes.Buffer
	if err := de.ExportLockManager(m, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	dump, err := DecodeLockManagerDump(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(dump.Locks) != 1 || dump.Locks[0].Name != "R" {
		t.Fatalf("expected one lock named R in the dump, got %+v", dump.Locks)
	}
}

func TestExportCuckooMapRoundTrips(t *testing.T) {
	cm := cuckoomap.New(8)
	cm.Put(1, 100)
	cm.Put(2, 200)

	de := NewDiagnosticsExporter()
	var buf bytes.Buffer
	if err := de.ExportCuckooMap(cm, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	entries, err := DecodeCuckooMapDump(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}
