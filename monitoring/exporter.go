package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"

	"github.com/mantis-labs/corebridge/cuckoomap"
	"github.com/mantis-labs/corebridge/lockmgr"
)

// ExportFormat selects how MetricsExporter.Export renders the collector's
// counters. This is unrelated to the compressed diagnostics dumps below,
// which always use JSON as their wire shape.
type ExportFormat int

const (
	JSONFormat ExportFormat = iota
	PlainTextFormat
)

// MetricsExporter renders a MetricsCollector's current counters.
type MetricsExporter struct {
	collector *MetricsCollector
}

// NewMetricsExporter creates a new metrics exporter.
func NewMetricsExporter(collector *MetricsCollector) *MetricsExporter {
	return &MetricsExporter{collector: collector}
}

// Export writes every metric in the requested format.
func (me *MetricsExporter) Export(format ExportFormat, writer io.Writer) error {
	switch format {
	case JSONFormat:
		return me.exportJSON(writer)
	case PlainTextFormat:
		return me.exportPlainText(writer)
	default:
		return fmt.Errorf("monitoring: unsupported export format: %d", format)
	}
}

func (me *MetricsExporter) exportJSON(writer io.Writer) error {
	export := struct {
		Timestamp time.Time `json:"timestamp"`
		Metrics   []Metric  `json:"metrics"`
	}{
		Timestamp: time.Now(),
		Metrics:   me.collector.Snapshot(),
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func (me *MetricsExporter) exportPlainText(writer io.Writer) error {
	for _, m := range me.collector.Snapshot() {
		if _, err := fmt.Fprintf(writer, "%s %d\n", m.Name, m.Value); err != nil {
			return err
		}
	}
	return nil
}

// DiagnosticsExporter dumps point-in-time internal state for offline
// debugging: the lockmgr wait-for graph, and the cuckoomap's bucket
// occupancy. Each dump is JSON-encoded and then compressed — snappy for
// the lock graph, where export latency matters more than ratio, and lz4
// for the (typically much larger) cuckoomap snapshot, where ratio wins.
type DiagnosticsExporter struct{}

// NewDiagnosticsExporter creates a DiagnosticsExporter.
func NewDiagnosticsExporter() *DiagnosticsExporter {
	return &DiagnosticsExporter{}
}

// ExportLockManager writes a snappy-compressed JSON dump of m's current
// wait-for graph.
func (de *DiagnosticsExporter) ExportLockManager(m *lockmgr.Manager, w io.Writer) error {
	data, err := json.Marshal(m.Dump())
	if err != nil {
		return fmt.Errorf("monitoring: encode lock manager dump: %w", err)
	}
	_, err = w.Write(snappy.Encode(nil, data))
	return err
}

// ExportCuckooMap writes an lz4-compressed JSON dump of m's current
// entries.
func (de *DiagnosticsExporter) ExportCuckooMap(m *cuckoomap.Map, w io.Writer) error {
	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		return fmt.Errorf("monitoring: encode cuckoo map snapshot: %w", err)
	}
	zw := lz4.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return fmt.Errorf("monitoring: compress cuckoo map snapshot: %w", err)
	}
	return zw.Close()
}

// DecodeLockManagerDump reverses ExportLockManager, for tests and tooling
// that read a dump back.
func DecodeLockManagerDump(compressed []byte) (lockmgr.Diagnostics, error) {
	var d lockmgr.Diagnostics
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return d, fmt.Errorf("monitoring: decompress lock manager dump: %w", err)
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("monitoring: decode lock manager dump: %w", err)
	}
	return d, nil
}

// DecodeCuckooMapDump reverses ExportCuckooMap.
func DecodeCuckooMapDump(compressed []byte) ([]cuckoomap.Entry, error) {
	zr := lz4.NewReader(bytes.NewReader(compressed))
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("monitoring: decompress cuckoo map dump: %w", err)
	}
	var entries []cuckoomap.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("monitoring: decode cuckoo map dump: %w", err)
	}
	return entries, nil
}
