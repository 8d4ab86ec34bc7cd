// Package diag records a trace of completed IRPs and exports it as CSV,
// grounded on the teacher's dargueta-disko sibling's struct-tag CSV usage
// (disks/disks.go) for listing recovered disks — here applied to a trace
// of dispatch activity instead of a disk inventory.
package diag

import (
	"io"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/harryfoxfox/safe-sub000/internal/kernel"
)

// TraceEntry is one completed IRP, in the shape gocsv marshals to a CSV
// row.
type TraceEntry struct {
	Timestamp    time.Time           `csv:"timestamp"`
	Major        string              `csv:"major_function"`
	IOCTL        kernel.DeviceControlCode `csv:"ioctl,omitempty"`
	Offset       int64               `csv:"offset"`
	Length       int64               `csv:"length"`
	Status       string              `csv:"status"`
	Information  int64               `csv:"information"`
}

// Trace accumulates completed-IRP entries under a mutex; a single Trace is
// meant to be shared across the worker goroutine (which appends) and a CLI
// command (which exports), so it's safe for concurrent use.
type Trace struct {
	mu      sync.Mutex
	entries []TraceEntry
}

// New returns an empty Trace.
func New() *Trace { return &Trace{} }

// Record appends one completed IRP's outcome to the trace. now is passed in
// rather than read from time.Now() at the call site's discretion, but
// callers normally just pass time.Now().
func (t *Trace) Record(now time.Time, irp *kernel.IRP, status kernel.Status, information int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, TraceEntry{
		Timestamp:   now,
		Major:       irp.Major.String(),
		IOCTL:       irp.IOCTL,
		Offset:      irp.Offset,
		Length:      irp.Length,
		Status:      status.String(),
		Information: information,
	})
}

// Len reports how many entries have been recorded.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// WriteCSV exports the trace as CSV, one row per completed IRP, header
// included.
func (t *Trace) WriteCSV(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gocsv.Marshal(t.entries, w)
}
