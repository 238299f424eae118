// Package trace reads the append-only traceability store and resolves board
// barcodes to their most recent process record.
package trace

import (
	"context"
	"time"
)

// Record is the authoritative traceability row for one barcode. The trace
// store logs every process step a panel passes through; only the row with
// the latest (EndTime, BeginTime, Seq) survives resolution.
type Record struct {
	Barcode   string
	EndTime   *time.Time // assembly finished timestamp
	BeginTime *time.Time
	Seq       int64 // internal trace row id, breaks exact time ties
	Lot       string
	BoardType string
}

// AssembledAt returns the assembly finished timestamp, nil when the trace
// row carries none.
func (r Record) AssembledAt() *time.Time {
	return r.EndTime
}

// Later reports whether r is more recent than other under the
// (EndTime, BeginTime, Seq) lexicographic-descending tie-break.
func (r Record) Later(other Record) bool {
	if c := compareTimePtr(r.EndTime, other.EndTime); c != 0 {
		return c > 0
	}
	if c := compareTimePtr(r.BeginTime, other.BeginTime); c != 0 {
		return c > 0
	}
	return r.Seq > other.Seq
}

// compareTimePtr orders nil before any concrete timestamp.
func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Before(*b):
		return -1
	case a.After(*b):
		return 1
	default:
		return 0
	}
}

// Store is the read-only query interface of the traceability system. A call
// returns at most one record per barcode; the store performs the
// latest-per-barcode ranking server-side. Implementations must accept an
// IN-list of bounded size, chunking is the caller's job.
type Store interface {
	LookupBatch(ctx context.Context, barcodes []string) ([]Record, error)
}
