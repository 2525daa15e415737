package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/vizd/qe/pkg/iter"
	"github.com/vizd/qe/pkg/result"
)

// ErrUnknownTable is returned when a scan names a table the backend does not hold.
var ErrUnknownTable = errors.New("unknown table")

// Window is the half-open time range [From, End) in microseconds.
type Window struct {
	From uint64
	End  uint64
}

func (w Window) Contains(ts uint64) bool { return ts >= w.From && ts < w.End }

func (w Window) String() string { return fmt.Sprintf("[%d, %d)", w.From, w.End) }

// Record is one raw row returned by a scan.
type Record struct {
	Timestamp uint64
	Columns   map[string]result.Value
	// Info is the positional flow payload, laid out for the requested shape.
	// It is nil for tables that carry no flow payload.
	Info []result.Value
}

// Matcher lets a backend skip rows early. The caller re-evaluates every row
// it receives, so a backend may ignore the hint.
type Matcher interface {
	Matches(cols map[string]result.Value) bool
}

// ScanRequest selects the rows of one table within one window.
type ScanRequest struct {
	Table string
	// Key partitions shared tables, such as the object-value table which is
	// keyed by the object table name.
	Key    string
	Window Window
	Shape  result.Shape
	Filter Matcher
}

// RecordIterator is a finite, non-restartable sequence of scanned rows.
type RecordIterator = iter.CloseableIterator[Record]

// Store is the storage collaborator the query engine reads from.
type Store interface {
	Scan(ctx context.Context, req ScanRequest) (RecordIterator, error)
	Ready(ctx context.Context) error
}
