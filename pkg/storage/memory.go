package storage

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/vizd/qe/pkg/iter"
	"github.com/vizd/qe/pkg/schema"
)

type partition struct {
	table string
	key   string
}

// MemStore is an in-memory Store holding rows ordered by timestamp.
type MemStore struct {
	mtx        sync.RWMutex
	partitions map[partition][]Record

	failure      *atomic.Error
	scans        *atomic.Int64
	rowsReturned *atomic.Int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		partitions:   map[partition][]Record{},
		failure:      atomic.NewError(nil),
		scans:        atomic.NewInt64(0),
		rowsReturned: atomic.NewInt64(0),
	}
}

// Append adds rows to table under key. Rows with equal timestamps keep their
// insertion order.
func (s *MemStore) Append(table, key string, recs ...Record) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	p := partition{table: table, key: key}
	rows := append(s.partitions[p], recs...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })
	s.partitions[p] = rows
}

// FailWith makes every following Scan and Ready return err. A nil err clears it.
func (s *MemStore) FailWith(err error) {
	s.failure.Store(err)
}

// Scans is the number of scans served.
func (s *MemStore) Scans() int64 { return s.scans.Load() }

// RowsReturned is the number of rows handed out by scans.
func (s *MemStore) RowsReturned() int64 { return s.rowsReturned.Load() }

func (s *MemStore) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.failure.Load()
}

func (s *MemStore) Scan(ctx context.Context, req ScanRequest) (RecordIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.failure.Load(); err != nil {
		return nil, err
	}
	s.scans.Inc()

	s.mtx.RLock()
	rows := s.partitions[partition{table: req.Table, key: req.Key}]
	lo := sort.Search(len(rows), func(i int) bool { return rows[i].Timestamp >= req.Window.From })
	hi := sort.Search(len(rows), func(i int) bool { return rows[i].Timestamp >= req.Window.End })
	if hi < lo {
		hi = lo
	}
	snapshot := make([]Record, hi-lo)
	copy(snapshot, rows[lo:hi])
	s.mtx.RUnlock()

	return &memIter{
		Iterator: iter.NewSliceIter(snapshot),
		req:      req,
		flow:     schema.IsFlowTable(req.Table),
		returned: s.rowsReturned,
	}, nil
}

// memIter applies the filter hint and lays out flow payloads as rows are read.
type memIter struct {
	iter.Iterator[Record]
	req      ScanRequest
	flow     bool
	returned *atomic.Int64
	cur      Record
}

func (it *memIter) Next() bool {
	for it.Iterator.Next() {
		rec := it.Iterator.At()
		if it.req.Filter != nil && !it.req.Filter.Matches(rec.Columns) {
			continue
		}
		if it.flow && rec.Info == nil {
			rec.Info = FlowInfo(it.req.Shape, rec.Columns)
		}
		it.cur = rec
		it.returned.Inc()
		return true
	}
	return false
}

func (it *memIter) At() Record { return it.cur }

func (it *memIter) Close() error { return nil }
