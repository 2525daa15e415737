package result

import (
	"container/heap"
	"sort"
)

// MergeOptions describes how per-batch buffers combine into one result.
type MergeOptions struct {
	Sorted     bool
	Direction  Direction
	SortFields []SortField
	// Limit caps the merged row count. Zero means unlimited.
	Limit int
	// Aggregates is set when the query aggregates, one entry per output column.
	Aggregates []AggKind
}

func (o MergeOptions) aggregating() bool {
	for _, a := range o.Aggregates {
		if a != AggNone {
			return true
		}
	}
	return false
}

// MergeFinal combines per-batch buffers, given in batch-index order, into the
// final result. The output depends only on the inputs and their order, never
// on the order in which batches finished.
func MergeFinal(bufs []*Buffer, opts MergeOptions) *Buffer {
	out := headerOf(bufs)
	if opts.aggregating() {
		var rows []Row
		for _, b := range bufs {
			if b != nil {
				rows = append(rows, b.Rows...)
			}
		}
		rows = Fold(rows, opts.Aggregates)
		if opts.Sorted {
			cmp := NewComparator(out.Columns, opts.SortFields, opts.Direction)
			sort.SliceStable(rows, func(i, j int) bool { return cmp.Compare(rows[i], rows[j]) < 0 })
		}
		out.Rows = truncate(rows, opts.Limit)
		return out
	}
	if !opts.Sorted {
		for _, b := range bufs {
			if b == nil {
				continue
			}
			out.Rows = append(out.Rows, b.Rows...)
			if opts.Limit > 0 && len(out.Rows) >= opts.Limit {
				break
			}
		}
		out.Rows = truncate(out.Rows, opts.Limit)
		return out
	}
	out.Rows = mergeSorted(bufs, NewComparator(out.Columns, opts.SortFields, opts.Direction), opts.Limit)
	return out
}

// MergePartial folds the next batch's buffer into the running result acc.
// Callers fold batches in batch-index order.
func MergePartial(acc, next *Buffer, opts MergeOptions) *Buffer {
	if acc == nil {
		acc = headerOf([]*Buffer{next})
	}
	return MergeFinal([]*Buffer{acc, next}, opts)
}

// SortLimit orders a single buffer's rows and applies the limit, as done
// for one batch before its rows reach the merge.
func SortLimit(buf *Buffer, opts MergeOptions) {
	if buf == nil {
		return
	}
	if opts.Sorted {
		cmp := NewComparator(buf.Columns, opts.SortFields, opts.Direction)
		sort.SliceStable(buf.Rows, func(i, j int) bool { return cmp.Compare(buf.Rows[i], buf.Rows[j]) < 0 })
	}
	buf.Rows = truncate(buf.Rows, opts.Limit)
}

func headerOf(bufs []*Buffer) *Buffer {
	for _, b := range bufs {
		if b != nil && (b.Name != "" || len(b.Columns) > 0) {
			return NewBuffer(b.Name, b.Columns)
		}
	}
	return NewBuffer("", nil)
}

func truncate(rows []Row, limit int) []Row {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

type cursor struct {
	batch int
	pos   int
	rows  []Row
}

type cursorHeap struct {
	its []*cursor
	cmp Comparator
}

func (h *cursorHeap) Len() int      { return len(h.its) }
func (h *cursorHeap) Swap(i, j int) { h.its[i], h.its[j] = h.its[j], h.its[i] }
func (h *cursorHeap) Push(x any)    { h.its = append(h.its, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	n := len(h.its)
	x := h.its[n-1]
	h.its = h.its[:n-1]
	return x
}

// Less breaks comparator ties on batch index, which keeps the merge stable.
func (h *cursorHeap) Less(i, j int) bool {
	a, b := h.its[i], h.its[j]
	if r := h.cmp.Compare(a.rows[a.pos], b.rows[b.pos]); r != 0 {
		return r < 0
	}
	return a.batch < b.batch
}

// mergeSorted performs a k-way merge of individually sorted buffers.
func mergeSorted(bufs []*Buffer, cmp Comparator, limit int) []Row {
	h := &cursorHeap{cmp: cmp}
	total := 0
	for i, b := range bufs {
		if b.Len() == 0 {
			continue
		}
		total += len(b.Rows)
		h.its = append(h.its, &cursor{batch: i, rows: b.Rows})
	}
	if limit > 0 && total > limit {
		total = limit
	}
	heap.Init(h)

	out := make([]Row, 0, total)
	for h.Len() > 0 {
		if limit > 0 && len(out) >= limit {
			break
		}
		c := h.its[0]
		out = append(out, c.rows[c.pos])
		c.pos++
		if c.pos == len(c.rows) {
			heap.Pop(h)
			continue
		}
		heap.Fix(h, 0)
	}
	return out
}
