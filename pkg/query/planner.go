package query

import (
	"github.com/vizd/qe/pkg/storage"
)

// Planner splits a query's time range into batch windows.
type Planner struct {
	From uint64
	End  uint64
	// Slice is the length of every window but possibly the last.
	Slice    uint64
	Parallel bool
}

// PlanBatches computes the batch slice for [from, end). Parallel queries are
// split into at most batches windows of at least minGranularity, aligned to
// granularity when it is set. Other queries get one window.
func PlanBatches(from, end uint64, batches int, minGranularity, granularity uint64, parallel bool) Planner {
	p := Planner{From: from, End: end, Parallel: parallel}
	if end <= from {
		return p
	}
	span := end - from
	if !parallel || batches <= 1 {
		p.Slice = span
		return p
	}

	slice := span / uint64(batches)
	if span%uint64(batches) != 0 {
		slice++
	}
	if slice < minGranularity {
		slice = minGranularity
	}
	if granularity > 0 && slice%granularity != 0 {
		if granularity >= slice {
			slice = granularity
		} else {
			slice = (slice/granularity + 1) * granularity
		}
	}
	p.Slice = slice
	return p
}

// Window returns the window of batch i, or false when the batch has nothing to do.
func (p Planner) Window(i int) (storage.Window, bool) {
	if i < 0 || p.Slice == 0 {
		return storage.Window{}, false
	}
	offset := uint64(i) * p.Slice
	if offset/p.Slice != uint64(i) || offset >= p.End-p.From {
		return storage.Window{}, false
	}
	w := storage.Window{From: p.From + offset, End: p.From + offset + p.Slice}
	if w.End > p.End || w.End < w.From {
		w.End = p.End
	}
	return w, true
}

// Windows lists every batch window in index order.
func (p Planner) Windows() []storage.Window {
	var out []storage.Window
	for i := 0; ; i++ {
		w, ok := p.Window(i)
		if !ok {
			return out
		}
		out = append(out, w)
	}
}
