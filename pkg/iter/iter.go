package iter

// Iterator is a lazy, single-pass sequence. Callers loop while Next returns
// true, read the current item with At, and check Err once Next returns false.
type Iterator[T any] interface {
	Next() bool
	Err() error
	At() T
}

// CloseableIterator releases resources held by the producer.
type CloseableIterator[T any] interface {
	Iterator[T]
	Close() error
}

// SliceIter iterates over an in-memory slice.
type SliceIter[T any] struct {
	cur int
	xs  []T
}

func NewSliceIter[T any](xs []T) *SliceIter[T] {
	return &SliceIter[T]{xs: xs, cur: -1}
}

func (it *SliceIter[T]) Remaining() int {
	return max(0, len(it.xs)-(it.cur+1))
}

func (it *SliceIter[T]) Next() bool {
	it.cur++
	return it.cur < len(it.xs)
}

func (it *SliceIter[T]) Err() error { return nil }

func (it *SliceIter[T]) At() T { return it.xs[it.cur] }

func (it *SliceIter[T]) Close() error { return nil }

// FilterIter skips items rejected by keep.
type FilterIter[T any] struct {
	Iterator[T]
	keep func(T) bool
}

func NewFilterIter[T any](it Iterator[T], keep func(T) bool) *FilterIter[T] {
	return &FilterIter[T]{Iterator: it, keep: keep}
}

func (it *FilterIter[T]) Next() bool {
	for it.Iterator.Next() {
		if it.keep(it.At()) {
			return true
		}
	}
	return false
}

// ErrIter yields nothing and reports err.
type ErrIter[T any] struct{ err error }

func NewErrIter[T any](err error) *ErrIter[T] { return &ErrIter[T]{err: err} }

func (it *ErrIter[T]) Next() bool { return false }
func (it *ErrIter[T]) Err() error { return it.err }
func (it *ErrIter[T]) At() T {
	var zero T
	return zero
}
func (it *ErrIter[T]) Close() error { return nil }

// CloseIter wraps an iterator with a close callback.
type CloseIter[T any] struct {
	Iterator[T]
	close func() error
}

func NewCloseIter[T any](it Iterator[T], close func() error) *CloseIter[T] {
	return &CloseIter[T]{Iterator: it, close: close}
}

func (it *CloseIter[T]) Close() error {
	if it.close == nil {
		return nil
	}
	return it.close()
}

// Collect drains it into a slice.
func Collect[T any](it Iterator[T]) ([]T, error) {
	var out []T
	for it.Next() {
		out = append(out, it.At())
	}
	return out, it.Err()
}

// Close closes it if it implements CloseableIterator.
func Close[T any](it Iterator[T]) error {
	if c, ok := it.(CloseableIterator[T]); ok {
		return c.Close()
	}
	return nil
}
