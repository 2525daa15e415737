package iter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSliceIter(t *testing.T) {
	it := NewSliceIter([]int{1, 2, 3})
	require.Equal(t, 3, it.Remaining())
	require.True(t, it.Next())
	require.Equal(t, 1, it.At())
	require.Equal(t, 2, it.Remaining())

	rest, err := Collect[int](it)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, rest)
	require.False(t, it.Next())
	require.Equal(t, 0, it.Remaining())
}

func TestFilterIter(t *testing.T) {
	it := NewFilterIter[int](NewSliceIter([]int{1, 2, 3, 4, 5, 6}), func(i int) bool { return i%2 == 0 })
	out, err := Collect[int](it)
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 6}, out)
}

func TestErrIter(t *testing.T) {
	boom := errors.New("boom")
	out, err := Collect[string](NewErrIter[string](boom))
	require.ErrorIs(t, err, boom)
	require.Empty(t, out)
}

func TestCloseIter(t *testing.T) {
	closed := false
	it := NewCloseIter[int](NewSliceIter([]int{1}), func() error {
		closed = true
		return nil
	})
	require.NoError(t, Close[int](it))
	require.True(t, closed)

	require.NoError(t, Close[int](NewFilterIter[int](NewSliceIter([]int{}), nil)))
}
