package result

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestValueString(t *testing.T) {
	id := uuid.MustParse("9b4b1c6e-30f1-4b83-a8fd-1a7c2f3cbb11")
	for _, tc := range []struct {
		v    Value
		want string
	}{
		{Null(), ""},
		{String("vn1"), "vn1"},
		{Int(-4), "-4"},
		{Uint(42), "42"},
		{Double(1.5), "1.5"},
		{Timestamp(1700000000000000), "1700000000000000"},
		{UUID(id), id.String()},
	} {
		t.Run(tc.v.Kind().String(), func(t *testing.T) {
			require.Equal(t, tc.want, tc.v.String())
		})
	}
}

func TestCompareNumeric(t *testing.T) {
	for _, tc := range []struct {
		name string
		a, b Value
		want int
	}{
		{"uint", Uint(9), Uint(10), -1},
		{"int", Int(-1), Int(-2), 1},
		{"mixed", Uint(3), Double(2.5), 1},
		{"equal", Timestamp(5), Uint(5), 0},
		{"numeric text", String("9"), String("10"), -1},
		{"number before text", Uint(100), String("abc"), -1},
		{"text after number", String("abc"), Int(0), 1},
		{"text", String("a"), String("b"), -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CompareNumeric(tc.a, tc.b))
		})
	}
}

func TestCompareString(t *testing.T) {
	require.Equal(t, 1, CompareString(Uint(9), Uint(10)))
	require.Equal(t, -1, CompareString(String("a1"), String("b0")))
	require.Equal(t, 0, CompareString(String("x"), String("x")))
}

func TestValueEqual(t *testing.T) {
	require.True(t, Uint(1).Equal(Uint(1)))
	require.False(t, Uint(1).Equal(Int(1)))
	require.True(t, Null().Equal(Null()))
	require.False(t, String("a").Equal(String("b")))
}
