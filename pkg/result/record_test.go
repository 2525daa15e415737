package result

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testFlow() FlowRecord {
	return FlowRecord{
		UUID:  uuid.MustParse("0f8a5e3c-7d11-4b29-9c0e-5e6f7a8b9c0d"),
		Stats: FlowStats{Bytes: 1500, Packets: 3, ShortFlow: true},
		Tuple: FlowTuple{
			VRouter:    "vr1",
			SourceVN:   "default:vn1",
			DestVN:     "default:vn2",
			SourceIP:   0x0a000001,
			DestIP:     0x0a000002,
			Protocol:   6,
			SourcePort: 34567,
			DestPort:   80,
			Direction:  1,
		},
	}
}

func TestDecodeFlow(t *testing.T) {
	rec := testFlow()

	plain, err := DecodeFlow(ShapePlain, EncodeFlow(ShapePlain, rec))
	require.NoError(t, err)
	require.Equal(t, rec.UUID, plain.UUID)
	require.Equal(t, FlowStats{}, plain.Stats)

	stats, err := DecodeFlow(ShapeStats, EncodeFlow(ShapeStats, rec))
	require.NoError(t, err)
	require.Equal(t, rec.Stats, stats.Stats)
	require.Equal(t, FlowTuple{}, stats.Tuple)

	full, err := DecodeFlow(ShapeStatsTuple, EncodeFlow(ShapeStatsTuple, rec))
	require.NoError(t, err)
	rec.Shape = ShapeStatsTuple
	require.Equal(t, rec, full)
}

func TestDecodeFlowMismatch(t *testing.T) {
	rec := testFlow()

	// A stats payload is too short for the tuple shape.
	_, err := DecodeFlow(ShapeStatsTuple, EncodeFlow(ShapeStats, rec))
	require.ErrorIs(t, err, ErrSchemaMismatch)
	var mismatch SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 4, mismatch.Index)
	require.Equal(t, KindString, mismatch.Want)
	require.Equal(t, KindNull, mismatch.Got)

	_, err = ExtractUUID([]Value{String("not-a-uuid")})
	require.ErrorIs(t, err, ErrSchemaMismatch)

	_, _, err = ExtractStats([]Value{Uint(1), Double(2), Uint(0), UUID(rec.UUID)})
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 1, mismatch.Index)
	require.Equal(t, KindDouble, mismatch.Got)
}

func TestFlowTupleColumn(t *testing.T) {
	tuple := testFlow().Tuple
	v, ok := tuple.Column("dport")
	require.True(t, ok)
	require.Equal(t, "80", v.String())

	v, ok = tuple.Column("sourcevn")
	require.True(t, ok)
	require.Equal(t, "default:vn1", v.String())

	_, ok = tuple.Column("bytes")
	require.False(t, ok)
}
