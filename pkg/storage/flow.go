package storage

import (
	"github.com/vizd/qe/pkg/result"
	"github.com/vizd/qe/pkg/schema"
)

// Stored flow columns that only travel in the positional payload.
const (
	columnShortFlow  = "short_flow"
	columnAggBytes   = "agg-bytes"
	columnAggPackets = "agg-packets"
)

// FlowInfo builds the positional payload of a stored flow row for shape.
// It returns nil when the row carries no flow uuid.
func FlowInfo(shape result.Shape, cols map[string]result.Value) []result.Value {
	id, ok := cols[schema.ColumnUUID].UUIDValue()
	if !ok {
		return nil
	}
	rec := result.FlowRecord{UUID: id}
	if shape == result.ShapePlain {
		return result.EncodeFlow(shape, rec)
	}
	rec.Stats = result.FlowStats{
		Bytes:     firstUint(cols, schema.ColumnBytes, columnAggBytes),
		Packets:   firstUint(cols, schema.ColumnPackets, columnAggPackets),
		ShortFlow: firstUint(cols, columnShortFlow) == 1,
	}
	if shape == result.ShapeStatsTuple {
		rec.Tuple = result.FlowTuple{
			VRouter:    str(cols, schema.ColumnVRouter),
			SourceVN:   str(cols, schema.ColumnSourceVN),
			DestVN:     str(cols, schema.ColumnDestVN),
			SourceIP:   uint32(firstUint(cols, schema.ColumnSourceIP)),
			DestIP:     uint32(firstUint(cols, schema.ColumnDestIP)),
			Protocol:   uint8(firstUint(cols, schema.ColumnProtocol)),
			SourcePort: uint16(firstUint(cols, schema.ColumnSourcePort)),
			DestPort:   uint16(firstUint(cols, schema.ColumnDestPort)),
			Direction:  uint8(firstUint(cols, schema.ColumnDirection)),
		}
	}
	return result.EncodeFlow(shape, rec)
}

func firstUint(cols map[string]result.Value, names ...string) uint64 {
	for _, n := range names {
		v, ok := cols[n]
		if !ok {
			continue
		}
		if u, ok := v.Uint64(); ok {
			return u
		}
		if i, ok := v.Int64(); ok && i >= 0 {
			return uint64(i)
		}
	}
	return 0
}

func str(cols map[string]result.Value, name string) string {
	s, _ := cols[name].Str()
	return s
}
