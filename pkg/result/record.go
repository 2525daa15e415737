package result

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Shape selects the positional layout of a flow record payload.
type Shape uint8

const (
	// ShapePlain is [uuid].
	ShapePlain Shape = iota
	// ShapeStats is [bytes, packets, short_flow, uuid].
	ShapeStats
	// ShapeStatsTuple is ShapeStats followed by the flow 8-tuple and direction.
	ShapeStatsTuple
)

func (s Shape) String() string {
	switch s {
	case ShapePlain:
		return "plain"
	case ShapeStats:
		return "stats"
	case ShapeStatsTuple:
		return "stats+tuple"
	}
	return fmt.Sprintf("shape(%d)", uint8(s))
}

// ErrSchemaMismatch is returned when a payload does not have the layout its shape requires.
var ErrSchemaMismatch = errors.New("record payload does not match shape")

// SchemaMismatchError pinpoints the offending payload position.
type SchemaMismatchError struct {
	Shape Shape
	Index int
	Want  Kind
	Got   Kind
}

func (e SchemaMismatchError) Error() string {
	if e.Got == KindNull {
		return fmt.Sprintf("%s record: missing %s at position %d", e.Shape, e.Want, e.Index)
	}
	return fmt.Sprintf("%s record: want %s at position %d, got %s", e.Shape, e.Want, e.Index, e.Got)
}

// Is allows errors.Is(err, ErrSchemaMismatch).
func (e SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// FlowStats are the per-sample counters of a flow.
type FlowStats struct {
	Bytes     uint64
	Packets   uint64
	ShortFlow bool
}

// FlowTuple identifies a flow.
type FlowTuple struct {
	VRouter    string
	SourceVN   string
	DestVN     string
	SourceIP   uint32
	DestIP     uint32
	Protocol   uint8
	SourcePort uint16
	DestPort   uint16
	Direction  uint8
}

// FlowRecord is a decoded flow payload. Only the parts covered by Shape are set.
type FlowRecord struct {
	Shape Shape
	UUID  uuid.UUID
	Stats FlowStats
	Tuple FlowTuple
}

// payloadReader reads typed values positionally and remembers the first mismatch.
type payloadReader struct {
	shape Shape
	info  []Value
	idx   int
	err   error
}

func (r *payloadReader) next(want Kind) Value {
	if r.err != nil {
		return Value{}
	}
	i := r.idx
	r.idx++
	if i >= len(r.info) {
		r.err = SchemaMismatchError{Shape: r.shape, Index: i, Want: want, Got: KindNull}
		return Value{}
	}
	v := r.info[i]
	if v.kind != want {
		r.err = SchemaMismatchError{Shape: r.shape, Index: i, Want: want, Got: v.kind}
		return Value{}
	}
	return v
}

func (r *payloadReader) uuid() uuid.UUID { return r.next(KindUUID).id }
func (r *payloadReader) uint() uint64    { return r.next(KindUint).u }
func (r *payloadReader) str() string     { return r.next(KindString).s }

// ExtractUUID reads a ShapePlain payload.
func ExtractUUID(info []Value) (uuid.UUID, error) {
	r := payloadReader{shape: ShapePlain, info: info}
	id := r.uuid()
	return id, r.err
}

// ExtractStats reads a ShapeStats payload.
func ExtractStats(info []Value) (FlowStats, uuid.UUID, error) {
	r := payloadReader{shape: ShapeStats, info: info}
	stats := readStats(&r)
	id := r.uuid()
	return stats, id, r.err
}

// ExtractStatsTuple reads a ShapeStatsTuple payload.
func ExtractStatsTuple(info []Value) (FlowStats, uuid.UUID, FlowTuple, error) {
	r := payloadReader{shape: ShapeStatsTuple, info: info}
	stats := readStats(&r)
	id := r.uuid()
	tuple := FlowTuple{
		VRouter:    r.str(),
		SourceVN:   r.str(),
		DestVN:     r.str(),
		SourceIP:   uint32(r.uint()),
		DestIP:     uint32(r.uint()),
		Protocol:   uint8(r.uint()),
		SourcePort: uint16(r.uint()),
		DestPort:   uint16(r.uint()),
		Direction:  uint8(r.uint()),
	}
	return stats, id, tuple, r.err
}

func readStats(r *payloadReader) FlowStats {
	return FlowStats{
		Bytes:     r.uint(),
		Packets:   r.uint(),
		ShortFlow: r.uint() == 1,
	}
}

// DecodeFlow reads info with the accessor selected by shape.
func DecodeFlow(shape Shape, info []Value) (FlowRecord, error) {
	rec := FlowRecord{Shape: shape}
	var err error
	switch shape {
	case ShapePlain:
		rec.UUID, err = ExtractUUID(info)
	case ShapeStats:
		rec.Stats, rec.UUID, err = ExtractStats(info)
	case ShapeStatsTuple:
		rec.Stats, rec.UUID, rec.Tuple, err = ExtractStatsTuple(info)
	default:
		err = fmt.Errorf("unknown record shape %d: %w", shape, ErrSchemaMismatch)
	}
	return rec, err
}

// EncodeFlow lays rec out positionally for shape.
func EncodeFlow(shape Shape, rec FlowRecord) []Value {
	if shape == ShapePlain {
		return []Value{UUID(rec.UUID)}
	}
	short := uint64(0)
	if rec.Stats.ShortFlow {
		short = 1
	}
	info := []Value{Uint(rec.Stats.Bytes), Uint(rec.Stats.Packets), Uint(short), UUID(rec.UUID)}
	if shape == ShapeStats {
		return info
	}
	t := rec.Tuple
	return append(info,
		String(t.VRouter),
		String(t.SourceVN),
		String(t.DestVN),
		Uint(uint64(t.SourceIP)),
		Uint(uint64(t.DestIP)),
		Uint(uint64(t.Protocol)),
		Uint(uint64(t.SourcePort)),
		Uint(uint64(t.DestPort)),
		Uint(uint64(t.Direction)),
	)
}

// Column returns the tuple member named by a flow column.
func (t FlowTuple) Column(name string) (Value, bool) {
	switch name {
	case "vrouter":
		return String(t.VRouter), true
	case "sourcevn":
		return String(t.SourceVN), true
	case "destvn":
		return String(t.DestVN), true
	case "sourceip":
		return IPv4(t.SourceIP), true
	case "destip":
		return IPv4(t.DestIP), true
	case "protocol":
		return Uint(uint64(t.Protocol)), true
	case "sport":
		return Uint(uint64(t.SourcePort)), true
	case "dport":
		return Uint(uint64(t.DestPort)), true
	case "direction_ing":
		return Uint(uint64(t.Direction)), true
	}
	return Value{}, false
}

func (t FlowTuple) String() string {
	return fmt.Sprintf("%s:%s:%s:%d:%d:%d:%d:%d:%d", t.VRouter, t.SourceVN, t.DestVN,
		t.SourceIP, t.DestIP, t.Protocol, t.SourcePort, t.DestPort, t.Direction)
}
