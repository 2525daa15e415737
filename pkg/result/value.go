package result

import (
	"math"
	"net/netip"
	"strconv"

	"github.com/google/uuid"
)

// Kind tags the payload held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindUint
	KindDouble
	KindTimestamp
	KindUUID
	KindIPv4
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindDouble:
		return "double"
	case KindTimestamp:
		return "timestamp"
	case KindUUID:
		return "uuid"
	case KindIPv4:
		return "ipv4"
	default:
		return "unknown"
	}
}

// Value is one typed cell of a row.
type Value struct {
	kind Kind
	s    string
	i    int64
	u    uint64
	f    float64
	id   uuid.UUID
}

func Null() Value                 { return Value{} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Uint(u uint64) Value         { return Value{kind: KindUint, u: u} }
func Double(f float64) Value      { return Value{kind: KindDouble, f: f} }
func UUID(id uuid.UUID) Value     { return Value{kind: KindUUID, id: id} }
func Timestamp(usec uint64) Value { return Value{kind: KindTimestamp, u: usec} }
func IPv4(addr uint32) Value      { return Value{kind: KindIPv4, u: uint64(addr)} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload.
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// Int64 returns the signed payload.
func (v Value) Int64() (int64, bool) { return v.i, v.kind == KindInt }

// Uint64 returns the unsigned, timestamp or address payload.
func (v Value) Uint64() (uint64, bool) {
	return v.u, v.kind == KindUint || v.kind == KindTimestamp || v.kind == KindIPv4
}

// Float64 returns the double payload.
func (v Value) Float64() (float64, bool) { return v.f, v.kind == KindDouble }

// UUIDValue returns the UUID payload.
func (v Value) UUIDValue() (uuid.UUID, bool) { return v.id, v.kind == KindUUID }

// IsNumeric reports whether the value holds a number or a timestamp.
func (v Value) IsNumeric() bool {
	switch v.kind {
	case KindInt, KindUint, KindDouble, KindTimestamp, KindIPv4:
		return true
	}
	return false
}

// Number converts numeric kinds to float64.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindUint, KindTimestamp, KindIPv4:
		return float64(v.u), true
	case KindDouble:
		return v.f, true
	}
	return 0, false
}

// String renders the canonical text form: decimal for numbers and timestamps
// (microseconds), dotted quads for addresses, the RFC 4122 form for UUIDs,
// "" for null.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUint, KindTimestamp:
		return strconv.FormatUint(v.u, 10)
	case KindDouble:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindUUID:
		return v.id.String()
	case KindIPv4:
		return netip.AddrFrom4([4]byte{byte(v.u >> 24), byte(v.u >> 16), byte(v.u >> 8), byte(v.u)}).String()
	}
	return ""
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindUint, KindTimestamp, KindIPv4:
		return v.u == o.u
	case KindDouble:
		return v.f == o.f
	case KindUUID:
		return v.id == o.id
	}
	return false
}

// CompareNumeric orders two values numerically. Values that are not numeric sort
// after numeric ones and compare by their text form among themselves.
func CompareNumeric(a, b Value) int {
	an, aok := a.Number()
	bn, bok := b.Number()
	switch {
	case aok && bok:
		if a.kind == b.kind {
			switch a.kind {
			case KindInt:
				return cmpInt(a.i, b.i)
			case KindUint, KindTimestamp, KindIPv4:
				return cmpUint(a.u, b.u)
			}
		}
		return cmpFloat(an, bn)
	case aok:
		return -1
	case bok:
		return 1
	}
	if af, ok := parseNumber(a.String()); ok {
		if bf, ok := parseNumber(b.String()); ok {
			return cmpFloat(af, bf)
		}
	}
	return CompareString(a, b)
}

// CompareString orders two values by their text form.
func CompareString(a, b Value) int {
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

// ParseIPv4 reads an address given as a dotted quad or as its decimal
// integer form.
func ParseIPv4(s string) (uint32, bool) {
	if u, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(u), true
	}
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), true
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
