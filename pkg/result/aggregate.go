package result

import (
	"github.com/cespare/xxhash/v2"
)

// AggKind says how a column combines when rows with equal group keys are folded.
type AggKind uint8

const (
	// AggNone marks a group-key column.
	AggNone AggKind = iota
	AggSum
	AggAvg
	AggCount
)

// GroupKey hashes the group-key columns of a row.
func GroupKey(d *xxhash.Digest, values []Value, aggs []AggKind) uint64 {
	d.Reset()
	for i, v := range values {
		if i < len(aggs) && aggs[i] != AggNone {
			continue
		}
		_, _ = d.Write([]byte{byte(v.kind)})
		_, _ = d.WriteString(v.String())
		_, _ = d.Write([]byte{0}) // separator
	}
	return d.Sum64()
}

// SameGroup reports whether a and b agree on every group-key column.
func SameGroup(a, b []Value, aggs []AggKind) bool {
	for i := range a {
		if i < len(aggs) && aggs[i] != AggNone {
			continue
		}
		if i >= len(b) || !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Combine folds src into dst, which must share its group key.
func Combine(dst *Row, src Row, aggs []AggKind) {
	for i, kind := range aggs {
		if i >= len(dst.Values) || i >= len(src.Values) {
			break
		}
		switch kind {
		case AggSum, AggCount:
			dst.Values[i] = addValues(dst.Values[i], src.Values[i])
		case AggAvg:
			a, _ := dst.Values[i].Number()
			b, _ := src.Values[i].Number()
			total := dst.Weight + src.Weight
			if total == 0 {
				continue
			}
			dst.Values[i] = Double((a*float64(dst.Weight) + b*float64(src.Weight)) / float64(total))
		}
	}
	dst.Weight += src.Weight
}

func addValues(a, b Value) Value {
	switch {
	case a.IsNull():
		return b
	case b.IsNull():
		return a
	case a.kind == KindUint && b.kind == KindUint:
		return Uint(a.u + b.u)
	case a.kind == KindInt && b.kind == KindInt:
		return Int(a.i + b.i)
	}
	af, _ := a.Number()
	bf, _ := b.Number()
	return Double(af + bf)
}

// Fold merges rows with equal group keys, keeping the position of the first
// occurrence of each group.
func Fold(rows []Row, aggs []AggKind) []Row {
	if len(rows) == 0 {
		return rows
	}
	var (
		d      = xxhash.New()
		groups = make(map[uint64][]int, len(rows))
		out    = make([]Row, 0, len(rows))
	)
outer:
	for _, r := range rows {
		key := GroupKey(d, r.Values, aggs)
		for _, idx := range groups[key] {
			if SameGroup(out[idx].Values, r.Values, aggs) {
				Combine(&out[idx], r, aggs)
				continue outer
			}
		}
		groups[key] = append(groups[key], len(out))
		out = append(out, Row{Values: append([]Value(nil), r.Values...), Weight: r.Weight})
	}
	return out
}
