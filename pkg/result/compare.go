package result

// Direction is the sort order of a sorted query.
type Direction uint8

const (
	Ascending  Direction = 1
	Descending Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	}
	return "unknown"
}

// SortField names an output column to sort by and the datatype it compares as.
type SortField struct {
	Name     string
	Datatype string
}

type sortKey struct {
	index   int
	numeric bool
}

// Comparator orders rows by a composite key. The first sort field decides unless
// equal, then the next one, and so on.
type Comparator struct {
	keys []sortKey
	desc bool
}

// NewComparator resolves fields against the output columns. Fields that are not
// output columns compare equal for every row.
func NewComparator(columns []string, fields []SortField, dir Direction) Comparator {
	c := Comparator{desc: dir == Descending}
	for _, f := range fields {
		idx := -1
		for i, col := range columns {
			if col == f.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		c.keys = append(c.keys, sortKey{index: idx, numeric: f.Datatype != "string"})
	}
	return c
}

// Compare returns a negative number when a sorts before b.
func (c Comparator) Compare(a, b Row) int {
	for _, k := range c.keys {
		av, bv := a.Get(k.index), b.Get(k.index)
		var r int
		if k.numeric {
			r = CompareNumeric(av, bv)
		} else {
			r = CompareString(av, bv)
		}
		if r != 0 {
			if c.desc {
				return -r
			}
			return r
		}
	}
	return 0
}

// IsSorted reports whether rows are ordered by c.
func (c Comparator) IsSorted(rows []Row) bool {
	for i := 1; i < len(rows); i++ {
		if c.Compare(rows[i-1], rows[i]) > 0 {
			return false
		}
	}
	return true
}
