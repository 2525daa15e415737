package result

// Row is one result row. The meaning of each position is defined by the query's
// projection, not stored with the row.
type Row struct {
	Values []Value
	// Weight is the number of source records folded into this row. It is 1 for
	// rows that are not aggregates and lets averages be combined across batches.
	Weight uint64
}

// NewRow returns a row of weight 1.
func NewRow(values ...Value) Row {
	return Row{Values: values, Weight: 1}
}

// Get returns the value at position i, or null when i is out of range.
func (r Row) Get(i int) Value {
	if i < 0 || i >= len(r.Values) {
		return Null()
	}
	return r.Values[i]
}

// Buffer is a named, ordered sequence of rows: one batch's result or a merged result.
type Buffer struct {
	Name    string
	Columns []string
	Rows    []Row
}

// NewBuffer returns an empty buffer.
func NewBuffer(name string, columns []string) *Buffer {
	return &Buffer{Name: name, Columns: columns}
}

// Len returns the number of rows.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// ColumnIndex returns the position of the named output column, or -1.
func (b *Buffer) ColumnIndex(name string) int {
	for i, c := range b.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Maps renders the rows as column-name to text maps, the shape callers ship onward.
func (b *Buffer) Maps() []map[string]string {
	out := make([]map[string]string, 0, b.Len())
	for _, r := range b.Rows {
		m := make(map[string]string, len(b.Columns))
		for i, c := range b.Columns {
			v := r.Get(i)
			if v.IsNull() {
				continue
			}
			m[c] = v.String()
		}
		out = append(out, m)
	}
	return out
}
