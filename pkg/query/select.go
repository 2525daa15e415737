package query

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/vizd/qe/pkg/result"
	"github.com/vizd/qe/pkg/schema"
	"github.com/vizd/qe/pkg/storage"
)

const clauseSelect = "select_fields"

// FlowSeriesQuery classifies a flow-series projection by the record payload it needs.
type FlowSeriesQuery uint8

const (
	FlowSeriesT FlowSeriesQuery = iota
	FlowSeriesStats
	FlowSeriesTuple
	FlowSeriesTupleStats
)

func (q FlowSeriesQuery) shape() result.Shape {
	switch q {
	case FlowSeriesStats:
		return result.ShapeStats
	case FlowSeriesTuple, FlowSeriesTupleStats:
		return result.ShapeStatsTuple
	}
	return result.ShapePlain
}

// ProjectionField is one output column.
type ProjectionField struct {
	Name string
	// Column is the stored column the field reads.
	Column string
	Agg    result.AggKind
	// Granularity is the bucket width in microseconds of a T=<seconds> field.
	Granularity uint64

	timestamp bool
	flowCount bool
}

// Projection is the parsed SELECT clause.
type Projection struct {
	Fields  []ProjectionField
	Columns []string
	// TimeSeries is set when T or T=<seconds> is selected.
	TimeSeries  bool
	Granularity uint64
	FlowSeries  FlowSeriesQuery

	aggregating   bool
	objectIDQuery bool
}

func parseSelect(raw string, tbl *schema.TableSchema) (Projection, error) {
	var p Projection
	names, err := readStringArray(raw, clauseSelect)
	if err != nil {
		return p, err
	}
	if len(names) == 0 {
		return p, newInvalidArgumentError(clauseSelect, "no fields selected")
	}

	var tuple, stats bool
	for _, name := range names {
		f, err := parseField(name, tbl)
		if err != nil {
			return p, err
		}
		if f.timestamp {
			p.TimeSeries = true
			if f.Granularity > 0 {
				p.Granularity = f.Granularity
			}
		}
		if f.Agg != result.AggNone {
			p.aggregating = true
		}
		switch {
		case isTupleColumn(f.Column):
			tuple = true
		case f.Column == schema.ColumnBytes || f.Column == schema.ColumnPackets:
			stats = true
		}
		p.Fields = append(p.Fields, f)
		p.Columns = append(p.Columns, f.Name)
	}

	switch {
	case tuple && stats:
		p.FlowSeries = FlowSeriesTupleStats
	case tuple:
		p.FlowSeries = FlowSeriesTuple
	case stats:
		p.FlowSeries = FlowSeriesStats
	}
	p.objectIDQuery = len(names) == 1 && names[0] == schema.ColumnObjectID
	return p, nil
}

func parseField(name string, tbl *schema.TableSchema) (ProjectionField, error) {
	f := ProjectionField{Name: name, Column: name}

	switch {
	case name == schema.ColumnTimestamp || strings.HasPrefix(name, schema.ColumnTimestamp+"="):
		if _, ok := tbl.Column(schema.ColumnTimestamp); !ok {
			return f, newInvalidArgumentError(clauseSelect, "table %s has no time series column", tbl.Name)
		}
		f.Name, f.Column, f.timestamp = schema.ColumnTimestamp, schema.ColumnTimestamp, true
		if name == schema.ColumnTimestamp {
			return f, nil
		}
		secs, err := strconv.ParseUint(strings.TrimPrefix(name, schema.ColumnTimestamp+"="), 10, 64)
		if err != nil || secs == 0 {
			return f, newInvalidArgumentError(clauseSelect, "invalid time granularity %q", name)
		}
		f.Granularity = secs * 1e6
		return f, nil

	case name == schema.ColumnFlowCount:
		if _, ok := tbl.Column(name); !ok {
			return f, newInvalidArgumentError(clauseSelect, "unknown field %q for table %s", name, tbl.Name)
		}
		f.Agg, f.Column, f.flowCount = result.AggCount, schema.ColumnUUID, true
		return f, nil
	}

	if fn, arg, ok := splitAggregate(name); ok {
		if _, ok := tbl.Column(arg); !ok {
			return f, newInvalidArgumentError(clauseSelect, "unknown field %q in %q for table %s", arg, name, tbl.Name)
		}
		f.Column = arg
		switch fn {
		case "sum":
			f.Agg = result.AggSum
		case "avg":
			f.Agg = result.AggAvg
		case "count":
			f.Agg = result.AggCount
		}
		return f, nil
	}

	if _, ok := tbl.Column(name); !ok {
		return f, newInvalidArgumentError(clauseSelect, "unknown field %q for table %s", name, tbl.Name)
	}
	return f, nil
}

// splitAggregate splits "fn(arg)" for the supported aggregate functions.
func splitAggregate(name string) (fn, arg string, ok bool) {
	open := strings.IndexByte(name, '(')
	if open <= 0 || !strings.HasSuffix(name, ")") {
		return "", "", false
	}
	fn, arg = name[:open], name[open+1:len(name)-1]
	switch fn {
	case "sum", "avg", "count":
		return fn, arg, arg != ""
	}
	return "", "", false
}

func isTupleColumn(name string) bool {
	if name == schema.ColumnDirection {
		return true
	}
	for _, c := range schema.FlowTupleColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Has reports whether name is an output column.
func (p *Projection) Has(name string) bool {
	for _, c := range p.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (p *Projection) hasFlowCount() bool {
	for _, f := range p.Fields {
		if f.flowCount {
			return true
		}
	}
	return false
}

// Aggregates returns how each output column folds across batches, or nil
// when the projection does not aggregate.
func (p *Projection) Aggregates() []result.AggKind {
	if !p.aggregating {
		return nil
	}
	aggs := make([]result.AggKind, len(p.Fields))
	for i, f := range p.Fields {
		aggs[i] = f.Agg
	}
	return aggs
}

// accumulator turns scanned records into the rows of one batch.
type accumulator struct {
	proj   *Projection
	origin uint64
	shape  result.Shape
	decode bool

	rows []result.Row

	// aggregation state
	keyAggs []result.AggKind
	addAggs []result.AggKind
	digest  *xxhash.Digest
	groups  map[uint64][]int
	flows   []map[uuid.UUID]struct{}

	seen map[string]struct{}
}

// newAccumulator buckets T=<seconds> fields relative to origin.
func (p *Projection) newAccumulator(table string, origin uint64) *accumulator {
	a := &accumulator{
		proj:   p,
		origin: origin,
		shape:  p.FlowSeries.shape(),
		decode: table == schema.FlowSeriesTable,
	}
	if p.aggregating {
		a.keyAggs = p.Aggregates()
		a.addAggs = make([]result.AggKind, len(a.keyAggs))
		for i, f := range p.Fields {
			if !f.flowCount {
				a.addAggs[i] = f.Agg
			}
		}
		a.digest = xxhash.New()
		a.groups = map[uint64][]int{}
	}
	if p.objectIDQuery {
		a.seen = map[string]struct{}{}
	}
	return a
}

func (a *accumulator) add(rec storage.Record) error {
	var flow *result.FlowRecord
	if a.decode {
		fr, err := result.DecodeFlow(a.shape, rec.Info)
		if err != nil {
			return newAssertionError(err)
		}
		flow = &fr
	}

	values := make([]result.Value, len(a.proj.Fields))
	for i, f := range a.proj.Fields {
		values[i] = a.value(f, rec, flow)
	}

	if !a.proj.aggregating {
		if a.seen != nil {
			k := values[0].String()
			if _, ok := a.seen[k]; ok {
				return nil
			}
			a.seen[k] = struct{}{}
		}
		a.rows = append(a.rows, result.Row{Values: values, Weight: 1})
		return nil
	}

	var id uuid.UUID
	if flow != nil {
		id = flow.UUID
	}
	row := result.Row{Values: values, Weight: 1}
	key := result.GroupKey(a.digest, values, a.keyAggs)
	for _, idx := range a.groups[key] {
		if result.SameGroup(a.rows[idx].Values, values, a.keyAggs) {
			result.Combine(&a.rows[idx], row, a.addAggs)
			a.flows[idx][id] = struct{}{}
			return nil
		}
	}
	a.groups[key] = append(a.groups[key], len(a.rows))
	a.rows = append(a.rows, row)
	a.flows = append(a.flows, map[uuid.UUID]struct{}{id: {}})
	return nil
}

func (a *accumulator) value(f ProjectionField, rec storage.Record, flow *result.FlowRecord) result.Value {
	if f.timestamp {
		ts := rec.Timestamp
		if f.Granularity > 0 && ts >= a.origin {
			ts = a.origin + ((ts-a.origin)/f.Granularity)*f.Granularity
		}
		return result.Timestamp(ts)
	}
	if f.flowCount {
		return result.Null()
	}

	var (
		v  result.Value
		ok bool
	)
	switch {
	case flow != nil && a.shape == result.ShapeStatsTuple && isTupleColumn(f.Column):
		v, ok = flow.Tuple.Column(f.Column)
	case flow != nil && a.shape != result.ShapePlain && f.Column == schema.ColumnBytes:
		v, ok = result.Uint(flow.Stats.Bytes), true
	case flow != nil && a.shape != result.ShapePlain && f.Column == schema.ColumnPackets:
		v, ok = result.Uint(flow.Stats.Packets), true
	default:
		v, ok = rec.Columns[f.Column]
		if !ok && f.Column == schema.ColumnMessageTS {
			v, ok = result.Timestamp(rec.Timestamp), true
		}
	}

	switch f.Agg {
	case result.AggCount:
		if ok && !v.IsNull() {
			return result.Uint(1)
		}
		return result.Uint(0)
	case result.AggAvg:
		n, _ := v.Number()
		return result.Double(n)
	}
	return v
}

// buffer returns the batch rows. The accumulator must not be used afterwards.
func (a *accumulator) buffer(name string) *result.Buffer {
	buf := result.NewBuffer(name, a.proj.Columns)
	for i, f := range a.proj.Fields {
		if !f.flowCount {
			continue
		}
		for r := range a.rows {
			a.rows[r].Values[i] = result.Uint(uint64(len(a.flows[r])))
		}
	}
	buf.Rows = a.rows
	return buf
}
