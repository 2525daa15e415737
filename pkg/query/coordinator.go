package query

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vizd/qe/pkg/iter"
	"github.com/vizd/qe/pkg/result"
	"github.com/vizd/qe/pkg/schema"
	"github.com/vizd/qe/pkg/storage"
)

// Recognised query terms.
const (
	TermTable      = "table"
	TermStartTime  = "start_time"
	TermEndTime    = "end_time"
	TermDirection  = "dir"
	TermWhere      = clauseWhere
	TermSelect     = clauseSelect
	TermSortFields = clauseSortFields
	TermSort       = clauseSort
	TermLimit      = clauseLimit
	TermFilter     = clauseFilter
)

// coordinator owns the parsed form of one query. Parsing stops at the first
// failing stage and the error is kept.
type coordinator struct {
	qid string
	// requested is the table named by the query, table the one scanned.
	requested string
	table     string
	key       string
	tbl       *schema.TableSchema

	reqFrom, reqEnd uint64
	from, end       uint64
	// now is the clock reading end times are clamped to.
	now       uint64
	direction int

	where PredicateSet
	proj  Projection
	post  PostProcess
	plan  Planner

	mergeNeeded bool
	err         error
}

func newCoordinator(e *Engine, p Params) *coordinator {
	c := &coordinator{qid: p.QID, direction: schema.DirectionIngress}
	c.err = c.parse(e, p)
	return c
}

func (c *coordinator) parse(e *Engine, p Params) error {
	raw, ok := p.Terms[TermTable]
	if !ok {
		return newParseError(TermTable, "missing table")
	}
	c.requested = strings.TrimSuffix(strings.TrimPrefix(raw, `"`), `"`)
	tbl, ok := e.catalog.Resolve(c.requested)
	if !ok {
		return newInvalidArgumentError(TermTable, "unknown table %q", c.requested)
	}
	c.table, c.tbl = c.requested, tbl

	var err error
	if c.reqFrom, err = parseTime(p.Terms, TermStartTime); err != nil {
		return err
	}
	if c.reqEnd, err = parseTime(p.Terms, TermEndTime); err != nil {
		return err
	}
	c.from = max(c.reqFrom, e.cfg.AnalyticsStartTime)
	c.now = p.Now
	if c.now == 0 {
		c.now = uint64(e.clock.Now().UnixMicro())
	}
	c.end = min(c.reqEnd, c.now)

	if raw, ok := p.Terms[TermDirection]; ok {
		if c.direction, err = strconv.Atoi(raw); err != nil {
			return newParseError(TermDirection, "invalid flow direction %q", raw)
		}
		if c.direction != schema.DirectionEgress && c.direction != schema.DirectionIngress {
			return newInvalidArgumentError(TermDirection, "unknown flow direction %d", c.direction)
		}
	}

	if c.where, err = parseWhere(p.Terms[TermWhere]); err != nil {
		return err
	}

	rawSelect, ok := p.Terms[TermSelect]
	if !ok {
		return newParseError(TermSelect, "missing select fields")
	}
	if c.proj, err = parseSelect(rawSelect, c.tbl); err != nil {
		return err
	}

	// ObjectId lists are read from the shared object value table.
	if e.catalog.IsObjectTable(c.table) && c.proj.objectIDQuery {
		c.key = c.table
		c.table = schema.ObjectValueTable
		c.tbl, _ = e.catalog.LookupTable(schema.ObjectValueTable)
	}

	if err := validateWhere(c.where, c.tbl); err != nil {
		return err
	}
	if e.catalog.IsObjectTable(c.table) && c.where.Empty() {
		return newInvalidArgumentError(TermWhere, "table %s cannot be queried without a where clause", c.table)
	}
	c.addImplicitPredicates(e.cfg)

	if c.post, err = parsePostProcess(p.Terms, c.tbl, &c.proj); err != nil {
		return err
	}
	c.mergeNeeded = c.post.present

	if c.from > c.end {
		c.from = c.end - min(c.end, 1)
	}

	parallel := c.parallelizable()
	c.plan = PlanBatches(c.from, c.end, p.MaxBatches, schema.MinGranularity, c.proj.Granularity, parallel)
	if parallel && c.needsFlowMerge() {
		c.mergeNeeded = true
	}
	return nil
}

func parseTime(terms map[string]string, key string) (uint64, error) {
	raw, ok := terms[key]
	if !ok {
		return 0, newParseError(key, "missing %s", key)
	}
	ts, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, newParseError(key, "invalid timestamp %q", raw)
	}
	return ts, nil
}

func (c *coordinator) addImplicitPredicates(cfg Config) {
	if schema.IsFlowTable(c.table) {
		c.where.and(Predicate{
			Name:          schema.ColumnDirection,
			Op:            OpEqual,
			Value:         strconv.Itoa(c.direction),
			IgnoreAbsence: true,
		})
	}
	if c.table == schema.MessageTable && cfg.FilterOwnLogs {
		c.where.and(Predicate{
			Name:          schema.ColumnModule,
			Op:            OpNotEqual,
			Value:         cfg.ModuleID,
			IgnoreAbsence: true,
		})
	}
}

// parallelizable reports whether batches can run independently. A flow
// count without time buckets needs every flow uuid in one place, and the
// object value table is never split.
func (c *coordinator) parallelizable() bool {
	switch {
	case c.table == schema.FlowSeriesTable && !c.proj.TimeSeries && c.proj.hasFlowCount():
		return false
	case c.table == schema.ObjectValueTable:
		return false
	}
	return true
}

func (c *coordinator) needsFlowMerge() bool {
	switch c.table {
	case schema.FlowRecordTable:
		return true
	case schema.FlowSeriesTable:
		if c.proj.FlowSeries == FlowSeriesStats || c.proj.FlowSeries == FlowSeriesTupleStats {
			return true
		}
	}
	// Groups of an aggregation without time buckets span batches.
	return c.proj.aggregating && !c.proj.TimeSeries && len(c.plan.Windows()) > 1
}

func (c *coordinator) emptyBuffer() *result.Buffer {
	return result.NewBuffer(c.requested, c.proj.Columns)
}

// execute runs the pipeline for one batch.
func (c *coordinator) execute(ctx context.Context, store storage.Store, batch int, logger log.Logger) (*result.Buffer, error) {
	if c.err != nil {
		return c.emptyBuffer(), c.err
	}
	w, ok := c.plan.Window(batch)
	if !ok {
		level.Debug(logger).Log("msg", "no processing needed for batch")
		return c.emptyBuffer(), nil
	}
	level.Debug(logger).Log("msg", "executing batch", "table", c.table, "window", w.String(), "where", c.where.String())

	it, err := store.Scan(ctx, storage.ScanRequest{
		Table:  c.table,
		Key:    c.key,
		Window: w,
		Shape:  c.proj.FlowSeries.shape(),
		Filter: c.where,
	})
	if err != nil {
		c.err = newStorageError(err)
		return c.emptyBuffer(), c.err
	}
	defer func() {
		if err := iter.Close[storage.Record](it); err != nil {
			level.Warn(logger).Log("msg", "failed to close scan", "err", err)
		}
	}()

	acc := c.proj.newAccumulator(c.table, c.from)
	for it.Next() {
		rec := it.At()
		if !c.where.Matches(rec.Columns) {
			continue
		}
		if err := acc.add(rec); err != nil {
			c.err = err
			return c.emptyBuffer(), c.err
		}
	}
	if err := it.Err(); err != nil {
		c.err = newStorageError(err)
		return c.emptyBuffer(), c.err
	}

	buf := acc.buffer(c.requested)
	c.post.apply(buf, &c.proj, c.limitPerBatch())
	return buf, nil
}

// limitPerBatch reports whether the limit may be applied before every batch
// is merged. Groups of an aggregation without time buckets span batches.
func (c *coordinator) limitPerBatch() bool {
	return !c.proj.aggregating || c.proj.TimeSeries
}
