package query

import (
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/vizd/qe/pkg/result"
	"github.com/vizd/qe/pkg/schema"
)

const (
	clauseSort       = "sort"
	clauseSortFields = "sort_fields"
	clauseLimit      = "limit"
	clauseFilter     = "filter"
)

// Sort fields that are always accepted when the table has them.
var fixedSortFields = map[string]struct{}{
	schema.ColumnPackets:    {},
	schema.ColumnBytes:      {},
	schema.ColumnSumPackets: {},
	schema.ColumnSumBytes:   {},
	schema.ColumnAvgPackets: {},
	schema.ColumnAvgBytes:   {},
}

// PostProcess holds the result-level filter, sort and limit of a query.
type PostProcess struct {
	Sorted     bool
	Direction  result.Direction
	SortFields []result.SortField
	// Limit is the maximum number of result rows. Zero means unlimited.
	Limit   int
	Filters []Predicate

	// present is set when any of sort, sort_fields or limit was given.
	present bool
}

func parsePostProcess(terms map[string]string, tbl *schema.TableSchema, proj *Projection) (PostProcess, error) {
	var pp PostProcess

	if raw, ok := terms[clauseSort]; ok {
		pp.present = true
		code, err := strconv.Atoi(raw)
		if err != nil {
			return pp, newParseError(clauseSort, "invalid sort order %q", raw)
		}
		dir := result.Direction(code)
		if dir != result.Ascending && dir != result.Descending {
			return pp, newInvalidArgumentError(clauseSort, "unknown sort order %d", code)
		}
		pp.Sorted, pp.Direction = true, dir
	}

	if raw, ok := terms[clauseLimit]; ok {
		pp.present = true
		limit, err := strconv.ParseUint(raw, 10, 31)
		if err != nil {
			return pp, newParseError(clauseLimit, "invalid limit %q", raw)
		}
		pp.Limit = int(limit)
	}

	if raw, ok := terms[clauseSortFields]; ok {
		pp.present = true
		names, err := readStringArray(raw, clauseSortFields)
		if err != nil {
			return pp, err
		}
		for _, name := range names {
			col, ok := tbl.Column(name)
			if !ok {
				return pp, newInvalidArgumentError(clauseSortFields, "unknown sort field %q for table %s", name, tbl.Name)
			}
			if _, fixed := fixedSortFields[name]; !fixed && !proj.Has(name) {
				return pp, newInvalidArgumentError(clauseSortFields, "sort field %q is not selected", name)
			}
			pp.SortFields = append(pp.SortFields, result.SortField{Name: name, Datatype: col.Datatype})
		}
	}

	if raw, ok := terms[clauseFilter]; ok {
		err := readDocument(raw, clauseFilter, func(it *jsoniter.Iterator) error {
			m, err := readMatch(it, clauseFilter)
			if err != nil {
				return err
			}
			p, err := newPredicate(m, clauseFilter)
			if err != nil {
				return err
			}
			// Rows without the filter field never pass it.
			pp.Filters = append(pp.Filters, p)
			return nil
		})
		if err != nil {
			return pp, err
		}
	}

	// Sort fields without a sort order sort ascending.
	if len(pp.SortFields) > 0 && !pp.Sorted {
		pp.Sorted, pp.Direction = true, result.Ascending
	}
	return pp, nil
}

// mergeOptions describes how batch buffers of this query combine.
func (pp *PostProcess) mergeOptions(proj *Projection) result.MergeOptions {
	return result.MergeOptions{
		Sorted:     pp.Sorted,
		Direction:  pp.Direction,
		SortFields: pp.SortFields,
		Limit:      pp.Limit,
		Aggregates: proj.Aggregates(),
	}
}

// apply filters, sorts and limits one batch buffer in place. localLimit is
// false when rows of one group may still arrive from other batches.
func (pp *PostProcess) apply(buf *result.Buffer, proj *Projection, localLimit bool) {
	if len(pp.Filters) > 0 {
		idx := make([]int, len(pp.Filters))
		for i, f := range pp.Filters {
			idx[i] = buf.ColumnIndex(f.Name)
		}
		kept := buf.Rows[:0]
		for _, r := range buf.Rows {
			ok := true
			for i, f := range pp.Filters {
				if !f.Match(r.Get(idx[i]), idx[i] >= 0) {
					ok = false
					break
				}
			}
			if ok {
				kept = append(kept, r)
			}
		}
		buf.Rows = kept
	}
	opts := pp.mergeOptions(proj)
	if !localLimit {
		opts.Limit = 0
	}
	result.SortLimit(buf, opts)
}
