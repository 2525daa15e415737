package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vizd/qe/pkg/result"
	"github.com/vizd/qe/pkg/schema"
)

func TestParsePostProcess(t *testing.T) {
	flows := mustTable(t, schema.FlowSeriesTable)
	proj, err := parseSelect(`["sourcevn","sum(bytes)"]`, flows)
	require.NoError(t, err)

	for _, tc := range []struct {
		name  string
		terms map[string]string
		want  PostProcess
	}{
		{
			name:  "nothing",
			terms: map[string]string{},
			want:  PostProcess{},
		},
		{
			name:  "limit only",
			terms: map[string]string{TermLimit: "10"},
			want:  PostProcess{Limit: 10, present: true},
		},
		{
			name:  "sort fields default ascending",
			terms: map[string]string{TermSortFields: `["bytes"]`},
			want: PostProcess{
				Sorted:     true,
				Direction:  result.Ascending,
				SortFields: []result.SortField{{Name: "bytes", Datatype: schema.TypeLong}},
				present:    true,
			},
		},
		{
			name:  "descending selected field",
			terms: map[string]string{TermSort: "2", TermSortFields: `["sourcevn","sum(bytes)"]`},
			want: PostProcess{
				Sorted:    true,
				Direction: result.Descending,
				SortFields: []result.SortField{
					{Name: "sourcevn", Datatype: schema.TypeString},
					{Name: "sum(bytes)", Datatype: schema.TypeLong},
				},
				present: true,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			pp, err := parsePostProcess(tc.terms, flows, &proj)
			require.NoError(t, err)
			require.Equal(t, tc.want, pp)
		})
	}
}

func TestParsePostProcessErrors(t *testing.T) {
	flows := mustTable(t, schema.FlowSeriesTable)
	proj, err := parseSelect(`["sourcevn","sum(bytes)"]`, flows)
	require.NoError(t, err)

	for _, tc := range []struct {
		name  string
		terms map[string]string
		want  error
	}{
		{"sort not a number", map[string]string{TermSort: "up"}, ErrParse},
		{"sort unknown", map[string]string{TermSort: "0"}, ErrInvalidArgument},
		{"limit negative", map[string]string{TermLimit: "-3"}, ErrParse},
		{"limit too large", map[string]string{TermLimit: "4294967296"}, ErrParse},
		{"sort fields not json", map[string]string{TermSortFields: `bytes`}, ErrParse},
		{"sort field unknown", map[string]string{TermSortFields: `["Source"]`}, ErrInvalidArgument},
		{"sort field not selected", map[string]string{TermSortFields: `["destvn"]`}, ErrInvalidArgument},
		{"filter trailing input", map[string]string{TermFilter: `[{"name":"sourcevn","value":"x","op":1}] x`}, ErrParse},
		{"filter bad op", map[string]string{TermFilter: `[{"name":"sourcevn","value":"x","op":42}]`}, ErrInvalidArgument},
		{"filter missing name", map[string]string{TermFilter: `[{"value":"x","op":1}]`}, ErrParse},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parsePostProcess(tc.terms, flows, &proj)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPostProcessApply(t *testing.T) {
	messages := mustTable(t, schema.MessageTable)
	proj, err := parseSelect(`["Source","SequenceNum"]`, messages)
	require.NoError(t, err)
	pp, err := parsePostProcess(map[string]string{
		TermSort:       "2",
		TermSortFields: `["SequenceNum"]`,
		TermLimit:      "2",
		TermFilter:     `[{"name":"Source","value":"^a","op":8}]`,
	}, messages, &proj)
	require.NoError(t, err)

	newBuf := func() *result.Buffer {
		buf := result.NewBuffer(schema.MessageTable, proj.Columns)
		for _, r := range [][2]any{{"a1", 3}, {"b1", 9}, {"a2", 7}, {"a3", 5}} {
			buf.Rows = append(buf.Rows, result.NewRow(result.String(r[0].(string)), result.Int(int64(r[1].(int)))))
		}
		return buf
	}

	buf := newBuf()
	pp.apply(buf, &proj, true)
	require.Equal(t, []map[string]string{
		{"Source": "a2", "SequenceNum": "7"},
		{"Source": "a3", "SequenceNum": "5"},
	}, buf.Maps())

	buf = newBuf()
	pp.apply(buf, &proj, false)
	require.Len(t, buf.Rows, 3)
}

func TestFilterOnUnselectedField(t *testing.T) {
	messages := mustTable(t, schema.MessageTable)
	proj, err := parseSelect(`["Source"]`, messages)
	require.NoError(t, err)
	pp, err := parsePostProcess(map[string]string{
		TermFilter: `[{"name":"Module","value":"ControlNode","op":1}]`,
	}, messages, &proj)
	require.NoError(t, err)

	buf := result.NewBuffer(schema.MessageTable, proj.Columns)
	buf.Rows = append(buf.Rows, result.NewRow(result.String("a1")), result.NewRow(result.String("a2")))
	pp.apply(buf, &proj, true)
	require.Zero(t, buf.Len())
}
