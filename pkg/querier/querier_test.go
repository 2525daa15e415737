package querier

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vizd/qe/pkg/delivery"
	"github.com/vizd/qe/pkg/query"
	"github.com/vizd/qe/pkg/result"
	"github.com/vizd/qe/pkg/schema"
	"github.com/vizd/qe/pkg/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const nowMicros = 1_700_000_000_000_000

type recordingSink struct {
	mtx     sync.Mutex
	results []delivery.Result
}

func (s *recordingSink) Deliver(_ context.Context, res delivery.Result) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.results = append(s.results, res)
	return nil
}

func newTestEngine(t *testing.T, store storage.Store) *query.Engine {
	clock := quartz.NewMock(t)
	clock.Set(time.UnixMicro(nowMicros))
	return query.NewEngine(query.Config{ModuleID: schema.DefaultModuleID, FilterOwnLogs: true}, schema.Default(), store, clock, log.NewNopLogger())
}

func messageStore(from uint64, n int) *storage.MemStore {
	store := storage.NewMemStore()
	for i := 0; i < n; i++ {
		ts := from + uint64(i)*schema.MinGranularity + 3
		store.Append(schema.MessageTable, "", storage.Record{Timestamp: ts, Columns: map[string]result.Value{
			schema.ColumnMessageTS: result.Timestamp(ts),
			schema.ColumnSource:    result.String("s" + strconv.Itoa(i%3)),
			schema.ColumnModule:    result.String("ControlNode"),
		}})
	}
	return store
}

func TestRunAndRunStreamingAgree(t *testing.T) {
	from := uint64(nowMicros - 32*schema.MinGranularity)
	e := newTestEngine(t, messageStore(from, 32))
	sink := &recordingSink{}
	reg := prometheus.NewRegistry()
	q := New(Config{MaxBatches: 8, BatchConcurrency: 3}, e, sink, reg, log.NewNopLogger())

	req := Request{QID: "q1", Terms: map[string]string{
		query.TermTable:      `"MessageTable"`,
		query.TermStartTime:  strconv.FormatUint(from, 10),
		query.TermEndTime:    strconv.FormatUint(nowMicros, 10),
		query.TermSelect:     `["MessageTS","Source"]`,
		query.TermSortFields: `["MessageTS"]`,
		query.TermSort:       "2",
		query.TermLimit:      "4",
	}}

	plan, err := q.Prepare(req)
	require.NoError(t, err)
	require.Len(t, plan.Windows, 8)

	final, err := q.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, query.StatusOK, final.Status)
	require.Equal(t, 8, final.Batches)
	require.True(t, final.Merged)
	require.Len(t, final.Result.Rows, 4)
	require.Equal(t, strconv.FormatUint(from+31*schema.MinGranularity+3, 10), final.Result.Rows[0].Get(0).String())

	streamed, err := q.RunStreaming(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, final.Result.Maps(), streamed.Result.Maps())

	require.Len(t, sink.results, 2)
	for _, res := range sink.results {
		require.Equal(t, "q1", res.QID)
		require.Equal(t, schema.MessageTable, res.Table)
		require.Zero(t, res.Status)
		require.NoError(t, res.Err)
		require.Equal(t, final.Result.Maps(), res.Rows)
	}

	require.Equal(t, 2.0, testutil.ToFloat64(q.metrics.queries.WithLabelValues("0")))
	require.Equal(t, 16.0, testutil.ToFloat64(q.metrics.batches))
	require.Equal(t, 8.0, testutil.ToFloat64(q.metrics.rows))
	require.Equal(t, 0.0, testutil.ToFloat64(q.metrics.inflight))
}

func TestRunAggregationStreaming(t *testing.T) {
	from := uint64(nowMicros - 32*schema.MinGranularity)
	e := newTestEngine(t, messageStore(from, 32))
	q := New(Config{MaxBatches: 8, BatchConcurrency: 8}, e, delivery.Discard, prometheus.NewRegistry(), log.NewNopLogger())

	req := Request{QID: "agg", Terms: map[string]string{
		query.TermTable:      `"MessageTable"`,
		query.TermStartTime:  strconv.FormatUint(from, 10),
		query.TermEndTime:    strconv.FormatUint(nowMicros, 10),
		query.TermSelect:     `["Source","count(Module)"]`,
		query.TermSortFields: `["Source"]`,
		query.TermLimit:      "2",
	}}
	want := []map[string]string{
		{"Source": "s0", "count(Module)": "11"},
		{"Source": "s1", "count(Module)": "11"},
	}
	for _, run := range []func(context.Context, Request) (Response, error){q.Run, q.RunStreaming} {
		resp, err := run(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, want, resp.Result.Maps())
	}
}

func TestRunErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		terms  map[string]string
		fail   error
		want   error
		status int
	}{
		{
			name:   "invalid argument",
			terms:  map[string]string{query.TermTable: `"NoSuchTable"`},
			want:   query.ErrInvalidArgument,
			status: query.StatusInvalidArgument,
		},
		{
			name: "parse error",
			terms: map[string]string{
				query.TermTable:     `"MessageTable"`,
				query.TermStartTime: "1",
			},
			want:   query.ErrParse,
			status: query.StatusBadMessage,
		},
		{
			name: "storage failure",
			terms: map[string]string{
				query.TermTable:     `"MessageTable"`,
				query.TermStartTime: "1000000",
				query.TermEndTime:   "100000000",
				query.TermSelect:    `["Source"]`,
			},
			fail:   errors.New("no hosts available"),
			want:   query.ErrStorage,
			status: query.StatusIO,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := storage.NewMemStore()
			if tc.fail != nil {
				store.FailWith(tc.fail)
			}
			sink := &recordingSink{}
			q := New(Config{MaxBatches: 4, BatchConcurrency: 2}, newTestEngine(t, store), sink, prometheus.NewRegistry(), log.NewNopLogger())

			for _, run := range []func(context.Context, Request) (Response, error){q.Run, q.RunStreaming} {
				resp, err := run(context.Background(), Request{QID: "bad", Terms: tc.terms})
				require.ErrorIs(t, err, tc.want)
				require.Equal(t, tc.status, resp.Status)
				require.Nil(t, resp.Result)
			}
			require.Len(t, sink.results, 2)
			require.Equal(t, tc.status, sink.results[0].Status)
			require.ErrorIs(t, sink.results[0].Err, tc.want)
			require.Empty(t, sink.results[0].Rows)
			require.Equal(t, 2.0, testutil.ToFloat64(q.metrics.queries.WithLabelValues(strconv.Itoa(tc.status))))
		})
	}
}

// outOfOrderEngine finishes later batches first.
type outOfOrderEngine struct {
	batches int
	failAt  int

	mtx    sync.Mutex
	folded []string
}

func (e *outOfOrderEngine) Prepare(query.Params) (query.Plan, error) {
	return query.Plan{Table: "T", Windows: make([]storage.Window, e.batches)}, nil
}

func (e *outOfOrderEngine) Execute(ctx context.Context, _ query.Params, batch int) (*result.Buffer, error) {
	select {
	case <-time.After(time.Duration(e.batches-batch) * 5 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if batch == e.failAt {
		return nil, errors.New("batch failed")
	}
	buf := result.NewBuffer("T", []string{"batch"})
	buf.Rows = []result.Row{result.NewRow(result.Int(int64(batch)))}
	return buf, nil
}

func (e *outOfOrderEngine) MergePartial(_ query.Params, acc, next *result.Buffer) (*result.Buffer, error) {
	e.mtx.Lock()
	e.folded = append(e.folded, next.Rows[0].Get(0).String())
	e.mtx.Unlock()
	return result.MergePartial(acc, next, result.MergeOptions{}), nil
}

func (e *outOfOrderEngine) MergeFinal(_ query.Params, bufs []*result.Buffer) (*result.Buffer, error) {
	return result.MergeFinal(bufs, result.MergeOptions{}), nil
}

func TestRunStreamingFoldsInBatchOrder(t *testing.T) {
	e := &outOfOrderEngine{batches: 6, failAt: -1}
	q := New(Config{MaxBatches: 6, BatchConcurrency: 6}, e, delivery.Discard, prometheus.NewRegistry(), log.NewNopLogger())

	resp, err := q.RunStreaming(context.Background(), Request{QID: "q"})
	require.NoError(t, err)
	require.Equal(t, []string{"0", "1", "2", "3", "4", "5"}, e.folded)
	var got []string
	for _, r := range resp.Result.Rows {
		got = append(got, r.Get(0).String())
	}
	require.Equal(t, e.folded, got)

	resp, err = q.Run(context.Background(), Request{QID: "q"})
	require.NoError(t, err)
	require.Len(t, resp.Result.Rows, 6)
	require.Equal(t, "0", resp.Result.Rows[0].Get(0).String())
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	e := &outOfOrderEngine{batches: 6, failAt: 4}
	q := New(Config{MaxBatches: 6, BatchConcurrency: 2}, e, delivery.Discard, prometheus.NewRegistry(), log.NewNopLogger())

	for _, run := range []func(context.Context, Request) (Response, error){q.Run, q.RunStreaming} {
		resp, err := run(context.Background(), Request{QID: "q"})
		require.EqualError(t, err, "batch failed")
		require.Equal(t, query.StatusIO, resp.Status)
		require.Nil(t, resp.Result)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{MaxBatches: 1, BatchConcurrency: 1}
	require.NoError(t, cfg.Validate())
	cfg.MaxBatches = 0
	require.Error(t, cfg.Validate())
	cfg = Config{MaxBatches: 1}
	require.Error(t, cfg.Validate())
}
