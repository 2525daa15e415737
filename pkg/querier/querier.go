package querier

import (
	"context"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/concurrency"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/vizd/qe/pkg/delivery"
	"github.com/vizd/qe/pkg/query"
	"github.com/vizd/qe/pkg/result"
)

// Engine is the query engine the querier schedules batches on.
type Engine interface {
	Prepare(p query.Params) (query.Plan, error)
	Execute(ctx context.Context, p query.Params, batch int) (*result.Buffer, error)
	MergePartial(p query.Params, acc, next *result.Buffer) (*result.Buffer, error)
	MergeFinal(p query.Params, bufs []*result.Buffer) (*result.Buffer, error)
}

// Request is one query as received from a client.
type Request struct {
	QID   string
	Terms map[string]string
}

// Response is the outcome of a query.
type Response struct {
	QID     string
	Table   string
	Status  int
	Batches int
	// Merged is set when batch results had to be merged rather than appended.
	Merged bool
	Result *result.Buffer
}

// Querier runs the batches of a query concurrently, merges them and hands
// the result to a sink.
type Querier struct {
	cfg    Config
	engine Engine
	sink   delivery.Sink
	logger log.Logger

	inflight *atomic.Int64
	metrics  *metrics
}

func New(cfg Config, engine Engine, sink delivery.Sink, reg prometheus.Registerer, logger log.Logger) *Querier {
	inflight := atomic.NewInt64(0)
	return &Querier{
		cfg:      cfg,
		engine:   engine,
		sink:     sink,
		logger:   logger,
		inflight: inflight,
		metrics:  newMetrics(reg, inflight),
	}
}

func (q *Querier) params(req Request) query.Params {
	return query.Params{QID: req.QID, Terms: req.Terms, MaxBatches: q.cfg.MaxBatches}
}

// Prepare validates req and returns its batch plan without running it.
func (q *Querier) Prepare(req Request) (query.Plan, error) {
	return q.engine.Prepare(q.params(req))
}

// Run executes every batch, merges all batch results at once and delivers
// the merged result.
func (q *Querier) Run(ctx context.Context, req Request) (Response, error) {
	return q.run(ctx, req, "final", q.collect)
}

// RunStreaming folds every batch into a running result as soon as all
// earlier batches have been folded, so at most the out-of-order batches are
// held in memory.
func (q *Querier) RunStreaming(ctx context.Context, req Request) (Response, error) {
	return q.run(ctx, req, "streaming", q.fold)
}

type mergeFunc func(ctx context.Context, p query.Params, plan query.Plan, logger log.Logger) (*result.Buffer, error)

func (q *Querier) run(ctx context.Context, req Request, mode string, merge mergeFunc) (Response, error) {
	start := time.Now()
	q.inflight.Inc()
	defer q.inflight.Dec()

	logger := log.With(q.logger, "qid", req.QID)
	p := q.params(req)
	resp := Response{QID: req.QID, Table: strings.Trim(req.Terms[query.TermTable], `"`)}

	plan, err := q.engine.Prepare(p)
	if err == nil {
		p.Now = plan.Now
		resp.Table = plan.Table
		resp.Batches = len(plan.Windows)
		resp.Merged = plan.NeedsMerge
		level.Debug(logger).Log("msg", "running query", "table", plan.Table, "batches", resp.Batches, "merge", plan.NeedsMerge, "mode", mode)
		resp.Result, err = merge(ctx, p, plan, logger)
	}
	resp.Status = query.StatusCode(err)
	if err != nil {
		resp.Result = nil
	}

	q.metrics.queries.WithLabelValues(statusLabel(resp.Status)).Inc()
	q.metrics.queryDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	q.metrics.rows.Add(float64(resp.Result.Len()))
	level.Info(logger).Log("msg", "query finished", "table", resp.Table, "status", resp.Status, "rows", resp.Result.Len(), "duration", time.Since(start), "err", err)

	if derr := q.sink.Deliver(ctx, delivery.NewResult(req.QID, resp.Table, resp.Result, resp.Status, err)); derr != nil {
		q.metrics.deliveryFails.Inc()
		level.Error(logger).Log("msg", "failed to deliver result", "err", derr)
	}
	return resp, err
}

func (q *Querier) execute(ctx context.Context, p query.Params, batch int) (*result.Buffer, error) {
	q.metrics.batches.Inc()
	return q.engine.Execute(ctx, p, batch)
}

// collect runs every batch and merges them in batch order once all are done.
// The first failing batch decides the error.
func (q *Querier) collect(ctx context.Context, p query.Params, plan query.Plan, _ log.Logger) (*result.Buffer, error) {
	bufs := make([]*result.Buffer, len(plan.Windows))
	err := concurrency.ForEachJob(ctx, len(plan.Windows), q.cfg.BatchConcurrency, func(ctx context.Context, i int) error {
		buf, err := q.execute(ctx, p, i)
		if err != nil {
			return err
		}
		bufs[i] = buf
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q.engine.MergeFinal(p, bufs)
}

type batchResult struct {
	batch int
	buf   *result.Buffer
}

// fold runs every batch and folds finished batches into the running result
// in batch order.
func (q *Querier) fold(ctx context.Context, p query.Params, plan query.Plan, logger log.Logger) (*result.Buffer, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.cfg.BatchConcurrency)

	finished := make(chan batchResult, len(plan.Windows))
	var runErr error
	go func() {
		for i := range plan.Windows {
			g.Go(func() error {
				buf, err := q.execute(gctx, p, i)
				if err != nil {
					return err
				}
				finished <- batchResult{batch: i, buf: buf}
				return nil
			})
		}
		runErr = g.Wait()
		close(finished)
	}()

	var (
		acc      *result.Buffer
		mergeErr error
		next     int
		pending  = map[int]*result.Buffer{}
	)
	for r := range finished {
		pending[r.batch] = r.buf
		for mergeErr == nil {
			buf, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			acc, mergeErr = q.engine.MergePartial(p, acc, buf)
			level.Debug(logger).Log("msg", "folded batch", "batch", next, "rows", acc.Len())
			next++
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	if mergeErr != nil {
		return nil, mergeErr
	}
	if acc == nil {
		return q.engine.MergeFinal(p, nil)
	}
	return q.engine.MergeFinal(p, []*result.Buffer{acc})
}
