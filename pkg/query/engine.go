package query

import (
	"context"
	"errors"
	"flag"

	"github.com/coder/quartz"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/vizd/qe/pkg/result"
	"github.com/vizd/qe/pkg/schema"
	"github.com/vizd/qe/pkg/storage"
	util_log "github.com/vizd/qe/pkg/util/log"
)

// Config configures the query engine.
type Config struct {
	ModuleID      string `yaml:"module_id"`
	FilterOwnLogs bool   `yaml:"filter_own_logs"`
	// AnalyticsStartTime is the earliest time, in microseconds, data exists for.
	AnalyticsStartTime uint64 `yaml:"analytics_start_time"`
}

// RegisterFlags registers flags.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("engine.", f)
}

// RegisterFlagsWithPrefix registers flags where every name is prefixed by
// prefix. If prefix is a non-empty string, prefix should end with a period.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.ModuleID, prefix+"module-id", schema.DefaultModuleID, "Module name the engine logs under. Log queries exclude it when filter-own-logs is set.")
	f.BoolVar(&cfg.FilterOwnLogs, prefix+"filter-own-logs", true, "Exclude the engine's own log messages from message table queries.")
	f.Uint64Var(&cfg.AnalyticsStartTime, prefix+"analytics-start-time", 0, "Earliest queryable time in microseconds since epoch. Earlier start times are raised to it.")
}

func (cfg *Config) Validate() error {
	if cfg.ModuleID == "" {
		return errors.New("engine.module-id must not be empty")
	}
	return nil
}

// Params identifies one query request.
type Params struct {
	QID   string
	Terms map[string]string
	// MaxBatches is the number of batches the caller is willing to run.
	MaxBatches int
	// Now, in microseconds, is the time end times are clamped to. Zero reads
	// the engine clock. Every batch of one request must see the same value,
	// so callers copy Plan.Now here after Prepare.
	Now uint64
}

// Plan is the outcome of Prepare.
type Plan struct {
	Table      string
	NeedsMerge bool
	// Now is the clock reading the windows were computed against.
	Now     uint64
	Windows []storage.Window
	Merge   result.MergeOptions
}

// Engine validates, executes and merges analytics queries.
type Engine struct {
	cfg     Config
	catalog *schema.Catalog
	store   storage.Store
	clock   quartz.Clock
	logger  log.Logger
}

func NewEngine(cfg Config, catalog *schema.Catalog, store storage.Store, clock quartz.Clock, logger log.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		catalog: catalog,
		store:   store,
		clock:   clock,
		logger:  logger,
	}
}

func (e *Engine) coordinator(p Params, batch int) (*coordinator, log.Logger) {
	logger := util_log.WithQuery(e.logger, p.QID, batch)
	c := newCoordinator(e, p)
	if c.err != nil {
		level.Debug(logger).Log("msg", "query rejected", "err", c.err)
	}
	return c, logger
}

// Prepare validates the query and computes its batch windows without
// touching storage.
func (e *Engine) Prepare(p Params) (Plan, error) {
	c, _ := e.coordinator(p, 0)
	if c.err != nil {
		return Plan{}, c.err
	}
	return Plan{
		Table:      c.requested,
		NeedsMerge: c.mergeNeeded,
		Now:        c.now,
		Windows:    c.plan.Windows(),
		Merge:      c.post.mergeOptions(&c.proj),
	}, nil
}

// Execute runs batch of the query. The buffer is empty whenever err is set.
func (e *Engine) Execute(ctx context.Context, p Params, batch int) (*result.Buffer, error) {
	c, logger := e.coordinator(p, batch)
	buf, err := c.execute(ctx, e.store, batch, logger)
	if err != nil && errors.Is(err, ErrStorage) {
		level.Warn(logger).Log("msg", "batch failed", "err", err)
	}
	return buf, err
}

// MergePartial folds the next batch buffer into acc. Batches are folded in
// index order and the accumulated buffer is finished with MergeFinal.
func (e *Engine) MergePartial(p Params, acc, next *result.Buffer) (*result.Buffer, error) {
	c, _ := e.coordinator(p, 0)
	if c.err != nil {
		return nil, c.err
	}
	opts := c.post.mergeOptions(&c.proj)
	if !c.limitPerBatch() {
		opts.Limit = 0
	}
	return result.MergePartial(acc, next, opts), nil
}

// MergeFinal merges every batch buffer, given in batch order.
func (e *Engine) MergeFinal(p Params, bufs []*result.Buffer) (*result.Buffer, error) {
	c, _ := e.coordinator(p, 0)
	if c.err != nil {
		return nil, c.err
	}
	out := result.MergeFinal(bufs, c.post.mergeOptions(&c.proj))
	if out.Name == "" {
		out.Name = c.requested
		out.Columns = c.proj.Columns
	}
	return out, nil
}
