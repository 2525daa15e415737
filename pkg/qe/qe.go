package qe

import (
	"context"
	"flag"
	"net/http"

	"github.com/coder/quartz"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"

	"github.com/vizd/qe/pkg/api"
	"github.com/vizd/qe/pkg/delivery"
	"github.com/vizd/qe/pkg/querier"
	"github.com/vizd/qe/pkg/query"
	"github.com/vizd/qe/pkg/schema"
	"github.com/vizd/qe/pkg/server"
	"github.com/vizd/qe/pkg/storage"
	"github.com/vizd/qe/pkg/storage/cassandra"
)

// Config is the root config for the query engine daemon.
type Config struct {
	CreateTables bool `yaml:"create_tables"`

	Server    server.Config    `yaml:"server"`
	Engine    query.Config     `yaml:"engine"`
	Querier   querier.Config   `yaml:"querier"`
	Storage   storage.Config   `yaml:"storage"`
	Cassandra cassandra.Config `yaml:"cassandra"`
	Delivery  delivery.Config  `yaml:"delivery"`
}

// RegisterFlags registers flag.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	f.BoolVar(&c.CreateTables, "storage.create-tables", false, "Create the Cassandra tables of every catalog table at startup.")

	c.Server.RegisterFlags(f)
	c.Engine.RegisterFlags(f)
	c.Querier.RegisterFlags(f)
	c.Storage.RegisterFlags(f)
	c.Cassandra.RegisterFlags(f)
	c.Delivery.RegisterFlags(f)
}

// Validate the config and returns an error if the validation
// doesn't pass
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return errors.Wrap(err, "invalid server config")
	}
	if err := c.Engine.Validate(); err != nil {
		return errors.Wrap(err, "invalid engine config")
	}
	if err := c.Querier.Validate(); err != nil {
		return errors.Wrap(err, "invalid querier config")
	}
	if err := c.Storage.Validate(); err != nil {
		return errors.Wrap(err, "invalid storage config")
	}
	if c.Storage.Backend == storage.BackendCassandra {
		if err := c.Cassandra.Validate(); err != nil {
			return errors.Wrap(err, "invalid cassandra config")
		}
	}
	if err := c.Delivery.Validate(); err != nil {
		return errors.Wrap(err, "invalid delivery config")
	}
	return nil
}

// QE is the root datastructure of the query engine daemon.
type QE struct {
	Cfg Config

	Store   storage.Store
	Engine  *query.Engine
	Querier *querier.Querier
	Sink    delivery.Sink
	Handler http.Handler

	// srv is set once storage is ready and the server is listening.
	srv      atomic.Pointer[server.Server]
	defaults Config
	reg      prometheus.Registerer
	gatherer prometheus.Gatherer
	logger   log.Logger
	closers  []func() error
}

// New builds every component from cfg. Metrics are registered with reg and
// served from gatherer.
func New(cfg Config, defaults Config, reg prometheus.Registerer, gatherer prometheus.Gatherer, logger log.Logger) (*QE, error) {
	t := &QE{Cfg: cfg, defaults: defaults, reg: reg, gatherer: gatherer, logger: logger}
	catalog := schema.Default()

	switch cfg.Storage.Backend {
	case storage.BackendCassandra:
		store, err := cassandra.NewStore(cfg.Cassandra, catalog, reg, logger)
		if err != nil {
			return nil, errors.Wrap(err, "error initialising cassandra store")
		}
		t.closers = append(t.closers, func() error { store.Close(); return nil })
		t.Store = store
	default:
		t.Store = storage.NewMemStore()
	}

	t.Sink = delivery.Discard
	if cfg.Delivery.Redis.Enabled() {
		sink := delivery.NewRedisSink(cfg.Delivery.Redis)
		t.closers = append(t.closers, sink.Close)
		t.Sink = sink
	}

	t.Engine = query.NewEngine(cfg.Engine, catalog, t.Store, quartz.NewReal(), logger)
	t.Querier = querier.New(cfg.Querier, t.Engine, t.Sink, reg, logger)

	r := mux.NewRouter()
	t.registerRoutes(r, gatherer)
	t.Handler = r
	return t, nil
}

// registerRoutes adds the query API and /config to r. /metrics is added when
// gatherer is set.
func (t *QE) registerRoutes(r *mux.Router, gatherer prometheus.Gatherer) {
	api.New(t.Querier, t.Store, t.logger).Register(r, gatherer)
	r.Path("/config").Methods(http.MethodGet).Handler(configHandler(t.Cfg, t.defaults))
}

func (t *QE) initServer() error {
	srv, err := server.New(t.Cfg.Server, t.reg, t.gatherer, t.logger)
	if err != nil {
		return err
	}
	var gatherer prometheus.Gatherer
	if !t.Cfg.Server.RegisterInstrumentation {
		gatherer = t.gatherer
	}
	t.registerRoutes(srv.HTTP, gatherer)
	t.srv.Store(srv)
	return nil
}

func (t *QE) server() *server.Server { return t.srv.Load() }

// Run waits for storage and serves queries until ctx is done.
func (t *QE) Run(ctx context.Context) error {
	defer t.close()

	if err := storage.WaitReady(ctx, t.Store, t.Cfg.Storage, t.logger); err != nil {
		if ctx.Err() != nil {
			// Stopped before storage came up.
			return nil
		}
		return err
	}
	if creator, ok := t.Store.(interface{ CreateTables(context.Context) error }); ok && t.Cfg.CreateTables {
		if err := creator.CreateTables(ctx); err != nil {
			return err
		}
	}
	if err := t.initServer(); err != nil {
		return err
	}
	srv := t.server()
	level.Info(t.logger).Log("msg", "query engine started", "backend", t.Cfg.Storage.Backend, "http", srv.HTTPListenAddr())
	err := srv.Run(ctx)
	level.Info(t.logger).Log("msg", "query engine stopped")
	return err
}

func (t *QE) close() {
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil {
			level.Warn(t.logger).Log("msg", "error closing component", "err", err)
		}
	}
}
