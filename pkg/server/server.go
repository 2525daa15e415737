package server

import (
	"context"
	"flag"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	serverww "github.com/grafana/dskit/server"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultHTTPListenPort is the port queries are served on unless configured.
const DefaultHTTPListenPort = 8081

// Config extends the dskit server config.
type Config struct {
	serverww.Config `yaml:",inline"`
}

// RegisterFlags registers the dskit server flags, serving HTTP on
// DefaultHTTPListenPort.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.MetricsNamespace = "qe"
	cfg.ExcludeRequestInLog = true

	ww := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg.Config.RegisterFlags(ww)
	ww.VisitAll(func(fl *flag.Flag) {
		if fl.Name == "server.http-listen-port" {
			return
		}
		f.Var(fl.Value, fl.Name, fl.Usage)
	})
	f.IntVar(&cfg.HTTPListenPort, "server.http-listen-port", DefaultHTTPListenPort, "HTTP server listen port.")
}

func (cfg *Config) Validate() error {
	if cfg.HTTPListenPort < 0 || cfg.HTTPListenPort > 65535 {
		return errors.Errorf("server.http-listen-port %d out of range", cfg.HTTPListenPort)
	}
	if cfg.GRPCListenPort < 0 || cfg.GRPCListenPort > 65535 {
		return errors.Errorf("server.grpc-listen-port %d out of range", cfg.GRPCListenPort)
	}
	return cfg.Config.Validate()
}

// Server is a dskit server that stops when its Run context is done.
type Server struct {
	*serverww.Server
	logger log.Logger
}

// New listens on the configured addresses. Server metrics are registered
// with reg and /metrics, when instrumentation is enabled, serves gatherer.
func New(cfg Config, reg prometheus.Registerer, gatherer prometheus.Gatherer, logger log.Logger) (*Server, error) {
	cfg.Registerer = reg
	cfg.Gatherer = gatherer
	cfg.Log = logger
	ww, err := serverww.New(cfg.Config)
	if err != nil {
		return nil, errors.Wrap(err, "creating server")
	}
	return &Server{Server: ww, logger: logger}, nil
}

// Run serves until ctx is done or the server fails, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	errs := make(chan error, 1)
	go func() {
		errs <- s.Server.Run()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	level.Info(s.logger).Log("msg", "shutting down server")
	s.Stop()
	return <-errs
}
