package delivery

import (
	"context"
	"flag"

	"github.com/vizd/qe/pkg/result"
)

// Result is a finished query as handed to a sink.
type Result struct {
	QID    string
	Table  string
	Status int
	// Err is set when Status is not zero.
	Err  error
	Rows []map[string]string
}

// NewResult renders buf for delivery. buf may be nil when the query failed.
func NewResult(qid, table string, buf *result.Buffer, status int, err error) Result {
	res := Result{QID: qid, Table: table, Status: status, Err: err}
	if buf != nil && err == nil {
		if buf.Name != "" {
			res.Table = buf.Name
		}
		res.Rows = buf.Maps()
	}
	return res
}

// Sink ships query results to whoever asked for them.
type Sink interface {
	Deliver(ctx context.Context, res Result) error
}

// FuncSink adapts a function to a Sink.
type FuncSink func(ctx context.Context, res Result) error

func (f FuncSink) Deliver(ctx context.Context, res Result) error {
	return f(ctx, res)
}

// Discard drops every result.
var Discard Sink = FuncSink(func(context.Context, Result) error { return nil })

// Config selects where results are delivered.
type Config struct {
	Redis RedisConfig `yaml:"redis"`
}

// RegisterFlags registers flags.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Redis.RegisterFlagsWithPrefix("delivery.redis.", f)
}

func (cfg *Config) Validate() error {
	return cfg.Redis.Validate()
}
