package storage

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/backoff"
	"github.com/pkg/errors"
)

// Supported backends.
const (
	BackendMemory    = "memory"
	BackendCassandra = "cassandra"
)

// Config selects the storage backend and how long to wait for it at startup.
type Config struct {
	Backend        string        `yaml:"backend"`
	InitMinBackoff time.Duration `yaml:"init_min_backoff"`
	InitMaxBackoff time.Duration `yaml:"init_max_backoff"`
	InitMaxRetries int           `yaml:"init_max_retries"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.Backend, "storage.backend", BackendMemory, fmt.Sprintf("Storage backend to query. Supported: %s, %s.", BackendMemory, BackendCassandra))
	f.DurationVar(&cfg.InitMinBackoff, "storage.init-min-backoff", 500*time.Millisecond, "Minimum delay between storage readiness checks at startup.")
	f.DurationVar(&cfg.InitMaxBackoff, "storage.init-max-backoff", 10*time.Second, "Maximum delay between storage readiness checks at startup.")
	f.IntVar(&cfg.InitMaxRetries, "storage.init-max-retries", 10, "Readiness checks at startup before giving up. 0 retries forever.")
}

func (cfg *Config) Validate() error {
	switch cfg.Backend {
	case BackendMemory, BackendCassandra:
	default:
		return fmt.Errorf("unsupported storage.backend %q", cfg.Backend)
	}
	if cfg.InitMinBackoff > cfg.InitMaxBackoff {
		return errors.New("storage.init-min-backoff must not exceed storage.init-max-backoff")
	}
	return nil
}

// WaitReady polls s until it reports ready or the retries run out.
func WaitReady(ctx context.Context, s Store, cfg Config, logger log.Logger) error {
	b := backoff.New(ctx, backoff.Config{
		MinBackoff: cfg.InitMinBackoff,
		MaxBackoff: cfg.InitMaxBackoff,
		MaxRetries: cfg.InitMaxRetries,
	})
	var lastErr error
	for b.Ongoing() {
		lastErr = s.Ready(ctx)
		if lastErr == nil {
			return nil
		}
		level.Warn(logger).Log("msg", "storage not ready", "attempt", b.NumRetries()+1, "err", lastErr)
		b.Wait()
	}
	if lastErr == nil {
		lastErr = b.Err()
	}
	return errors.Wrapf(lastErr, "storage not ready after %d attempts", b.NumRetries())
}
