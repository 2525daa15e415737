package querier

import (
	"errors"
	"flag"
)

// Config configures how queries are scheduled.
type Config struct {
	MaxBatches       int `yaml:"max_batches"`
	BatchConcurrency int `yaml:"batch_concurrency"`
}

// RegisterFlags registers flags.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("querier.", f)
}

// RegisterFlagsWithPrefix registers flags where every name is prefixed by
// prefix. If prefix is a non-empty string, prefix should end with a period.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.MaxBatches, prefix+"max-batches", 16, "Maximum number of time windows a query is split into.")
	f.IntVar(&cfg.BatchConcurrency, prefix+"batch-concurrency", 4, "Maximum number of batches of one query executed at the same time.")
}

func (cfg *Config) Validate() error {
	if cfg.MaxBatches < 1 {
		return errors.New("querier.max-batches must be at least 1")
	}
	if cfg.BatchConcurrency < 1 {
		return errors.New("querier.batch-concurrency must be at least 1")
	}
	return nil
}
