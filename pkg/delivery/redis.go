package delivery

import (
	"context"
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis key prefixes. Rows go to a list, the status to a hash.
const (
	replyKeyPrefix  = "REPLY:"
	statusKeyPrefix = "QUERY:"
)

// RedisConfig configures the Redis sink.
type RedisConfig struct {
	Address  string         `yaml:"address"`
	DB       int            `yaml:"db"`
	Password flagext.Secret `yaml:"password"`
	Timeout  time.Duration  `yaml:"timeout"`
	TTL      time.Duration  `yaml:"ttl"`
}

// RegisterFlagsWithPrefix registers flags where every name is prefixed by
// prefix. If prefix is a non-empty string, prefix should end with a period.
func (cfg *RedisConfig) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Address, prefix+"address", "", "Redis host:port results are written to. Results are not written to Redis when empty.")
	f.IntVar(&cfg.DB, prefix+"db", 0, "Redis database index.")
	f.Var(&cfg.Password, prefix+"password", "Password to use when connecting to Redis.")
	f.DurationVar(&cfg.Timeout, prefix+"timeout", 500*time.Millisecond, "Maximum time to wait for Redis to store one result.")
	f.DurationVar(&cfg.TTL, prefix+"ttl", 10*time.Minute, "How long delivered results are kept.")
}

func (cfg *RedisConfig) Enabled() bool {
	return cfg.Address != ""
}

func (cfg *RedisConfig) Validate() error {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.TTL <= 0 {
		return errors.New("delivery.redis.ttl must be positive")
	}
	if cfg.Timeout <= 0 {
		return errors.New("delivery.redis.timeout must be positive")
	}
	return nil
}

// RedisSink writes every result row as a JSON object to the list
// REPLY:<qid> and the outcome to the hash QUERY:<qid>.
type RedisSink struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

func NewRedisSink(cfg RedisConfig) *RedisSink {
	return &RedisSink{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Address,
			DB:           cfg.DB,
			Password:     cfg.Password.String(),
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		}),
		ttl:     cfg.TTL,
		timeout: cfg.Timeout,
	}
}

func (s *RedisSink) Deliver(ctx context.Context, res Result) error {
	rows := make([]interface{}, 0, len(res.Rows))
	for _, r := range res.Rows {
		b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(r)
		if err != nil {
			return errors.Wrapf(err, "encoding row of query %s", res.QID)
		}
		rows = append(rows, b)
	}
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	replyKey, statusKey := replyKeyPrefix+res.QID, statusKeyPrefix+res.QID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, replyKey)
		if len(rows) > 0 {
			pipe.RPush(ctx, replyKey, rows...)
			pipe.Expire(ctx, replyKey, s.ttl)
		}
		pipe.HSet(ctx, statusKey,
			"table", res.Table,
			"status", res.Status,
			"rows", len(rows),
			"error", errText,
		)
		pipe.Expire(ctx, statusKey, s.ttl)
		return nil
	})
	return errors.Wrapf(err, "delivering query %s", res.QID)
}

// Ping checks the connection.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
