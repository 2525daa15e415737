package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/vizd/qe/pkg/result"
)

func newTestSink(t *testing.T) (*miniredis.Miniredis, *RedisSink) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := RedisConfig{Address: mr.Addr(), Timeout: time.Second, TTL: 10 * time.Minute}
	require.NoError(t, cfg.Validate())
	s := NewRedisSink(cfg)
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func TestRedisSinkDeliver(t *testing.T) {
	mr, s := newTestSink(t)
	require.NoError(t, s.Ping(context.Background()))

	buf := result.NewBuffer("MessageTable", []string{"Source", "Module"})
	buf.Rows = []result.Row{
		result.NewRow(result.String("10.0.0.1"), result.String("ControlNode")),
		result.NewRow(result.String("10.0.0.2"), result.Null()),
	}
	require.NoError(t, s.Deliver(context.Background(), NewResult("q1", "MessageTable", buf, 0, nil)))

	rows, err := mr.List("REPLY:q1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.JSONEq(t, `{"Source":"10.0.0.1","Module":"ControlNode"}`, rows[0])
	require.JSONEq(t, `{"Source":"10.0.0.2"}`, rows[1])
	require.Equal(t, 10*time.Minute, mr.TTL("REPLY:q1"))

	require.Equal(t, "0", mr.HGet("QUERY:q1", "status"))
	require.Equal(t, "2", mr.HGet("QUERY:q1", "rows"))
	require.Equal(t, "MessageTable", mr.HGet("QUERY:q1", "table"))
	require.Equal(t, 10*time.Minute, mr.TTL("QUERY:q1"))

	mr.FastForward(11 * time.Minute)
	require.False(t, mr.Exists("REPLY:q1"))
	require.False(t, mr.Exists("QUERY:q1"))
}

func TestRedisSinkDeliverFailure(t *testing.T) {
	mr, s := newTestSink(t)

	// A retried query id replaces the earlier rows.
	require.NoError(t, mr.Set("unrelated", "x"))
	_, err := mr.Push("REPLY:q2", "stale")
	require.NoError(t, err)

	require.NoError(t, s.Deliver(context.Background(), NewResult("q2", "FlowSeriesTable", nil, 22, errors.New("unknown table"))))
	require.False(t, mr.Exists("REPLY:q2"))
	require.Equal(t, "22", mr.HGet("QUERY:q2", "status"))
	require.Equal(t, "unknown table", mr.HGet("QUERY:q2", "error"))
	require.Equal(t, "0", mr.HGet("QUERY:q2", "rows"))
	require.True(t, mr.Exists("unrelated"))
}

func TestRedisSinkUnavailable(t *testing.T) {
	mr, s := newTestSink(t)
	mr.Close()
	err := s.Deliver(context.Background(), Result{QID: "q3"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "delivering query q3")
}

func TestRedisConfigValidate(t *testing.T) {
	var cfg RedisConfig
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.Enabled())

	cfg.Address = "localhost:6379"
	require.Error(t, cfg.Validate())
	cfg.TTL = time.Minute
	require.Error(t, cfg.Validate())
	cfg.Timeout = time.Second
	require.NoError(t, cfg.Validate())
}

func TestFuncSink(t *testing.T) {
	var got []Result
	sink := FuncSink(func(_ context.Context, res Result) error {
		got = append(got, res)
		return nil
	})
	err := errors.New("boom")
	require.NoError(t, sink.Deliver(context.Background(), NewResult("q", "T", result.NewBuffer("T", nil), 5, err)))
	require.Equal(t, []Result{{QID: "q", Table: "T", Status: 5, Err: err}}, got)
	require.NoError(t, Discard.Deliver(context.Background(), Result{}))
}
