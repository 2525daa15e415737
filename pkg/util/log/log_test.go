package log

import (
	"bytes"
	"testing"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
	"github.com/stretchr/testify/require"
)

func TestWithQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := WithQuery(log.NewLogfmtLogger(&buf), "q-1", 3)
	require.NoError(t, logger.Log("msg", "hello"))
	require.Equal(t, "qid=q-1 batch=3 msg=hello\n", buf.String())
}

func TestLevelFilter(t *testing.T) {
	var lvl dslog.Level
	require.NoError(t, lvl.Set("warn"))

	var buf bytes.Buffer
	logger := level.NewFilter(log.NewLogfmtLogger(&buf), lvl.Option)
	require.NoError(t, level.Debug(logger).Log("msg", "dropped"))
	require.Empty(t, buf.String())
	require.NoError(t, level.Warn(logger).Log("msg", "kept"))
	require.Contains(t, buf.String(), "msg=kept")
}
