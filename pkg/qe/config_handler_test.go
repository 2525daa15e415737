package qe

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type handlerTestConfig struct {
	Backend  string   `yaml:"backend"`
	Hosts    []string `yaml:"hosts"`
	Callback func()   `yaml:"-"`
	Querier  struct {
		MaxBatches  int     `yaml:"max_batches"`
		Parallelism float64 `yaml:"parallelism"`
		Stream      bool    `yaml:"stream"`
	} `yaml:"querier"`
}

func newHandlerTestConfig() *handlerTestConfig {
	c := &handlerTestConfig{
		Backend:  "memory",
		Hosts:    []string{"a", "b"},
		Callback: func() {},
	}
	c.Querier.MaxBatches = 8
	c.Querier.Parallelism = 0.5
	return c
}

func getConfig(t *testing.T, cfg, def interface{}, mode string) string {
	t.Helper()
	w := httptest.NewRecorder()
	configHandler(cfg, def)(w, httptest.NewRequest("GET", "/config?mode="+mode, nil))
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestConfigHandlerDiff(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(*handlerTestConfig)
		want   string
	}{
		{
			name:   "unchanged",
			modify: func(*handlerTestConfig) {},
			want:   "{}\n",
		},
		{
			name:   "top level string",
			modify: func(c *handlerTestConfig) { c.Backend = "cassandra" },
			want:   "backend: cassandra\n",
		},
		{
			name:   "slice",
			modify: func(c *handlerTestConfig) { c.Hosts = []string{"a"} },
			want:   "hosts:\n- a\n",
		},
		{
			name: "nested values",
			modify: func(c *handlerTestConfig) {
				c.Querier.MaxBatches = 2
				c.Querier.Stream = true
			},
			want: "querier:\n  max_batches: 2\n  stream: true\n",
		},
		{
			name:   "float",
			modify: func(c *handlerTestConfig) { c.Querier.Parallelism = 1.5 },
			want:   "querier:\n  parallelism: 1.5\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newHandlerTestConfig()
			tc.modify(cfg)
			require.Equal(t, tc.want, getConfig(t, cfg, newHandlerTestConfig(), "diff"))
		})
	}
}

func TestConfigHandlerModes(t *testing.T) {
	cfg := newHandlerTestConfig()
	cfg.Backend = "cassandra"

	require.Contains(t, getConfig(t, cfg, newHandlerTestConfig(), ""), "backend: cassandra\n")
	require.Contains(t, getConfig(t, cfg, newHandlerTestConfig(), "defaults"), "backend: memory\n")
	require.NotContains(t, getConfig(t, cfg, newHandlerTestConfig(), ""), "callback")
}

func TestOverrides(t *testing.T) {
	def := yamlTree{"a": 1, "b": yamlTree{"c": "x"}, "d": nil}
	cur := yamlTree{"a": 1, "b": "flat", "d": "set", "e": true}
	require.Equal(t, yamlTree{"b": "flat", "d": "set", "e": true}, overrides(def, cur))
}
