package cfg

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Data struct {
	Verbose bool   `yaml:"verbose"`
	Server  Server `yaml:"server"`
	TLS     TLS    `yaml:"tls"`
}

type Server struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

type TLS struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

func (d *Data) RegisterFlags(f *flag.FlagSet) {
	f.BoolVar(&d.Verbose, "verbose", false, "")
	f.IntVar(&d.Server.Port, "server.port", 80, "")
	f.DurationVar(&d.Server.Timeout, "server.timeout", 60*time.Second, "")
	f.StringVar(&d.TLS.Cert, "tls.cert", "CERT", "")
	f.StringVar(&d.TLS.Key, "tls.key", "KEY", "")
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParse(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 2000
  timeout: 60h
tls:
  key: YAML
`)

	var c Data
	err := Parse(&c, newFlagSet(), []string{"-verbose", "-server.port=21", "-config.file=" + path})
	require.NoError(t, err)

	require.Equal(t, Data{
		Verbose: true,
		Server: Server{
			Port:    21,
			Timeout: 60 * time.Hour,
		},
		TLS: TLS{
			Cert: "CERT",
			Key:  "YAML",
		},
	}, c)
}

// TestDefaults checks that flag defaults apply when nothing else is given.
func TestDefaults(t *testing.T) {
	var d Data
	require.NoError(t, Parse(&d, newFlagSet(), nil))
	assert.Equal(t, Data{
		Server: Server{
			Port:    80,
			Timeout: 60 * time.Second,
		},
		TLS: TLS{
			Cert: "CERT",
			Key:  "KEY",
		},
	}, d)
}

// TestFlagsMerge checks that defaults and user-supplied values merge correctly.
func TestFlagsMerge(t *testing.T) {
	var c Data
	fs := newFlagSet()
	err := Unmarshal(&c,
		Defaults(fs),
		Flags(fs, []string{"-verbose", "-server.timeout=12h"}),
	)
	require.NoError(t, err)
	assert.Equal(t, Data{
		Verbose: true,
		Server: Server{
			Port:    80,
			Timeout: 12 * time.Hour,
		},
		TLS: TLS{
			Cert: "CERT",
			Key:  "KEY",
		},
	}, c)
}

func TestParseErrors(t *testing.T) {
	for name, args := range map[string][]string{
		"unknown yaml field": {"-config.file=" + writeConfig(t, "server:\n  address: nope\n")},
		"malformed yaml":     {"-config.file=" + writeConfig(t, "server: [\n")},
		"missing file":       {"-config.file=" + filepath.Join(t.TempDir(), "missing.yaml")},
		"unknown flag":       {"-no-such-flag"},
		"bad flag value":     {"-server.port=eighty"},
	} {
		t.Run(name, func(t *testing.T) {
			var c Data
			require.Error(t, Parse(&c, newFlagSet(), args))
		})
	}
}

func TestUnmarshalRequiresRegisterer(t *testing.T) {
	var s struct{}
	require.Error(t, Unmarshal(&s, Defaults(newFlagSet())))
}
