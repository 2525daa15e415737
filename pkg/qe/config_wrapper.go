package qe

import (
	"flag"
)

// ConfigWrapper is the query engine config along with values that are only
// set on the command line for interacting with the config or the process.
type ConfigWrapper struct {
	Config       `yaml:",inline"`
	VerifyConfig bool `yaml:"-"`
	PrintConfig  bool `yaml:"-"`
}

func (c *ConfigWrapper) RegisterFlags(f *flag.FlagSet) {
	f.BoolVar(&c.VerifyConfig, "verify-config", false, "Verify config file and exits")
	f.BoolVar(&c.PrintConfig, "print-config-stderr", false, "Dump the entire config object to stderr")
	c.Config.RegisterFlags(f)
}
