package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v2"

	"github.com/vizd/qe/pkg/cfg"
	"github.com/vizd/qe/pkg/qe"
	util_log "github.com/vizd/qe/pkg/util/log"
)

func main() {
	var config qe.ConfigWrapper
	if err := cfg.Parse(&config, flag.CommandLine, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "failed parsing config: %v\n", err)
		os.Exit(1)
	}

	util_log.InitLogger(config.Server.LogLevel)

	// Defaults are served by the /config endpoint next to the running config.
	var defaults qe.ConfigWrapper
	defaultsFlags := flag.NewFlagSet("defaults", flag.ContinueOnError)
	defaultsFlags.SetOutput(io.Discard)
	util_log.CheckFatal("loading default config", cfg.Parse(&defaults, defaultsFlags, nil))

	// Validate the config once both the config file has been loaded
	// and CLI flags parsed.
	if err := config.Validate(); err != nil {
		level.Error(util_log.Logger).Log("msg", "validating config", "err", err.Error())
		os.Exit(1)
	}

	if config.VerifyConfig {
		level.Info(util_log.Logger).Log("msg", "config is valid")
		os.Exit(0)
	}

	if config.PrintConfig {
		out, err := yaml.Marshal(&config.Config)
		if err != nil {
			level.Error(util_log.Logger).Log("msg", "failed to print config to stderr", "err", err.Error())
		} else {
			fmt.Fprintf(os.Stderr, "---\n# Query engine config\n%s\n", out)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := qe.New(config.Config, defaults.Config, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, util_log.Logger)
	util_log.CheckFatal("initialising query engine", err)

	level.Info(util_log.Logger).Log("msg", "Starting query engine", "http_listen_port", config.Server.HTTPListenPort)

	err = t.Run(ctx)
	util_log.CheckFatal("running query engine", err)
}
