// Command paratracer is the tracker's CLI binary: one urfave/cli App with
// the four subcommands spec.md §6 names. This file holds the flag/helper
// surface every subcommand shares.
package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/chainwatch/paratracer/internal/logging"
	"github.com/chainwatch/paratracer/internal/retry"
	"github.com/chainwatch/paratracer/rpcclient"
)

var commonFlags = []cli.Flag{
	&cli.BoolFlag{Name: "v", Usage: "info-level logging"},
	&cli.BoolFlag{Name: "vv", Usage: "debug-level logging"},
	&cli.BoolFlag{Name: "vvv", Usage: "trace-level logging"},
	&cli.StringSliceFlag{Name: "ws", Required: true, Usage: "relay/parachain node websocket endpoint(s)"},
	&cli.IntFlag{Name: "retry-count", Value: 3},
	&cli.IntFlag{Name: "retry-delay-ms", Value: 100},
	configFlag,
}

func verbosityCount(c *cli.Context) int {
	switch {
	case c.Bool("vvv"):
		return 3
	case c.Bool("vv"):
		return 2
	case c.Bool("v"):
		return 1
	default:
		return 0
	}
}

func newLogger(c *cli.Context, component string) *logrus.Entry {
	return logging.New(component, logging.VerbosityToLevel(verbosityCount(c)))
}

func retryOptions(c *cli.Context) retry.Options {
	opts := retry.DefaultOptions()
	if c.Int("retry-count") > 0 {
		opts.MaxRetries = c.Int("retry-count")
	}
	if c.Int("retry-delay-ms") > 0 {
		opts.BaseDelay = time.Duration(c.Int("retry-delay-ms")) * time.Millisecond
	}
	return opts
}

func endpoints(c *cli.Context) []string {
	return c.StringSlice("ws")
}

func newExecutor(c *cli.Context, log *logrus.Entry) (*rpcclient.Executor, error) {
	return rpcclient.NewExecutor(len(endpoints(c))+1, retryOptions(c), log)
}

// fatal formats spec.md §7's user-visible fatal-error line and returns an
// error urfave/cli will print verbatim before exiting nonzero.
func fatal(format string, args ...any) error {
	return cli.Exit("FATAL: "+fmt.Sprintf(format, args...), 1)
}
