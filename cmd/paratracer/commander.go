package main

import (
	"github.com/urfave/cli/v2"
)

// parachainCommanderCommand is the narrower predecessor of
// parachain-tracer: explicit parachain ids only, no broadcast/eviction
// machinery. Grounded on original_source/src/pc/mod.rs, the simpler
// ParachainCommander that predates the CollectorUpdateEvent-based
// tracker; it shares runTracer's wiring since spec.md §4.4–§4.5 describe
// one Collector/Tracker pipeline, with --all simply unavailable here.
func parachainCommanderCommand() *cli.Command {
	flags := append(append([]cli.Flag{}, commonFlags...),
		&cli.IntSliceFlag{Name: "para-id", Usage: "parachain id to track (repeatable)", Required: true},
		&cli.IntFlag{Name: "blocks", Usage: "stop after this many relay blocks per tracker (0 = unbounded)"},
		&cli.StringFlag{Name: "health-addr"},
		&cli.StringFlag{Name: "cert"},
		&cli.StringFlag{Name: "key"},
	)

	return &cli.Command{
		Name:    "parachain-commander",
		Aliases: []string{"pc"},
		Usage:   "track specific parachains' block pipeline (no broadcast mode)",
		Flags:   flags,
		Before:  applyFileConfig,
		Action: func(c *cli.Context) error {
			return runTracer(c, "")
		},
	}
}
