package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "paratracer",
		Usage: "parachain block-production observability tools",
		Commands: []*cli.Command{
			blockTimeMonitorCommand(),
			parachainCommanderCommand(),
			parachainTracerCommand(),
			telemetryCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		if coder, ok := err.(cli.ExitCoder); ok {
			fmt.Fprintln(os.Stderr, coder.Error())
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}
