package main

import (
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

// fileConfig is the optional TOML config file overlay for the common
// flags: values from --config fill in any flag the user did not pass on
// the command line, so a deployment can pin endpoints/retry policy once
// instead of repeating them on every invocation.
type fileConfig struct {
	WS           []string `toml:"ws"`
	RetryCount   int      `toml:"retry_count"`
	RetryDelayMs int      `toml:"retry_delay_ms"`
}

var configFS afero.Fs = afero.NewOsFs()

var configFlag = &cli.StringFlag{Name: "config", Usage: "TOML file overlaying the common flags"}

// applyFileConfig reads --config, if set, and fills in any of the common
// flags the caller did not pass explicitly.
func applyFileConfig(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		return nil
	}

	data, err := afero.ReadFile(configFS, path)
	if err != nil {
		return fatal("cannot read config file %s: %v", path, err)
	}

	var cfg fileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fatal("cannot parse config file %s: %v", path, err)
	}

	if !c.IsSet("ws") && len(cfg.WS) > 0 {
		if err := c.Set("ws", cfg.WS[0]); err != nil {
			return err
		}
		for _, url := range cfg.WS[1:] {
			if err := c.Set("ws", url); err != nil {
				return err
			}
		}
	}
	if !c.IsSet("retry-count") && cfg.RetryCount > 0 {
		if err := c.Set("retry-count", strconv.Itoa(cfg.RetryCount)); err != nil {
			return err
		}
	}
	if !c.IsSet("retry-delay-ms") && cfg.RetryDelayMs > 0 {
		if err := c.Set("retry-delay-ms", strconv.Itoa(cfg.RetryDelayMs)); err != nil {
			return err
		}
	}
	return nil
}
