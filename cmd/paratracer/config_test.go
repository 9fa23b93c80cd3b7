package main

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func withTestConfigFS(t *testing.T, files map[string]string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, contents := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0o644))
	}
	previous := configFS
	configFS = fs
	t.Cleanup(func() { configFS = previous })
}

func runWithFlags(t *testing.T, args []string, captured *cli.Context) error {
	app := &cli.App{
		Flags: commonFlags,
		Action: func(c *cli.Context) error {
			if err := applyFileConfig(c); err != nil {
				return err
			}
			*captured = *c
			return nil
		},
	}
	return app.Run(append([]string{"paratracer"}, args...))
}

func TestApplyFileConfigFillsUnsetFlagsOnly(t *testing.T) {
	withTestConfigFS(t, map[string]string{
		"/etc/paratracer.toml": `
ws = ["wss://file-a", "wss://file-b"]
retry_count = 7
retry_delay_ms = 250
`,
	})

	var c cli.Context
	err := runWithFlags(t, []string{"--config", "/etc/paratracer.toml", "--ws", "wss://explicit"}, &c)
	require.NoError(t, err)

	require.Equal(t, []string{"wss://explicit"}, c.StringSlice("ws"))
	require.Equal(t, 7, c.Int("retry-count"))
	require.Equal(t, 250, c.Int("retry-delay-ms"))
}

func TestApplyFileConfigNoopWithoutConfigFlag(t *testing.T) {
	var c cli.Context
	err := runWithFlags(t, []string{"--ws", "wss://explicit"}, &c)
	require.NoError(t, err)
	require.Equal(t, []string{"wss://explicit"}, c.StringSlice("ws"))
	require.Equal(t, 3, c.Int("retry-count"))
}

func TestApplyFileConfigMissingFileIsFatal(t *testing.T) {
	withTestConfigFS(t, map[string]string{})

	var c cli.Context
	err := runWithFlags(t, []string{"--config", "/does/not/exist.toml", "--ws", "wss://explicit"}, &c)
	require.Error(t, err)
}
