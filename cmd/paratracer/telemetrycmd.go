package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/chainwatch/paratracer/internal/errs"
	"github.com/chainwatch/paratracer/telemetry"
)

// telemetryCommand connects directly to a telemetry feed websocket (a
// different wire protocol than the relay/parachain node's JSON-RPC, so
// it dials gorilla/websocket itself rather than going through rpcclient)
// and logs every decoded message. Grounded on
// original_source/introspector/src/core/telemetry_feed.rs's consumer
// loop, with telemetry.Decode doing the actual parsing.
func telemetryCommand() *cli.Command {
	return &cli.Command{
		Name:   "telemetry",
		Usage:  "decode and log messages from a telemetry feed websocket",
		Flags:  commonFlags,
		Before: applyFileConfig,
		Action: func(c *cli.Context) error {
			log := newLogger(c, "telemetry")
			urls := endpoints(c)
			if len(urls) != 1 {
				return fatal("telemetry expects exactly one --ws endpoint")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return watchTelemetryFeed(ctx, urls[0], log)
		},
	}
}

func watchTelemetryFeed(ctx context.Context, url string, log *logrus.Entry) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fatal("cannot dial telemetry feed %s: %v", url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: telemetry feed read: %v", errs.Transport, err)
		}

		messages, err := telemetry.Decode(data)
		if err != nil {
			log.WithError(err).Warn("failed to decode telemetry batch")
			continue
		}
		for _, msg := range messages {
			log.Infof("%#v", msg)
		}
	}
}
