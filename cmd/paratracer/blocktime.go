package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/chainwatch/paratracer/chainhead"
	"github.com/chainwatch/paratracer/internal/priochan"
	"github.com/chainwatch/paratracer/rpcclient"
)

// blockTimeMonitorCommand is the relay chain's own block-time monitor: no
// parachain is involved, it just times successive best-head imports per
// endpoint. Grounded on the timestamp-delta measurement
// original_source/parachain-tracer/src/main.rs applies per backed
// candidate, here applied directly to the relay chain's own best head.
func blockTimeMonitorCommand() *cli.Command {
	return &cli.Command{
		Name:   "block-time-monitor",
		Usage:  "measure relay chain block production time per endpoint",
		Flags:  commonFlags,
		Before: applyFileConfig,
		Action: func(c *cli.Context) error {
			log := newLogger(c, "block-time-monitor")
			urls := endpoints(c)

			pool, err := rpcclient.NewPool(len(urls)+1, log)
			if err != nil {
				return fatal("cannot build connection pool: %v", err)
			}
			dialer := rpcclient.NewDialer(pool, log)
			executor, err := newExecutor(c, log)
			if err != nil {
				return fatal("cannot build request executor: %v", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			subscription := chainhead.New(dialer, urls, retryOptions(c), log)
			queues := subscription.CreateConsumer()

			group, gctx := errgroup.WithContext(ctx)
			group.Go(func() error { return subscription.Run(gctx) })
			for i, url := range urls {
				queue, url := queues[i], url
				group.Go(func() error { return watchBlockTime(gctx, url, queue, executor, log) })
			}
			return group.Wait()
		},
	}
}

func watchBlockTime(ctx context.Context, url string, queue *priochan.Chan[chainhead.Event], executor *rpcclient.Executor, log *logrus.Entry) error {
	entry := log.WithField("url", url)
	var lastTimestamp *uint64

	for {
		ev, ok := queue.Recv(ctx)
		if !ok {
			return nil
		}
		if ev.Kind != chainhead.NewBestHead {
			continue
		}

		ts, err := executor.GetBlockTimestamp(ctx, url, &ev.Hash)
		if err != nil {
			entry.WithError(err).Warn("failed to read block timestamp")
			continue
		}
		if lastTimestamp != nil && ts > *lastTimestamp {
			entry.Infof("block time: %.2fs (relay head %s)", float64(ts-*lastTimestamp)/1000, ev.Hash.Hex())
		}
		t := ts
		lastTimestamp = &t
	}
}
