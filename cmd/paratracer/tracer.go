package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/chainwatch/paratracer/broadcast"
	"github.com/chainwatch/paratracer/chainhead"
	"github.com/chainwatch/paratracer/collector"
	"github.com/chainwatch/paratracer/health"
	"github.com/chainwatch/paratracer/internal/priochan"
	"github.com/chainwatch/paratracer/metrics"
	"github.com/chainwatch/paratracer/parachain"
	"github.com/chainwatch/paratracer/rpcclient"
)

func parachainTracerCommand() *cli.Command {
	flags := append(append([]cli.Flag{}, commonFlags...),
		&cli.IntSliceFlag{Name: "para-id", Usage: "parachain id to track (repeatable)"},
		&cli.BoolFlag{Name: "all", Usage: "track every parachain seen, evicting stalled ones"},
		&cli.IntFlag{Name: "blocks", Usage: "stop after this many relay blocks per tracker (0 = unbounded)"},
		&cli.IntFlag{Name: "last-skipped-slot-blocks", Value: 10},
		&cli.IntFlag{Name: "max-parachain-stall", Value: broadcast.DefaultMaxParachainStall},
		&cli.StringFlag{Name: "health-addr", Usage: "enable the health endpoint on this address (disabled if empty)"},
		&cli.StringFlag{Name: "cert"},
		&cli.StringFlag{Name: "key"},
	)

	return &cli.Command{
		Name:   "parachain-tracer",
		Usage:  "track one or more parachains' block pipeline",
		Flags:  flags,
		Before: applyFileConfig,
		Action: func(c *cli.Context) error {
			return runTracer(c, "")
		},
		Subcommands: []*cli.Command{
			{
				Name:  "prometheus",
				Usage: "also expose the pc_* metrics over this address/port",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Value: "0.0.0.0"},
					&cli.IntFlag{Name: "port", Value: 65432},
				},
				Action: func(c *cli.Context) error {
					addr := fmt.Sprintf("%s:%d", c.String("address"), c.Int("port"))
					return runTracer(c.Parent(), addr)
				},
			},
		},
	}
}

func paraIDList(c *cli.Context) []uint32 {
	raw := c.IntSlice("para-id")
	ids := make([]uint32, len(raw))
	for i, v := range raw {
		ids[i] = uint32(v)
	}
	return ids
}

// runTracer wires the Records Store, subscription layer, Collector, and
// either explicit per-parachain Trackers or a broadcast.Supervisor,
// exactly per spec.md §4.4–§4.6, plus the optional Prometheus and health
// ambient endpoints.
func runTracer(c *cli.Context, prometheusAddr string) error {
	all := c.Bool("all")
	ids := paraIDList(c)
	if all && len(ids) > 0 {
		return fatal("--para-id and --all are mutually exclusive")
	}
	if !all && len(ids) == 0 {
		return fatal("specify --para-id at least once, or --all")
	}

	log := newLogger(c, "parachain-tracer")
	urls := endpoints(c)
	retryOpts := retryOptions(c)

	dialPool, err := rpcclient.NewPool(len(urls)+1, log)
	if err != nil {
		return fatal("cannot build connection pool: %v", err)
	}
	dialer := rpcclient.NewDialer(dialPool, log)
	executor, err := newExecutor(c, log)
	if err != nil {
		return fatal("cannot build request executor: %v", err)
	}
	primaryURL := urls[0]

	if _, err := executor.GetHostConfiguration(context.Background(), primaryURL); err != nil {
		return fatal("cannot fetch host configuration: %v", err)
	}

	var m metrics.Metrics
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)

	if prometheusAddr != "" {
		registry := prometheus.NewRegistry()
		m = metrics.New(registry)
		handler := gzhttp.GzipHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: prometheusAddr, Handler: handler}
		group.Go(func() error { return serveUntilDone(gctx, server) })
	}

	subscription := chainhead.New(dialer, urls, retryOpts, log)
	queues := subscription.CreateConsumer()
	col := collector.New(collector.Config{URL: primaryURL, MaxBlocks: 1000}, executor, queues, log)

	group.Go(func() error { return subscription.Run(gctx) })
	group.Go(func() error { return col.Run(gctx) })

	var mu sync.Mutex
	if addr := c.String("health-addr"); addr != "" {
		listener := health.New(health.Config{ListenAddr: addr, CertFile: c.String("cert"), KeyFile: c.String("key")}, &mu, col.API(), log)
		group.Go(func() error { return listener.Run(gctx) })
	}

	if all {
		spawn := func(paraID uint32) (*priochan.Chan[collector.UpdateEvent], func() error) {
			queue := priochan.New[collector.UpdateEvent](collector.NormalChannelCapacity, 1)
			tracker := parachain.New(parachain.Config{ParaID: paraID, URL: primaryURL, MaxBlocks: uint32(c.Int("blocks"))}, queue, col.API(), executor, m, log.WithField("para_id", paraID))
			return queue, func() error { return tracker.Run(gctx) }
		}
		supervisor := broadcast.New(broadcast.Config{MaxParachainStall: uint32(c.Int("max-parachain-stall"))}, spawn, log)
		group.Go(func() error { return supervisor.Run(gctx, col.SubscribeBroadcast()) })
	} else {
		for _, paraID := range ids {
			paraID := paraID
			queue := col.SubscribeParachain(paraID)
			tracker := parachain.New(parachain.Config{ParaID: paraID, URL: primaryURL, MaxBlocks: uint32(c.Int("blocks"))}, queue, col.API(), executor, m, log.WithField("para_id", paraID))
			group.Go(func() error { return tracker.Run(gctx) })
		}
	}

	return group.Wait()
}

func serveUntilDone(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return server.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
