package chainhead

import (
	"context"
	"fmt"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chainwatch/paratracer/internal/errs"
	"github.com/chainwatch/paratracer/internal/priochan"
	"github.com/chainwatch/paratracer/internal/retry"
)

// heartbeatInterval matches the original's fixed 200ms cadence.
const heartbeatInterval = 200 * time.Millisecond

// MaxMsgQueueSize bounds the per-url outgoing queue; spec.md §4.2's
// MAX_MSG_QUEUE_SIZE default.
const MaxMsgQueueSize = 1024

// Follower is a single chain-head-follow connection to one endpoint. It is
// implemented by the rpcclient package; kept as an interface here so this
// package never imports its caller's transport details.
type Follower interface {
	// Next blocks until the next FollowEvent is available, ctx is
	// canceled, or the underlying stream ends/errors.
	Next(ctx context.Context) (FollowEvent, error)
	// Unpin releases a previously pinned block hash.
	Unpin(ctx context.Context, hash types.Hash) error
	Close()
}

// Dialer opens a Follower for a given endpoint URL, retrying per opts.
type Dialer interface {
	Subscribe(ctx context.Context, url string, opts retry.Options) (Follower, error)
}

// Subscription is the subscription layer: one Dialer-backed follow
// subscription per (consumer, URL) pair, for every consumer registered via
// CreateConsumer before Run is called.
type Subscription struct {
	dialer Dialer
	urls   []string
	retry  retry.Options
	log    *logrus.Entry

	// consumers[c][u] is consumer c's queue for urls[u].
	consumers [][]*priochan.Chan[Event]
}

// New builds a Subscription over the given endpoints.
func New(dialer Dialer, urls []string, retryOpts retry.Options, log *logrus.Entry) *Subscription {
	return &Subscription{dialer: dialer, urls: urls, retry: retryOpts, log: log}
}

// CreateConsumer registers a new consumer and returns one receive queue
// per configured URL, in url order. Must be called before Run.
func (s *Subscription) CreateConsumer() []*priochan.Chan[Event] {
	queues := make([]*priochan.Chan[Event], len(s.urls))
	for i := range queues {
		queues[i] = priochan.New[Event](MaxMsgQueueSize, 1)
	}
	s.consumers = append(s.consumers, queues)
	return queues
}

// Run drives every registered consumer's per-url task until ctx is
// canceled or a task fails fatally (subscription loss, per the error
// handling policy: a broken subscription is unrecoverable and the process
// must exit rather than silently stop following the chain).
func (s *Subscription) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, queues := range s.consumers {
		for i, url := range s.urls {
			queue := queues[i]
			url := url
			g.Go(func() error {
				return s.runPerNode(gctx, queue, url)
			})
		}
	}
	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (s *Subscription) runPerNode(ctx context.Context, queue *priochan.Chan[Event], url string) error {
	log := s.log.WithField("url", url)

	follower, err := s.dialer.Subscribe(ctx, url, s.retry)
	if err != nil {
		return fmt.Errorf("%w: subscription to %s failed: %v", errs.Fatal, url, err)
	}
	defer follower.Close()

	type followResult struct {
		event FollowEvent
		err   error
	}
	events := make(chan followResult)
	go func() {
		for {
			ev, err := follower.Next(ctx)
			select {
			case events <- followResult{ev, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("received interrupt signal, shutting down subscription")
			return nil

		case <-ticker.C:
			log.Debug("sent heartbeat to subscribers")
			if err := queue.SendPriority(ctx, Event{Kind: Heartbeat}); err != nil {
				log.Info("event consumer has terminated, shutting down")
				return nil
			}

		case res := <-events:
			if res.err != nil {
				return fmt.Errorf("%w: subscription to %s failed: %v", errs.Fatal, url, res.err)
			}
			if done, err := s.handleFollowEvent(ctx, log, follower, queue, url, res.event); done || err != nil {
				return err
			}
		}
	}
}

// handleFollowEvent applies one FollowEvent. done is true once the
// subscription has ended (Stop) and the caller should return.
func (s *Subscription) handleFollowEvent(ctx context.Context, log *logrus.Entry, follower Follower, queue *priochan.Chan[Event], url string, event FollowEvent) (done bool, err error) {
	switch event.Kind {
	case FollowInitialized:
		if err := follower.Unpin(ctx, event.FinalizedBlockHash); err != nil {
			log.WithError(err).Warnf("cannot unpin hash %s", event.FinalizedBlockHash.Hex())
		}
		return false, nil

	case FollowNewBlock:
		return false, nil

	case FollowBestBlockChanged:
		log.Infof("best block imported (%s)", event.BestBlockHash.Hex())
		if sendErr := queue.Send(ctx, Event{Kind: NewBestHead, Hash: event.BestBlockHash}); sendErr != nil {
			log.Info("event consumer has terminated, shutting down")
			return true, nil
		}
		return false, nil

	case FollowFinalized:
		for _, hash := range event.FinalizedBlockHashes {
			log.Infof("finalized block imported (%s)", hash.Hex())
			if sendErr := queue.Send(ctx, Event{Kind: NewFinalizedHead, Hash: hash}); sendErr != nil {
				log.Info("event consumer has terminated, shutting down")
				return true, nil
			}
		}
		for _, hash := range append(append([]types.Hash{}, event.FinalizedBlockHashes...), event.PrunedBlockHashes...) {
			if err := follower.Unpin(ctx, hash); err != nil {
				log.WithError(err).Warnf("cannot unpin hash %s", hash.Hex())
			}
		}
		return false, nil

	case FollowStop:
		log.Info("chain head subscription stopped")
		return true, nil

	default:
		return false, nil
	}
}
