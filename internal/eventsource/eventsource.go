// Package eventsource is the transport polling loop spec.md §1 lists as an
// external collaborator: it turns periodic FilterLogs calls into a channel
// of decoded chainevents.Delivery values. A transport failure is reported
// on the channel and the next tick simply polls again; there is no backoff.
package eventsource

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/orderwatch/internal/chainevents"
)

// LogFilterer is the subset of ethclient.Client the Source needs to poll
// for new logs.
type LogFilterer interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Source polls LogFilterer for logs against a fixed set of contract
// addresses, decodes them, and delivers them on a channel. It owns no
// watcher state; it is a pure producer.
type Source struct {
	filterer  LogFilterer
	addresses []common.Address
	interval  time.Duration
	logger    *slog.Logger

	lastBlock uint64
}

// Option configures a Source at construction.
type Option func(*Source)

// WithPollInterval overrides the default 3s poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(s *Source) { s.interval = d }
}

// WithLogger attaches a structured logger; a nil logger falls back to
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

const defaultPollInterval = 3 * time.Second

// New creates a Source that filters logs emitted by any of addresses.
func New(filterer LogFilterer, addresses []common.Address, opts ...Option) *Source {
	s := &Source{
		filterer:  filterer,
		addresses: addresses,
		interval:  defaultPollInterval,
		logger:    slog.Default().With(slog.String("component", "eventsource")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run polls at the configured interval until ctx is cancelled, decoding
// each batch of logs and delivering one chainevents.Delivery per log on
// out. A FilterLogs failure is delivered as a Delivery carrying Err rather
// than terminating the loop, mirroring the reconnect-on-failure posture of
// a websocket feed: the caller (internal/watcher) decides whether a
// transport error tears the subscription down.
func (s *Source) Run(ctx context.Context, out chan<- chainevents.Delivery) error {
	if s.lastBlock == 0 {
		head, err := s.filterer.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("eventsource: resolve starting block: %w", err)
		}
		s.lastBlock = head
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.poll(ctx, out); err != nil {
				select {
				case out <- chainevents.Delivery{Err: err}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (s *Source) poll(ctx context.Context, out chan<- chainevents.Delivery) error {
	head, err := s.filterer.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("eventsource: get head block: %w", err)
	}
	if head < s.lastBlock {
		return nil
	}

	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(s.lastBlock + 1),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: s.addresses,
	}
	if s.lastBlock == 0 {
		q.FromBlock = new(big.Int).SetUint64(head)
	}

	logs, err := s.filterer.FilterLogs(ctx, q)
	if err != nil {
		return fmt.Errorf("eventsource: filter logs: %w", err)
	}

	for _, log := range logs {
		event := chainevents.Decode(log)
		select {
		case out <- chainevents.Delivery{Event: event}:
		case <-ctx.Done():
			return nil
		}
	}
	s.lastBlock = head
	return nil
}
