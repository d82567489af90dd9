// Package watcher is the facade over order-watching: it owns the
// watched-order set, the dependency index, the emitted-state memo, the
// lazy state cache, and the expiration queue, and drives them all from a
// single-consumer mailbox loop so every public operation's invariants hold
// atomically. Everything else in the core (cache, depindex, expqueue,
// evaluator, eventsource) is a collaborator Watcher wires together; this
// package is where event dispatch and state-diff emission become concrete
// methods.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/orderwatch/internal/cache"
	"github.com/alanyoungcy/orderwatch/internal/chainevents"
	"github.com/alanyoungcy/orderwatch/internal/depindex"
	"github.com/alanyoungcy/orderwatch/internal/domain"
	"github.com/alanyoungcy/orderwatch/internal/expqueue"
	"github.com/alanyoungcy/orderwatch/internal/metrics"
)

// Evaluator is the order-state evaluator collaborator.
type Evaluator interface {
	Evaluate(ctx context.Context, c cache.Reader, order domain.SignedOrder) (domain.OrderState, error)
}

// EventSource is the inbound transport collaborator.
type EventSource interface {
	Run(ctx context.Context, out chan<- chainevents.Delivery) error
}

// HashVerifier recomputes an order hash and checks its signature, the
// "schema-validates, recomputes orderHash, verifies the signature" step of
// AddOrder. Kept as an interface so this package does not import
// internal/orderutil's 0x-v1-specific hashing and signing code.
type HashVerifier interface {
	Verify(order domain.SignedOrder) error
}

// Callback is the subscriber's entry point: exactly one of err or state is
// non-nil.
type Callback func(err error, state *domain.OrderState)

// lifecycle tracks whether a subscriber is attached.
type lifecycle int

const (
	idle lifecycle = iota
	running
)

// Options configures a Watcher. Fields left zero take their documented
// defaults.
type Options struct {
	PollIntervalMs    int64 // ExpirationQueue poll cadence; default 50ms.
	SafetyMarginMs    int64 // ExpirationQueue safety margin; default 0.
	CleanupIntervalMs int64 // periodic cleanup cadence; default 1 hour.
	Logger            *slog.Logger
	Recorder          metrics.Recorder
}

const defaultCleanupInterval = time.Hour

// Watcher is the facade. Exactly one subscriber at a time; construct one
// per chain provider — caches are per-instance and never shared.
type Watcher struct {
	cache    *cache.Cache
	depIndex *depindex.Index
	expQueue *expqueue.Queue

	evaluator Evaluator
	source    EventSource
	verifier  HashVerifier
	logger    *slog.Logger
	recorder  metrics.Recorder

	cleanupInterval time.Duration

	mu         sync.Mutex // guards lifecycle, subscriber, watched, memo, depIndex and expQueue
	lifecycle  lifecycle
	subscriber Callback

	watched map[common.Hash]domain.SignedOrder
	memo    map[common.Hash]domain.OrderState

	mailbox     chan mailboxMsg
	cancelRun   context.CancelFunc
	runDone     chan struct{}
	cleaning    atomic.Bool
	dispatching atomic.Bool // true while the mailbox-consumer goroutine is inside a subscriber callback
}

type mailboxMsgKind int

const (
	msgEvent mailboxMsgKind = iota
	msgExpired
	msgCleanup
	msgSourceErr
)

type mailboxMsg struct {
	kind  mailboxMsgKind
	event chainevents.Event
	hash  common.Hash
	err   error
}

// New constructs an Idle Watcher reading chain state through chain and
// classifying orders with eval. verifier validates signatures on AddOrder;
// source feeds decoded log deliveries once Subscribe starts the mailbox
// loop.
func New(chain cache.Reader, eval Evaluator, source EventSource, verifier HashVerifier, opts Options) *Watcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "watcher"))

	var expOpts []expqueue.Option
	if opts.PollIntervalMs > 0 {
		expOpts = append(expOpts, expqueue.WithPollInterval(time.Duration(opts.PollIntervalMs)*time.Millisecond))
	}
	if opts.SafetyMarginMs > 0 {
		expOpts = append(expOpts, expqueue.WithSafetyMargin(time.Duration(opts.SafetyMarginMs)*time.Millisecond))
	}

	cleanupInterval := defaultCleanupInterval
	if opts.CleanupIntervalMs > 0 {
		cleanupInterval = time.Duration(opts.CleanupIntervalMs) * time.Millisecond
	}

	return &Watcher{
		cache:           cache.New(chain),
		depIndex:        depindex.New(),
		expQueue:        expqueue.New(expOpts...),
		evaluator:       eval,
		source:          source,
		verifier:        verifier,
		logger:          logger,
		recorder:        opts.Recorder,
		cleanupInterval: cleanupInterval,
		watched:         make(map[common.Hash]domain.SignedOrder),
		memo:            make(map[common.Hash]domain.OrderState),
	}
}

// Subscribe attaches callback and starts the mailbox loop. Fails with
// ErrSubscriptionAlreadyPresent if already Running.
func (w *Watcher) Subscribe(ctx context.Context, callback Callback) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.lifecycle == running {
		return domain.ErrSubscriptionAlreadyPresent
	}
	w.subscriber = callback
	w.lifecycle = running

	runCtx, cancel := context.WithCancel(ctx)
	w.cancelRun = cancel
	w.mailbox = make(chan mailboxMsg, 64)
	w.runDone = make(chan struct{})

	go w.run(runCtx)
	return nil
}

// Unsubscribe detaches the subscriber synchronously: listeners and timers
// are stopped before it returns. In-flight evaluator calls may still
// complete, but their emissions are suppressed because step 1 of emit
// checks the subscriber pointer under w.mu.
//
// A subscriber is allowed to call Unsubscribe from within its own callback
// (e.g. to stop watching after its first notification). That call runs on
// the mailbox-consumer goroutine itself, which cannot also be the goroutine
// that closes runDone — waiting on it there would deadlock the watcher
// against itself. dispatching reports exactly that case, so the wait is
// skipped; run() still tears itself down once the callback returns, and
// the final cache flush moves to run()'s own exit so it happens either way.
func (w *Watcher) Unsubscribe() error {
	w.mu.Lock()
	if w.lifecycle == idle {
		w.mu.Unlock()
		return domain.ErrSubscriptionNotFound
	}
	w.lifecycle = idle
	w.subscriber = nil
	cancel := w.cancelRun
	done := w.runDone
	w.mu.Unlock()

	cancel()
	if w.dispatching.Load() {
		return nil
	}
	<-done
	return nil
}

// AddOrder schema-validates order, recomputes its hash and verifies the
// maker's signature, then enrolls it in the watched set, the dependency
// index (under both its maker token and ZRX), and the expiration queue.
// Adding an already-watched hash is idempotent on the watched set but
// still refreshes the index and expiration entries.
func (w *Watcher) AddOrder(order domain.SignedOrder) error {
	if order.Maker == (common.Address{}) {
		return &domain.ValidationError{Field: "maker", Reason: "zero address"}
	}
	if order.MakerTokenAddress == (common.Address{}) {
		return &domain.ValidationError{Field: "makerTokenAddress", Reason: "zero address"}
	}
	if order.TakerAmount == nil || order.TakerAmount.Sign() <= 0 {
		return &domain.ValidationError{Field: "takerAmount", Reason: "must be positive"}
	}
	if err := w.verifier.Verify(order); err != nil {
		return &domain.ValidationError{Field: "signature", Reason: err.Error()}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.watched[order.OrderHash] = order
	w.depIndex.Add(order.Maker, order.MakerTokenAddress, order.OrderHash)
	w.depIndex.Add(order.Maker, w.zrxToken(), order.OrderHash)
	w.expQueue.Add(order.OrderHash, order.ExpirationMs())
	w.recorder.SetWatchedOrders(len(w.watched))
	return nil
}

// RemoveOrder deregisters orderHash from the watched set, the dependency
// index, the emitted-state memo, and the expiration queue. A miss is a
// no-op.
func (w *Watcher) RemoveOrder(orderHash common.Hash) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeOrderLocked(orderHash)
}

func (w *Watcher) removeOrderLocked(orderHash common.Hash) {
	order, ok := w.watched[orderHash]
	if !ok {
		return
	}
	delete(w.watched, orderHash)
	delete(w.memo, orderHash)
	w.depIndex.Remove(order.Maker, order.MakerTokenAddress, orderHash)
	w.depIndex.Remove(order.Maker, w.zrxToken(), orderHash)
	w.expQueue.Remove(orderHash)
	w.recorder.SetWatchedOrders(len(w.watched))
}

// Snapshot returns the current OrderState for orderHash if it is watched
// and has an emitted state on record, without touching the chain. It is a
// read-only introspection aid for the CLI and tests, not part of the
// reactive dispatch path.
func (w *Watcher) Snapshot(orderHash common.Hash) (domain.OrderState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.memo[orderHash]
	return s, ok
}

func (w *Watcher) fail(err error) {
	w.mu.Lock()
	cb := w.subscriber
	w.lifecycle = idle
	w.subscriber = nil
	cancel := w.cancelRun
	w.mu.Unlock()

	w.recorder.IncDispatchErrors()
	if cb != nil {
		w.invokeCallback(cb, err, nil)
	}
	if cancel != nil {
		cancel()
	}
}

// invokeCallback calls the subscriber and brackets the call with
// dispatching so Unsubscribe can recognize a re-entrant call arriving on
// this same goroutine. cb must never be called without going through here.
func (w *Watcher) invokeCallback(cb Callback, err error, state *domain.OrderState) {
	w.dispatching.Store(true)
	cb(err, state)
	w.dispatching.Store(false)
}

func (w *Watcher) zrxToken() common.Address {
	if z, ok := w.verifier.(interface{ ZRXTokenAddress() common.Address }); ok {
		return z.ZRXTokenAddress()
	}
	return common.Address{}
}

// run is the single-consumer mailbox loop. Three producers feed it via
// errgroup — the event source, the expiration ticker, and the cleanup
// ticker — matching the corpus's ticker-driven Run loops in
// internal/pipeline/orchestrator.go and internal/executor/executor.go.
// watched/depIndex/memo/expQueue are also reachable from AddOrder/RemoveOrder
// on caller goroutines, so every access to them, here and in dispatch/emit,
// still goes through w.mu; cache has its own internal locking.
func (w *Watcher) run(ctx context.Context) {
	defer func() {
		w.cache.DeleteAll()
		close(w.runDone)
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		out := make(chan chainevents.Delivery, 64)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case d, ok := <-out:
					if !ok {
						return
					}
					if d.Err != nil {
						select {
						case w.mailbox <- mailboxMsg{kind: msgSourceErr, err: d.Err}:
						case <-gctx.Done():
							return
						}
						continue
					}
					select {
					case w.mailbox <- mailboxMsg{kind: msgEvent, event: d.Event}:
					case <-gctx.Done():
						return
					}
				case <-gctx.Done():
					return
				}
			}
		}()
		err := w.source.Run(gctx, out)
		close(out)
		<-done
		if gctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("watcher: event source: %w", err)
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.expQueue.PollInterval())
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				w.mu.Lock()
				fired := w.expQueue.Poll()
				w.mu.Unlock()
				for _, h := range fired {
					select {
					case w.mailbox <- mailboxMsg{kind: msgExpired, hash: h}:
					case <-gctx.Done():
						return nil
					}
				}
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if !w.cleaning.CompareAndSwap(false, true) {
					continue // previous cleanup sweep still draining; drop this tick
				}
				select {
				case w.mailbox <- mailboxMsg{kind: msgCleanup}:
				case <-gctx.Done():
					w.cleaning.Store(false)
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg := <-w.mailbox:
				w.handle(gctx, msg)
			}
		}
	})

	if err := g.Wait(); err != nil {
		w.fail(err)
	}
}

func (w *Watcher) handle(ctx context.Context, msg mailboxMsg) {
	switch msg.kind {
	case msgEvent:
		candidates := w.dispatch(msg.event)
		w.emit(ctx, candidates)

	case msgExpired:
		w.mu.Lock()
		order, ok := w.watched[msg.hash]
		if !ok {
			w.mu.Unlock()
			return
		}
		state := domain.InvalidState(order, domain.ReasonOrderFillExpired)
		w.removeOrderLocked(msg.hash)
		cb := w.subscriber
		w.mu.Unlock()

		w.recorder.IncEmissions()
		if cb != nil {
			w.invokeCallback(cb, nil, &state)
		}

	case msgCleanup:
		w.runCleanup(ctx)
		w.cleaning.Store(false)

	case msgSourceErr:
		w.fail(&domain.UpstreamEventError{Err: msg.err})
	}
}

// runCleanup implements the periodic cleanup sweep: invalidate every cache
// entry an order depends on, then feed it through the emitter so a stale
// state recovers even if its invalidating event was missed.
func (w *Watcher) runCleanup(ctx context.Context) {
	w.mu.Lock()
	hashes := make([]common.Hash, 0, len(w.watched))
	orders := make([]domain.SignedOrder, 0, len(w.watched))
	for h, o := range w.watched {
		hashes = append(hashes, h)
		orders = append(orders, o)
	}
	w.mu.Unlock()

	zrx := w.zrxToken()
	for _, o := range orders {
		w.cache.DeleteBalance(o.MakerTokenAddress, o.Maker)
		w.cache.DeleteAllowance(o.MakerTokenAddress, o.Maker)
		w.cache.DeleteBalance(o.TakerTokenAddress, o.Taker)
		w.cache.DeleteAllowance(o.TakerTokenAddress, o.Taker)
		if o.HasMakerFee() {
			w.cache.DeleteBalance(zrx, o.Maker)
			w.cache.DeleteAllowance(zrx, o.Maker)
		}
		if o.HasTakerFee() {
			w.cache.DeleteBalance(zrx, o.Taker)
			w.cache.DeleteAllowance(zrx, o.Taker)
		}
		w.cache.DeleteFilled(o.OrderHash)
		w.cache.DeleteCancelled(o.OrderHash)
	}

	w.emit(ctx, hashes)
	w.recorder.IncCleanupRuns()

	b, a, f, c := w.cache.Sizes()
	w.recorder.SetCacheEntries(b, a, f, c)
}
