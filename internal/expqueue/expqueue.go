// Package expqueue implements the ExpirationQueue from spec.md §4.3: a
// priority-ordered set of orderHashes, keyed by expiration timestamp. A
// ticker owned by internal/watcher polls at PollInterval and calls Poll to
// collect everyone whose expirationMs - safetyMargin has elapsed.
package expqueue

import (
	"container/heap"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// entry is one heap element. deleted marks an entry superseded by Remove
// or a duplicate Add; it is skipped on pop rather than spliced out of the
// slice, the standard container/heap idiom for a removable priority queue.
type entry struct {
	orderHash    common.Hash
	expirationMs int64
	index        int
	deleted      bool
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].expirationMs < h[j].expirationMs }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is the ExpirationQueue. It is not safe for concurrent use; callers
// (the Watcher's single mailbox goroutine) must serialize access.
type Queue struct {
	h             entryHeap
	byHash        map[common.Hash]*entry
	pollInterval  time.Duration
	safetyMargin  time.Duration
	now           func() time.Time
}

// Option configures a Queue at construction.
type Option func(*Queue)

// WithPollInterval overrides the default poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) { q.pollInterval = d }
}

// WithSafetyMargin overrides the default (zero) safety margin subtracted
// from each order's expiration before comparing against now.
func WithSafetyMargin(d time.Duration) Option {
	return func(q *Queue) { q.safetyMargin = d }
}

// withClock overrides the time source; used by tests.
func withClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

const defaultPollInterval = 50 * time.Millisecond

// New creates an empty Queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		byHash:       make(map[common.Hash]*entry),
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	heap.Init(&q.h)
	return q
}

// Add enrolls orderHash with the given expiration (milliseconds since
// epoch). A duplicate Add for an existing hash replaces the prior
// timestamp (spec.md §4.3).
func (q *Queue) Add(orderHash common.Hash, expirationMs int64) {
	if old, ok := q.byHash[orderHash]; ok {
		old.deleted = true
	}
	e := &entry{orderHash: orderHash, expirationMs: expirationMs}
	heap.Push(&q.h, e)
	q.byHash[orderHash] = e
}

// Remove deregisters orderHash. A miss is a no-op.
func (q *Queue) Remove(orderHash common.Hash) {
	e, ok := q.byHash[orderHash]
	if !ok {
		return
	}
	e.deleted = true
	delete(q.byHash, orderHash)
}

// Len reports how many live (non-deleted) entries remain enrolled.
func (q *Queue) Len() int {
	return len(q.byHash)
}

// Poll pops every entry whose expirationMs - safetyMargin <= now, in
// chronological order, and returns the corresponding orderHashes.
// Tombstoned entries (superseded by Add/Remove) are discarded silently.
// Poll itself fires nothing: the caller (the Watcher's single mailbox
// goroutine) is responsible for delivering the result, which is what lets
// Queue stay a plain data structure with no goroutine of its own —
// whether an order fires is entirely a function of whether a subscriber
// is attached when the caller acts on the returned hashes (spec.md
// §4.3's "if no subscriber is attached, the queue still accumulates
// entries but does not fire").
func (q *Queue) Poll() []common.Hash {
	nowMs := q.now().Add(q.safetyMargin).UnixMilli()
	var fired []common.Hash
	for q.h.Len() > 0 {
		top := q.h[0]
		if top.deleted {
			heap.Pop(&q.h)
			continue
		}
		if top.expirationMs > nowMs {
			break
		}
		heap.Pop(&q.h)
		delete(q.byHash, top.orderHash)
		fired = append(fired, top.orderHash)
	}
	return fired
}

// PollInterval returns the configured poll cadence, so callers can drive
// their own ticker without duplicating the default.
func (q *Queue) PollInterval() time.Duration {
	return q.pollInterval
}
