package watcher

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// emit re-evaluates order state for each candidate hash and delivers only
// on change. It follows a four-step contract per candidate — check the
// subscriber is still attached, look up the order, evaluate, diff against
// the memo — including the "subscriber gone" abort that lets an
// unsubscribe-from-within-the-callback drop remaining emissions in the same
// batch without any extra bookkeeping. watched, memo, and subscriber are
// also reached from AddOrder/RemoveOrder/Unsubscribe on caller goroutines,
// so every read or write of them is done under w.mu, released again before
// the (potentially slow) evaluator call and before the callback itself —
// holding it across either would block unrelated callers and, if the
// callback calls back into the watcher, deadlock against this same mutex.
func (w *Watcher) emit(ctx context.Context, candidates []common.Hash) {
	for _, h := range candidates {
		w.mu.Lock()
		if w.subscriber == nil {
			w.mu.Unlock()
			return
		}
		order, ok := w.watched[h]
		w.mu.Unlock()
		if !ok {
			continue
		}

		state, err := w.evaluator.Evaluate(ctx, w.cache, order)
		if err != nil {
			w.fail(&domain.TransientChainError{Op: "evaluate", Err: err})
			return
		}

		w.mu.Lock()
		cb := w.subscriber
		if cb == nil {
			w.mu.Unlock()
			return
		}
		if prev, ok := w.memo[h]; ok && prev.Equal(state) {
			w.mu.Unlock()
			continue
		}
		w.memo[h] = state
		w.mu.Unlock()

		w.recorder.IncEmissions()
		w.invokeCallback(cb, nil, &state)
	}
}
