package watcher

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderwatch/internal/chainevents"
)

// dispatch classifies event by kind, applies its cache invalidations, and
// returns the set of orderHashes the change may affect. It is a method on
// Watcher because invalidation needs the cache and candidate-order lookup
// needs the dependency index, both Watcher-owned state; dispatch itself
// mutates nothing but the cache. depIndex and watched are also written by
// AddOrder/RemoveOrder from caller goroutines, so every read here goes
// through w.mu; cache has its own internal locking and is left unguarded.
func (w *Watcher) dispatch(ev chainevents.Event) []common.Hash {
	switch e := ev.(type) {
	case chainevents.Approval:
		w.cache.DeleteAllowance(e.Contract(), e.Owner)
		return w.lookupDependents(e.Owner, e.Contract())

	case chainevents.Transfer:
		w.cache.DeleteBalance(e.Contract(), e.From)
		w.cache.DeleteBalance(e.Contract(), e.To)
		// Only the from side fans out to candidate orders; a possibly
		// unintended but faithfully mirrored asymmetry inherited from the
		// system this core is modeled on.
		return w.lookupDependents(e.From, e.Contract())

	case chainevents.Deposit:
		w.cache.DeleteBalance(e.Contract(), e.Owner)
		return w.lookupDependents(e.Owner, e.Contract())

	case chainevents.Withdrawal:
		w.cache.DeleteBalance(e.Contract(), e.Owner)
		return w.lookupDependents(e.Owner, e.Contract())

	case chainevents.LogFill:
		w.cache.DeleteFilled(e.OrderHash)
		if w.isWatched(e.OrderHash) {
			return []common.Hash{e.OrderHash}
		}
		return nil

	case chainevents.LogCancel:
		w.cache.DeleteCancelled(e.OrderHash)
		if w.isWatched(e.OrderHash) {
			return []common.Hash{e.OrderHash}
		}
		return nil

	case chainevents.LogError:
		return nil

	default: // chainevents.Unknown, or any future kind
		return nil
	}
}

func (w *Watcher) lookupDependents(owner, token common.Address) []common.Hash {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.depIndex.Lookup(owner, token)
}

func (w *Watcher) isWatched(orderHash common.Hash) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watched[orderHash]
	return ok
}
