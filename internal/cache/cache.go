// Package cache implements the LazyStateCache described in spec.md §4.1:
// a read-through, per-Watcher memo of on-chain balance, allowance, filled
// and cancelled amounts. Entries are populated lazily on first read and
// evicted individually (on an invalidating event) or in bulk (on
// Watcher.Unsubscribe).
//
// The cache is never shared between watchers: it is constructed fresh by
// each Watcher and owns no state beyond these four maps, matching
// spec.md §9 ("the cache and index are per-Watcher instance state, not
// process-wide").
package cache

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Reader is the chain read contract (spec.md §6, "Chain read contract
// (outbound)"), fixed to a single state layer at construction.
type Reader interface {
	GetBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	GetFilled(ctx context.Context, orderHash common.Hash) (*big.Int, error)
	GetCancelled(ctx context.Context, orderHash common.Hash) (*big.Int, error)
}

type tokenOwnerKey struct {
	Token common.Address
	Owner common.Address
}

// Cache is the LazyStateCache. The mutex guards concurrent access between
// the Watcher's mailbox goroutine (which calls DeleteAll from the mailbox
// loop's teardown) and an in-flight evaluator call suspended on a chain read
// for a different entry (spec.md §5's only suspension points); it is not
// a substitute for the Watcher's single-writer discipline over W/D/M.
type Cache struct {
	chain Reader

	mu         sync.Mutex
	balances   map[tokenOwnerKey]*big.Int
	allowances map[tokenOwnerKey]*big.Int
	filled     map[common.Hash]*big.Int
	cancelled  map[common.Hash]*big.Int
}

// New creates an empty Cache reading through to chain on miss.
func New(chain Reader) *Cache {
	return &Cache{
		chain:      chain,
		balances:   make(map[tokenOwnerKey]*big.Int),
		allowances: make(map[tokenOwnerKey]*big.Int),
		filled:     make(map[common.Hash]*big.Int),
		cancelled:  make(map[common.Hash]*big.Int),
	}
}

// GetBalance returns the memoized balance for (token, owner), fetching and
// memoizing it on first access.
func (c *Cache) GetBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	key := tokenOwnerKey{Token: token, Owner: owner}

	c.mu.Lock()
	if v, ok := c.balances[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.chain.GetBalance(ctx, token, owner)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.balances[key] = v
	c.mu.Unlock()
	return v, nil
}

// GetAllowance returns the memoized allowance for (token, owner), fetching
// and memoizing it on first access. The spender is the configured transfer
// proxy and is passed through to the chain read untouched; it is not part
// of the cache key because a Watcher tracks a single proxy address.
func (c *Cache) GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	key := tokenOwnerKey{Token: token, Owner: owner}

	c.mu.Lock()
	if v, ok := c.allowances[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.chain.GetAllowance(ctx, token, owner, spender)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.allowances[key] = v
	c.mu.Unlock()
	return v, nil
}

// GetFilled returns the memoized filled amount for orderHash.
func (c *Cache) GetFilled(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	c.mu.Lock()
	if v, ok := c.filled[orderHash]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.chain.GetFilled(ctx, orderHash)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.filled[orderHash] = v
	c.mu.Unlock()
	return v, nil
}

// GetCancelled returns the memoized cancelled amount for orderHash.
func (c *Cache) GetCancelled(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	c.mu.Lock()
	if v, ok := c.cancelled[orderHash]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.chain.GetCancelled(ctx, orderHash)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cancelled[orderHash] = v
	c.mu.Unlock()
	return v, nil
}

// DeleteBalance evicts a single balance entry. A miss is a no-op.
func (c *Cache) DeleteBalance(token, owner common.Address) {
	c.mu.Lock()
	delete(c.balances, tokenOwnerKey{Token: token, Owner: owner})
	c.mu.Unlock()
}

// DeleteAllowance evicts a single allowance entry. A miss is a no-op.
func (c *Cache) DeleteAllowance(token, owner common.Address) {
	c.mu.Lock()
	delete(c.allowances, tokenOwnerKey{Token: token, Owner: owner})
	c.mu.Unlock()
}

// DeleteFilled evicts a single filled-amount entry. A miss is a no-op.
func (c *Cache) DeleteFilled(orderHash common.Hash) {
	c.mu.Lock()
	delete(c.filled, orderHash)
	c.mu.Unlock()
}

// DeleteCancelled evicts a single cancelled-amount entry. A miss is a
// no-op.
func (c *Cache) DeleteCancelled(orderHash common.Hash) {
	c.mu.Lock()
	delete(c.cancelled, orderHash)
	c.mu.Unlock()
}

// DeleteAll discards every entry across all four stores in O(size), called
// once the mailbox loop stops running (Watcher.run's deferred teardown).
func (c *Cache) DeleteAll() {
	c.mu.Lock()
	c.balances = make(map[tokenOwnerKey]*big.Int)
	c.allowances = make(map[tokenOwnerKey]*big.Int)
	c.filled = make(map[common.Hash]*big.Int)
	c.cancelled = make(map[common.Hash]*big.Int)
	c.mu.Unlock()
}

// Sizes reports the current entry count of each store, used by
// internal/metrics and the CLI's status output.
func (c *Cache) Sizes() (balances, allowances, filled, cancelled int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.balances), len(c.allowances), len(c.filled), len(c.cancelled)
}
