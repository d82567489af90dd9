// Package depindex implements the DependencyIndex described in spec.md
// §4.2: a two-level (maker address -> token address -> set<orderHash>)
// map answering "which watched orders depend on this (owner, token)
// pair?" in expected O(1). It is owned exclusively by the Watcher and
// updated only from addOrder/removeOrder; depindex itself enforces no
// order-level invariants beyond pruning empty containers.
package depindex

import "github.com/ethereum/go-ethereum/common"

// Index is the DependencyIndex `D`.
type Index struct {
	byMaker map[common.Address]map[common.Address]map[common.Hash]struct{}
}

// New returns an empty Index.
func New() *Index {
	return &Index{byMaker: make(map[common.Address]map[common.Address]map[common.Hash]struct{})}
}

// Add records that orderHash, watched under maker, depends on token.
// Adding the same (maker, token, orderHash) triple twice is idempotent.
func (idx *Index) Add(maker, token common.Address, orderHash common.Hash) {
	byToken, ok := idx.byMaker[maker]
	if !ok {
		byToken = make(map[common.Address]map[common.Hash]struct{})
		idx.byMaker[maker] = byToken
	}
	hashes, ok := byToken[token]
	if !ok {
		hashes = make(map[common.Hash]struct{})
		byToken[token] = hashes
	}
	hashes[orderHash] = struct{}{}
}

// Remove deletes the (maker, token, orderHash) triple, pruning the inner
// set and, if it empties, the outer map entries so no empty containers
// linger (spec.md §3 invariant).
func (idx *Index) Remove(maker, token common.Address, orderHash common.Hash) {
	byToken, ok := idx.byMaker[maker]
	if !ok {
		return
	}
	hashes, ok := byToken[token]
	if !ok {
		return
	}
	delete(hashes, orderHash)
	if len(hashes) == 0 {
		delete(byToken, token)
	}
	if len(byToken) == 0 {
		delete(idx.byMaker, maker)
	}
}

// Lookup returns every orderHash watched under (maker, token). The
// returned slice is a snapshot; mutating the index afterward does not
// affect it.
func (idx *Index) Lookup(maker, token common.Address) []common.Hash {
	byToken, ok := idx.byMaker[maker]
	if !ok {
		return nil
	}
	hashes, ok := byToken[token]
	if !ok {
		return nil
	}
	out := make([]common.Hash, 0, len(hashes))
	for h := range hashes {
		out = append(out, h)
	}
	return out
}
