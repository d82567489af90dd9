// Package domain defines the data model shared by every orderwatch
// component: signed orders, their derived validity state, and the
// sentinel errors the watcher reports to callers.
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SignedOrder is the subset of a 0x-style signed order the core cares
// about. Everything else (schema metadata, EIP-712 extension fields) is
// opaque to the watcher and lives only in internal/orderutil.
type SignedOrder struct {
	OrderHash              common.Hash
	Maker                  common.Address
	Taker                  common.Address
	MakerTokenAddress      common.Address
	TakerTokenAddress      common.Address
	FeeRecipient           common.Address
	MakerAmount            *big.Int
	TakerAmount            *big.Int
	MakerFee               *big.Int
	TakerFee               *big.Int
	ExpirationTimestampSec int64
	Salt                   *big.Int
	Signature              []byte
}

// HasMakerFee reports whether the order's maker side owes a ZRX fee.
func (o SignedOrder) HasMakerFee() bool {
	return o.MakerFee != nil && o.MakerFee.Sign() > 0
}

// HasTakerFee reports whether the order's taker side owes a ZRX fee.
func (o SignedOrder) HasTakerFee() bool {
	return o.TakerFee != nil && o.TakerFee.Sign() > 0
}

// ExpirationMs returns the order's expiration timestamp in milliseconds,
// the unit the expiration queue operates on.
func (o SignedOrder) ExpirationMs() int64 {
	return o.ExpirationTimestampSec * 1000
}
