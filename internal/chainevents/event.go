// Package chainevents models the decoded on-chain log records the watcher
// reacts to as a closed tagged variant, one constructor per row of the
// event taxonomy, plus the inbound (error | event) envelope the event
// source delivers.
package chainevents

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event is implemented by every decoded log kind the dispatcher
// understands. event() is unexported so the set of implementations is
// closed to this package, letting a type switch over Event be a total
// match the way spec.md §9 asks for.
type Event interface {
	event()
	// Contract is the address the log was emitted from.
	Contract() common.Address
}

type base struct {
	contract common.Address
}

func (base) event() {}
func (b base) Contract() common.Address { return b.contract }

// Approval mirrors ERC20 Approval(owner, spender, value).
type Approval struct {
	base
	Owner   common.Address
	Spender common.Address
	Value   *big.Int
}

// Transfer mirrors ERC20 Transfer(from, to, value).
type Transfer struct {
	base
	From  common.Address
	To    common.Address
	Value *big.Int
}

// Deposit mirrors EtherToken (WETH) Deposit(owner, value).
type Deposit struct {
	base
	Owner common.Address
	Value *big.Int
}

// Withdrawal mirrors EtherToken (WETH) Withdrawal(owner, value).
type Withdrawal struct {
	base
	Owner common.Address
	Value *big.Int
}

// LogFill mirrors the Exchange's LogFill(orderHash, ...) event.
type LogFill struct {
	base
	OrderHash common.Hash
}

// LogCancel mirrors the Exchange's LogCancel(orderHash, ...) event.
type LogCancel struct {
	base
	OrderHash common.Hash
}

// LogError mirrors the Exchange's LogError event. It carries no actionable
// fields for the watcher: spec.md §4.4 requires it be ignored.
type LogError struct {
	base
}

// Unknown wraps any log the decoder could not classify: an unrecognized
// topic0, or a log whose ABI unpacking failed. Spec.md §4.4 requires these
// be ignored without surfacing an error.
type Unknown struct {
	base
	Topic0 common.Hash
}

// Delivery is the event source's inbound envelope: exactly one of Err or
// Event is populated, matching spec.md §6's event-source contract.
type Delivery struct {
	Err   error
	Event Event
}
