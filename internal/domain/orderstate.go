package domain

import "github.com/ethereum/go-ethereum/common"

// RevalidationReason enumerates why an order was found invalid. The set is
// closed: new reasons require a matching evaluator change.
type RevalidationReason string

const (
	ReasonOrderFillExpired              RevalidationReason = "OrderFillExpired"
	ReasonOrderRemainingFillAmountZero  RevalidationReason = "OrderRemainingFillAmountZero"
	ReasonOrderCancelled                RevalidationReason = "OrderCancelled"
	ReasonInsufficientMakerBalance      RevalidationReason = "InsufficientMakerBalance"
	ReasonInsufficientMakerAllowance    RevalidationReason = "InsufficientMakerAllowance"
	ReasonInsufficientTakerBalance      RevalidationReason = "InsufficientTakerBalance"
	ReasonInsufficientTakerAllowance    RevalidationReason = "InsufficientTakerAllowance"
	ReasonInsufficientMakerFeeBalance   RevalidationReason = "InsufficientMakerFeeBalance"
	ReasonInsufficientMakerFeeAllowance RevalidationReason = "InsufficientMakerFeeAllowance"
	ReasonInsufficientTakerFeeBalance   RevalidationReason = "InsufficientTakerFeeBalance"
	ReasonInsufficientTakerFeeAllowance RevalidationReason = "InsufficientTakerFeeAllowance"
)

// OrderState is the tagged union spec'd as `Valid | Invalid`. Valid is true
// for a fillable order; Reason is only meaningful when Valid is false.
// Order is embedded so a subscriber callback is self-contained even after
// the hash has already been evicted from the watched set (see the
// expiration path, which calls removeOrder before delivering the state).
type OrderState struct {
	OrderHash common.Hash
	Order     SignedOrder
	Valid     bool
	Reason    RevalidationReason
}

// Equal reports structural equality for change-suppression purposes
// (StateDiffEmitter step 4). Order is intentionally excluded: it never
// changes for a given OrderHash while watched, so comparing it would only
// add cost without ever affecting the result.
func (s OrderState) Equal(other OrderState) bool {
	return s.OrderHash == other.OrderHash && s.Valid == other.Valid && s.Reason == other.Reason
}

// ValidState builds the Valid variant for orderHash.
func ValidState(order SignedOrder) OrderState {
	return OrderState{OrderHash: order.OrderHash, Order: order, Valid: true}
}

// InvalidState builds the Invalid variant for orderHash with reason.
func InvalidState(order SignedOrder, reason RevalidationReason) OrderState {
	return OrderState{OrderHash: order.OrderHash, Order: order, Valid: false, Reason: reason}
}
