// Package evaluator implements the order-state evaluator spec.md §6 treats
// as an external collaborator: given a SignedOrder and the cache-backed
// read accessors, derive whether the order is still fillable, and if not,
// why. Evaluate is pure with respect to the cache snapshot it observes: it
// issues no invalidations and holds no state of its own.
package evaluator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderwatch/internal/cache"
	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// Evaluator derives an OrderState from a SignedOrder and the accessors
// reading through to a configured (transferProxy, zrxToken) pair.
type Evaluator struct {
	transferProxy common.Address
	zrxToken      common.Address
}

// New returns an Evaluator bound to the Exchange's transfer proxy (the
// address every maker/taker allowance is granted to) and its ZRX fee
// token.
func New(transferProxy, zrxToken common.Address) *Evaluator {
	return &Evaluator{transferProxy: transferProxy, zrxToken: zrxToken}
}

// Evaluate returns order's current OrderState. Checks run in a fixed order
// (remaining fill amount and cancellation, then the maker side, then the
// taker side) so the first violated condition determines Reason; an order
// failing multiple checks at once always reports the earliest one.
func (e *Evaluator) Evaluate(ctx context.Context, c cache.Reader, order domain.SignedOrder) (domain.OrderState, error) {
	remaining, err := e.remainingTakerAmount(ctx, c, order)
	if err != nil {
		return domain.OrderState{}, err
	}
	if remaining == nil {
		cancelled, err := c.GetCancelled(ctx, order.OrderHash)
		if err != nil {
			return domain.OrderState{}, err
		}
		if cancelled.Sign() > 0 {
			return domain.InvalidState(order, domain.ReasonOrderCancelled), nil
		}
		return domain.InvalidState(order, domain.ReasonOrderRemainingFillAmountZero), nil
	}

	if reason, ok, err := e.checkSide(ctx, c, order.MakerTokenAddress, order.Maker, order.MakerAmount, order.MakerFee,
		domain.ReasonInsufficientMakerBalance, domain.ReasonInsufficientMakerAllowance,
		domain.ReasonInsufficientMakerFeeBalance, domain.ReasonInsufficientMakerFeeAllowance); err != nil {
		return domain.OrderState{}, err
	} else if !ok {
		return domain.InvalidState(order, reason), nil
	}

	if reason, ok, err := e.checkSide(ctx, c, order.TakerTokenAddress, order.Taker, order.TakerAmount, order.TakerFee,
		domain.ReasonInsufficientTakerBalance, domain.ReasonInsufficientTakerAllowance,
		domain.ReasonInsufficientTakerFeeBalance, domain.ReasonInsufficientTakerFeeAllowance); err != nil {
		return domain.OrderState{}, err
	} else if !ok {
		return domain.InvalidState(order, reason), nil
	}

	return domain.ValidState(order), nil
}

// remainingTakerAmount returns takerAmount - filled - cancelled, or nil once
// the order is exhausted (fully filled, over-filled, or cancelled — the
// caller tells a cancellation apart via GetCancelled).
func (e *Evaluator) remainingTakerAmount(ctx context.Context, c cache.Reader, order domain.SignedOrder) (*big.Int, error) {
	filled, err := c.GetFilled(ctx, order.OrderHash)
	if err != nil {
		return nil, fmt.Errorf("evaluator: get filled: %w", err)
	}
	cancelled, err := c.GetCancelled(ctx, order.OrderHash)
	if err != nil {
		return nil, fmt.Errorf("evaluator: get cancelled: %w", err)
	}
	remaining := new(big.Int).Sub(order.TakerAmount, filled)
	remaining.Sub(remaining, cancelled)
	if remaining.Sign() <= 0 {
		return nil, nil
	}
	return remaining, nil
}

// checkSide validates one side (maker or taker) of the order: trade-token
// balance/allowance sized to the order's full stated amount (not just the
// remaining fraction — a partial fill still requires the order's stated
// amount to be available for what's left, and the core treats amounts as
// arbitrary precision so no proportional scaling is attempted here), plus
// the ZRX fee balance/allowance when a fee is owed. A nonzero balance or
// allowance short of the required amount is still insufficient.
func (e *Evaluator) checkSide(
	ctx context.Context, c cache.Reader, token, owner common.Address, amount, fee *big.Int,
	balanceReason, allowanceReason, feeBalanceReason, feeAllowanceReason domain.RevalidationReason,
) (domain.RevalidationReason, bool, error) {
	balance, err := c.GetBalance(ctx, token, owner)
	if err != nil {
		return "", false, fmt.Errorf("evaluator: get balance: %w", err)
	}
	if balance.Cmp(amount) < 0 {
		return balanceReason, false, nil
	}
	allowance, err := c.GetAllowance(ctx, token, owner, e.transferProxy)
	if err != nil {
		return "", false, fmt.Errorf("evaluator: get allowance: %w", err)
	}
	if allowance.Cmp(amount) < 0 {
		return allowanceReason, false, nil
	}

	if fee != nil && fee.Sign() > 0 {
		feeBalance, err := c.GetBalance(ctx, e.zrxToken, owner)
		if err != nil {
			return "", false, fmt.Errorf("evaluator: get fee balance: %w", err)
		}
		if feeBalance.Cmp(fee) < 0 {
			return feeBalanceReason, false, nil
		}
		feeAllowance, err := c.GetAllowance(ctx, e.zrxToken, owner, e.transferProxy)
		if err != nil {
			return "", false, fmt.Errorf("evaluator: get fee allowance: %w", err)
		}
		if feeAllowance.Cmp(fee) < 0 {
			return feeAllowanceReason, false, nil
		}
	}

	return "", true, nil
}
