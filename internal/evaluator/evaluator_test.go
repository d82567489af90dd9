package evaluator_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderwatch/internal/domain"
	"github.com/alanyoungcy/orderwatch/internal/evaluator"
)

var (
	transferProxy = common.HexToAddress("0xproxy")
	zrxToken      = common.HexToAddress("0xzrx")
	makerToken    = common.HexToAddress("0xmakertoken")
	takerToken    = common.HexToAddress("0xtakertoken")
)

type tokenOwner struct {
	token common.Address
	owner common.Address
}

type fakeReader struct {
	balances   map[tokenOwner]*big.Int
	allowances map[tokenOwner]*big.Int
	filled     *big.Int
	cancelled  *big.Int
	err        error
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		balances:   make(map[tokenOwner]*big.Int),
		allowances: make(map[tokenOwner]*big.Int),
		filled:     big.NewInt(0),
		cancelled:  big.NewInt(0),
	}
}

func (f *fakeReader) GetBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.balances[tokenOwner{token, owner}]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeReader) GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.allowances[tokenOwner{token, owner}]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeReader) GetFilled(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.filled, nil
}

func (f *fakeReader) GetCancelled(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cancelled, nil
}

func baseOrder() domain.SignedOrder {
	return domain.SignedOrder{
		OrderHash:         common.HexToHash("0x1"),
		Maker:             common.HexToAddress("0xmaker"),
		Taker:             common.HexToAddress("0xtaker"),
		MakerTokenAddress: makerToken,
		TakerTokenAddress: takerToken,
		MakerAmount:       big.NewInt(100),
		TakerAmount:       big.NewInt(200),
		MakerFee:          big.NewInt(0),
		TakerFee:          big.NewInt(0),
	}
}

// fullyFunded sets balances and allowances to exactly the order's stated
// maker/taker amounts — the minimum that should still evaluate as valid.
func fullyFunded(r *fakeReader, order domain.SignedOrder) {
	r.balances[tokenOwner{order.MakerTokenAddress, order.Maker}] = new(big.Int).Set(order.MakerAmount)
	r.allowances[tokenOwner{order.MakerTokenAddress, order.Maker}] = new(big.Int).Set(order.MakerAmount)
	r.balances[tokenOwner{order.TakerTokenAddress, order.Taker}] = new(big.Int).Set(order.TakerAmount)
	r.allowances[tokenOwner{order.TakerTokenAddress, order.Taker}] = new(big.Int).Set(order.TakerAmount)
}

func TestEvaluateValidOrder(t *testing.T) {
	r := newFakeReader()
	order := baseOrder()
	fullyFunded(r, order)

	e := evaluator.New(transferProxy, zrxToken)
	state, err := e.Evaluate(context.Background(), r, order)
	require.NoError(t, err)
	assert.True(t, state.Valid)
}

func TestEvaluateFullyFilledIsInvalid(t *testing.T) {
	r := newFakeReader()
	order := baseOrder()
	fullyFunded(r, order)
	r.filled = big.NewInt(200) // equals TakerAmount

	e := evaluator.New(transferProxy, zrxToken)
	state, err := e.Evaluate(context.Background(), r, order)
	require.NoError(t, err)
	assert.False(t, state.Valid)
	assert.Equal(t, domain.ReasonOrderRemainingFillAmountZero, state.Reason)
}

func TestEvaluateCancelledTakesPrecedenceOverFillReason(t *testing.T) {
	r := newFakeReader()
	order := baseOrder()
	fullyFunded(r, order)
	r.filled = big.NewInt(200)
	r.cancelled = big.NewInt(1)

	e := evaluator.New(transferProxy, zrxToken)
	state, err := e.Evaluate(context.Background(), r, order)
	require.NoError(t, err)
	assert.False(t, state.Valid)
	assert.Equal(t, domain.ReasonOrderCancelled, state.Reason)
}

func TestEvaluateInsufficientMakerBalance(t *testing.T) {
	r := newFakeReader()
	order := baseOrder()
	fullyFunded(r, order)
	r.balances[tokenOwner{order.MakerTokenAddress, order.Maker}] = big.NewInt(0)

	e := evaluator.New(transferProxy, zrxToken)
	state, err := e.Evaluate(context.Background(), r, order)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonInsufficientMakerBalance, state.Reason)
}

func TestEvaluateInsufficientTakerAllowance(t *testing.T) {
	r := newFakeReader()
	order := baseOrder()
	fullyFunded(r, order)
	r.allowances[tokenOwner{order.TakerTokenAddress, order.Taker}] = big.NewInt(0)

	e := evaluator.New(transferProxy, zrxToken)
	state, err := e.Evaluate(context.Background(), r, order)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonInsufficientTakerAllowance, state.Reason)
}

func TestEvaluateBalanceBelowRequiredAmountIsInsufficient(t *testing.T) {
	r := newFakeReader()
	order := baseOrder()
	fullyFunded(r, order)
	// Nonzero but short of order.MakerAmount (100): a partial holding must
	// still be reported insufficient, not merely checked for nonzero.
	r.balances[tokenOwner{order.MakerTokenAddress, order.Maker}] = big.NewInt(1)

	e := evaluator.New(transferProxy, zrxToken)
	state, err := e.Evaluate(context.Background(), r, order)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonInsufficientMakerBalance, state.Reason)
}

func TestEvaluateAllowanceBelowRequiredAmountIsInsufficient(t *testing.T) {
	r := newFakeReader()
	order := baseOrder()
	fullyFunded(r, order)
	// Nonzero but short of order.TakerAmount (200).
	r.allowances[tokenOwner{order.TakerTokenAddress, order.Taker}] = big.NewInt(150)

	e := evaluator.New(transferProxy, zrxToken)
	state, err := e.Evaluate(context.Background(), r, order)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonInsufficientTakerAllowance, state.Reason)
}

func TestEvaluateMakerFeeChecked(t *testing.T) {
	r := newFakeReader()
	order := baseOrder()
	order.MakerFee = big.NewInt(5)
	fullyFunded(r, order)
	// ZRX fee balance for maker is unfunded (not set, defaults to zero),
	// short of the stated MakerFee.

	e := evaluator.New(transferProxy, zrxToken)
	state, err := e.Evaluate(context.Background(), r, order)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonInsufficientMakerFeeBalance, state.Reason)
}

func TestEvaluateChainErrorPropagates(t *testing.T) {
	r := newFakeReader()
	r.err = errors.New("rpc: timeout")
	order := baseOrder()

	e := evaluator.New(transferProxy, zrxToken)
	_, err := e.Evaluate(context.Background(), r, order)
	assert.Error(t, err)
}
