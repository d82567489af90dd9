package cache_test

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderwatch/internal/cache"
)

type fakeChain struct {
	balanceCalls   int32
	allowanceCalls int32
	filledCalls    int32
	cancelledCalls int32
	err            error
}

func (f *fakeChain) GetBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	atomic.AddInt32(&f.balanceCalls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return big.NewInt(42), nil
}

func (f *fakeChain) GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	atomic.AddInt32(&f.allowanceCalls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return big.NewInt(7), nil
}

func (f *fakeChain) GetFilled(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	atomic.AddInt32(&f.filledCalls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return big.NewInt(1), nil
}

func (f *fakeChain) GetCancelled(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	atomic.AddInt32(&f.cancelledCalls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return big.NewInt(0), nil
}

func TestGetBalanceMemoizes(t *testing.T) {
	chain := &fakeChain{}
	c := cache.New(chain)
	token, owner := common.HexToAddress("0xa"), common.HexToAddress("0xb")

	v1, err := c.GetBalance(context.Background(), token, owner)
	require.NoError(t, err)
	v2, err := c.GetBalance(context.Background(), token, owner)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.EqualValues(t, 1, chain.balanceCalls)
}

func TestGetAllowanceFilledCancelledMemoize(t *testing.T) {
	chain := &fakeChain{}
	c := cache.New(chain)
	token, owner, spender := common.HexToAddress("0xa"), common.HexToAddress("0xb"), common.HexToAddress("0xc")
	hash := common.HexToHash("0x1")

	_, _ = c.GetAllowance(context.Background(), token, owner, spender)
	_, _ = c.GetAllowance(context.Background(), token, owner, spender)
	_, _ = c.GetFilled(context.Background(), hash)
	_, _ = c.GetFilled(context.Background(), hash)
	_, _ = c.GetCancelled(context.Background(), hash)
	_, _ = c.GetCancelled(context.Background(), hash)

	assert.EqualValues(t, 1, chain.allowanceCalls)
	assert.EqualValues(t, 1, chain.filledCalls)
	assert.EqualValues(t, 1, chain.cancelledCalls)
}

func TestGetBalanceMissIsNotMemoized(t *testing.T) {
	chain := &fakeChain{err: errors.New("rpc: timeout")}
	c := cache.New(chain)
	token, owner := common.HexToAddress("0xa"), common.HexToAddress("0xb")

	_, err1 := c.GetBalance(context.Background(), token, owner)
	_, err2 := c.GetBalance(context.Background(), token, owner)

	require.Error(t, err1)
	require.Error(t, err2)
	assert.EqualValues(t, 2, chain.balanceCalls)
}

func TestDeleteInvalidatesSingleEntry(t *testing.T) {
	chain := &fakeChain{}
	c := cache.New(chain)
	token, owner := common.HexToAddress("0xa"), common.HexToAddress("0xb")

	_, _ = c.GetBalance(context.Background(), token, owner)
	c.DeleteBalance(token, owner)
	_, _ = c.GetBalance(context.Background(), token, owner)

	assert.EqualValues(t, 2, chain.balanceCalls)
}

func TestDeleteAllClearsEveryStore(t *testing.T) {
	chain := &fakeChain{}
	c := cache.New(chain)
	token, owner, spender := common.HexToAddress("0xa"), common.HexToAddress("0xb"), common.HexToAddress("0xc")
	hash := common.HexToHash("0x1")

	_, _ = c.GetBalance(context.Background(), token, owner)
	_, _ = c.GetAllowance(context.Background(), token, owner, spender)
	_, _ = c.GetFilled(context.Background(), hash)
	_, _ = c.GetCancelled(context.Background(), hash)

	b, a, f, cc := c.Sizes()
	require.Equal(t, 1, b)
	require.Equal(t, 1, a)
	require.Equal(t, 1, f)
	require.Equal(t, 1, cc)

	c.DeleteAll()
	b, a, f, cc = c.Sizes()
	assert.Zero(t, b)
	assert.Zero(t, a)
	assert.Zero(t, f)
	assert.Zero(t, cc)
}
