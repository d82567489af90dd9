// Package chainclient is the out-of-core chain client collaborator
// spec.md §1/§6 describe: read-only accessors for balance, allowance,
// filled amount, cancelled amount, and the ZRX token address, all fixed to
// one state layer (block tag) at construction. It is conventional
// plumbing around ethclient and accounts/abi, not part of the watcher's
// reactive core.
package chainclient

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ContractCaller is the subset of ethclient.Client the Client needs,
// narrowed so tests can supply a fake without dialing a real node.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// StateLayer selects the block tag read calls resolve against. "latest"
// resolves to the chain head; a named tag like "finalized" is passed
// through verbatim to the eth_call block parameter.
type StateLayer string

const (
	StateLayerLatest    StateLayer = "latest"
	StateLayerFinalized StateLayer = "finalized"
)

func (s StateLayer) blockNumber() *big.Int {
	// nil block number means "latest" to go-ethereum's CallContract; a named
	// tag is encoded as the negative rpc.BlockNumber ethclient translates
	// back into that tag.
	switch StateLayer(strings.ToLower(string(s))) {
	case StateLayerFinalized:
		return big.NewInt(int64(rpc.FinalizedBlockNumber))
	default:
		return nil
	}
}

var erc20ABI = mustABI(`[
  {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`)

var exchangeABI = mustABI(`[
  {"name":"filled","type":"function","stateMutability":"view","inputs":[{"name":"orderHash","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"cancelled","type":"function","stateMutability":"view","inputs":[{"name":"orderHash","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"ZRX_TOKEN_CONTRACT","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chainclient: invalid embedded ABI: %v", err))
	}
	return parsed
}

// Client implements internal/cache.Reader (and the wider chain read
// contract of spec.md §6) against a live ethclient connection.
type Client struct {
	caller        ContractCaller
	exchange      common.Address
	transferProxy common.Address
	stateLayer    StateLayer
	zrxAddr       common.Address
	zrxResolved   bool
}

// Dial connects to rpcURL and returns a Client bound to the given Exchange
// and transfer-proxy contract addresses.
func Dial(ctx context.Context, rpcURL string, exchange, transferProxy common.Address, layer StateLayer) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chainclient: dial %s: %w", rpcURL, err)
	}
	return New(ec, exchange, transferProxy, layer), nil
}

// New wraps an already-connected ContractCaller (usually *ethclient.Client,
// or a fake in tests).
func New(caller ContractCaller, exchange, transferProxy common.Address, layer StateLayer) *Client {
	return &Client{caller: caller, exchange: exchange, transferProxy: transferProxy, stateLayer: layer}
}

// GetBalance calls ERC20 balanceOf(owner) on token.
func (c *Client) GetBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("chainclient: pack balanceOf: %w", err)
	}
	out, err := c.call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("chainclient: get balance %s/%s: %w", token, owner, err)
	}
	var result *big.Int
	if err := erc20ABI.UnpackIntoInterface(&result, "balanceOf", out); err != nil {
		return nil, fmt.Errorf("chainclient: unpack balanceOf: %w", err)
	}
	return result, nil
}

// GetAllowance calls ERC20 allowance(owner, spender) on token. spender is
// expected to be the configured transfer proxy.
func (c *Client) GetAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("chainclient: pack allowance: %w", err)
	}
	out, err := c.call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("chainclient: get allowance %s/%s: %w", token, owner, err)
	}
	var result *big.Int
	if err := erc20ABI.UnpackIntoInterface(&result, "allowance", out); err != nil {
		return nil, fmt.Errorf("chainclient: unpack allowance: %w", err)
	}
	return result, nil
}

// GetFilled calls Exchange.filled(orderHash).
func (c *Client) GetFilled(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	data, err := exchangeABI.Pack("filled", orderHash)
	if err != nil {
		return nil, fmt.Errorf("chainclient: pack filled: %w", err)
	}
	out, err := c.call(ctx, c.exchange, data)
	if err != nil {
		return nil, fmt.Errorf("chainclient: get filled %s: %w", orderHash, err)
	}
	var result *big.Int
	if err := exchangeABI.UnpackIntoInterface(&result, "filled", out); err != nil {
		return nil, fmt.Errorf("chainclient: unpack filled: %w", err)
	}
	return result, nil
}

// GetCancelled calls Exchange.cancelled(orderHash).
func (c *Client) GetCancelled(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	data, err := exchangeABI.Pack("cancelled", orderHash)
	if err != nil {
		return nil, fmt.Errorf("chainclient: pack cancelled: %w", err)
	}
	out, err := c.call(ctx, c.exchange, data)
	if err != nil {
		return nil, fmt.Errorf("chainclient: get cancelled %s: %w", orderHash, err)
	}
	var result *big.Int
	if err := exchangeABI.UnpackIntoInterface(&result, "cancelled", out); err != nil {
		return nil, fmt.Errorf("chainclient: unpack cancelled: %w", err)
	}
	return result, nil
}

// ZRXTokenAddress returns the Exchange's configured fee token, resolving
// and caching it on first call since it never changes for a deployed
// Exchange contract.
func (c *Client) ZRXTokenAddress(ctx context.Context) (common.Address, error) {
	if c.zrxResolved {
		return c.zrxAddr, nil
	}
	data, err := exchangeABI.Pack("ZRX_TOKEN_CONTRACT")
	if err != nil {
		return common.Address{}, fmt.Errorf("chainclient: pack ZRX_TOKEN_CONTRACT: %w", err)
	}
	out, err := c.call(ctx, c.exchange, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("chainclient: get ZRX token address: %w", err)
	}
	var addr common.Address
	if err := exchangeABI.UnpackIntoInterface(&addr, "ZRX_TOKEN_CONTRACT", out); err != nil {
		return common.Address{}, fmt.Errorf("chainclient: unpack ZRX_TOKEN_CONTRACT: %w", err)
	}
	c.zrxAddr, c.zrxResolved = addr, true
	return addr, nil
}

func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	return c.caller.CallContract(ctx, msg, c.stateLayer.blockNumber())
}
