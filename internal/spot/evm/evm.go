// Package evm prices assets against a Uniswap V2 style router and reads
// ERC-20 metadata over JSON-RPC.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"price-registry/internal/spot"
)

const routerABI = `[{"name":"getAmountsOut","type":"function","stateMutability":"view",
 "inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
 "outputs":[{"name":"amounts","type":"uint256[]"}]}]`

const erc20ABI = `[
 {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	parsedRouter = mustParse(routerABI)
	parsedERC20  = mustParse(erc20ABI)
)

func mustParse(def string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return a
}

// ErrOverflow is returned when a quote does not fit in 64 bits.
var ErrOverflow = errors.New("quote exceeds uint64")

// Options configures a Client.
type Options struct {
	Router  common.Address
	Aliases map[string]string // symbol -> hex address
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Client implements spot.Source and spot.AssetInfo on top of any
// ethereum.ContractCaller, usually an *ethclient.Client.
type Client struct {
	caller  ethereum.ContractCaller
	router  common.Address
	aliases map[string]common.Address
	clock   func() time.Time
	logger  *zap.Logger

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

// Dial connects to an RPC endpoint and returns a Client. The returned
// close function releases the connection.
func Dial(ctx context.Context, url string, opts Options) (*Client, func(), error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c, err := New(ec, opts)
	if err != nil {
		ec.Close()
		return nil, nil, err
	}
	return c, ec.Close, nil
}

// New creates a Client over caller.
func New(caller ethereum.ContractCaller, opts Options) (*Client, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	aliases := make(map[string]common.Address, len(opts.Aliases))
	for sym, hex := range opts.Aliases {
		if !common.IsHexAddress(hex) {
			return nil, fmt.Errorf("alias %s: %q is not an address", sym, hex)
		}
		aliases[sym] = common.HexToAddress(hex)
	}

	return &Client{
		caller:   caller,
		router:   opts.Router,
		aliases:  aliases,
		clock:    opts.Clock,
		logger:   opts.Logger.Named("evm"),
		decimals: make(map[common.Address]uint8),
	}, nil
}

func (c *Client) resolve(asset string) (common.Address, error) {
	if addr, ok := c.aliases[asset]; ok {
		return addr, nil
	}
	if common.IsHexAddress(asset) {
		return common.HexToAddress(asset), nil
	}
	return common.Address{}, fmt.Errorf("%w: %q is not an EVM asset", spot.ErrNoRoute, asset)
}

// Quote returns how much of assetOut one whole unit of assetIn buys on
// the router's direct pair.
func (c *Client) Quote(ctx context.Context, assetIn, assetOut string) (spot.Quote, error) {
	in, err := c.resolve(assetIn)
	if err != nil {
		return spot.Quote{}, err
	}
	out, err := c.resolve(assetOut)
	if err != nil {
		return spot.Quote{}, err
	}

	dec, err := c.decimalsOf(ctx, in)
	if err != nil {
		return spot.Quote{}, err
	}
	amountIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dec)), nil)

	res, err := c.call(ctx, c.router, parsedRouter, "getAmountsOut", amountIn, []common.Address{in, out})
	if err != nil {
		return spot.Quote{}, err
	}

	amounts, ok := res[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return spot.Quote{}, fmt.Errorf("%w: unexpected getAmountsOut result", spot.ErrNoRoute)
	}
	last := amounts[len(amounts)-1]
	if !last.IsUint64() {
		return spot.Quote{}, fmt.Errorf("%w: %s", ErrOverflow, last)
	}

	return spot.Quote{AmountOut: last.Uint64(), AsOf: c.clock()}, nil
}

// Decimals returns the ERC-20 decimals of asset. Results are cached.
func (c *Client) Decimals(ctx context.Context, asset string) (uint8, error) {
	addr, err := c.resolve(asset)
	if err != nil {
		return 0, err
	}
	return c.decimalsOf(ctx, addr)
}

func (c *Client) decimalsOf(ctx context.Context, token common.Address) (uint8, error) {
	c.mu.RLock()
	d, ok := c.decimals[token]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	res, err := c.call(ctx, token, parsedERC20, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok = res[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals of %s: unexpected type %T", token.Hex(), res[0])
	}

	c.mu.Lock()
	c.decimals[token] = d
	c.mu.Unlock()
	return d, nil
}

// BalanceOf returns the raw ERC-20 balance of holder.
func (c *Client) BalanceOf(ctx context.Context, asset, holder string) (*big.Int, error) {
	token, err := c.resolve(asset)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(holder) {
		return nil, fmt.Errorf("holder %q is not an address", holder)
	}
	owner := common.HexToAddress(holder)
	if owner == (common.Address{}) {
		return big.NewInt(0), nil
	}

	res, err := c.call(ctx, token, parsedERC20, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	bal, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf %s: unexpected type %T", token.Hex(), res[0])
	}
	return bal, nil
}

func (c *Client) call(ctx context.Context, to common.Address, a abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := a.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		c.logger.Debug("eth_call failed", zap.String("method", method), zap.String("to", to.Hex()), zap.Error(err))
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}

	res, err := a.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return res, nil
}

var (
	_ spot.Source    = (*Client)(nil)
	_ spot.AssetInfo = (*Client)(nil)
)
