package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-registry/internal/spot"
)

var (
	router = common.HexToAddress("0x1000000000000000000000000000000000000001")
	weth   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	usdc   = common.HexToAddress("0x3000000000000000000000000000000000000003")
	holder = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

// fakeChain answers eth_call for the router and ERC-20 methods.
type fakeChain struct {
	decimals map[common.Address]uint8
	balances map[common.Address]*big.Int
	rate     *big.Int // output units per whole input unit
	fail     error
	calls    map[string]int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		decimals: map[common.Address]uint8{weth: 18, usdc: 6},
		balances: map[common.Address]*big.Int{holder: big.NewInt(12345)},
		rate:     big.NewInt(3_500_000_000), // 3500 USDC with 6 decimals
		calls:    make(map[string]int),
	}
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if f.fail != nil {
		return nil, f.fail
	}

	if *msg.To == router {
		m, err := parsedRouter.MethodById(msg.Data[:4])
		if err != nil {
			return nil, err
		}
		f.calls[m.Name]++
		args, err := m.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		amountIn := args[0].(*big.Int)
		path := args[1].([]common.Address)

		unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(f.decimals[path[0]])), nil)
		out := new(big.Int).Div(new(big.Int).Mul(amountIn, f.rate), unit)
		return m.Outputs.Pack([]*big.Int{amountIn, out})
	}

	m, err := parsedERC20.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	f.calls[m.Name]++

	switch m.Name {
	case "decimals":
		d, ok := f.decimals[*msg.To]
		if !ok {
			return nil, errors.New("execution reverted")
		}
		return m.Outputs.Pack(d)
	case "balanceOf":
		args, err := m.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		bal, ok := f.balances[args[0].(common.Address)]
		if !ok {
			bal = big.NewInt(0)
		}
		return m.Outputs.Pack(bal)
	}
	return nil, errors.New("unknown method")
}

func newClient(t *testing.T, chain *fakeChain) *Client {
	t.Helper()
	c, err := New(chain, Options{
		Router:  router,
		Aliases: map[string]string{"USDC": usdc.Hex()},
		Clock:   func() time.Time { return time.Unix(1_700_000_000, 0) },
	})
	require.NoError(t, err)
	return c
}

func TestQuote(t *testing.T) {
	chain := newFakeChain()
	c := newClient(t, chain)

	q, err := c.Quote(context.Background(), weth.Hex(), "USDC")
	require.NoError(t, err)
	assert.Equal(t, uint64(3_500_000_000), q.AmountOut)
	assert.Equal(t, int64(1_700_000_000), q.AsOf.Unix())

	// decimals are cached across quotes
	_, err = c.Quote(context.Background(), weth.Hex(), "USDC")
	require.NoError(t, err)
	assert.Equal(t, 1, chain.calls["decimals"])
	assert.Equal(t, 2, chain.calls["getAmountsOut"])
}

func TestQuote_Overflow(t *testing.T) {
	chain := newFakeChain()
	chain.rate = new(big.Int).Lsh(big.NewInt(1), 70)
	c := newClient(t, chain)

	_, err := c.Quote(context.Background(), weth.Hex(), "USDC")
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestQuote_UnknownAsset(t *testing.T) {
	c := newClient(t, newFakeChain())

	_, err := c.Quote(context.Background(), "EURX", "USDC")
	assert.ErrorIs(t, err, spot.ErrNoRoute)
}

func TestQuote_RPCFailure(t *testing.T) {
	chain := newFakeChain()
	chain.fail = errors.New("connection refused")
	c := newClient(t, chain)

	_, err := c.Quote(context.Background(), weth.Hex(), "USDC")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDecimalsAndBalance(t *testing.T) {
	c := newClient(t, newFakeChain())
	ctx := context.Background()

	d, err := c.Decimals(ctx, "USDC")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), d)

	bal, err := c.BalanceOf(ctx, weth.Hex(), holder.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(12345), bal.Int64())

	bal, err = c.BalanceOf(ctx, weth.Hex(), common.Address{}.Hex())
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())

	_, err = c.BalanceOf(ctx, weth.Hex(), "nobody")
	assert.Error(t, err)
}

func TestNew_BadAlias(t *testing.T) {
	_, err := New(newFakeChain(), Options{Aliases: map[string]string{"X": "nope"}})
	assert.Error(t, err)
}
