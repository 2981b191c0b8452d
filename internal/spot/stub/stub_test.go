package stub

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-registry/internal/spot"
)

func TestSource(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	s := New(func() time.Time { return at })
	ctx := context.Background()

	s.SetQuote("ABC", "USDC", 4200)
	q, err := s.Quote(ctx, "ABC", "USDC")
	require.NoError(t, err)
	assert.Equal(t, spot.Quote{AmountOut: 4200, AsOf: at}, q)

	_, err = s.Quote(ctx, "USDC", "ABC")
	assert.ErrorIs(t, err, spot.ErrNoRoute)

	s.SetDecimals("ABC", 9)
	d, err := s.Decimals(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, uint8(9), d)

	_, err = s.Decimals(ctx, "XYZ")
	assert.ErrorIs(t, err, spot.ErrNoRoute)

	s.SetBalance("ABC", "alice", big.NewInt(77))
	bal, err := s.BalanceOf(ctx, "ABC", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(77), bal.Int64())

	bal.SetInt64(0)
	bal, _ = s.BalanceOf(ctx, "ABC", "alice")
	assert.Equal(t, int64(77), bal.Int64(), "returned balances are copies")

	bal, _ = s.BalanceOf(ctx, "ABC", "bob")
	assert.Zero(t, bal.Sign())
}
