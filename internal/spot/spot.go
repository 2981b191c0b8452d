// Package spot defines the external pricing and asset-metadata
// capabilities the registry consumes.
package spot

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// ErrNoRoute is returned when a source cannot price the requested pair.
var ErrNoRoute = errors.New("no route for pair")

// Quote is the output of a spot lookup.
type Quote struct {
	AmountOut uint64    // amount of the output asset for one unit of input
	AsOf      time.Time // time the venue state was observed
}

// Source prices one asset in terms of another on an external venue.
// Implementations must be side-effect free and must not retry.
type Source interface {
	Quote(ctx context.Context, assetIn, assetOut string) (Quote, error)
}

// AssetInfo answers token metadata and balance queries.
type AssetInfo interface {
	Decimals(ctx context.Context, asset string) (uint8, error)
	BalanceOf(ctx context.Context, asset, holder string) (*big.Int, error)
}
