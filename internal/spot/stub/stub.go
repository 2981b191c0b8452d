// Package stub provides a fixed-table spot source for local runs and tests.
package stub

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"price-registry/internal/spot"
)

type pair struct {
	in, out string
}

// Source answers quotes and asset info from in-memory tables.
type Source struct {
	mu       sync.RWMutex
	quotes   map[pair]uint64
	decimals map[string]uint8
	balances map[pair]*big.Int
	clock    func() time.Time
}

// New creates an empty Source. A nil clock uses time.Now.
func New(clock func() time.Time) *Source {
	if clock == nil {
		clock = time.Now
	}
	return &Source{
		quotes:   make(map[pair]uint64),
		decimals: make(map[string]uint8),
		balances: make(map[pair]*big.Int),
		clock:    clock,
	}
}

// SetQuote sets the amount of out one unit of in buys.
func (s *Source) SetQuote(in, out string, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[pair{in, out}] = amount
}

// SetDecimals sets the decimals of asset.
func (s *Source) SetDecimals(asset string, d uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decimals[asset] = d
}

// SetBalance sets the balance of holder in asset.
func (s *Source) SetBalance(asset, holder string, v *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[pair{asset, holder}] = new(big.Int).Set(v)
}

// Quote implements spot.Source.
func (s *Source) Quote(_ context.Context, assetIn, assetOut string) (spot.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.quotes[pair{assetIn, assetOut}]
	if !ok {
		return spot.Quote{}, fmt.Errorf("%w: %s/%s", spot.ErrNoRoute, assetIn, assetOut)
	}
	return spot.Quote{AmountOut: v, AsOf: s.clock()}, nil
}

// Decimals implements spot.AssetInfo.
func (s *Source) Decimals(_ context.Context, asset string) (uint8, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.decimals[asset]
	if !ok {
		return 0, fmt.Errorf("%w: no decimals for %s", spot.ErrNoRoute, asset)
	}
	return d, nil
}

// BalanceOf implements spot.AssetInfo. Unknown balances are zero.
func (s *Source) BalanceOf(_ context.Context, asset, holder string) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.balances[pair{asset, holder}]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

var (
	_ spot.Source    = (*Source)(nil)
	_ spot.AssetInfo = (*Source)(nil)
)
