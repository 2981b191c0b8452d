package registry

import (
	"context"

	"price-registry/internal/commission"
	"price-registry/internal/domain"
	"price-registry/internal/orderedset"
)

// GetTokenData returns the composite record of asset. Non-fiat assets get
// a spot price only when skipNonFiatPrice is true; otherwise their price
// fields stay zero.
func (r *Registry) GetTokenData(ctx context.Context, asset string, skipNonFiatPrice bool) (domain.TokenData, error) {
	out, err := r.GetTokensData(ctx, []string{asset}, skipNonFiatPrice)
	if err != nil {
		return domain.TokenData{}, err
	}
	return out[0], nil
}

// GetTokensData returns GetTokenData for every asset. Registry fields
// come from one snapshot.
func (r *Registry) GetTokensData(ctx context.Context, assets []string, skipNonFiatPrice bool) ([]domain.TokenData, error) {
	r.mu.RLock()
	settings := r.state.settings
	out := make([]domain.TokenData, len(assets))
	for i, asset := range assets {
		t := r.state.token(asset)
		out[i] = domain.TokenData{
			Asset:       asset,
			IsFiat:      t.IsFiat,
			Commission:  commission.Commission(t, settings),
			Reward:      commission.ReferralPercent(t, settings),
			TransferFee: commission.TransferFee(t),
		}
		if t.IsFiat {
			out[i].Price = t.Price
			out[i].PriceUpdatedAt = t.PriceUpdatedAt
		}
	}
	r.mu.RUnlock()

	if !skipNonFiatPrice {
		return out, nil
	}
	for i := range out {
		if out[i].IsFiat {
			continue
		}
		q, err := r.spotQuote(ctx, out[i].Asset)
		if err != nil {
			return nil, err
		}
		out[i].Price = q.Price
		out[i].PriceUpdatedAt = q.UpdatedAt
	}
	return out, nil
}

// GetFiats returns the fiat set.
func (r *Registry) GetFiats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.fiats.Items()
}

// GetCoins returns the custom-commission set.
func (r *Registry) GetCoins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.custom.Items()
}

// GetAllTokens returns fiats followed by custom-commission assets, each
// asset once.
func (r *Registry) GetAllTokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := orderedset.New(r.state.fiats.Items()...)
	for _, asset := range r.state.custom.Items() {
		all.Add(asset)
	}
	return all.Items()
}

// GetSettings returns the global defaults.
func (r *Registry) GetSettings() domain.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.settings
}
