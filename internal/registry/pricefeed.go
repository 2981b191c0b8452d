package registry

import (
	"context"
	"fmt"

	"price-registry/internal/domain"
)

// UpdatePrice stores a fiat price effective at ts. Updater or admin only.
// Later calls overwrite earlier ones regardless of ts ordering. The first
// push for an asset marks it fiat.
func (r *Registry) UpdatePrice(ctx context.Context, caller, asset string, ts, price uint64) error {
	return r.mutate(ctx, "update_price", caller, func(tx *txn) error {
		if err := tx.access().RequireUpdaterOrAdmin(caller); err != nil {
			return err
		}
		return tx.updatePrice(asset, ts, price)
	})
}

// UpdatePrices applies UpdatePrice element-wise. The batch is all or
// nothing: any failing element rejects every element.
func (r *Registry) UpdatePrices(ctx context.Context, caller string, assets []string, timestamps, prices []uint64) error {
	return r.mutate(ctx, "update_prices", caller, func(tx *txn) error {
		if err := tx.access().RequireUpdaterOrAdmin(caller); err != nil {
			return err
		}
		if len(assets) != len(timestamps) || len(assets) != len(prices) {
			return fmt.Errorf("%w: %d assets, %d timestamps, %d prices",
				ErrLengthMismatch, len(assets), len(timestamps), len(prices))
		}
		for i, asset := range assets {
			if err := tx.updatePrice(asset, timestamps[i], prices[i]); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil
	})
}

func (tx *txn) updatePrice(asset string, ts, price uint64) error {
	if err := requireAsset(asset); err != nil {
		return err
	}
	if ts > tx.now {
		return fmt.Errorf("%w: %d > now %d", ErrFutureTimestamp, ts, tx.now)
	}

	t := tx.token(asset)
	t.Price = price
	t.PriceUpdatedAt = ts
	if !t.IsFiat {
		t.IsFiat = true
		tx.fiatSet().Add(asset)
	}
	tx.putToken(t)

	tx.emit(domain.Event{Type: domain.EventPriceUpdated, Asset: asset, Timestamp: ts, Price: price})
	return nil
}

// RemoveTokenFromFiats clears fiat status and zeroes the stored price.
// Admin only.
func (r *Registry) RemoveTokenFromFiats(ctx context.Context, caller, asset string) error {
	return r.mutate(ctx, "remove_fiat", caller, func(tx *txn) error {
		if err := tx.access().RequireAdmin(caller); err != nil {
			return err
		}

		t := tx.token(asset)
		if !t.IsFiat {
			return fmt.Errorf("%w: %q", ErrNotFiat, asset)
		}
		t.IsFiat = false
		t.Price = 0
		tx.putToken(t)
		tx.fiatSet().Remove(asset)

		tx.emit(domain.Event{Type: domain.EventFiatRemoved, Asset: asset})
		return nil
	})
}

// GetPrice returns the stored price of a fiat asset, or a spot quote in
// the reference asset stamped with the current time otherwise.
func (r *Registry) GetPrice(ctx context.Context, asset string) (domain.PriceQuote, error) {
	r.mu.RLock()
	t := r.state.token(asset)
	r.mu.RUnlock()

	if t.IsFiat {
		return domain.PriceQuote{Asset: asset, Price: t.Price, UpdatedAt: t.PriceUpdatedAt}, nil
	}
	return r.spotQuote(ctx, asset)
}

// GetPrices returns GetPrice for every asset, failing on the first error.
func (r *Registry) GetPrices(ctx context.Context, assets []string) ([]domain.PriceQuote, error) {
	tokens := r.tokens(assets)

	out := make([]domain.PriceQuote, len(tokens))
	for i, t := range tokens {
		if t.IsFiat {
			out[i] = domain.PriceQuote{Asset: t.Asset, Price: t.Price, UpdatedAt: t.PriceUpdatedAt}
			continue
		}
		q, err := r.spotQuote(ctx, t.Asset)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

// tokens reads the records of assets from one snapshot.
func (r *Registry) tokens(assets []string) []domain.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Token, len(assets))
	for i, asset := range assets {
		out[i] = r.state.token(asset)
	}
	return out
}
