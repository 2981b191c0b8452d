package registry

import (
	"context"
	"fmt"

	"price-registry/internal/commission"
	"price-registry/internal/domain"
)

// CommissionUpdate is a bulk change of per-asset commission overrides.
// Values is parallel to Changed.
type CommissionUpdate struct {
	ToCustom  []string `json:"toCustom"`
	ToDefault []string `json:"toDefault"`
	Changed   []string `json:"changed"`
	Values    []int64  `json:"values"`
}

// ReferralUpdate is a bulk change of per-asset referral overrides.
// NewValues is parallel to Changed.
type ReferralUpdate struct {
	ToCustom  []string `json:"toCustom"`
	ToDefault []string `json:"toDefault"`
	Changed   []string `json:"changed"`
	NewValues []uint64 `json:"newValues"`
}

// UpdateCommissions applies u atomically. Admin only.
//
// ToCustom assets get the override flag and, when not fiat, join the
// custom-commission set. ToDefault assets lose the flag and, when not
// fiat, leave the set. Changed assets receive Values, each |v| < P.
func (r *Registry) UpdateCommissions(ctx context.Context, caller string, u CommissionUpdate) error {
	return r.mutate(ctx, "update_commissions", caller, func(tx *txn) error {
		if err := tx.access().RequireAdmin(caller); err != nil {
			return err
		}
		return tx.updateCommissions(u)
	})
}

// UpdateReferralPercents applies u atomically. Admin only. Each new
// value must be below P.
func (r *Registry) UpdateReferralPercents(ctx context.Context, caller string, u ReferralUpdate) error {
	return r.mutate(ctx, "update_referral_percents", caller, func(tx *txn) error {
		if err := tx.access().RequireAdmin(caller); err != nil {
			return err
		}
		return tx.updateReferrals(u)
	})
}

// UpdateAllCommissions replaces the defaults and applies both bulk
// updates in one atomic step. Admin only.
func (r *Registry) UpdateAllCommissions(ctx context.Context, caller string, s domain.Settings, c CommissionUpdate, ru ReferralUpdate) error {
	return r.mutate(ctx, "update_all_commissions", caller, func(tx *txn) error {
		if err := tx.access().RequireAdmin(caller); err != nil {
			return err
		}
		tx.updateSettings(s)
		if err := tx.updateCommissions(c); err != nil {
			return err
		}
		return tx.updateReferrals(ru)
	})
}

// UpdateDefaultSettings overwrites the global defaults without range
// checks. Admin only.
func (r *Registry) UpdateDefaultSettings(ctx context.Context, caller string, s domain.Settings) error {
	return r.mutate(ctx, "update_settings", caller, func(tx *txn) error {
		if err := tx.access().RequireAdmin(caller); err != nil {
			return err
		}
		tx.updateSettings(s)
		return nil
	})
}

// SetTokenTransferFee stores the transfer fee of asset. Admin only; fee < P.
func (r *Registry) SetTokenTransferFee(ctx context.Context, caller, asset string, fee uint64) error {
	return r.mutate(ctx, "set_transfer_fee", caller, func(tx *txn) error {
		if err := tx.access().RequireAdmin(caller); err != nil {
			return err
		}
		if err := requireAsset(asset); err != nil {
			return err
		}
		if err := commission.ValidatePercent(fee); err != nil {
			return fmt.Errorf("transfer fee of %q: %w", asset, err)
		}

		t := tx.token(asset)
		t.TransferFee = fee
		tx.putToken(t)

		tx.emit(domain.Event{Type: domain.EventTransferFeeUpdated, Asset: asset})
		return nil
	})
}

func (tx *txn) updateSettings(s domain.Settings) {
	tx.setSettings(s)
	tx.emit(domain.Event{Type: domain.EventSettingsUpdated})
}

func (tx *txn) updateCommissions(u CommissionUpdate) error {
	if len(u.Changed) != len(u.Values) {
		return fmt.Errorf("%w: %d changed, %d values", ErrLengthMismatch, len(u.Changed), len(u.Values))
	}

	for _, asset := range u.ToCustom {
		if err := requireAsset(asset); err != nil {
			return err
		}
		t := tx.token(asset)
		t.IsCustomCommission = true
		if !t.IsFiat {
			tx.customSet().Add(asset)
		}
		tx.putToken(t)
	}

	for _, asset := range u.ToDefault {
		if err := requireAsset(asset); err != nil {
			return err
		}
		t := tx.token(asset)
		t.IsCustomCommission = false
		if !t.IsFiat {
			tx.customSet().Remove(asset)
		}
		tx.putToken(t)
	}

	for i, asset := range u.Changed {
		if err := requireAsset(asset); err != nil {
			return err
		}
		if err := commission.ValidateCommission(u.Values[i]); err != nil {
			return fmt.Errorf("commission of %q: %w", asset, err)
		}
		t := tx.token(asset)
		t.Commission = u.Values[i]
		tx.putToken(t)
	}

	tx.emit(domain.Event{Type: domain.EventCommissionsUpdated})
	return nil
}

func (tx *txn) updateReferrals(u ReferralUpdate) error {
	if len(u.Changed) != len(u.NewValues) {
		return fmt.Errorf("%w: %d changed, %d values", ErrLengthMismatch, len(u.Changed), len(u.NewValues))
	}

	for _, asset := range u.ToCustom {
		if err := requireAsset(asset); err != nil {
			return err
		}
		t := tx.token(asset)
		t.IsCustomReward = true
		tx.putToken(t)
	}

	for _, asset := range u.ToDefault {
		if err := requireAsset(asset); err != nil {
			return err
		}
		t := tx.token(asset)
		t.IsCustomReward = false
		tx.putToken(t)
	}

	for i, asset := range u.Changed {
		if err := requireAsset(asset); err != nil {
			return err
		}
		if err := commission.ValidatePercent(u.NewValues[i]); err != nil {
			return fmt.Errorf("referral percent of %q: %w", asset, err)
		}
		t := tx.token(asset)
		t.Reward = u.NewValues[i]
		tx.putToken(t)
	}

	tx.emit(domain.Event{Type: domain.EventReferralPercentsUpdated})
	return nil
}

// GetCommission returns the effective commission of asset.
func (r *Registry) GetCommission(asset string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return commission.Commission(r.state.token(asset), r.state.settings)
}

// GetReferralPercent returns the effective referral percent of asset.
func (r *Registry) GetReferralPercent(asset string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return commission.ReferralPercent(r.state.token(asset), r.state.settings)
}

// GetTokenTransferFee returns the stored transfer fee of asset.
func (r *Registry) GetTokenTransferFee(asset string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return commission.TransferFee(r.state.token(asset))
}
