// Package commission resolves per-asset economic parameters from token
// overrides and global defaults. All functions are pure.
package commission

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"price-registry/internal/domain"
)

// ErrPercentageOutOfRange is returned when a scaled value is not below
// domain.Precision (or, for commissions, its magnitude is not).
var ErrPercentageOutOfRange = errors.New("percentage out of range")

// Commission returns the effective commission of t.
// A custom value wins; otherwise the fiat or token default applies.
func Commission(t domain.Token, s domain.Settings) int64 {
	if t.IsCustomCommission {
		return t.Commission
	}
	if t.IsFiat {
		return s.FiatCommission
	}
	return s.TokenCommission
}

// ReferralPercent returns the effective referral reward of t.
// Non-fiat assets never pay a referral reward.
func ReferralPercent(t domain.Token, s domain.Settings) uint64 {
	if !t.IsFiat {
		return 0
	}
	if t.IsCustomReward {
		return t.Reward
	}
	return s.Reward
}

// TransferFee returns the stored transfer fee. There is no default.
func TransferFee(t domain.Token) uint64 {
	return t.TransferFee
}

// ValidateCommission checks |v| < Precision.
func ValidateCommission(v int64) error {
	if v <= -domain.Precision || v >= domain.Precision {
		return fmt.Errorf("%w: commission %d", ErrPercentageOutOfRange, v)
	}
	return nil
}

// ValidatePercent checks v < Precision.
func ValidatePercent(v uint64) error {
	if v >= domain.Precision {
		return fmt.Errorf("%w: %d", ErrPercentageOutOfRange, v)
	}
	return nil
}

// Ratio renders a scaled value as a fraction of one (250 -> 0.025).
func Ratio(v int64) decimal.Decimal {
	return decimal.New(v, 0).Div(decimal.New(domain.Precision, 0))
}

// PercentRatio is Ratio for unsigned values. Default settings are not
// range checked, so v may exceed the int64 range.
func PercentRatio(v uint64) decimal.Decimal {
	return decimal.NewFromUint64(v).Div(decimal.New(domain.Precision, 0))
}
