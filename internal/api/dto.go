package api

import (
	"github.com/shopspring/decimal"

	"price-registry/internal/commission"
	"price-registry/internal/consensus"
	"price-registry/internal/domain"
	"price-registry/internal/registry"
)

// Scaled percentages travel both raw (units of 1/Precision) and as a
// decimal ratio string, e.g. commission 250 -> "0.025".

type priceResponse struct {
	Asset     string `json:"asset"`
	Price     uint64 `json:"price"`
	UpdatedAt uint64 `json:"updatedAt"`
}

func toPrice(q domain.PriceQuote) priceResponse {
	return priceResponse{Asset: q.Asset, Price: q.Price, UpdatedAt: q.UpdatedAt}
}

type tokenDataResponse struct {
	Asset            string          `json:"asset"`
	IsFiat           bool            `json:"isFiat"`
	Commission       int64           `json:"commission"`
	CommissionRatio  decimal.Decimal `json:"commissionRatio"`
	Price            uint64          `json:"price"`
	PriceUpdatedAt   uint64          `json:"priceUpdatedAt"`
	Reward           uint64          `json:"reward"`
	RewardRatio      decimal.Decimal `json:"rewardRatio"`
	TransferFee      uint64          `json:"transferFee"`
	TransferFeeRatio decimal.Decimal `json:"transferFeeRatio"`
}

func toTokenData(d domain.TokenData) tokenDataResponse {
	return tokenDataResponse{
		Asset:            d.Asset,
		IsFiat:           d.IsFiat,
		Commission:       d.Commission,
		CommissionRatio:  commission.Ratio(d.Commission),
		Price:            d.Price,
		PriceUpdatedAt:   d.PriceUpdatedAt,
		Reward:           d.Reward,
		RewardRatio:      commission.PercentRatio(d.Reward),
		TransferFee:      d.TransferFee,
		TransferFeeRatio: commission.PercentRatio(d.TransferFee),
	}
}

type scaledResponse struct {
	Asset string          `json:"asset"`
	Value int64           `json:"value"`
	Ratio decimal.Decimal `json:"ratio"`
}

type percentResponse struct {
	Asset string          `json:"asset"`
	Value uint64          `json:"value"`
	Ratio decimal.Decimal `json:"ratio"`
}

type settingsBody struct {
	FiatCommission  int64  `json:"fiatCommission"`
	TokenCommission int64  `json:"tokenCommission"`
	Reward          uint64 `json:"reward"`
}

func (b settingsBody) domain() domain.Settings {
	return domain.Settings{
		FiatCommission:  b.FiatCommission,
		TokenCommission: b.TokenCommission,
		Reward:          b.Reward,
	}
}

func toSettings(s domain.Settings) settingsBody {
	return settingsBody{
		FiatCommission:  s.FiatCommission,
		TokenCommission: s.TokenCommission,
		Reward:          s.Reward,
	}
}

type rolesResponse struct {
	Admin     string   `json:"admin"`
	Updater   string   `json:"updater"`
	Reporters []string `json:"reporters"`
}

type identityBody struct {
	ID string `json:"id"`
}

type priceBody struct {
	Timestamp uint64 `json:"timestamp"`
	Price     uint64 `json:"price"`
}

type pricesBody struct {
	Assets     []string `json:"assets"`
	Timestamps []uint64 `json:"timestamps"`
	Prices     []uint64 `json:"prices"`
}

type transferFeeBody struct {
	Fee uint64 `json:"fee"`
}

type allCommissionsBody struct {
	Settings    settingsBody              `json:"settings"`
	Commissions registry.CommissionUpdate `json:"commissions"`
	Referrals   registry.ReferralUpdate   `json:"referrals"`
}

type reportResponse struct {
	Asset     string `json:"asset"`
	Reporter  string `json:"reporter"`
	Timestamp uint64 `json:"timestamp"`
	Price     uint64 `json:"price"`
}

type consensusResponse struct {
	Asset string `json:"asset"`
	Price uint64 `json:"price"`
	Alive int    `json:"alive"`
	Min   uint64 `json:"min"`
	Max   uint64 `json:"max"`
}

func toConsensus(asset string, r consensus.Result) consensusResponse {
	return consensusResponse{Asset: asset, Price: r.Price, Alive: r.Alive, Min: r.Min, Max: r.Max}
}

type historyPoint struct {
	Kind       domain.PriceKind `json:"kind"`
	Reporter   string           `json:"reporter,omitempty"`
	Timestamp  uint64           `json:"timestamp"`
	Price      uint64           `json:"price"`
	RecordedAt int64            `json:"recordedAt"`
}

type historyResponse struct {
	Asset  string         `json:"asset"`
	From   uint64         `json:"from"`
	To     uint64         `json:"to"`
	Points []historyPoint `json:"points"`
}

type listResponse struct {
	Assets []string `json:"assets"`
}
