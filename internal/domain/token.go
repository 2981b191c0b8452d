package domain

// Precision is the fixed-point scale for percentages: 10000 = 100%.
const Precision = 10000

// Token is the per-asset registry record.
// Records are created lazily on first write and never deleted.
type Token struct {
	Asset              string // asset identifier (record key)
	IsFiat             bool   // true once a price has been pushed
	IsCustomCommission bool   // Commission overrides the default
	IsCustomReward     bool   // Reward overrides the default
	Price              uint64 // USD price, valid only while IsFiat
	PriceUpdatedAt     uint64 // effective time of Price (unix seconds)
	Reward             uint64 // referral percent, scaled by Precision
	Commission         int64  // scaled by Precision, may be negative
	TransferFee        uint64 // scaled by Precision
}

// Settings holds the global defaults applied to tokens without overrides.
type Settings struct {
	FiatCommission  int64  // default commission for fiat assets
	TokenCommission int64  // default commission for everything else
	Reward          uint64 // default referral percent for fiat assets
}

// PriceQuote is a price together with the time it became effective.
type PriceQuote struct {
	Asset     string
	Price     uint64
	UpdatedAt uint64 // unix seconds
}

// TokenData is the composite per-asset read used by settlement.
// Commission and Reward are the effective (resolved) values.
type TokenData struct {
	Asset          string
	IsFiat         bool
	Commission     int64
	Price          uint64
	PriceUpdatedAt uint64
	Reward         uint64
	TransferFee    uint64
}

// Roles is a read-only view of the access control state.
type Roles struct {
	Admin     string
	Updater   string
	Reporters []string
}

// Names of the persisted membership sets.
const (
	SetFiats            = "fiats"
	SetCustomCommission = "custom_commission"
	SetReporters        = "reporters"
)
