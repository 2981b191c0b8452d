package domain

// PriceKind tells where a history point came from.
type PriceKind string

const (
	PriceKindFiat   PriceKind = "fiat"   // pushed by the updater
	PriceKindReport PriceKind = "report" // submitted by a reporter
)

// PricePoint is one row of the append-only price history.
// Corresponds to price_history table in ClickHouse.
type PricePoint struct {
	Asset      string
	Kind       PriceKind
	Reporter   string // empty for fiat pushes
	Timestamp  uint64 // effective time (unix seconds)
	Price      uint64
	RecordedAt int64 // when the point was written (ms)
}
