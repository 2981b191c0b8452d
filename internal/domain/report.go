package domain

// ReporterReport is the latest price observation of one reporter for one asset.
// Keyed by (Asset, Reporter); Timestamp is strictly increasing per key.
type ReporterReport struct {
	Asset     string
	Reporter  string
	Timestamp uint64 // unix seconds, never ahead of "now" at write time
	Price     uint64
}
