package storage

import (
	"context"

	"price-registry/internal/domain"
)

// Snapshot is the full persisted registry state.
type Snapshot struct {
	Admin    string // empty when the store has never been initialised
	Updater  string
	Settings domain.Settings
	Tokens   []domain.Token
	Sets     map[string][]string // set name -> members in order
	Reports  []domain.ReporterReport
}

// Mutation is the set of changes produced by one registry operation.
// Stores apply a mutation atomically: all of it or none of it.
type Mutation struct {
	Admin    *string // set only when initialising a fresh store
	Updater  *string
	Settings *domain.Settings
	Tokens   []domain.Token          // upserted by Asset
	Sets     map[string][]string     // full membership of every changed set
	Reports  []domain.ReporterReport // upserted by (Asset, Reporter)
}

// Empty reports whether m carries no change.
func (m *Mutation) Empty() bool {
	return m.Admin == nil && m.Updater == nil && m.Settings == nil &&
		len(m.Tokens) == 0 && len(m.Sets) == 0 && len(m.Reports) == 0
}

// RegistryStore persists registry state.
type RegistryStore interface {
	// Load returns the persisted state. A fresh store returns a Snapshot
	// with empty Admin.
	Load(ctx context.Context) (*Snapshot, error)

	// Apply persists m atomically. Returns ErrInvalidInput for nil m.
	Apply(ctx context.Context, m *Mutation) error
}

// PriceHistoryStore provides access to price_history storage.
type PriceHistoryStore interface {
	// InsertBulk appends points in one batch.
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetByTimeRange retrieves points for an asset with Timestamp within
	// [start, end] (inclusive), ordered by Timestamp ASC.
	GetByTimeRange(ctx context.Context, asset string, start, end uint64) ([]*domain.PricePoint, error)
}
