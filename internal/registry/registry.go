// Package registry owns the token registry: role-gated fiat prices,
// per-asset commission overrides, and reporter submissions for consensus.
//
// Every mutation is staged, validated, persisted as one unit through a
// storage.RegistryStore and only then made visible. A failing mutation
// leaves no trace in memory or in the store.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"price-registry/internal/domain"
	"price-registry/internal/observability"
	"price-registry/internal/orderedset"
	"price-registry/internal/spot"
	"price-registry/internal/storage"
	"price-registry/internal/storage/memory"
)

// Bootstrap is the initial state written to a fresh store.
type Bootstrap struct {
	Admin     string
	Updater   string
	Reporters []string
	Settings  domain.Settings
}

// Options configures a Registry.
type Options struct {
	Store     storage.RegistryStore // default: in-memory store
	Spot      spot.Source           // optional, required for non-fiat prices
	Reference string                // asset that non-fiat assets are quoted in
	Bootstrap Bootstrap
	Clock     func() time.Time // default: time.Now
	Notifier  Notifier
	Logger    *zap.Logger
}

// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	state *state

	store     storage.RegistryStore
	spot      spot.Source
	reference string
	clock     func() time.Time
	notifier  Notifier
	logger    *zap.Logger
}

// Open loads persisted state, initialising a fresh store from
// opts.Bootstrap. A store that belongs to a different admin is rejected
// with storage.ErrAdminMismatch.
func Open(ctx context.Context, opts Options) (*Registry, error) {
	if opts.Bootstrap.Admin == "" {
		return nil, ErrNoAdmin
	}
	if opts.Store == nil {
		opts.Store = memory.NewRegistryStore()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := &Registry{
		store:     opts.Store,
		spot:      opts.Spot,
		reference: opts.Reference,
		clock:     opts.Clock,
		notifier:  opts.Notifier,
		logger:    opts.Logger.Named("registry"),
	}

	snap, err := opts.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	switch {
	case snap.Admin == "":
		snap, err = r.initialise(ctx, opts.Bootstrap)
		if err != nil {
			return nil, err
		}
	case snap.Admin != opts.Bootstrap.Admin:
		return nil, fmt.Errorf("%w: store admin %q, configured %q",
			storage.ErrAdminMismatch, snap.Admin, opts.Bootstrap.Admin)
	default:
		r.logger.Info("loaded persisted registry",
			zap.Int("tokens", len(snap.Tokens)),
			zap.Int("reports", len(snap.Reports)),
			zap.Int("reporters", len(snap.Sets[domain.SetReporters])))
	}

	r.state, err = newState(snap)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initialise(ctx context.Context, b Bootstrap) (*storage.Snapshot, error) {
	snap := &storage.Snapshot{
		Admin:    b.Admin,
		Updater:  b.Updater,
		Settings: b.Settings,
		Sets: map[string][]string{
			domain.SetReporters: orderedset.New(b.Reporters...).Items(),
		},
	}

	m := &storage.Mutation{
		Admin:    &snap.Admin,
		Updater:  &snap.Updater,
		Settings: &snap.Settings,
		Sets:     snap.Sets,
	}
	if err := r.store.Apply(ctx, m); err != nil {
		return nil, fmt.Errorf("initialise registry: %w", err)
	}

	r.logger.Info("initialised fresh registry",
		zap.String("admin", b.Admin),
		zap.String("updater", b.Updater),
		zap.Int("reporters", len(snap.Sets[domain.SetReporters])))
	return snap, nil
}

func (r *Registry) now() uint64 {
	return uint64(r.clock().Unix())
}

// mutate runs fn on a fresh transaction under the write lock, persists
// the result and commits it. Events are published after the lock is
// released.
func (r *Registry) mutate(ctx context.Context, op, caller string, fn func(tx *txn) error) error {
	start := time.Now()

	r.mu.Lock()
	tx := newTxn(r.state, caller, r.now())
	err := fn(tx)
	if err == nil {
		if m := tx.mutation(); !m.Empty() {
			if err = r.store.Apply(ctx, m); err != nil {
				err = fmt.Errorf("persist %s: %w", op, err)
			}
		}
	}
	if err == nil {
		tx.applyTo(r.state)
	}
	r.mu.Unlock()

	observability.RecordMutation(op, time.Since(start), err)
	if err != nil {
		r.logger.Debug("mutation rejected",
			zap.String("op", op), zap.String("caller", caller), zap.Error(err))
		return err
	}

	at := r.clock().UnixMilli()
	for _, e := range tx.events {
		e.At = at
		observability.RecordEvent(string(e.Type))
		r.notifier.Publish(e)
	}
	return nil
}

// spotQuote prices a non-fiat asset in the reference asset. The
// returned time is always now: the quote is computed on demand.
func (r *Registry) spotQuote(ctx context.Context, asset string) (domain.PriceQuote, error) {
	if r.spot == nil {
		return domain.PriceQuote{}, fmt.Errorf("%w: no spot source configured", ErrSpotUnavailable)
	}

	start := time.Now()
	q, err := r.spot.Quote(ctx, asset, r.reference)
	observability.RecordSpotQuote(time.Since(start), err)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("%w: %s: %w", ErrSpotUnavailable, asset, err)
	}

	return domain.PriceQuote{Asset: asset, Price: q.AmountOut, UpdatedAt: r.now()}, nil
}
