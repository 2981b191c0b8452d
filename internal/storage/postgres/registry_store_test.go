package postgres

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-registry/internal/domain"
	"price-registry/internal/storage"
)

func TestRegistryStore_FreshLoad(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRegistryStore(pool)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Admin)
	assert.Empty(t, snap.Tokens)
	assert.Empty(t, snap.Reports)
	assert.Equal(t, domain.Settings{}, snap.Settings)
}

func TestRegistryStore_ApplyAndLoad(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRegistryStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, &storage.Mutation{
		Admin:    ptr("admin"),
		Updater:  ptr("updater"),
		Settings: &domain.Settings{FiatCommission: -30, TokenCommission: 50, Reward: 2000},
		Sets:     map[string][]string{domain.SetReporters: {"r2", "r1"}},
	}))

	require.NoError(t, store.Apply(ctx, &storage.Mutation{
		Tokens: []domain.Token{
			{Asset: "EURX", IsFiat: true, Price: math.MaxUint64, PriceUpdatedAt: 1_700_000_000, Reward: 15},
			{Asset: "ABC", IsCustomCommission: true, Commission: -9999, TransferFee: 7},
		},
		Sets: map[string][]string{
			domain.SetFiats:            {"EURX"},
			domain.SetCustomCommission: {"ABC"},
		},
		Reports: []domain.ReporterReport{
			{Asset: "EURX", Reporter: "r1", Timestamp: 10, Price: 99},
		},
	}))

	snap, err := store.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, "admin", snap.Admin)
	assert.Equal(t, "updater", snap.Updater)
	assert.Equal(t, domain.Settings{FiatCommission: -30, TokenCommission: 50, Reward: 2000}, snap.Settings)
	assert.Equal(t, []string{"r2", "r1"}, snap.Sets[domain.SetReporters], "set order is preserved")
	assert.Equal(t, []string{"EURX"}, snap.Sets[domain.SetFiats])

	require.Len(t, snap.Tokens, 2)
	assert.Equal(t, "ABC", snap.Tokens[0].Asset)
	assert.Equal(t, int64(-9999), snap.Tokens[0].Commission)
	assert.Equal(t, uint64(math.MaxUint64), snap.Tokens[1].Price)

	require.Len(t, snap.Reports, 1)
	assert.Equal(t, domain.ReporterReport{Asset: "EURX", Reporter: "r1", Timestamp: 10, Price: 99}, snap.Reports[0])
}

func TestRegistryStore_SetRewrite(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRegistryStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, &storage.Mutation{
		Sets: map[string][]string{domain.SetFiats: {"A", "B", "C"}},
	}))
	// Swap-remove of A reorders the set.
	require.NoError(t, store.Apply(ctx, &storage.Mutation{
		Sets: map[string][]string{domain.SetFiats: {"C", "B"}},
	}))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B"}, snap.Sets[domain.SetFiats])
}

func TestRegistryStore_AdminMismatchRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRegistryStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Apply(ctx, &storage.Mutation{Admin: ptr("admin")}))

	err := store.Apply(ctx, &storage.Mutation{
		Admin:  ptr("intruder"),
		Tokens: []domain.Token{{Asset: "EURX"}},
	})
	assert.True(t, errors.Is(err, storage.ErrAdminMismatch), "got %v", err)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin", snap.Admin)
	assert.Empty(t, snap.Tokens)
}

func TestRegistryStore_FailedBatchRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRegistryStore(pool)
	ctx := context.Background()

	// Duplicate member violates UNIQUE (set_name, member).
	err := store.Apply(ctx, &storage.Mutation{
		Tokens: []domain.Token{{Asset: "EURX", IsFiat: true}},
		Sets:   map[string][]string{domain.SetFiats: {"EURX", "EURX"}},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Tokens)
	assert.Empty(t, snap.Sets[domain.SetFiats])
}

func TestRegistryStore_InvalidInput(t *testing.T) {
	store := NewRegistryStore(nil)
	ctx := context.Background()

	assert.ErrorIs(t, store.Apply(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Apply(ctx, &storage.Mutation{
		Reports: []domain.ReporterReport{{Asset: "A"}},
	}), storage.ErrInvalidInput)
}
