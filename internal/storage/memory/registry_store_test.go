package memory

import (
	"context"
	"errors"
	"testing"

	"price-registry/internal/domain"
	"price-registry/internal/storage"
)

func strPtr(s string) *string { return &s }

func TestRegistryStore_FreshLoad(t *testing.T) {
	store := NewRegistryStore()

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap.Admin != "" {
		t.Errorf("fresh store should have empty admin, got %q", snap.Admin)
	}
	if len(snap.Tokens) != 0 || len(snap.Reports) != 0 || len(snap.Sets) != 0 {
		t.Error("fresh store should be empty")
	}
}

func TestRegistryStore_ApplyAndLoad(t *testing.T) {
	store := NewRegistryStore()
	ctx := context.Background()

	m := &storage.Mutation{
		Admin:    strPtr("admin"),
		Updater:  strPtr("updater"),
		Settings: &domain.Settings{FiatCommission: 30, TokenCommission: 50, Reward: 2000},
		Tokens: []domain.Token{
			{Asset: "USDX", IsFiat: true, Price: 100, PriceUpdatedAt: 1000},
			{Asset: "ABC", IsCustomCommission: true, Commission: -5},
		},
		Sets: map[string][]string{
			domain.SetFiats:            {"USDX"},
			domain.SetCustomCommission: {"ABC"},
		},
		Reports: []domain.ReporterReport{
			{Asset: "USDX", Reporter: "r2", Timestamp: 10, Price: 99},
			{Asset: "USDX", Reporter: "r1", Timestamp: 11, Price: 101},
		},
	}

	if err := store.Apply(ctx, m); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if snap.Admin != "admin" || snap.Updater != "updater" {
		t.Errorf("roles mismatch: got %q/%q", snap.Admin, snap.Updater)
	}
	if snap.Settings.Reward != 2000 {
		t.Errorf("settings reward: got %d, want 2000", snap.Settings.Reward)
	}
	if len(snap.Tokens) != 2 || snap.Tokens[0].Asset != "ABC" {
		t.Errorf("tokens should be sorted by asset: %+v", snap.Tokens)
	}
	if got := snap.Sets[domain.SetFiats]; len(got) != 1 || got[0] != "USDX" {
		t.Errorf("fiats mismatch: %v", got)
	}
	if len(snap.Reports) != 2 || snap.Reports[0].Reporter != "r1" {
		t.Errorf("reports should be sorted by reporter: %+v", snap.Reports)
	}
}

func TestRegistryStore_UpsertOverwrites(t *testing.T) {
	store := NewRegistryStore()
	ctx := context.Background()

	_ = store.Apply(ctx, &storage.Mutation{Tokens: []domain.Token{{Asset: "USDX", Price: 1}}})
	_ = store.Apply(ctx, &storage.Mutation{Tokens: []domain.Token{{Asset: "USDX", Price: 2}}})

	snap, _ := store.Load(ctx)
	if len(snap.Tokens) != 1 || snap.Tokens[0].Price != 2 {
		t.Errorf("expected single overwritten token, got %+v", snap.Tokens)
	}
}

func TestRegistryStore_AdminMismatch(t *testing.T) {
	store := NewRegistryStore()
	ctx := context.Background()

	if err := store.Apply(ctx, &storage.Mutation{Admin: strPtr("admin")}); err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}

	err := store.Apply(ctx, &storage.Mutation{
		Admin:  strPtr("other"),
		Tokens: []domain.Token{{Asset: "USDX"}},
	})
	if !errors.Is(err, storage.ErrAdminMismatch) {
		t.Fatalf("expected ErrAdminMismatch, got %v", err)
	}

	snap, _ := store.Load(ctx)
	if snap.Admin != "admin" || len(snap.Tokens) != 0 {
		t.Error("rejected mutation must not be partially applied")
	}
}

func TestRegistryStore_InvalidInput(t *testing.T) {
	store := NewRegistryStore()
	ctx := context.Background()

	if err := store.Apply(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	err := store.Apply(ctx, &storage.Mutation{
		Tokens:  []domain.Token{{Asset: "OK"}},
		Reports: []domain.ReporterReport{{Asset: "OK"}},
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for report without reporter, got %v", err)
	}

	snap, _ := store.Load(ctx)
	if len(snap.Tokens) != 0 {
		t.Error("invalid mutation must not be partially applied")
	}
}

func TestRegistryStore_LoadReturnsCopy(t *testing.T) {
	store := NewRegistryStore()
	ctx := context.Background()

	_ = store.Apply(ctx, &storage.Mutation{Sets: map[string][]string{domain.SetFiats: {"A", "B"}}})

	snap, _ := store.Load(ctx)
	snap.Sets[domain.SetFiats][0] = "mutated"

	snap2, _ := store.Load(ctx)
	if snap2.Sets[domain.SetFiats][0] != "A" {
		t.Error("Store should return copy, not reference")
	}
}
