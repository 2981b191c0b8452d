package memory

import (
	"context"
	"sort"
	"sync"

	"price-registry/internal/domain"
	"price-registry/internal/storage"
)

type reportKey struct {
	asset    string
	reporter string
}

// RegistryStore is an in-memory implementation of storage.RegistryStore.
type RegistryStore struct {
	mu       sync.RWMutex
	admin    string
	updater  string
	settings domain.Settings
	tokens   map[string]domain.Token
	sets     map[string][]string
	reports  map[reportKey]domain.ReporterReport
}

// NewRegistryStore creates a new in-memory registry store.
func NewRegistryStore() *RegistryStore {
	return &RegistryStore{
		tokens:  make(map[string]domain.Token),
		sets:    make(map[string][]string),
		reports: make(map[reportKey]domain.ReporterReport),
	}
}

// Load returns a copy of the stored state. Tokens and reports are sorted
// by key for deterministic output.
func (s *RegistryStore) Load(_ context.Context) (*storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &storage.Snapshot{
		Admin:    s.admin,
		Updater:  s.updater,
		Settings: s.settings,
		Tokens:   make([]domain.Token, 0, len(s.tokens)),
		Sets:     make(map[string][]string, len(s.sets)),
		Reports:  make([]domain.ReporterReport, 0, len(s.reports)),
	}

	for _, t := range s.tokens {
		snap.Tokens = append(snap.Tokens, t)
	}
	sort.Slice(snap.Tokens, func(i, j int) bool {
		return snap.Tokens[i].Asset < snap.Tokens[j].Asset
	})

	for name, members := range s.sets {
		snap.Sets[name] = append([]string(nil), members...)
	}

	for _, r := range s.reports {
		snap.Reports = append(snap.Reports, r)
	}
	sort.Slice(snap.Reports, func(i, j int) bool {
		if snap.Reports[i].Asset != snap.Reports[j].Asset {
			return snap.Reports[i].Asset < snap.Reports[j].Asset
		}
		return snap.Reports[i].Reporter < snap.Reports[j].Reporter
	})

	return snap, nil
}

// Apply stores every change in m under one lock.
func (s *RegistryStore) Apply(_ context.Context, m *storage.Mutation) error {
	if m == nil {
		return storage.ErrInvalidInput
	}
	for _, t := range m.Tokens {
		if t.Asset == "" {
			return storage.ErrInvalidInput
		}
	}
	for _, r := range m.Reports {
		if r.Asset == "" || r.Reporter == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Admin != nil {
		if s.admin != "" && s.admin != *m.Admin {
			return storage.ErrAdminMismatch
		}
		s.admin = *m.Admin
	}
	if m.Updater != nil {
		s.updater = *m.Updater
	}
	if m.Settings != nil {
		s.settings = *m.Settings
	}
	for _, t := range m.Tokens {
		s.tokens[t.Asset] = t
	}
	for name, members := range m.Sets {
		s.sets[name] = append([]string(nil), members...)
	}
	for _, r := range m.Reports {
		s.reports[reportKey{r.Asset, r.Reporter}] = r
	}
	return nil
}

var _ storage.RegistryStore = (*RegistryStore)(nil)
