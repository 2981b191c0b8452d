package registry

import (
	"fmt"

	"price-registry/internal/access"
	"price-registry/internal/domain"
	"price-registry/internal/orderedset"
	"price-registry/internal/storage"
)

type reportKey struct {
	asset    string
	reporter string
}

// state is the committed in-memory registry. Guarded by Registry.mu.
type state struct {
	roles    *access.Control
	settings domain.Settings
	tokens   map[string]domain.Token
	fiats    *orderedset.Set
	custom   *orderedset.Set
	reports  map[reportKey]domain.ReporterReport
}

func newState(snap *storage.Snapshot) (*state, error) {
	roles, err := access.New(snap.Admin, snap.Updater, snap.Sets[domain.SetReporters]...)
	if err != nil {
		return nil, err
	}

	s := &state{
		roles:    roles,
		settings: snap.Settings,
		tokens:   make(map[string]domain.Token, len(snap.Tokens)),
		fiats:    orderedset.New(snap.Sets[domain.SetFiats]...),
		custom:   orderedset.New(snap.Sets[domain.SetCustomCommission]...),
		reports:  make(map[reportKey]domain.ReporterReport, len(snap.Reports)),
	}
	for _, t := range snap.Tokens {
		s.tokens[t.Asset] = t
	}
	for _, r := range snap.Reports {
		s.reports[reportKey{r.Asset, r.Reporter}] = r
	}
	return s, nil
}

// token returns the record for asset, or a zero record if never written.
func (s *state) token(asset string) domain.Token {
	t, ok := s.tokens[asset]
	if !ok {
		t.Asset = asset
	}
	return t
}

// txn stages the changes of one mutation on top of a committed state.
// Nothing in base is modified until applyTo.
type txn struct {
	base   *state
	caller string
	now    uint64 // unix seconds

	roles          *access.Control
	updaterChanged bool
	reporters      bool
	settings       *domain.Settings
	tokens         map[string]domain.Token
	fiats          *orderedset.Set
	custom         *orderedset.Set
	reports        map[reportKey]domain.ReporterReport

	events []domain.Event
}

func newTxn(base *state, caller string, now uint64) *txn {
	return &txn{base: base, caller: caller, now: now}
}

// access returns the role view of the transaction.
func (tx *txn) access() *access.Control {
	if tx.roles != nil {
		return tx.roles
	}
	return tx.base.roles
}

// writableRoles returns a private copy of the roles for modification.
func (tx *txn) writableRoles() *access.Control {
	if tx.roles == nil {
		tx.roles = tx.base.roles.Clone()
	}
	return tx.roles
}

func (tx *txn) currentSettings() domain.Settings {
	if tx.settings != nil {
		return *tx.settings
	}
	return tx.base.settings
}

func (tx *txn) setSettings(s domain.Settings) {
	tx.settings = &s
}

func (tx *txn) token(asset string) domain.Token {
	if t, ok := tx.tokens[asset]; ok {
		return t
	}
	return tx.base.token(asset)
}

func (tx *txn) putToken(t domain.Token) {
	if tx.tokens == nil {
		tx.tokens = make(map[string]domain.Token)
	}
	tx.tokens[t.Asset] = t
}

func (tx *txn) fiatSet() *orderedset.Set {
	if tx.fiats == nil {
		tx.fiats = tx.base.fiats.Clone()
	}
	return tx.fiats
}

func (tx *txn) customSet() *orderedset.Set {
	if tx.custom == nil {
		tx.custom = tx.base.custom.Clone()
	}
	return tx.custom
}

func (tx *txn) report(asset, reporter string) domain.ReporterReport {
	k := reportKey{asset, reporter}
	if r, ok := tx.reports[k]; ok {
		return r
	}
	return tx.base.reports[k]
}

func (tx *txn) putReport(r domain.ReporterReport) {
	if tx.reports == nil {
		tx.reports = make(map[reportKey]domain.ReporterReport)
	}
	tx.reports[reportKey{r.Asset, r.Reporter}] = r
}

func (tx *txn) emit(e domain.Event) {
	e.Actor = tx.caller
	tx.events = append(tx.events, e)
}

// mutation converts the staged changes into a storage.Mutation.
func (tx *txn) mutation() *storage.Mutation {
	m := &storage.Mutation{Settings: tx.settings}

	if tx.updaterChanged {
		u := tx.roles.Updater()
		m.Updater = &u
	}

	sets := make(map[string][]string)
	if tx.reporters {
		sets[domain.SetReporters] = tx.roles.Reporters()
	}
	if tx.fiats != nil {
		sets[domain.SetFiats] = tx.fiats.Items()
	}
	if tx.custom != nil {
		sets[domain.SetCustomCommission] = tx.custom.Items()
	}
	if len(sets) > 0 {
		m.Sets = sets
	}

	for _, t := range tx.tokens {
		m.Tokens = append(m.Tokens, t)
	}
	for _, r := range tx.reports {
		m.Reports = append(m.Reports, r)
	}
	return m
}

// applyTo folds the staged changes into s. Called only after the
// mutation has been persisted.
func (tx *txn) applyTo(s *state) {
	if tx.roles != nil {
		s.roles = tx.roles
	}
	if tx.settings != nil {
		s.settings = *tx.settings
	}
	for asset, t := range tx.tokens {
		s.tokens[asset] = t
	}
	if tx.fiats != nil {
		s.fiats = tx.fiats
	}
	if tx.custom != nil {
		s.custom = tx.custom
	}
	for k, r := range tx.reports {
		s.reports[k] = r
	}
}

func requireAsset(asset string) error {
	if asset == "" {
		return fmt.Errorf("%w: empty asset identifier", ErrInvalidInput)
	}
	return nil
}
