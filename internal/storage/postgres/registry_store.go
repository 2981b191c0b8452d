package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"price-registry/internal/domain"
	"price-registry/internal/observability"
	"price-registry/internal/storage"
)

// RegistryStore is a PostgreSQL implementation of storage.RegistryStore.
// Tables:
//   - registry_roles, registry_settings: single rows (id = 1)
//   - tokens: one row per asset
//   - registry_set_members: ordered membership of fiats, custom
//     commission assets and reporters
//   - reporter_reports: latest report per (asset, reporter)
//
// uint64 columns are NUMERIC(20,0) and travel as decimal text.
type RegistryStore struct {
	pool *Pool
}

// NewRegistryStore creates a new PostgreSQL registry store.
func NewRegistryStore(pool *Pool) *RegistryStore {
	return &RegistryStore{pool: pool}
}

var _ storage.RegistryStore = (*RegistryStore)(nil)

// Load reads the whole registry in one read-only transaction.
func (s *RegistryStore) Load(ctx context.Context) (snap *storage.Snapshot, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "registry_load", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	snap = &storage.Snapshot{Sets: make(map[string][]string)}

	err = tx.QueryRow(ctx, `SELECT admin, updater FROM registry_roles WHERE id = 1`).
		Scan(&snap.Admin, &snap.Updater)
	if err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("load roles: %w", err)
	}

	var reward string
	err = tx.QueryRow(ctx, `
		SELECT fiat_commission, token_commission, reward::text
		FROM registry_settings WHERE id = 1
	`).Scan(&snap.Settings.FiatCommission, &snap.Settings.TokenCommission, &reward)
	switch {
	case isNotFoundError(err):
	case err != nil:
		return nil, fmt.Errorf("load settings: %w", err)
	default:
		if snap.Settings.Reward, err = parseUint("reward", reward); err != nil {
			return nil, err
		}
	}

	if snap.Tokens, err = loadTokens(ctx, tx); err != nil {
		return nil, err
	}
	if err = loadSets(ctx, tx, snap.Sets); err != nil {
		return nil, err
	}
	if snap.Reports, err = loadReports(ctx, tx); err != nil {
		return nil, err
	}

	return snap, nil
}

func loadTokens(ctx context.Context, tx pgx.Tx) ([]domain.Token, error) {
	rows, err := tx.Query(ctx, `
		SELECT asset, is_fiat, is_custom_commission, is_custom_reward,
		       price::text, price_updated_at::text, reward::text, commission, transfer_fee::text
		FROM tokens
		ORDER BY asset
	`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		var t domain.Token
		var price, updatedAt, reward, fee string
		if err := rows.Scan(&t.Asset, &t.IsFiat, &t.IsCustomCommission, &t.IsCustomReward,
			&price, &updatedAt, &reward, &t.Commission, &fee); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		if t.Price, err = parseUint("price", price); err != nil {
			return nil, err
		}
		if t.PriceUpdatedAt, err = parseUint("price_updated_at", updatedAt); err != nil {
			return nil, err
		}
		if t.Reward, err = parseUint("reward", reward); err != nil {
			return nil, err
		}
		if t.TransferFee, err = parseUint("transfer_fee", fee); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func loadSets(ctx context.Context, tx pgx.Tx, sets map[string][]string) error {
	rows, err := tx.Query(ctx, `
		SELECT set_name, member
		FROM registry_set_members
		ORDER BY set_name, position
	`)
	if err != nil {
		return fmt.Errorf("query set members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, member string
		if err := rows.Scan(&name, &member); err != nil {
			return fmt.Errorf("scan set member: %w", err)
		}
		sets[name] = append(sets[name], member)
	}
	return rows.Err()
}

func loadReports(ctx context.Context, tx pgx.Tx) ([]domain.ReporterReport, error) {
	rows, err := tx.Query(ctx, `
		SELECT asset, reporter, ts::text, price::text
		FROM reporter_reports
		ORDER BY asset, reporter
	`)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.ReporterReport
	for rows.Next() {
		var r domain.ReporterReport
		var ts, price string
		if err := rows.Scan(&r.Asset, &r.Reporter, &ts, &price); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if r.Timestamp, err = parseUint("ts", ts); err != nil {
			return nil, err
		}
		if r.Price, err = parseUint("price", price); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Apply persists m in one transaction.
func (s *RegistryStore) Apply(ctx context.Context, m *storage.Mutation) (err error) {
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

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "registry_apply", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if m.Admin != nil {
		if err := claimAdmin(ctx, tx, *m.Admin); err != nil {
			return err
		}
	}

	batch := &pgx.Batch{}

	if m.Updater != nil {
		batch.Queue(`
			INSERT INTO registry_roles (id, updater, updated_at)
			VALUES (1, $1, NOW())
			ON CONFLICT (id) DO UPDATE
			SET updater = EXCLUDED.updater,
			    updated_at = NOW()
		`, *m.Updater)
	}

	if m.Settings != nil {
		batch.Queue(`
			INSERT INTO registry_settings (id, fiat_commission, token_commission, reward, updated_at)
			VALUES (1, $1, $2, $3::text::numeric, NOW())
			ON CONFLICT (id) DO UPDATE
			SET fiat_commission = EXCLUDED.fiat_commission,
			    token_commission = EXCLUDED.token_commission,
			    reward = EXCLUDED.reward,
			    updated_at = NOW()
		`, m.Settings.FiatCommission, m.Settings.TokenCommission, formatUint(m.Settings.Reward))
	}

	for _, t := range m.Tokens {
		batch.Queue(`
			INSERT INTO tokens (
				asset, is_fiat, is_custom_commission, is_custom_reward,
				price, price_updated_at, reward, commission, transfer_fee, updated_at
			) VALUES (
				$1, $2, $3, $4,
				$5::text::numeric, $6::text::numeric, $7::text::numeric, $8, $9::text::numeric, NOW()
			)
			ON CONFLICT (asset) DO UPDATE
			SET is_fiat = EXCLUDED.is_fiat,
			    is_custom_commission = EXCLUDED.is_custom_commission,
			    is_custom_reward = EXCLUDED.is_custom_reward,
			    price = EXCLUDED.price,
			    price_updated_at = EXCLUDED.price_updated_at,
			    reward = EXCLUDED.reward,
			    commission = EXCLUDED.commission,
			    transfer_fee = EXCLUDED.transfer_fee,
			    updated_at = NOW()
		`, t.Asset, t.IsFiat, t.IsCustomCommission, t.IsCustomReward,
			formatUint(t.Price), formatUint(t.PriceUpdatedAt), formatUint(t.Reward),
			t.Commission, formatUint(t.TransferFee))
	}

	for name, members := range m.Sets {
		batch.Queue(`DELETE FROM registry_set_members WHERE set_name = $1`, name)
		for i, member := range members {
			batch.Queue(`
				INSERT INTO registry_set_members (set_name, position, member)
				VALUES ($1, $2, $3)
			`, name, i, member)
		}
	}

	for _, r := range m.Reports {
		batch.Queue(`
			INSERT INTO reporter_reports (asset, reporter, ts, price, updated_at)
			VALUES ($1, $2, $3::text::numeric, $4::text::numeric, NOW())
			ON CONFLICT (asset, reporter) DO UPDATE
			SET ts = EXCLUDED.ts,
			    price = EXCLUDED.price,
			    updated_at = NOW()
		`, r.Asset, r.Reporter, formatUint(r.Timestamp), formatUint(r.Price))
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return classifyApplyError(i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// claimAdmin records admin on a fresh store, or verifies it matches.
func claimAdmin(ctx context.Context, tx pgx.Tx, admin string) error {
	var existing string
	err := tx.QueryRow(ctx, `SELECT admin FROM registry_roles WHERE id = 1 FOR UPDATE`).Scan(&existing)

	switch {
	case isNotFoundError(err):
		_, err = tx.Exec(ctx, `INSERT INTO registry_roles (id, admin, updated_at) VALUES (1, $1, NOW())`, admin)
		if err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read admin: %w", err)
	case existing != "" && existing != admin:
		return storage.ErrAdminMismatch
	case existing == "":
		_, err = tx.Exec(ctx, `UPDATE registry_roles SET admin = $1, updated_at = NOW() WHERE id = 1`, admin)
		if err != nil {
			return fmt.Errorf("update admin: %w", err)
		}
	}
	return nil
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseUint(column, v string) (uint64, error) {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", column, v, err)
	}
	return n, nil
}
