package registry

import (
	"context"
	"errors"
	"fmt"

	"price-registry/internal/consensus"
	"price-registry/internal/domain"
	"price-registry/internal/observability"
)

// Report stores the caller's observation of asset. Reporters only.
// ts must not be ahead of now and must be strictly newer than the
// caller's previous report for asset.
func (r *Registry) Report(ctx context.Context, caller, asset string, ts, price uint64) error {
	return r.mutate(ctx, "report", caller, func(tx *txn) error {
		if err := tx.access().RequireReporter(caller); err != nil {
			return err
		}
		if err := requireAsset(asset); err != nil {
			return err
		}
		if ts > tx.now {
			return fmt.Errorf("%w: %d > now %d", ErrFutureTimestamp, ts, tx.now)
		}
		if prev := tx.report(asset, caller); ts <= prev.Timestamp {
			return fmt.Errorf("%w: %d <= %d", ErrStaleReport, ts, prev.Timestamp)
		}

		tx.putReport(domain.ReporterReport{Asset: asset, Reporter: caller, Timestamp: ts, Price: price})
		tx.emit(domain.Event{
			Type:      domain.EventReportSubmitted,
			Asset:     asset,
			Subject:   caller,
			Timestamp: ts,
			Price:     price,
		})
		return nil
	})
}

// GetReport returns the stored report of reporter for asset, stale or
// not. ok is false if the reporter never reported the asset.
func (r *Registry) GetReport(asset, reporter string) (domain.ReporterReport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.state.reports[reportKey{asset, reporter}]
	return rep, ok
}

// Consensus aggregates the alive reports of current reporters for asset.
func (r *Registry) Consensus(asset string) (consensus.Result, error) {
	now := r.now()

	r.mu.RLock()
	ids := r.state.roles.Reporters()
	reports := make([]domain.ReporterReport, 0, len(ids))
	for _, id := range ids {
		if rep, ok := r.state.reports[reportKey{asset, id}]; ok {
			reports = append(reports, rep)
		}
	}
	r.mu.RUnlock()

	res, err := consensus.Aggregate(reports, now)
	observability.RecordConsensus(res.Alive, errors.Is(err, consensus.ErrUnstable))
	return res, err
}

// GetPriceFromReporters returns the consensus price of asset. Zero with a
// nil error means no current reporter has an alive report.
func (r *Registry) GetPriceFromReporters(asset string) (uint64, error) {
	res, err := r.Consensus(asset)
	if err != nil {
		return 0, err
	}
	return res.Price, nil
}
