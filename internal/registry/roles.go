package registry

import (
	"context"
	"fmt"

	"price-registry/internal/domain"
)

// SetUpdater replaces the updater. Admin only; id may be empty to unset it.
func (r *Registry) SetUpdater(ctx context.Context, caller, id string) error {
	return r.mutate(ctx, "set_updater", caller, func(tx *txn) error {
		if err := tx.writableRoles().SetUpdater(caller, id); err != nil {
			return err
		}
		tx.updaterChanged = true
		tx.emit(domain.Event{Type: domain.EventUpdaterChanged, Subject: id})
		return nil
	})
}

// AddReporter adds id to the reporter set. Admin only.
func (r *Registry) AddReporter(ctx context.Context, caller, id string) error {
	return r.mutate(ctx, "add_reporter", caller, func(tx *txn) error {
		if err := tx.access().RequireAdmin(caller); err != nil {
			return err
		}
		if id == "" {
			return fmt.Errorf("%w: empty reporter identity", ErrInvalidInput)
		}
		if err := tx.writableRoles().AddReporter(caller, id); err != nil {
			return err
		}
		tx.reporters = true
		tx.emit(domain.Event{Type: domain.EventReporterAdded, Subject: id})
		return nil
	})
}

// RemoveReporter removes id from the reporter set. Admin only. Reports
// already submitted by id stay stored but no longer take part in consensus.
func (r *Registry) RemoveReporter(ctx context.Context, caller, id string) error {
	return r.mutate(ctx, "remove_reporter", caller, func(tx *txn) error {
		if err := tx.writableRoles().RemoveReporter(caller, id); err != nil {
			return err
		}
		tx.reporters = true
		tx.emit(domain.Event{Type: domain.EventReporterRemoved, Subject: id})
		return nil
	})
}

// Roles returns the current role assignments.
func (r *Registry) Roles() domain.Roles {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.roles.Roles()
}
