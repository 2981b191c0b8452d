// Package access implements the flat role model: one immutable
// administrator, one replaceable updater and a set of reporters.
package access

import (
	"errors"
	"fmt"

	"price-registry/internal/domain"
	"price-registry/internal/orderedset"
)

// Role errors.
var (
	// ErrAccessDenied is returned when the caller lacks the required role.
	ErrAccessDenied = errors.New("access denied")

	// ErrAlreadyReporter is returned when adding an existing reporter.
	ErrAlreadyReporter = errors.New("already a reporter")

	// ErrNotReporter is returned when the identity is not a current reporter.
	ErrNotReporter = errors.New("not a reporter")

	// ErrEmptyAdmin is returned when constructing a Control without admin.
	ErrEmptyAdmin = errors.New("admin identity is required")
)

// Control holds role assignments. Checks are pure predicates over an
// explicit caller identity; an empty caller never holds any role.
// Control is not safe for concurrent use; the owner serializes access.
type Control struct {
	admin     string
	updater   string
	reporters *orderedset.Set
}

// New creates a Control. The admin is fixed for the lifetime of the value.
func New(admin, updater string, reporters ...string) (*Control, error) {
	if admin == "" {
		return nil, ErrEmptyAdmin
	}
	return &Control{
		admin:     admin,
		updater:   updater,
		reporters: orderedset.New(reporters...),
	}, nil
}

// Admin returns the administrator identity.
func (c *Control) Admin() string { return c.admin }

// Updater returns the updater identity, empty if unset.
func (c *Control) Updater() string { return c.updater }

// Reporters returns the current reporter set in order.
func (c *Control) Reporters() []string { return c.reporters.Items() }

// IsReporter reports whether id is a current reporter.
func (c *Control) IsReporter(id string) bool {
	return id != "" && c.reporters.Contains(id)
}

// Roles returns a read-only view.
func (c *Control) Roles() domain.Roles {
	return domain.Roles{
		Admin:     c.admin,
		Updater:   c.updater,
		Reporters: c.reporters.Items(),
	}
}

// RequireAdmin fails with ErrAccessDenied unless caller is the admin.
func (c *Control) RequireAdmin(caller string) error {
	if caller == "" || caller != c.admin {
		return fmt.Errorf("%w: %q is not admin", ErrAccessDenied, caller)
	}
	return nil
}

// RequireUpdaterOrAdmin fails with ErrAccessDenied unless caller is the
// updater or the admin.
func (c *Control) RequireUpdaterOrAdmin(caller string) error {
	if caller == "" || (caller != c.updater && caller != c.admin) {
		return fmt.Errorf("%w: %q is neither updater nor admin", ErrAccessDenied, caller)
	}
	return nil
}

// RequireReporter fails unless caller is a current reporter.
// The error matches both ErrAccessDenied and ErrNotReporter.
func (c *Control) RequireReporter(caller string) error {
	if !c.IsReporter(caller) {
		return fmt.Errorf("%w: %w: %q", ErrAccessDenied, ErrNotReporter, caller)
	}
	return nil
}

// SetUpdater replaces the updater. Admin only; id is not validated and
// may be empty to unset the role.
func (c *Control) SetUpdater(caller, id string) error {
	if err := c.RequireAdmin(caller); err != nil {
		return err
	}
	c.updater = id
	return nil
}

// AddReporter adds id to the reporter set. Admin only.
func (c *Control) AddReporter(caller, id string) error {
	if err := c.RequireAdmin(caller); err != nil {
		return err
	}
	if !c.reporters.Add(id) {
		return fmt.Errorf("%w: %q", ErrAlreadyReporter, id)
	}
	return nil
}

// RemoveReporter removes id from the reporter set. Admin only.
// Reports already submitted by id stay stored.
func (c *Control) RemoveReporter(caller, id string) error {
	if err := c.RequireAdmin(caller); err != nil {
		return err
	}
	if !c.reporters.Remove(id) {
		return fmt.Errorf("%w: %q", ErrNotReporter, id)
	}
	return nil
}

// Clone returns an independent copy.
func (c *Control) Clone() *Control {
	return &Control{
		admin:     c.admin,
		updater:   c.updater,
		reporters: c.reporters.Clone(),
	}
}
