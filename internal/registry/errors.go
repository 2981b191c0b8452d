package registry

import (
	"errors"

	"price-registry/internal/access"
	"price-registry/internal/commission"
	"price-registry/internal/consensus"
)

// Registry errors. Role, range and consensus errors are re-exported from
// the packages that produce them so callers only need this package.
var (
	ErrAccessDenied         = access.ErrAccessDenied
	ErrAlreadyReporter      = access.ErrAlreadyReporter
	ErrNotReporter          = access.ErrNotReporter
	ErrPercentageOutOfRange = commission.ErrPercentageOutOfRange
	ErrUnstableConsensus    = consensus.ErrUnstable

	// ErrFutureTimestamp is returned when a submitted time is ahead of now.
	ErrFutureTimestamp = errors.New("timestamp is in the future")

	// ErrStaleReport is returned when a report is not newer than the
	// reporter's previous report for the same asset.
	ErrStaleReport = errors.New("report is not newer than the previous one")

	// ErrLengthMismatch is returned when parallel batch inputs differ in length.
	ErrLengthMismatch = errors.New("input length mismatch")

	// ErrNotFiat is returned when removing an asset that is not fiat.
	ErrNotFiat = errors.New("asset is not fiat")

	// ErrInvalidInput is returned for empty asset identifiers.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSpotUnavailable wraps every failure of the non-fiat price path.
	ErrSpotUnavailable = errors.New("spot price unavailable")

	// ErrNoAdmin is returned by Open when no admin is configured.
	ErrNoAdmin = errors.New("bootstrap admin is required")
)
