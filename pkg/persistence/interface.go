package persistence

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// IClaimStore defines the interface for persisting cumulative claimed
// counters, one per (account, token) pair. All implementations must be
// thread-safe as Redeemer operations are concurrent.
//
// Counters are monotonically non-decreasing in normal operation, but the
// store itself does not enforce that: the Redeemer owns the claim state
// machine and needs plain overwrite semantics for rollback.
type IClaimStore interface {
	// GetClaimed returns the cumulative claimed amount for (account, token).
	// Returns zero if the pair has never claimed, error only on storage
	// failure.
	GetClaimed(account common.Address, token common.Address) (*uint256.Int, error)

	// SetClaimed overwrites the cumulative claimed amount for
	// (account, token). Setting zero clears the pair from listings.
	SetClaimed(account common.Address, token common.Address, amount *uint256.Int) error

	// ListClaims returns all non-zero counters sorted by (account, token)
	// bytewise. Returns an empty slice if nothing has been claimed, error
	// only on storage failure. Used by external indexers.
	ListClaims() ([]*ClaimedRecord, error)

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the store is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
