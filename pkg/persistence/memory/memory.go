package memory

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/merkle-distributor-go/pkg/persistence"
)

// MemoryClaimStore is an in-memory implementation of IClaimStore.
// This implementation is intended for TESTING ONLY.
//
// All counters are stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Amounts are copied on the way in and out to prevent external mutation.
type MemoryClaimStore struct {
	mu sync.RWMutex

	// Claimed counters: (account, token) -> cumulative amount
	claimed map[claimKey]*uint256.Int

	// Closed flag
	closed bool
}

type claimKey struct {
	account common.Address
	token   common.Address
}

// Ensure MemoryClaimStore implements IClaimStore
var _ persistence.IClaimStore = (*MemoryClaimStore)(nil)

// NewMemoryClaimStore creates a new in-memory claim store.
// Prints a loud warning since this should only be used for testing.
func NewMemoryClaimStore() *MemoryClaimStore {
	fmt.Println("⚠️  WARNING: Using in-memory claim store - ALL CLAIMED COUNTERS WILL BE LOST ON RESTART")
	fmt.Println("⚠️  This should ONLY be used for testing. Set DISTRIBUTOR_PERSISTENCE_TYPE=badger for production")

	return &MemoryClaimStore{
		claimed: make(map[claimKey]*uint256.Int),
	}
}

// GetClaimed returns the cumulative claimed amount for (account, token).
func (m *MemoryClaimStore) GetClaimed(account common.Address, token common.Address) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("claim store is closed")
	}

	amount, exists := m.claimed[claimKey{account: account, token: token}]
	if !exists {
		return uint256.NewInt(0), nil // Never claimed is not an error
	}

	return new(uint256.Int).Set(amount), nil
}

// SetClaimed overwrites the cumulative claimed amount for (account, token).
func (m *MemoryClaimStore) SetClaimed(account common.Address, token common.Address, amount *uint256.Int) error {
	if amount == nil {
		return fmt.Errorf("cannot set nil claimed amount")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("claim store is closed")
	}

	key := claimKey{account: account, token: token}
	if amount.IsZero() {
		delete(m.claimed, key)
		return nil
	}

	m.claimed[key] = new(uint256.Int).Set(amount)
	return nil
}

// ListClaims returns all non-zero counters sorted by (account, token).
func (m *MemoryClaimStore) ListClaims() ([]*persistence.ClaimedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("claim store is closed")
	}

	records := make([]*persistence.ClaimedRecord, 0, len(m.claimed))
	for key, amount := range m.claimed {
		records = append(records, &persistence.ClaimedRecord{
			Account: key.account,
			Token:   key.token,
			Claimed: new(uint256.Int).Set(amount),
		})
	}

	persistence.SortClaimedRecords(records)
	return records, nil
}

// Close shuts down the store.
func (m *MemoryClaimStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the store is operational.
func (m *MemoryClaimStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("claim store is closed")
	}

	return nil
}
