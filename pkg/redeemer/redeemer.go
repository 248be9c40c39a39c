// Package redeemer implements the redemption state machine: it verifies
// inclusion proofs against the currently published merkle root and pays out
// the delta between an account's proven cumulative entitlement and its
// persisted claimed counter. Replacing the root with a larger commitment
// lets later claims pay only the new delta; no per-root bookkeeping exists
// beyond the single running counter per (account, token).
package redeemer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/Layr-Labs/merkle-distributor-go/pkg/balancetree"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/persistence"
)

var (
	// ErrInvalidProof is returned when the proof does not verify against
	// the published root for (caller, token, cumulativeAmount).
	ErrInvalidProof = errors.New("merkle proof does not match the published root")

	// ErrExcessiveClaim is returned when the proven cumulative amount is
	// below the already-claimed counter. Only possible after the root was
	// replaced with a smaller commitment - an operator error, not a user
	// error.
	ErrExcessiveClaim = errors.New("cumulative amount is below the already-claimed counter")

	// ErrNothingToClaim is returned when the payable delta is zero. Benign
	// and expected on replay of an already-settled claim.
	ErrNothingToClaim = errors.New("nothing to claim")
)

// ClaimedEvent is emitted on every successful claim, for external indexers.
type ClaimedEvent struct {
	Account          common.Address
	Token            common.Address
	CumulativeAmount *uint256.Int
	Paid             *uint256.Int
}

type claimKey struct {
	account common.Address
	token   common.Address
}

// Redeemer owns the published merkle root and the per-(account, token)
// cumulative claimed counters. Claims for the same key are serialized;
// claims for different keys proceed concurrently. The root is replaceable
// while claims are in flight - each claim observes one consistent root value
// for both verification and its counter update.
type Redeemer struct {
	store      persistence.IClaimStore
	transferor TokenTransferor
	logger     *zap.Logger

	events chan *ClaimedEvent

	rootMu sync.RWMutex
	root   [32]byte

	locksMu sync.Mutex
	locks   map[claimKey]*sync.Mutex
}

// NewRedeemer creates a redeemer publishing the given root, persisting
// counters in store and paying out through transferor.
func NewRedeemer(root [32]byte, store persistence.IClaimStore, transferor TokenTransferor, logger *zap.Logger) *Redeemer {
	return &Redeemer{
		store:      store,
		transferor: transferor,
		logger:     logger,
		// 100 event capacity should be more than enough for indexer lag
		events: make(chan *ClaimedEvent, 100),
		root:   root,
		locks:  make(map[claimKey]*sync.Mutex),
	}
}

// MerkleRoot returns the currently published root.
func (r *Redeemer) MerkleRoot() [32]byte {
	r.rootMu.RLock()
	defer r.rootMu.RUnlock()
	return r.root
}

// UpdateMerkleRoot replaces the published root. Restricted to an authorized
// operator at the call site; no access-control scheme lives in this core.
func (r *Redeemer) UpdateMerkleRoot(newRoot [32]byte) {
	r.rootMu.Lock()
	oldRoot := r.root
	r.root = newRoot
	r.rootMu.Unlock()

	r.logger.Sugar().Infow("Merkle root updated",
		"old_root", common.Hash(oldRoot).Hex(),
		"new_root", common.Hash(newRoot).Hex(),
	)
}

// GetClaimed returns the cumulative claimed counter for (account, token).
func (r *Redeemer) GetClaimed(account common.Address, token common.Address) (*uint256.Int, error) {
	return r.store.GetClaimed(account, token)
}

// Claim verifies the proof for (caller, token, cumulativeAmount) against the
// published root and pays out the delta over the already-claimed counter.
// Returns the paid amount on success.
//
// Every failure path leaves the counter unchanged: if the transfer fails,
// the counter write is rolled back before the error surfaces. Resubmitting
// the same proof after a transient transfer failure is therefore safe and
// idempotent up to the payable delta.
func (r *Redeemer) Claim(ctx context.Context, caller common.Address, token common.Address, cumulativeAmount *uint256.Int, proof [][32]byte) (*uint256.Int, error) {
	if cumulativeAmount == nil {
		return nil, fmt.Errorf("cumulative amount cannot be nil")
	}

	lock := r.keyLock(claimKey{account: caller, token: token})
	lock.Lock()
	defer lock.Unlock()

	// One root value for both verification and the counter update
	root := r.MerkleRoot()

	if !balancetree.VerifyProof(caller, token, cumulativeAmount, proof, root) {
		return nil, fmt.Errorf("account %s token %s: %w", caller.Hex(), token.Hex(), ErrInvalidProof)
	}

	claimed, err := r.store.GetClaimed(caller, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load claimed counter: %w", err)
	}

	if cumulativeAmount.Lt(claimed) {
		return nil, fmt.Errorf("account %s token %s: cumulative %s < claimed %s: %w",
			caller.Hex(), token.Hex(), cumulativeAmount.Dec(), claimed.Dec(), ErrExcessiveClaim)
	}

	payable := new(uint256.Int).Sub(cumulativeAmount, claimed)
	if payable.IsZero() {
		return nil, fmt.Errorf("account %s token %s: %w", caller.Hex(), token.Hex(), ErrNothingToClaim)
	}

	// Advance the counter before moving value: a failure in this order can
	// only under-pay, never double-pay
	if err := r.store.SetClaimed(caller, token, cumulativeAmount); err != nil {
		return nil, fmt.Errorf("failed to persist claimed counter: %w", err)
	}

	if err := r.transferor.Transfer(ctx, token, caller, payable); err != nil {
		if restoreErr := r.store.SetClaimed(caller, token, claimed); restoreErr != nil {
			r.logger.Sugar().Errorw("Failed to roll back claimed counter after transfer failure",
				"account", caller.Hex(),
				"token", token.Hex(),
				"error", restoreErr,
			)
			return nil, fmt.Errorf("transfer failed (%w) and counter rollback failed: %v", err, restoreErr)
		}
		return nil, fmt.Errorf("transfer of %s failed: %w", payable.Dec(), err)
	}

	event := &ClaimedEvent{
		Account:          caller,
		Token:            token,
		CumulativeAmount: new(uint256.Int).Set(cumulativeAmount),
		Paid:             payable,
	}
	r.emit(event)

	r.logger.Sugar().Infow("Claim paid",
		"account", caller.Hex(),
		"token", token.Hex(),
		"cumulative", cumulativeAmount.Dec(),
		"paid", payable.Dec(),
	)

	return new(uint256.Int).Set(payable), nil
}

// Events returns the claimed-event channel.
func (r *Redeemer) Events() <-chan *ClaimedEvent {
	return r.events
}

// ListenToEvents reads claimed events and calls handleFunc for each, until
// the context is done.
func (r *Redeemer) ListenToEvents(ctx context.Context, handleFunc func(*ClaimedEvent)) {
	for {
		select {
		case event := <-r.events:
			handleFunc(event)
		case <-ctx.Done():
			r.logger.Sugar().Info("Claimed event listener exiting due to context done")
			return
		}
	}
}

// emit sends an event without blocking the claim path.
func (r *Redeemer) emit(event *ClaimedEvent) {
	select {
	case r.events <- event:
	default:
		r.logger.Sugar().Warnw("Event channel is full, dropping claimed event",
			"account", event.Account.Hex(),
			"token", event.Token.Hex(),
		)
	}
}

// keyLock returns the mutex serializing claims for one (account, token) key.
func (r *Redeemer) keyLock(key claimKey) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	lock, exists := r.locks[key]
	if !exists {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}
