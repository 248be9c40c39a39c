// Package balancetree binds (account, token, amount) entitlements to the
// merkle tree engine: it encodes entries into leaf digests, fixes the
// construction order, and produces/verifies inclusion proofs.
package balancetree

import (
	"bytes"
	"errors"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/merkle-distributor-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/types"
)

// ErrNotFound is returned when a proof is requested for an entry that is not
// among the tree's leaves.
var ErrNotFound = errors.New("no leaf matches the given (account, token, amount)")

// LeafHash encodes an entitlement as a merkle leaf digest:
// keccak256(account (20 bytes) || token (20 bytes) || amount (32 bytes, big-endian)).
// Inputs must already be canonical; the encoding is pure and performs no
// validation, so identical inputs always yield an identical digest.
func LeafHash(account common.Address, token common.Address, amount *uint256.Int) [32]byte {
	amount32 := amount.Bytes32()

	data := make([]byte, 0, 20+20+32)
	data = append(data, account.Bytes()...)
	data = append(data, token.Bytes()...)
	data = append(data, amount32[:]...)

	hash := crypto.Keccak256Hash(data)
	return [32]byte(hash)
}

// BalanceTree is a build-once merkle tree over a set of entitlements.
type BalanceTree struct {
	tree *merkle.Tree

	// leafIndex maps a leaf digest to its position in the tree
	leafIndex map[[32]byte]int
}

// NewBalanceTree builds a balance tree over the given entries. The entries
// are sorted by (token, account) bytewise before leaf construction so that
// independent rebuilds of the same logical input produce identical roots;
// verification itself never depends on order.
func NewBalanceTree(entries []*types.Entry) (*BalanceTree, error) {
	sorted := SortEntries(entries)

	leaves := make([][32]byte, len(sorted))
	for i, entry := range sorted {
		leaves[i] = LeafHash(entry.Account, entry.Token, entry.Amount)
	}

	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return nil, err
	}

	leafIndex := make(map[[32]byte]int, len(leaves))
	for i, leaf := range leaves {
		if _, exists := leafIndex[leaf]; !exists {
			leafIndex[leaf] = i
		}
	}

	return &BalanceTree{
		tree:      tree,
		leafIndex: leafIndex,
	}, nil
}

// Root returns the merkle root committing to all entries.
func (bt *BalanceTree) Root() [32]byte {
	return bt.tree.Root
}

// Proof re-derives the leaf digest for the given entitlement, locates it
// among the built leaves, and returns its inclusion proof. Returns
// ErrNotFound if no leaf matches.
func (bt *BalanceTree) Proof(account common.Address, token common.Address, amount *uint256.Int) ([][32]byte, error) {
	leaf := LeafHash(account, token, amount)

	index, exists := bt.leafIndex[leaf]
	if !exists {
		return nil, ErrNotFound
	}

	return bt.tree.Proof(index)
}

// VerifyProof checks an entitlement's inclusion proof against a root without
// needing the tree instance: it re-derives the leaf digest and recomputes
// the root from the proof.
func VerifyProof(account common.Address, token common.Address, amount *uint256.Int, proof [][32]byte, root [32]byte) bool {
	return merkle.Verify(LeafHash(account, token, amount), proof, root)
}

// SortEntries returns a copy of entries ordered by (token, account)
// bytewise. The copy leaves the caller's slice untouched.
func SortEntries(entries []*types.Entry) []*types.Entry {
	sorted := make([]*types.Entry, len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		if c := bytes.Compare(sorted[i].Token.Bytes(), sorted[j].Token.Bytes()); c != 0 {
			return c < 0
		}
		return bytes.Compare(sorted[i].Account.Bytes(), sorted[j].Account.Bytes()) < 0
	})

	return sorted
}
