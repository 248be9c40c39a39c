package balancetree

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/merkle-distributor-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/types"
)

// testEntries creates n entries for a single token with distinct accounts
func testEntries(n int) []*types.Entry {
	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	entries := make([]*types.Entry, n)
	for i := 0; i < n; i++ {
		entries[i] = &types.Entry{
			Token:   token,
			Account: common.BigToAddress(uint256.NewInt(uint64(i + 1)).ToBig()),
			Amount:  uint256.NewInt(uint64((i + 1) * 100)),
		}
	}
	return entries
}

// TestLeafHashDeterminism tests that leaf encoding is a pure function
func TestLeafHashDeterminism(t *testing.T) {
	account := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")
	amount := uint256.NewInt(12345)

	hash1 := LeafHash(account, token, amount)
	hash2 := LeafHash(account, token, amount)
	require.Equal(t, hash1, hash2)
	require.NotEqual(t, [32]byte{}, hash1)
}

// TestLeafHashOrderSensitive tests that the packed encoding distinguishes
// every field, including swapped account/token
func TestLeafHashOrderSensitive(t *testing.T) {
	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	b := common.HexToAddress("0x2222222222222222222222222222222222222222")
	amount := uint256.NewInt(100)

	base := LeafHash(a, b, amount)
	require.NotEqual(t, base, LeafHash(b, a, amount))
	require.NotEqual(t, base, LeafHash(a, b, uint256.NewInt(101)))
	require.NotEqual(t, base, LeafHash(a, a, amount))
}

// TestBalanceTreeProofs tests that every entry's proof verifies against the
// root, both through the tree and statelessly
func TestBalanceTreeProofs(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 16, 33} {
		t.Run(fmt.Sprintf("%d_entries", n), func(t *testing.T) {
			entries := testEntries(n)
			bt, err := NewBalanceTree(entries)
			require.NoError(t, err)

			for _, entry := range entries {
				proof, err := bt.Proof(entry.Account, entry.Token, entry.Amount)
				require.NoError(t, err)
				require.True(t, VerifyProof(entry.Account, entry.Token, entry.Amount, proof, bt.Root()))
			}
		})
	}
}

// TestBalanceTreeNotFound tests proof requests for absent entitlements
func TestBalanceTreeNotFound(t *testing.T) {
	entries := testEntries(4)
	bt, err := NewBalanceTree(entries)
	require.NoError(t, err)

	t.Run("Unknown account", func(t *testing.T) {
		_, err := bt.Proof(common.HexToAddress("0xdead"), entries[0].Token, entries[0].Amount)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Wrong amount", func(t *testing.T) {
		_, err := bt.Proof(entries[0].Account, entries[0].Token, uint256.NewInt(1))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Wrong token", func(t *testing.T) {
		_, err := bt.Proof(entries[0].Account, common.HexToAddress("0xbeef"), entries[0].Amount)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

// TestBalanceTreeEmpty tests that an empty entry set is rejected
func TestBalanceTreeEmpty(t *testing.T) {
	bt, err := NewBalanceTree(nil)
	require.ErrorIs(t, err, merkle.ErrEmptyLeaves)
	require.Nil(t, bt)
}

// TestBalanceTreeOrderIndependence tests that shuffled input produces the
// same root: construction sorts by (token, account)
func TestBalanceTreeOrderIndependence(t *testing.T) {
	entries := testEntries(10)

	bt1, err := NewBalanceTree(entries)
	require.NoError(t, err)

	shuffled := make([]*types.Entry, len(entries))
	copy(shuffled, entries)
	for i, j := 0, len(shuffled)-1; i < j; i, j = i+1, j-1 {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	bt2, err := NewBalanceTree(shuffled)
	require.NoError(t, err)
	require.Equal(t, bt1.Root(), bt2.Root())
}

// TestSortEntriesDoesNotMutate verifies sorting leaves the original slice
// untouched
func TestSortEntriesDoesNotMutate(t *testing.T) {
	entries := testEntries(5)
	// Reverse so the input is out of order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	first := entries[0]

	sorted := SortEntries(entries)
	require.Equal(t, len(entries), len(sorted))
	require.Same(t, first, entries[0])
	require.NotSame(t, first, sorted[0])
}

// TestVerifyProofRejectsWrongEntitlement tests that a valid proof only
// verifies for the exact (account, token, amount) it was issued for
func TestVerifyProofRejectsWrongEntitlement(t *testing.T) {
	entries := testEntries(8)
	bt, err := NewBalanceTree(entries)
	require.NoError(t, err)

	entry := entries[2]
	proof, err := bt.Proof(entry.Account, entry.Token, entry.Amount)
	require.NoError(t, err)

	other := entries[3]
	otherToken := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	require.False(t, VerifyProof(other.Account, entry.Token, entry.Amount, proof, bt.Root()))
	require.False(t, VerifyProof(entry.Account, entry.Token, uint256.NewInt(1), proof, bt.Root()))
	require.False(t, VerifyProof(entry.Account, otherToken, entry.Amount, proof, bt.Root()))
}
