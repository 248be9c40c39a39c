package distribution

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/merkle-distributor-go/pkg/balancetree"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/logger"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/types"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")

	accountX = common.HexToAddress("0x1000000000000000000000000000000000000001")
	accountY = common.HexToAddress("0x1000000000000000000000000000000000000002")
	accountZ = common.HexToAddress("0x1000000000000000000000000000000000000003")
)

func newTestAggregator(t *testing.T, policy DuplicatePolicy) *Aggregator {
	t.Helper()
	testLogger, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)
	return NewAggregator(policy, testLogger)
}

func entry(token, account common.Address, amount uint64) *types.Entry {
	return &types.Entry{Token: token, Account: account, Amount: uint256.NewInt(amount)}
}

// TestAggregateSingleToken tests totals and proofs for one token:
// {200, 300, 250} sums to 750 and every claim verifies against the root
func TestAggregateSingleToken(t *testing.T) {
	agg := newTestAggregator(t, DuplicateReject)

	record, err := agg.Aggregate([]*types.Entry{
		entry(tokenA, accountX, 200),
		entry(tokenA, accountY, 300),
		entry(tokenA, accountZ, 250),
	})
	require.NoError(t, err)
	require.NotNil(t, record)

	td, exists := record.Tokens[tokenA]
	require.True(t, exists)
	assert.Equal(t, uint256.NewInt(750), td.TokenTotal)
	require.Len(t, td.Claims, 3)

	for account, claim := range td.Claims {
		proof := make([][32]byte, len(claim.Proof))
		for i, p := range claim.Proof {
			proof[i] = [32]byte(p)
		}
		require.True(t, balancetree.VerifyProof(account, tokenA, claim.Earnings, proof, [32]byte(record.MerkleRoot)))
	}
}

// TestAggregateMultiToken tests that one root commits to every token's
// distribution simultaneously and claims stay token-scoped
func TestAggregateMultiToken(t *testing.T) {
	agg := newTestAggregator(t, DuplicateReject)

	record, err := agg.Aggregate([]*types.Entry{
		entry(tokenA, accountX, 100),
		entry(tokenA, accountY, 200),
		entry(tokenB, accountX, 50),
	})
	require.NoError(t, err)
	require.Len(t, record.Tokens, 2)

	assert.Equal(t, uint256.NewInt(300), record.Tokens[tokenA].TokenTotal)
	assert.Equal(t, uint256.NewInt(50), record.Tokens[tokenB].TokenTotal)

	root := [32]byte(record.MerkleRoot)

	// accountX's tokenA claim verifies for tokenA only
	claim := record.Tokens[tokenA].Claims[accountX]
	proof := make([][32]byte, len(claim.Proof))
	for i, p := range claim.Proof {
		proof[i] = [32]byte(p)
	}
	require.True(t, balancetree.VerifyProof(accountX, tokenA, claim.Earnings, proof, root))
	require.False(t, balancetree.VerifyProof(accountX, tokenB, claim.Earnings, proof, root))
}

// TestAggregateInvalidAmount tests that zero and nil amounts are rejected
func TestAggregateInvalidAmount(t *testing.T) {
	agg := newTestAggregator(t, DuplicateReject)

	t.Run("Zero amount", func(t *testing.T) {
		_, err := agg.Aggregate([]*types.Entry{entry(tokenA, accountX, 0)})
		require.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("Nil amount", func(t *testing.T) {
		_, err := agg.Aggregate([]*types.Entry{{Token: tokenA, Account: accountX}})
		require.ErrorIs(t, err, ErrInvalidAmount)
	})
}

// TestAggregateDuplicateReject tests the default duplicate policy
func TestAggregateDuplicateReject(t *testing.T) {
	agg := newTestAggregator(t, DuplicateReject)

	_, err := agg.Aggregate([]*types.Entry{
		entry(tokenA, accountX, 100),
		entry(tokenA, accountX, 200),
	})
	require.ErrorIs(t, err, ErrDuplicateClaim)

	// Same account under a different token is not a duplicate
	record, err := agg.Aggregate([]*types.Entry{
		entry(tokenA, accountX, 100),
		entry(tokenB, accountX, 200),
	})
	require.NoError(t, err)
	require.Len(t, record.Tokens, 2)
}

// TestAggregateDuplicateMerge tests cumulative merging of repeated pairs
func TestAggregateDuplicateMerge(t *testing.T) {
	agg := newTestAggregator(t, DuplicateMerge)

	record, err := agg.Aggregate([]*types.Entry{
		entry(tokenA, accountX, 100),
		entry(tokenA, accountX, 200),
		entry(tokenA, accountY, 50),
	})
	require.NoError(t, err)

	td := record.Tokens[tokenA]
	assert.Equal(t, uint256.NewInt(350), td.TokenTotal)
	require.Len(t, td.Claims, 2)
	assert.Equal(t, uint256.NewInt(300), td.Claims[accountX].Earnings)

	// The merged claim's proof verifies for the merged amount
	claim := td.Claims[accountX]
	proof := make([][32]byte, len(claim.Proof))
	for i, p := range claim.Proof {
		proof[i] = [32]byte(p)
	}
	require.True(t, balancetree.VerifyProof(accountX, tokenA, claim.Earnings, proof, [32]byte(record.MerkleRoot)))
}

// TestAggregateOverflow tests that summation fails instead of wrapping
func TestAggregateOverflow(t *testing.T) {
	agg := newTestAggregator(t, DuplicateReject)

	maxAmount := new(uint256.Int).SetAllOne()
	_, err := agg.Aggregate([]*types.Entry{
		{Token: tokenA, Account: accountX, Amount: maxAmount},
		{Token: tokenA, Account: accountY, Amount: uint256.NewInt(1)},
	})
	require.ErrorIs(t, err, ErrOverflow)
}

// TestAggregateMergeOverflow tests overflow detection while merging
func TestAggregateMergeOverflow(t *testing.T) {
	agg := newTestAggregator(t, DuplicateMerge)

	maxAmount := new(uint256.Int).SetAllOne()
	_, err := agg.Aggregate([]*types.Entry{
		{Token: tokenA, Account: accountX, Amount: maxAmount},
		{Token: tokenA, Account: accountX, Amount: uint256.NewInt(1)},
	})
	require.ErrorIs(t, err, ErrOverflow)
}

// TestAggregateEmpty tests that an empty batch produces no record
func TestAggregateEmpty(t *testing.T) {
	agg := newTestAggregator(t, DuplicateReject)

	record, err := agg.Aggregate(nil)
	require.ErrorIs(t, err, merkle.ErrEmptyLeaves)
	require.Nil(t, record)
}

// TestAggregateDoesNotAliasCallerAmounts tests record immutability against
// later caller mutation of the input entries
func TestAggregateDoesNotAliasCallerAmounts(t *testing.T) {
	agg := newTestAggregator(t, DuplicateReject)

	e := entry(tokenA, accountX, 100)
	record, err := agg.Aggregate([]*types.Entry{e})
	require.NoError(t, err)

	e.Amount.SetUint64(999999)
	assert.Equal(t, uint256.NewInt(100), record.Tokens[tokenA].Claims[accountX].Earnings)
	assert.Equal(t, uint256.NewInt(100), record.Tokens[tokenA].TokenTotal)
}

// TestRecordRoundTrip tests that a record survives JSON round-tripping with
// proofs still verifying
func TestRecordRoundTrip(t *testing.T) {
	agg := newTestAggregator(t, DuplicateReject)

	record, err := agg.Aggregate([]*types.Entry{
		entry(tokenA, accountX, 200),
		entry(tokenA, accountY, 300),
		entry(tokenB, accountZ, 250),
	})
	require.NoError(t, err)

	data, err := MarshalRecord(record)
	require.NoError(t, err)

	decoded, err := UnmarshalRecord(data)
	require.NoError(t, err)

	assert.Equal(t, record.MerkleRoot, decoded.MerkleRoot)
	require.Len(t, decoded.Tokens, 2)

	claim := decoded.Tokens[tokenA].Claims[accountY]
	require.NotNil(t, claim)
	assert.Equal(t, uint256.NewInt(300), claim.Earnings)

	proof := make([][32]byte, len(claim.Proof))
	for i, p := range claim.Proof {
		proof[i] = [32]byte(p)
	}
	require.True(t, balancetree.VerifyProof(accountY, tokenA, claim.Earnings, proof, [32]byte(decoded.MerkleRoot)))
}

// TestUnmarshalRecordInvalid tests malformed record data
func TestUnmarshalRecordInvalid(t *testing.T) {
	t.Run("Empty data", func(t *testing.T) {
		_, err := UnmarshalRecord(nil)
		require.Error(t, err)
	})

	t.Run("Not JSON", func(t *testing.T) {
		_, err := UnmarshalRecord([]byte("not json"))
		require.Error(t, err)
	})
}

// TestEntriesRoundTrip tests entry batch serialization, including decimal
// amount input
func TestEntriesRoundTrip(t *testing.T) {
	entries := []*types.Entry{
		entry(tokenA, accountX, 200),
		entry(tokenB, accountY, 42),
	}

	data, err := MarshalEntries(entries)
	require.NoError(t, err)

	decoded, err := UnmarshalEntries(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, entries[0].Amount, decoded[0].Amount)
	assert.Equal(t, entries[1].Account, decoded[1].Account)

	// Decimal amounts are accepted on input
	decimal := []byte(`[{"token":"0x00000000000000000000000000000000000000aa","account":"0x1000000000000000000000000000000000000001","amount":"12345"}]`)
	decoded, err = UnmarshalEntries(decimal)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, uint256.NewInt(12345), decoded[0].Amount)
}
