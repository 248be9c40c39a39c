package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Entry is one (token, account, amount) entitlement supplied to the
// aggregator. Addresses are canonical 20-byte values; Amount is a 256-bit
// unsigned integer and must be positive. Amounts unmarshal from both decimal
// and hex strings and marshal as 0x-prefixed hex.
type Entry struct {
	Token   common.Address `json:"token"`
	Account common.Address `json:"account"`
	Amount  *uint256.Int   `json:"amount"`
}

// Claim is one account's entitlement for a token together with the
// inclusion proof that redeems it against the record's merkle root.
type Claim struct {
	Earnings *uint256.Int  `json:"earnings"`
	Proof    []common.Hash `json:"proof"`
}

// TokenDistribution is the per-token slice of a distribution record: the
// checked sum of all entry amounts for the token and the per-account claims.
type TokenDistribution struct {
	TokenTotal *uint256.Int              `json:"tokenTotal"`
	Claims     map[common.Address]*Claim `json:"claims"`
}

// DistributionRecord is the portable, publishable artifact committing to an
// entire distribution. A single root covers every token; the record is the
// sole input needed to answer "is account X owed Y of token Z" and to
// produce the proof for claiming it. Immutable after construction.
type DistributionRecord struct {
	MerkleRoot common.Hash                           `json:"merkleRoot"`
	Tokens     map[common.Address]*TokenDistribution `json:"tokens"`
}
