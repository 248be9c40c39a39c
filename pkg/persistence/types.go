package persistence

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ClaimedRecord is one (account, token) pair's cumulative claimed amount,
// as reported by ListClaims.
type ClaimedRecord struct {
	Account common.Address `json:"account"`
	Token   common.Address `json:"token"`
	Claimed *uint256.Int   `json:"claimed"`
}

// SortClaimedRecords orders records by (account, token) bytewise, in place.
// Gives ListClaims implementations one shared, deterministic ordering.
func SortClaimedRecords(records []*ClaimedRecord) {
	sort.Slice(records, func(i, j int) bool {
		if c := bytes.Compare(records[i].Account.Bytes(), records[j].Account.Bytes()); c != 0 {
			return c < 0
		}
		return bytes.Compare(records[i].Token.Bytes(), records[j].Token.Bytes()) < 0
	})
}
