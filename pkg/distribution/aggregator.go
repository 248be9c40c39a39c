// Package distribution turns raw entitlement entries into the publishable
// distribution record: one merkle root committing to every token's claims,
// plus per-token totals and per-entry inclusion proofs.
package distribution

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/Layr-Labs/merkle-distributor-go/pkg/balancetree"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/types"
)

var (
	// ErrInvalidAmount is returned when an entry's amount is nil or zero.
	ErrInvalidAmount = errors.New("entry amount must be positive")

	// ErrDuplicateClaim is returned when the same (token, account) pair
	// appears twice and the aggregator is configured to reject duplicates.
	ErrDuplicateClaim = errors.New("duplicate (token, account) entry")

	// ErrOverflow is returned when an amount sum exceeds 256 bits.
	ErrOverflow = errors.New("amount sum overflows 256 bits")
)

// DuplicatePolicy controls how the aggregator treats repeated
// (token, account) pairs in one batch.
type DuplicatePolicy int

const (
	// DuplicateReject fails aggregation on a repeated pair.
	DuplicateReject DuplicatePolicy = iota

	// DuplicateMerge sums the amounts of repeated pairs into one entry.
	DuplicateMerge
)

// Aggregator builds distribution records from entry batches.
type Aggregator struct {
	policy DuplicatePolicy
	logger *zap.Logger
}

// NewAggregator creates an aggregator with the given duplicate policy.
func NewAggregator(policy DuplicatePolicy, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		policy: policy,
		logger: logger,
	}
}

type claimKey struct {
	token   common.Address
	account common.Address
}

// Aggregate validates the entries, builds one balance tree over the union of
// all tokens' entries, and assembles the distribution record: per-token
// checked totals and per-account claims with proofs. Any validation or
// construction failure surfaces immediately with no partial record.
func (a *Aggregator) Aggregate(entries []*types.Entry) (*types.DistributionRecord, error) {
	deduped, err := a.resolveDuplicates(entries)
	if err != nil {
		return nil, err
	}

	tree, err := balancetree.NewBalanceTree(deduped)
	if err != nil {
		return nil, err
	}

	tokens := make(map[common.Address]*types.TokenDistribution)
	for _, entry := range deduped {
		td, exists := tokens[entry.Token]
		if !exists {
			td = &types.TokenDistribution{
				TokenTotal: uint256.NewInt(0),
				Claims:     make(map[common.Address]*types.Claim),
			}
			tokens[entry.Token] = td
		}

		if _, overflow := td.TokenTotal.AddOverflow(td.TokenTotal, entry.Amount); overflow {
			return nil, fmt.Errorf("total for token %s: %w", entry.Token.Hex(), ErrOverflow)
		}

		proof, err := tree.Proof(entry.Account, entry.Token, entry.Amount)
		if err != nil {
			return nil, fmt.Errorf("proof for account %s token %s: %w", entry.Account.Hex(), entry.Token.Hex(), err)
		}

		proofHashes := make([]common.Hash, len(proof))
		for i, p := range proof {
			proofHashes[i] = common.Hash(p)
		}

		td.Claims[entry.Account] = &types.Claim{
			Earnings: new(uint256.Int).Set(entry.Amount),
			Proof:    proofHashes,
		}
	}

	a.logger.Sugar().Infow("Built distribution record",
		"entries", len(deduped),
		"tokens", len(tokens),
		"root", common.Hash(tree.Root()).Hex(),
	)

	return &types.DistributionRecord{
		MerkleRoot: common.Hash(tree.Root()),
		Tokens:     tokens,
	}, nil
}

// resolveDuplicates validates per-entry amounts and applies the duplicate
// policy, returning a batch with one entry per (token, account) pair. Entry
// amounts are copied so the returned batch is independent of caller data.
func (a *Aggregator) resolveDuplicates(entries []*types.Entry) ([]*types.Entry, error) {
	deduped := make([]*types.Entry, 0, len(entries))
	indexByKey := make(map[claimKey]int, len(entries))

	for _, entry := range entries {
		if entry.Amount == nil || entry.Amount.IsZero() {
			return nil, fmt.Errorf("account %s token %s: %w", entry.Account.Hex(), entry.Token.Hex(), ErrInvalidAmount)
		}

		key := claimKey{token: entry.Token, account: entry.Account}
		if i, dup := indexByKey[key]; dup {
			if a.policy == DuplicateReject {
				return nil, fmt.Errorf("account %s token %s: %w", entry.Account.Hex(), entry.Token.Hex(), ErrDuplicateClaim)
			}

			merged := deduped[i].Amount
			if _, overflow := merged.AddOverflow(merged, entry.Amount); overflow {
				return nil, fmt.Errorf("merged amount for account %s token %s: %w", entry.Account.Hex(), entry.Token.Hex(), ErrOverflow)
			}
			continue
		}

		indexByKey[key] = len(deduped)
		deduped = append(deduped, &types.Entry{
			Token:   entry.Token,
			Account: entry.Account,
			Amount:  new(uint256.Int).Set(entry.Amount),
		})
	}

	return deduped, nil
}
