package distribution

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/merkle-distributor-go/pkg/types"
)

// MarshalRecord serializes a DistributionRecord to JSON bytes. Addresses,
// the root, proofs, and amounts all serialize as 0x-prefixed hex, which
// makes the record self-describing for independent verifiers.
func MarshalRecord(record *types.DistributionRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil DistributionRecord")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal DistributionRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalRecord deserializes a DistributionRecord from JSON bytes.
// Amounts are accepted in both decimal and hex string form.
func UnmarshalRecord(data []byte) (*types.DistributionRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record types.DistributionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to DistributionRecord: %w", err)
	}

	for token, td := range record.Tokens {
		if td == nil || td.TokenTotal == nil {
			return nil, fmt.Errorf("token %s is missing its total", token.Hex())
		}
		for account, claim := range td.Claims {
			if claim == nil || claim.Earnings == nil {
				return nil, fmt.Errorf("claim for account %s token %s is missing earnings", account.Hex(), token.Hex())
			}
		}
	}

	return &record, nil
}

// MarshalEntries serializes an entry batch to JSON bytes.
func MarshalEntries(entries []*types.Entry) ([]byte, error) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entries to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalEntries deserializes an entry batch from JSON bytes.
func UnmarshalEntries(data []byte) ([]*types.Entry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var entries []*types.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to entries: %w", err)
	}

	return entries, nil
}
