package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Environment variable names for distributor configuration
const (
	EnvDistributorMerkleRoot      = "DISTRIBUTOR_MERKLE_ROOT"
	EnvDistributorPersistenceType = "DISTRIBUTOR_PERSISTENCE_TYPE"
	EnvDistributorBadgerPath      = "DISTRIBUTOR_BADGER_PATH"
	EnvDistributorRedisAddress    = "DISTRIBUTOR_REDIS_ADDRESS"
	EnvDistributorRedisPassword   = "DISTRIBUTOR_REDIS_PASSWORD"
	EnvDistributorRedisDB         = "DISTRIBUTOR_REDIS_DB"
	EnvDistributorVerbose         = "DISTRIBUTOR_VERBOSE"
)

// PersistenceType selects the claims-counter store backend.
type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory" // testing only
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// DistributorConfig represents the complete configuration for a distributor
// redemption service.
type DistributorConfig struct {
	// MerkleRoot is the initially published root, 0x + 64 hex chars
	MerkleRoot string `json:"merkle_root"`

	// Claims-counter persistence
	PersistenceType PersistenceType `json:"persistence_type"`
	BadgerPath      string          `json:"badger_path,omitempty"`
	RedisAddress    string          `json:"redis_address,omitempty"`
	RedisPassword   string          `json:"redis_password,omitempty"`
	RedisDB         int             `json:"redis_db,omitempty"`

	// MergeDuplicates sums repeated (token, account) entries during
	// aggregation instead of rejecting the batch
	MergeDuplicates bool `json:"merge_duplicates"`

	// Operational settings
	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// Validate validates the distributor configuration
func (c *DistributorConfig) Validate() error {
	if _, err := c.ParseMerkleRoot(); err != nil {
		return err
	}

	switch c.PersistenceType {
	case PersistenceTypeMemory:
		// No further settings
	case PersistenceTypeBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("badger persistence requires a data path")
		}
	case PersistenceTypeRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("redis persistence requires an address")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("redis DB must be between 0-15, got %d", c.RedisDB)
		}
	default:
		return fmt.Errorf("unsupported persistence type: %q (supported: %s, %s, %s)",
			c.PersistenceType, PersistenceTypeMemory, PersistenceTypeBadger, PersistenceTypeRedis)
	}

	return nil
}

// ParseMerkleRoot decodes the configured root into a 32-byte hash.
func (c *DistributorConfig) ParseMerkleRoot() (common.Hash, error) {
	root := c.MerkleRoot
	if root == "" {
		return common.Hash{}, fmt.Errorf("merkle root cannot be empty")
	}
	if !strings.HasPrefix(root, "0x") {
		root = "0x" + root
	}
	if len(root) != 2+2*common.HashLength {
		return common.Hash{}, fmt.Errorf("merkle root must be 32 bytes (64 hex chars), got %d chars", len(root)-2)
	}
	for _, r := range root[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return common.Hash{}, fmt.Errorf("merkle root contains non-hex character %q", r)
		}
	}
	return common.HexToHash(root), nil
}
