package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/merkle-distributor-go/pkg/balancetree"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/config"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/distribution"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/logger"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/persistence/badger"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/persistence/memory"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/persistence/redis"
	"github.com/Layr-Labs/merkle-distributor-go/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "distributor",
		Usage: "Merkle distribution record tooling",
		Description: `Builds and inspects merkle distribution records.

A distribution record commits an arbitrarily large table of
(recipient, token, amount) entitlements to a single 32-byte merkle root.
Recipients later redeem against the published root with the inclusion
proofs embedded in the record.`,
		Version: "1.0.0",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Build a distribution record from an entries JSON file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Path to the entries JSON file",
						EnvVars:  []string{"DISTRIBUTOR_INPUT"},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path for the distribution record JSON (stdout if empty)",
						EnvVars: []string{"DISTRIBUTOR_OUTPUT"},
					},
					&cli.BoolFlag{
						Name:    "merge-duplicates",
						Usage:   "Sum repeated (token, account) entries instead of rejecting the batch",
						EnvVars: []string{"DISTRIBUTOR_MERGE_DUPLICATES"},
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Usage:   "Enable verbose logging",
						EnvVars: []string{config.EnvDistributorVerbose},
					},
				},
				Action: runGenerate,
			},
			{
				Name:  "verify",
				Usage: "Check one claim in a distribution record against its root",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "record",
						Aliases:  []string{"r"},
						Usage:    "Path to the distribution record JSON file",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "account",
						Usage:    "Claiming account address",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Token address",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "amount",
						Usage: "Expected cumulative amount (decimal or 0x-hex); defaults to the record's earnings",
					},
				},
				Action: runVerify,
			},
			{
				Name:  "root",
				Usage: "Print the merkle root of a distribution record",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "record",
						Aliases:  []string{"r"},
						Usage:    "Path to the distribution record JSON file",
						Required: true,
					},
				},
				Action: runRoot,
			},
			{
				Name:  "claims",
				Usage: "List the cumulative claimed counters from the configured store",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "merkle-root",
						Usage:    "Currently published merkle root (0x + 64 hex chars)",
						EnvVars:  []string{config.EnvDistributorMerkleRoot},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "persistence-type",
						Usage:   "Claim store backend: memory, badger, redis",
						EnvVars: []string{config.EnvDistributorPersistenceType},
						Value:   config.PersistenceTypeBadger.String(),
					},
					&cli.StringFlag{
						Name:    "badger-path",
						Usage:   "Badger data directory",
						EnvVars: []string{config.EnvDistributorBadgerPath},
					},
					&cli.StringFlag{
						Name:    "redis-address",
						Usage:   "Redis server address (host:port)",
						EnvVars: []string{config.EnvDistributorRedisAddress},
					},
					&cli.StringFlag{
						Name:    "redis-password",
						Usage:   "Redis password",
						EnvVars: []string{config.EnvDistributorRedisPassword},
					},
					&cli.IntFlag{
						Name:    "redis-db",
						Usage:   "Redis database number (0-15)",
						EnvVars: []string{config.EnvDistributorRedisDB},
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Usage:   "Enable verbose logging",
						EnvVars: []string{config.EnvDistributorVerbose},
					},
				},
				Action: runClaims,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runGenerate(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	data, err := os.ReadFile(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to read entries file: %w", err)
	}

	entries, err := distribution.UnmarshalEntries(data)
	if err != nil {
		return err
	}

	policy := distribution.DuplicateReject
	if c.Bool("merge-duplicates") {
		policy = distribution.DuplicateMerge
	}

	record, err := distribution.NewAggregator(policy, l).Aggregate(entries)
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	out, err := distribution.MarshalRecord(record)
	if err != nil {
		return err
	}

	if path := c.String("output"); path != "" {
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("failed to write record file: %w", err)
		}
		fmt.Printf("Wrote distribution record to %s (root %s)\n", path, record.MerkleRoot.Hex())
		return nil
	}

	fmt.Println(string(out))
	return nil
}

func runVerify(c *cli.Context) error {
	record, err := readRecord(c.String("record"))
	if err != nil {
		return err
	}

	account, err := parseAddress(c.String("account"))
	if err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}
	token, err := parseAddress(c.String("token"))
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	td, exists := record.Tokens[token]
	if !exists {
		return fmt.Errorf("record has no distribution for token %s", token.Hex())
	}
	claim, exists := td.Claims[account]
	if !exists {
		return fmt.Errorf("record has no claim for account %s under token %s", account.Hex(), token.Hex())
	}

	amount := claim.Earnings
	if s := c.String("amount"); s != "" {
		amount, err = parseAmount(s)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
	}

	proof := make([][32]byte, len(claim.Proof))
	for i, p := range claim.Proof {
		proof[i] = [32]byte(p)
	}

	if !balancetree.VerifyProof(account, token, amount, proof, [32]byte(record.MerkleRoot)) {
		return fmt.Errorf("proof does NOT verify for account %s token %s amount %s", account.Hex(), token.Hex(), amount.Dec())
	}

	fmt.Printf("OK: account %s is owed %s of token %s under root %s\n",
		account.Hex(), amount.Dec(), token.Hex(), record.MerkleRoot.Hex())
	return nil
}

func runRoot(c *cli.Context) error {
	record, err := readRecord(c.String("record"))
	if err != nil {
		return err
	}

	fmt.Println(record.MerkleRoot.Hex())
	return nil
}

func runClaims(c *cli.Context) error {
	cfg := &config.DistributorConfig{
		MerkleRoot:      c.String("merkle-root"),
		PersistenceType: config.PersistenceType(c.String("persistence-type")),
		BadgerPath:      c.String("badger-path"),
		RedisAddress:    c.String("redis-address"),
		RedisPassword:   c.String("redis-password"),
		RedisDB:         c.Int("redis-db"),
		Verbose:         c.Bool("verbose"),
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := newClaimStore(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to open claim store: %w", err)
	}
	defer func() { _ = store.Close() }()

	root, err := cfg.ParseMerkleRoot()
	if err != nil {
		return err
	}

	records, err := store.ListClaims()
	if err != nil {
		return fmt.Errorf("failed to list claims: %w", err)
	}

	fmt.Printf("Published root: %s\n", root.Hex())
	fmt.Printf("Claimed counters: %d\n", len(records))
	for _, r := range records {
		fmt.Printf("  account %s token %s claimed %s\n", r.Account.Hex(), r.Token.Hex(), r.Claimed.Dec())
	}
	return nil
}

func newClaimStore(cfg *config.DistributorConfig, l *zap.Logger) (persistence.IClaimStore, error) {
	switch cfg.PersistenceType {
	case config.PersistenceTypeMemory:
		l.Sugar().Warnw("Using in-memory claim store; counters will not survive restarts")
		return memory.NewMemoryClaimStore(), nil
	case config.PersistenceTypeBadger:
		return badger.NewBadgerClaimStore(cfg.BadgerPath, l)
	case config.PersistenceTypeRedis:
		return redis.NewRedisClaimStore(&redis.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.PersistenceType)
	}
}

func readRecord(path string) (*types.DistributionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}
	return distribution.UnmarshalRecord(data)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("not a 20-byte hex address: %s", s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}
