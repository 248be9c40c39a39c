package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/merkle-distributor-go/pkg/persistence"
)

// Key prefixes for namespacing
const (
	keyPrefixClaim       = "claim:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// Ensure BadgerClaimStore implements IClaimStore
var _ persistence.IClaimStore = (*BadgerClaimStore)(nil)

// BadgerClaimStore is a production-ready claim store implementation using
// Badger. Provides durable, disk-based storage with ACID guarantees.
type BadgerClaimStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerClaimStore creates a new Badger-backed claim store.
// The database is opened at the specified path with SyncWrites enabled so a
// counter update is durable before the transfer that depends on it.
// A background goroutine is started for garbage collection.
func NewBadgerClaimStore(dataPath string, logger *zap.Logger) (*BadgerClaimStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve absolute path")
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true // Durability: fsync on every counter update
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1 // Only the latest counter value matters

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open badger database at %s", absPath)
	}

	bs := &BadgerClaimStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger claim store initialized", "path", absPath)

	return bs, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerClaimStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			// First time setup - set schema version
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return errors.Wrap(err, "failed to read schema version")
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "failed to read schema version value")
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerClaimStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// claimKey builds the storage key for an (account, token) pair
func claimKey(account common.Address, token common.Address) []byte {
	return []byte(keyPrefixClaim + strings.ToLower(account.Hex()) + ":" + strings.ToLower(token.Hex()))
}

// GetClaimed returns the cumulative claimed amount for (account, token).
func (b *BadgerClaimStore) GetClaimed(account common.Address, token common.Address) (*uint256.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("claim store is closed")
	}

	amount := uint256.NewInt(0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(claimKey(account, token))
		if err == badgerdb.ErrKeyNotFound {
			return nil // Never claimed is not an error
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			amount.SetBytes(val)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to read claimed counter")
	}

	return amount, nil
}

// SetClaimed overwrites the cumulative claimed amount for (account, token).
func (b *BadgerClaimStore) SetClaimed(account common.Address, token common.Address, amount *uint256.Int) error {
	if amount == nil {
		return fmt.Errorf("cannot set nil claimed amount")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("claim store is closed")
	}

	err := b.db.Update(func(txn *badgerdb.Txn) error {
		if amount.IsZero() {
			return txn.Delete(claimKey(account, token))
		}
		value := amount.Bytes32()
		return txn.Set(claimKey(account, token), value[:])
	})
	if err != nil {
		return errors.Wrap(err, "failed to write claimed counter")
	}

	return nil
}

// ListClaims returns all non-zero counters sorted by (account, token).
func (b *BadgerClaimStore) ListClaims() ([]*persistence.ClaimedRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("claim store is closed")
	}

	records := make([]*persistence.ClaimedRecord, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixClaim)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			parts := strings.Split(strings.TrimPrefix(string(item.Key()), keyPrefixClaim), ":")
			if len(parts) != 2 {
				return fmt.Errorf("malformed claim key: %s", item.Key())
			}
			record := &persistence.ClaimedRecord{
				Account: common.HexToAddress(parts[0]),
				Token:   common.HexToAddress(parts[1]),
				Claimed: uint256.NewInt(0),
			}

			err := item.Value(func(val []byte) error {
				record.Claimed.SetBytes(val)
				return nil
			})
			if err != nil {
				return err
			}

			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to iterate claimed counters")
	}

	persistence.SortClaimedRecords(records)
	return records, nil
}

// Close shuts down the store: stops GC and closes the database.
func (b *BadgerClaimStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	b.gcCancel()
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close badger database")
	}

	b.logger.Sugar().Infow("Badger claim store closed")
	return nil
}

// HealthCheck verifies the store is operational.
func (b *BadgerClaimStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("claim store is closed")
	}

	// A cheap read exercises the full read path
	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err != nil && err != badgerdb.ErrKeyNotFound {
			return errors.Wrap(err, "health check read failed")
		}
		return nil
	})
}
