package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"os"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// InMemoryPath opens a cache that lives only as long as the process.
const InMemoryPath = ":memory:"

var atomPrefix = []byte("atom:")

type CacheConfig struct {
	// Path is the database directory, or InMemoryPath.
	Path       string
	SyncWrites bool
	Logger     *zap.Logger
}

// CacheStorage keeps atoms in an embedded badger database, one key per
// handle.
type CacheStorage struct {
	db     *badger.DB
	logger *zap.Logger
}

type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.sugar.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.sugar.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.sugar.Debugf(format, args...) }

func OpenCache(cfg CacheConfig) (*CacheStorage, error) {
	if cfg.Path == "" {
		return nil, errors.New("cache path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badger.Options
	if cfg.Path == InMemoryPath {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, errors.Wrapf(err, "create cache directory %s", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{sugar: logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open cache")
	}
	logger.Info("cache opened", zap.String("path", cfg.Path))
	return &CacheStorage{db: db, logger: logger}, nil
}

func (c *CacheStorage) Load(ctx context.Context, table *atomspace.Table) error {
	if c.db == nil {
		return ErrClosed
	}
	var records []atomspace.Record
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: atomPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var r atomspace.Record
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &r) }); err != nil {
				return errors.Wrapf(err, "decode cache entry %x", item.Key())
			}
			if want := atomKey(r.Handle); !bytes.Equal(item.Key(), want) {
				return errors.Newf("cache entry %x holds atom %d", item.Key(), r.Handle)
			}
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "read cache")
	}

	if err := table.Restore(records); err != nil {
		return err
	}
	c.logger.Info("atoms loaded from cache", zap.Int("atoms", len(records)))
	return nil
}

// Store writes a snapshot of table and deletes entries for atoms that no
// longer exist. Nothing is flushed if the table changes meanwhile.
func (c *CacheStorage) Store(ctx context.Context, table *atomspace.Table) error {
	if c.db == nil {
		return ErrClosed
	}
	version := table.Version()
	records := table.Snapshot()

	live := make(map[atomspace.Handle]struct{}, len(records))
	for _, r := range records {
		live[r.Handle] = struct{}{}
	}
	stale, err := c.staleKeys(live)
	if err != nil {
		return err
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return errors.Wrap(err, "delete stale cache entry")
		}
	}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		val, err := json.Marshal(r)
		if err != nil {
			return errors.Wrapf(err, "encode atom %d", r.Handle)
		}
		if err := wb.Set(atomKey(r.Handle), val); err != nil {
			return errors.Wrapf(err, "write atom %d", r.Handle)
		}
	}

	if err := checkVersion(table, version); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return errors.Wrap(err, "flush cache")
	}
	c.logger.Info("atoms stored to cache", zap.Int("atoms", len(records)), zap.Int("deleted", len(stale)))
	return nil
}

func (c *CacheStorage) staleKeys(live map[atomspace.Handle]struct{}) ([][]byte, error) {
	var stale [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: atomPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if len(key) != len(atomPrefix)+8 {
				stale = append(stale, key)
				continue
			}
			h := atomspace.Handle(binary.BigEndian.Uint64(key[len(atomPrefix):]))
			if _, ok := live[h]; !ok {
				stale = append(stale, key)
			}
		}
		return nil
	})
	return stale, errors.Wrap(err, "scan cache")
}

func (c *CacheStorage) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return errors.Wrap(err, "close cache")
}

// atomKey sorts entries in handle order.
func atomKey(h atomspace.Handle) []byte {
	key := make([]byte, len(atomPrefix)+8)
	copy(key, atomPrefix)
	binary.BigEndian.PutUint64(key[len(atomPrefix):], uint64(h))
	return key
}
