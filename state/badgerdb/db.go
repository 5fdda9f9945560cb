// Package badgerdb stores checkpoints in a BadgerDB database.
package badgerdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/tarungka/rewind/state"
)

const defaultNamespace = "checkpoints"

// DB is a state.Backend on top of BadgerDB. Every key is stored as
// <2 byte namespace length><namespace><8 byte big-endian id>, so no
// namespace's keys ever fall under another namespace's prefix.
type DB struct {
	open atomic.Bool
	// shared handles are closed by whoever opened them
	shared bool

	dbPath   string
	inMemory bool
	prefix   []byte
	logger   zerolog.Logger

	db *badger.DB
	mu sync.RWMutex
}

// New creates a DB for the given config. Call Open before use.
func New(c *state.Config, logger zerolog.Logger) *DB {
	ns := c.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	return &DB{
		dbPath:   c.Dir,
		inMemory: c.InMemory,
		prefix:   namespacePrefix(ns),
		logger:   logger.With().Str("component", "badgerdb").Str("namespace", ns).Logger(),
	}
}

// NewShared returns an open DB over a badger handle owned by the caller.
// Several namespaces may share one handle; Close leaves the handle open.
func NewShared(bdb *badger.DB, namespace string, logger zerolog.Logger) *DB {
	if namespace == "" {
		namespace = defaultNamespace
	}
	db := &DB{
		shared: true,
		prefix: namespacePrefix(namespace),
		logger: logger.With().Str("component", "badgerdb").Str("namespace", namespace).Logger(),
		db:     bdb,
	}
	db.open.Store(true)
	return db
}

func namespacePrefix(ns string) []byte {
	out := make([]byte, 2, 2+len(ns))
	binary.BigEndian.PutUint16(out, uint16(len(ns)))
	return append(out, ns...)
}

// Open opens a file-based database at the configured directory, or an
// in-memory one when configured so.
func (db *DB) Open() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var opts badger.Options
	if db.inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if db.dbPath == "" {
			return errors.New("badgerdb: directory cannot be empty")
		}
		opts = badger.DefaultOptions(db.dbPath)
	}
	opts = opts.WithLogger(nil)

	bdb, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("badgerdb: open: %w", err)
	}
	db.db = bdb
	db.open.Store(true)
	db.logger.Debug().Str("path", db.dbPath).Bool("in_memory", db.inMemory).Msg("opened database")
	return nil
}

func (db *DB) key(k uint64) []byte {
	out := make([]byte, 0, len(db.prefix)+8)
	out = append(out, db.prefix...)
	return append(out, state.EncodeKey(k)...)
}

func (db *DB) decode(full []byte) uint64 {
	return state.DecodeKey(full[len(db.prefix):])
}

// Insert stores value under key unless the key already exists.
func (db *DB) Insert(key uint64, value []byte) error {
	if !db.open.Load() {
		return state.ErrBackendNotOpen
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	db.logger.Trace().Uint64("key", key).Int("size", len(value)).Msg("inserting")
	err := db.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(db.key(key))
		if err == nil {
			return state.ErrKeyExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(db.key(key), append([]byte(nil), value...))
	})
	if err != nil && !errors.Is(err, state.ErrKeyExists) {
		db.logger.Err(err).Uint64("key", key).Msg("err inserting key")
	}
	return err
}

// Get returns the value for key or state.ErrKeyNotFound.
func (db *DB) Get(key uint64) ([]byte, error) {
	if !db.open.Load() {
		return nil, state.ErrBackendNotOpen
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	var val []byte
	err := db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(db.key(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return state.ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Floor returns the entry with the largest key not greater than key. It
// uses a reverse iterator, which seeks to the largest key <= the target.
func (db *DB) Floor(key uint64) (uint64, []byte, bool, error) {
	if !db.open.Load() {
		return 0, nil, false, state.ErrBackendNotOpen
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	var (
		found uint64
		val   []byte
		ok    bool
	)
	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = db.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(db.key(key))
		if !it.ValidForPrefix(db.prefix) {
			return nil
		}
		item := it.Item()
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		found, val, ok = db.decode(item.KeyCopy(nil)), v, true
		return nil
	})
	if err != nil {
		return 0, nil, false, err
	}
	return found, val, ok, nil
}

// DeleteAbove removes every entry with a key greater than key.
func (db *DB) DeleteAbove(key uint64) (int, error) {
	if !db.open.Load() {
		return 0, state.ErrBackendNotOpen
	}
	if key == ^uint64(0) {
		return 0, nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	var doomed [][]byte
	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = db.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(db.key(key + 1)); it.ValidForPrefix(db.prefix); it.Next() {
			doomed = append(doomed, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	wb := db.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range doomed {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	db.logger.Trace().Uint64("above", key).Int("removed", len(doomed)).Msg("deleted keys")
	return len(doomed), nil
}

// DeleteAll removes every entry in the namespace.
func (db *DB) DeleteAll() error {
	if !db.open.Load() {
		return state.ErrBackendNotOpen
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.db.DropPrefix(db.prefix)
}

// Keys returns every key in ascending order.
func (db *DB) Keys() ([]uint64, error) {
	if !db.open.Load() {
		return nil, state.ErrBackendNotOpen
	}
	db.mu.RLock()
	defer db.mu.RUnlock()

	var keys []uint64
	err := db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = db.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(db.prefix); it.Next() {
			keys = append(keys, db.decode(it.Item().Key()))
		}
		return nil
	})
	return keys, err
}

// Close closes the database. A shared handle is only detached.
func (db *DB) Close() error {
	if !db.open.CompareAndSwap(true, false) {
		return nil
	}
	if db.shared {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.db.Close()
}

var _ state.Backend = (*DB)(nil)
