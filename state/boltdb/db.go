// Package boltdb stores checkpoints in a bbolt database file, one bucket
// per namespace.
package boltdb

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/rewind/state"
	bolt "go.etcd.io/bbolt"
)

const (
	dbFileName       = "checkpoints.db"
	defaultNamespace = "checkpoints"
	openTimeout      = time.Second
)

// DB is a state.Backend on top of bbolt.
type DB struct {
	open atomic.Bool
	// shared handles are closed by whoever opened them
	shared bool

	path   string
	bucket []byte
	logger zerolog.Logger

	db *bolt.DB
}

// New creates a DB for the given config. Call Open before use.
func New(c *state.Config, logger zerolog.Logger) *DB {
	ns := c.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	return &DB{
		path:   filepath.Join(c.Dir, dbFileName),
		bucket: []byte(ns),
		logger: logger.With().Str("component", "boltdb").Str("namespace", ns).Logger(),
	}
}

// NewShared returns an open DB over a bbolt handle owned by the caller,
// creating the namespace bucket. Close leaves the handle open.
func NewShared(bdb *bolt.DB, namespace string, logger zerolog.Logger) (*DB, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	db := &DB{
		shared: true,
		path:   bdb.Path(),
		bucket: []byte(namespace),
		logger: logger.With().Str("component", "boltdb").Str("namespace", namespace).Logger(),
		db:     bdb,
	}
	err := bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(db.bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("boltdb: create bucket: %w", err)
	}
	db.open.Store(true)
	return db, nil
}

// Open opens (creating if needed) the database file and the namespace bucket.
func (db *DB) Open() error {
	if err := os.MkdirAll(filepath.Dir(db.path), 0755); err != nil {
		return fmt.Errorf("boltdb: create directory: %w", err)
	}
	bdb, err := bolt.Open(db.path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return fmt.Errorf("boltdb: open %s: %w", db.path, err)
	}
	err = bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(db.bucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return fmt.Errorf("boltdb: create bucket: %w", err)
	}
	db.db = bdb
	db.open.Store(true)
	db.logger.Debug().Str("path", db.path).Msg("opened database")
	return nil
}

// Insert stores value under key unless the key already exists.
func (db *DB) Insert(key uint64, value []byte) error {
	if !db.open.Load() {
		return state.ErrBackendNotOpen
	}
	return db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(db.bucket)
		k := state.EncodeKey(key)
		if b.Get(k) != nil {
			return state.ErrKeyExists
		}
		return b.Put(k, append([]byte(nil), value...))
	})
}

// Get returns the value for key or state.ErrKeyNotFound.
func (db *DB) Get(key uint64) ([]byte, error) {
	if !db.open.Load() {
		return nil, state.ErrBackendNotOpen
	}
	var val []byte
	err := db.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(db.bucket).Get(state.EncodeKey(key))
		if v == nil {
			return state.ErrKeyNotFound
		}
		// values are only valid for the life of the transaction
		val = append([]byte(nil), v...)
		return nil
	})
	return val, err
}

// Floor returns the entry with the largest key not greater than key.
func (db *DB) Floor(key uint64) (uint64, []byte, bool, error) {
	if !db.open.Load() {
		return 0, nil, false, state.ErrBackendNotOpen
	}
	var (
		found uint64
		val   []byte
		ok    bool
	)
	err := db.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(db.bucket).Cursor()
		target := state.EncodeKey(key)

		k, v := c.Seek(target)
		switch {
		case k == nil:
			// every key is below the target
			k, v = c.Last()
		case !bytes.Equal(k, target):
			k, v = c.Prev()
		}
		if k == nil {
			return nil
		}
		found, val, ok = state.DecodeKey(k), append([]byte(nil), v...), true
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
	var n int
	err := db.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(db.bucket)
		var doomed [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(state.EncodeKey(key + 1)); k != nil; k, _ = c.Next() {
			doomed = append(doomed, append([]byte(nil), k...))
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(doomed)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteAll drops and recreates the namespace bucket.
func (db *DB) DeleteAll() error {
	if !db.open.Load() {
		return state.ErrBackendNotOpen
	}
	return db.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(db.bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(db.bucket)
		return err
	})
}

// Keys returns every key in ascending order.
func (db *DB) Keys() ([]uint64, error) {
	if !db.open.Load() {
		return nil, state.ErrBackendNotOpen
	}
	var keys []uint64
	err := db.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(db.bucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, state.DecodeKey(k))
			return nil
		})
	})
	return keys, err
}

// Close closes the database file. A shared handle is only detached.
func (db *DB) Close() error {
	if !db.open.CompareAndSwap(true, false) {
		return nil
	}
	if db.shared {
		return nil
	}
	return db.db.Close()
}

var _ state.Backend = (*DB)(nil)
