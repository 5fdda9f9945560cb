// Package state defines the ordered key/value backends checkpoints are
// persisted in.
package state

import "encoding/binary"

// Backend is an ordered map from uint64 keys to opaque values. Keys sort
// numerically. Implementations must copy values on the way in and out.
type Backend interface {
	// Insert stores value under key. It returns ErrKeyExists, leaving the
	// stored value untouched, if key is already present.
	Insert(key uint64, value []byte) error
	// Get returns the value stored under key or ErrKeyNotFound.
	Get(key uint64) ([]byte, error)
	// Floor returns the entry with the largest key not greater than key.
	// ok is false when no such entry exists.
	Floor(key uint64) (found uint64, value []byte, ok bool, err error)
	// DeleteAbove removes every entry whose key is greater than key and
	// returns how many were removed.
	DeleteAbove(key uint64) (int, error)
	// DeleteAll removes every entry.
	DeleteAll() error
	// Keys returns all keys in ascending order.
	Keys() ([]uint64, error)
	// Close releases the backend.
	Close() error
}

// Config configures a durable backend.
type Config struct {
	// Dir is the directory the database lives in.
	Dir string
	// InMemory opens the database without touching disk where supported.
	InMemory bool
	// Namespace scopes the keys so several stages may share one database.
	Namespace string
}

// EncodeKey converts a key to 8 big-endian bytes so byte order matches
// numeric order.
func EncodeKey(k uint64) []byte {
	buf := make([]byte, 8) // 8*8 = 64
	binary.BigEndian.PutUint64(buf, k)
	return buf
}

// DecodeKey reverses EncodeKey.
func DecodeKey(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
