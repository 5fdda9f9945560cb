package state

import "errors"

var (
	// ErrKeyExists is returned when inserting a key that is already stored.
	ErrKeyExists = errors.New("key already exists")

	// ErrKeyNotFound is returned when a key is not stored.
	ErrKeyNotFound = errors.New("key not found")

	// ErrBackendNotOpen is returned when a backend is used before Open or
	// after Close.
	ErrBackendNotOpen = errors.New("backend not open")
)
