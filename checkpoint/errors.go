package checkpoint

import (
	"errors"
	"fmt"

	"github.com/tarungka/rewind/stream"
)

var (
	// ErrAlreadyExists is returned when a checkpoint id is stored twice.
	// This is a protocol violation by the caller, not a recoverable
	// duplicate.
	ErrAlreadyExists = errors.New("checkpoint already exists")

	// ErrNotFound is returned when no checkpoint is stored under an id.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrUnknownBackend is returned for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown checkpoint backend")

	// ErrCorrupted is returned when a stored checkpoint cannot be decoded.
	ErrCorrupted = errors.New("checkpoint corrupted")
)

// DuplicateIDError reports which id was checkpointed twice.
type DuplicateIDError struct {
	ID stream.SequenceNumber
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("checkpoint %d: %v", e.ID, ErrAlreadyExists)
}

func (e *DuplicateIDError) Unwrap() error {
	return ErrAlreadyExists
}
