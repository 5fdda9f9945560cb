// Package checkpoint stores immutable copies of a stage's window keyed by
// snapshot id.
package checkpoint

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/rewind/state"
	"github.com/tarungka/rewind/stream"
)

// Checkpoint is a copy of the window taken when its newest value was ID.
type Checkpoint struct {
	ID        stream.SequenceNumber
	Window    []stream.SequenceNumber
	CreatedAt time.Time
}

// Store maps snapshot ids to checkpoints. Ids are unique; every checkpoint
// returned is a fresh copy, so callers can never alter what is stored.
type Store struct {
	backend state.Backend
	codec   *Codec
	logger  zerolog.Logger
	now     func() time.Time
}

// NewStore creates a Store over backend.
func NewStore(backend state.Backend, c *Codec, logger zerolog.Logger) *Store {
	return &Store{
		backend: backend,
		codec:   c,
		logger:  logger.With().Str("component", "checkpoint").Logger(),
		now:     time.Now,
	}
}

// Put stores a copy of window under id. It fails with a *DuplicateIDError
// if id is already present, leaving the stored entry unchanged.
func (s *Store) Put(id stream.SequenceNumber, window []stream.SequenceNumber) error {
	cp := Checkpoint{
		ID:        id,
		Window:    slices.Clone(window),
		CreatedAt: s.now().UTC(),
	}
	data, err := s.codec.Encode(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint %d: %w", id, err)
	}
	if err := s.backend.Insert(uint64(id), data); err != nil {
		if errors.Is(err, state.ErrKeyExists) {
			return &DuplicateIDError{ID: id}
		}
		return fmt.Errorf("store checkpoint %d: %w", id, err)
	}
	s.logger.Debug().Uint64("id", uint64(id)).Int("size", len(window)).Int("bytes", len(data)).Msg("stored checkpoint")
	return nil
}

// Get returns the checkpoint stored under id or ErrNotFound.
func (s *Store) Get(id stream.SequenceNumber) (Checkpoint, error) {
	data, err := s.backend.Get(uint64(id))
	if errors.Is(err, state.ErrKeyNotFound) {
		return Checkpoint{}, fmt.Errorf("checkpoint %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Checkpoint{}, err
	}
	return s.codec.Decode(data)
}

// Floor returns the checkpoint with the largest id not greater than target.
// ok is false when every stored id is greater than target.
func (s *Store) Floor(target stream.SequenceNumber) (Checkpoint, bool, error) {
	found, data, ok, err := s.backend.Floor(uint64(target))
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("floor query %d: %w", target, err)
	}
	if !ok {
		return Checkpoint{}, false, nil
	}
	cp, err := s.codec.Decode(data)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("checkpoint %d: %w", found, err)
	}
	return cp, true, nil
}

// PruneAbove removes every checkpoint whose id is greater than bound and
// returns how many were removed.
func (s *Store) PruneAbove(bound stream.SequenceNumber) (int, error) {
	n, err := s.backend.DeleteAbove(uint64(bound))
	if err != nil {
		return 0, fmt.Errorf("prune above %d: %w", bound, err)
	}
	if n > 0 {
		s.logger.Debug().Uint64("bound", uint64(bound)).Int("pruned", n).Msg("pruned checkpoints")
	}
	return n, nil
}

// Clear removes every checkpoint.
func (s *Store) Clear() error {
	if err := s.backend.DeleteAll(); err != nil {
		return fmt.Errorf("clear checkpoints: %w", err)
	}
	return nil
}

// IDs returns the stored ids in ascending order.
func (s *Store) IDs() ([]stream.SequenceNumber, error) {
	keys, err := s.backend.Keys()
	if err != nil {
		return nil, err
	}
	ids := make([]stream.SequenceNumber, len(keys))
	for i, k := range keys {
		ids[i] = stream.SequenceNumber(k)
	}
	return ids, nil
}

// Len returns the number of stored checkpoints.
func (s *Store) Len() (int, error) {
	keys, err := s.backend.Keys()
	return len(keys), err
}

// Close closes the underlying backend and releases the codec.
func (s *Store) Close() error {
	return errors.Join(s.backend.Close(), s.codec.Close())
}
