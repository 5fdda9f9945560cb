// Package sequence classifies incoming sequence numbers against the last
// accepted one.
package sequence

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/tarungka/rewind/stream"
)

// Classification is the outcome of observing a sequence number.
type Classification int

const (
	// Fresh values extend the accepted run by exactly one.
	Fresh Classification = iota
	// Duplicate values are at or below the last accepted value.
	Duplicate
	// OutOfOrder values skip ahead of the next expected value.
	OutOfOrder
)

func (c Classification) String() string {
	switch c {
	case Fresh:
		return "fresh"
	case Duplicate:
		return "duplicate"
	case OutOfOrder:
		return "out-of-order"
	default:
		return "unknown"
	}
}

// Accepted reports whether the value advanced the tracker.
func (c Classification) Accepted() bool {
	return c == Fresh
}

// Tracker remembers the last accepted sequence number. It is not safe for
// concurrent use; the owning stage serializes access.
type Tracker struct {
	last   stream.SequenceNumber
	set    bool
	logger zerolog.Logger
}

// New returns a Tracker with no accepted value.
func New(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger: logger.With().Str("component", "sequence").Logger(),
	}
}

// Observe classifies seq. The first value ever observed is always Fresh.
// Rejected values never move the tracker.
func (t *Tracker) Observe(seq stream.SequenceNumber) Classification {
	var c Classification
	switch {
	case !t.set:
		c = Fresh
	case t.last != math.MaxUint64 && seq == t.last+1:
		c = Fresh
	case seq <= t.last:
		c = Duplicate
	default:
		c = OutOfOrder
	}

	if c == Fresh {
		t.last = seq
		t.set = true
		t.logger.Debug().Uint64("seq", uint64(seq)).Msg("received")
		return c
	}

	t.logger.Warn().
		Uint64("seq", uint64(seq)).
		Uint64("last_accepted", uint64(t.last)).
		Str("classification", c.String()).
		Msg("received duplicate or out-of-order message")
	return c
}

// Last returns the last accepted value, false if none.
func (t *Tracker) Last() (stream.SequenceNumber, bool) {
	return t.last, t.set
}

// Next returns the next expected value, false if nothing was accepted yet
// or the last accepted value is the largest sequence number.
func (t *Tracker) Next() (stream.SequenceNumber, bool) {
	if !t.set || t.last == math.MaxUint64 {
		return 0, false
	}
	return t.last + 1, true
}

// SetLast forces the last accepted value, e.g. after a restore.
func (t *Tracker) SetLast(seq stream.SequenceNumber) {
	t.last = seq
	t.set = true
}

// Reset forgets the last accepted value.
func (t *Tracker) Reset() {
	t.last = 0
	t.set = false
}
