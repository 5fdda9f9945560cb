// Package window holds the bounded, ordered buffer of recently observed
// sequence numbers.
package window

import (
	"errors"
	"fmt"

	"github.com/tarungka/rewind/stream"
)

// ErrInvalidCapacity is returned for a window capacity below one.
var ErrInvalidCapacity = errors.New("window capacity must be positive")

// Window is a fixed-capacity FIFO of sequence numbers, oldest first. It is
// not safe for concurrent use.
type Window struct {
	capacity int
	// ring storage; head is the index of the oldest element
	buf  []stream.SequenceNumber
	head int
	size int
}

// New creates an empty window holding at most capacity values.
func New(capacity int) (*Window, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Window{
		capacity: capacity,
		buf:      make([]stream.SequenceNumber, capacity),
	}, nil
}

// Push appends seq, evicting the oldest value first when full.
func (w *Window) Push(seq stream.SequenceNumber) {
	if w.size == w.capacity {
		w.buf[w.head] = seq
		w.head = (w.head + 1) % w.capacity
		return
	}
	w.buf[(w.head+w.size)%w.capacity] = seq
	w.size++
}

// Latest returns the most recently pushed value, false on an empty window.
func (w *Window) Latest() (stream.SequenceNumber, bool) {
	if w.size == 0 {
		return 0, false
	}
	return w.buf[(w.head+w.size-1)%w.capacity], true
}

// Snapshot returns a copy of the contents, oldest first. The copy never
// aliases the window.
func (w *Window) Snapshot() []stream.SequenceNumber {
	out := make([]stream.SequenceNumber, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.head+i)%w.capacity]
	}
	return out
}

// Restore replaces the contents wholesale. Only the newest capacity values
// of contents are kept.
func (w *Window) Restore(contents []stream.SequenceNumber) {
	if len(contents) > w.capacity {
		contents = contents[len(contents)-w.capacity:]
	}
	w.head = 0
	w.size = copy(w.buf, contents)
}

// Clear empties the window.
func (w *Window) Clear() {
	w.head = 0
	w.size = 0
}

// Len returns the number of values held.
func (w *Window) Len() int { return w.size }

// Cap returns the capacity.
func (w *Window) Cap() int { return w.capacity }
