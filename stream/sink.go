package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrSinkClosed is returned when emitting to a closed sink.
var ErrSinkClosed = errors.New("sink closed")

// Sink receives snapshot notifications. A stage declares exactly one.
type Sink interface {
	// Emit sends n downstream.
	Emit(ctx context.Context, n SnapshotNotification) error
	// Close closes the sink.
	Close() error
}

// ChannelSink delivers notifications on a buffered channel.
type ChannelSink struct {
	mu     sync.Mutex
	ch     chan SnapshotNotification
	closed bool
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{
		ch: make(chan SnapshotNotification, buffer),
	}
}

// Emit blocks until n is buffered or ctx is done.
func (s *ChannelSink) Emit(ctx context.Context, n SnapshotNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C returns the channel notifications are delivered on.
func (s *ChannelSink) C() <-chan SnapshotNotification {
	return s.ch
}

// Close closes the delivery channel.
func (s *ChannelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// PrintSink is a simple sink that prints notifications to a writer.
type PrintSink struct {
	w io.Writer
}

// NewPrintSink creates a new PrintSink.
func NewPrintSink(w io.Writer) *PrintSink {
	return &PrintSink{w: w}
}

// Emit writes one line per notification.
func (s *PrintSink) Emit(ctx context.Context, n SnapshotNotification) error {
	_, err := fmt.Fprintf(s.w, "snapshot: %d\n", n.ID)
	return err
}

// Close closes the sink.
func (s *PrintSink) Close() error {
	return nil
}
