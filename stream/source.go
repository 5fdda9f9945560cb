package stream

import (
	"context"
)

// Source is an interface for data sources.
type Source interface {
	// Open opens the source.
	Open(ctx context.Context) (<-chan Event, error)
	// Close closes the source.
	Close() error
}

// SequenceSource is a simple source that replays a fixed list of sequence
// numbers as data messages, duplicates and gaps included.
type SequenceSource struct {
	values []SequenceNumber
}

// NewSequenceSource creates a source that emits values in order.
func NewSequenceSource(values ...SequenceNumber) *SequenceSource {
	return &SequenceSource{
		values: values,
	}
}

// NewRangeSource creates a source emitting from, from+1, ..., from+count-1.
func NewRangeSource(from SequenceNumber, count int) *SequenceSource {
	values := make([]SequenceNumber, 0, count)
	for i := 0; i < count; i++ {
		values = append(values, from+SequenceNumber(i))
	}
	return NewSequenceSource(values...)
}

// Open opens the source. The returned channel is closed once every value
// has been sent or ctx is done.
func (s *SequenceSource) Open(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		for _, v := range s.values {
			select {
			case out <- DataMessage{Seq: v}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close closes the source.
func (s *SequenceSource) Close() error {
	return nil
}
