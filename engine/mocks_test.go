package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/rewind/checkpoint"
	"github.com/tarungka/rewind/state"
	"github.com/tarungka/rewind/stream"
)

// MockProgressTracker is a mock implementation of the ProgressTracker interface
type MockProgressTracker struct {
	mock.Mock
}

func (m *MockProgressTracker) ResetProgress(epoch Epoch) error {
	return m.Called(epoch).Error(0)
}

// MockSink is a mock implementation of the stream.Sink interface
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Emit(ctx context.Context, n stream.SnapshotNotification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockSink) Close() error {
	return m.Called().Error(0)
}

// failingBackend is an in-memory backend whose deletes fail with err.
type failingBackend struct {
	*state.InMemoryBackend
	err error
}

func (b *failingBackend) DeleteAbove(key uint64) (int, error) { return 0, b.err }

func (b *failingBackend) DeleteAll() error { return b.err }

// newFailingStage returns a stage whose checkpoint store cannot delete.
func newFailingStage(t *testing.T, cfg Config, progress ProgressTracker, err error) *Stage {
	t.Helper()
	codec, cerr := checkpoint.NewCodec(checkpoint.CompressionNone)
	require.NoError(t, cerr)
	store := checkpoint.NewStore(&failingBackend{InMemoryBackend: state.NewInMemoryBackend(), err: err}, codec, zerolog.Nop())
	t.Cleanup(func() { store.Close() })

	s, serr := NewStage(cfg, store, progress, stream.NewChannelSink(8), zerolog.Nop())
	require.NoError(t, serr)
	return s
}

func testConfig(capacity int) Config {
	cfg := DefaultConfig()
	cfg.StageID = "test"
	cfg.Window.Capacity = capacity
	return cfg
}

func newTestStage(t *testing.T, cfg Config, progress ProgressTracker, sink stream.Sink) *Stage {
	t.Helper()
	store, err := checkpoint.Open(cfg.Store, cfg.StageID, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	s, err := NewStage(cfg, store, progress, sink, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func seqs(vs ...uint64) []stream.SequenceNumber {
	out := make([]stream.SequenceNumber, len(vs))
	for i, v := range vs {
		out[i] = stream.SequenceNumber(v)
	}
	return out
}

func push(s *Stage, vs ...uint64) {
	for _, v := range vs {
		s.HandleData(stream.SequenceNumber(v))
	}
}

func note(id uint64) stream.SnapshotNotification {
	return stream.SnapshotNotification{ID: stream.SequenceNumber(id), NoWatermark: true}
}
