package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/rewind/checkpoint"
	"github.com/tarungka/rewind/internal/sequence"
	"github.com/tarungka/rewind/stream"
)

func TestNewStage_Invalid(t *testing.T) {
	store, err := checkpoint.Open(checkpoint.StoreConfig{}, "x", zerolog.Nop())
	require.NoError(t, err)

	cfg := testConfig(0)
	_, err = NewStage(cfg, store, NewWatermark(), stream.NewChannelSink(1), zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStage(testConfig(3), nil, NewWatermark(), stream.NewChannelSink(1), zerolog.Nop())
	assert.Error(t, err)
}

func TestStage_WindowKeepsNewest(t *testing.T) {
	s := newTestStage(t, testConfig(3), NewWatermark(), stream.NewChannelSink(1))
	push(s, 1, 2, 3, 4, 5)

	st, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, seqs(3, 4, 5), st.Window)
	require.NotNil(t, st.NextExpected)
	assert.Equal(t, stream.SequenceNumber(6), *st.NextExpected)
}

func TestStage_HandleData(t *testing.T) {
	tests := []struct {
		name    string
		policy  DuplicatePolicy
		input   []uint64
		window  []stream.SequenceNumber
		classes []sequence.Classification
	}{
		{
			name:    "append all keeps raw history",
			policy:  AppendAll,
			input:   []uint64{1, 2, 3, 2, 4},
			window:  seqs(1, 2, 3, 2, 4),
			classes: []sequence.Classification{sequence.Fresh, sequence.Fresh, sequence.Fresh, sequence.Duplicate, sequence.Fresh},
		},
		{
			name:    "skip rejected drops duplicates",
			policy:  SkipRejected,
			input:   []uint64{1, 2, 3, 2, 4},
			window:  seqs(1, 2, 3, 4),
			classes: []sequence.Classification{sequence.Fresh, sequence.Fresh, sequence.Fresh, sequence.Duplicate, sequence.Fresh},
		},
		{
			name:    "skip rejected drops gaps",
			policy:  SkipRejected,
			input:   []uint64{1, 2, 5, 3},
			window:  seqs(1, 2, 3),
			classes: []sequence.Classification{sequence.Fresh, sequence.Fresh, sequence.OutOfOrder, sequence.Fresh},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(10)
			cfg.Window.DuplicatePolicy = tt.policy
			s := newTestStage(t, cfg, NewWatermark(), stream.NewChannelSink(1))

			var got []sequence.Classification
			for _, v := range tt.input {
				res := s.HandleData(stream.SequenceNumber(v))
				assert.Equal(t, res.Classification.Accepted() || tt.policy == AppendAll, res.Applied)
				got = append(got, res.Classification)
			}
			assert.Equal(t, tt.classes, got)

			st, err := s.Status()
			require.NoError(t, err)
			assert.Equal(t, tt.window, st.Window)
		})
	}
}

func TestStage_DuplicateDoesNotMoveTracker(t *testing.T) {
	s := newTestStage(t, testConfig(10), NewWatermark(), stream.NewChannelSink(1))
	push(s, 1, 2, 3, 2)

	st, err := s.Status()
	require.NoError(t, err)
	require.NotNil(t, st.LastAccepted)
	assert.Equal(t, stream.SequenceNumber(3), *st.LastAccepted)
	assert.Equal(t, uint64(1), st.Metrics.Duplicate)
	assert.Equal(t, uint64(3), st.Metrics.Fresh)
}

func TestStage_Checkpoint(t *testing.T) {
	sink := new(MockSink)
	sink.On("Emit", mock.Anything, note(3)).Return(nil).Once()

	s := newTestStage(t, testConfig(3), NewWatermark(), sink)
	push(s, 1, 2, 3)

	id, ok, err := s.Checkpoint(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, stream.SequenceNumber(3), id)

	cp, err := s.store.Get(3)
	require.NoError(t, err)
	assert.Equal(t, seqs(1, 2, 3), cp.Window)
	sink.AssertExpectations(t)
}

func TestStage_CheckpointTwice(t *testing.T) {
	sink := new(MockSink)
	sink.On("Emit", mock.Anything, note(2)).Return(nil).Once()

	s := newTestStage(t, testConfig(3), NewWatermark(), sink)
	push(s, 1, 2)
	_, _, err := s.Checkpoint(context.Background())
	require.NoError(t, err)

	// a duplicate value under append_all makes the window differ while the
	// newest id stays the same
	push(s, 2)
	_, _, err = s.Checkpoint(context.Background())
	assert.ErrorIs(t, err, checkpoint.ErrAlreadyExists)
	var dup *checkpoint.DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, stream.SequenceNumber(2), dup.ID)

	cp, err := s.store.Get(2)
	require.NoError(t, err)
	assert.Equal(t, seqs(1, 2), cp.Window)
	assert.Equal(t, uint64(1), s.Metrics().Stats().CheckpointFailures)
	sink.AssertExpectations(t)
}

func TestStage_CheckpointEmptyWindow(t *testing.T) {
	sink := new(MockSink)
	s := newTestStage(t, testConfig(3), NewWatermark(), sink)

	_, ok, err := s.Checkpoint(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := s.store.IDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, uint64(1), s.Metrics().Stats().EmptyCheckpoints)
	sink.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
}

func TestStage_CheckpointDisabled(t *testing.T) {
	cfg := testConfig(3)
	cfg.Checkpoint.Enabled = false
	s := newTestStage(t, cfg, NewWatermark(), new(MockSink))
	push(s, 1)

	_, _, err := s.Checkpoint(context.Background())
	assert.ErrorIs(t, err, ErrCheckpointingDisabled)
}

func TestStage_CheckpointNotifyFailed(t *testing.T) {
	sink := new(MockSink)
	sink.On("Emit", mock.Anything, note(1)).Return(errors.New("broker down"))

	s := newTestStage(t, testConfig(3), NewWatermark(), sink)
	push(s, 1)

	id, ok, err := s.Checkpoint(context.Background())
	assert.ErrorIs(t, err, ErrNotifyFailed)
	assert.True(t, ok)
	assert.Equal(t, stream.SequenceNumber(1), id)

	_, err = s.store.Get(1)
	assert.NoError(t, err, "checkpoint must stay stored")
}

func TestStage_Scenario(t *testing.T) {
	sink := new(MockSink)
	sink.On("Emit", mock.Anything, note(5)).Return(nil).Once()
	progress := new(MockProgressTracker)
	progress.On("ResetProgress", Epoch(5)).Return(nil).Once()

	s := newTestStage(t, testConfig(3), progress, sink)
	ctx := context.Background()

	push(s, 1, 2, 3, 4, 5)
	id, ok, err := s.Checkpoint(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stream.SequenceNumber(5), id)

	push(s, 6, 7)
	st, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, seqs(5, 6, 7), st.Window)

	res, err := s.Rollback(ctx, stream.RollbackTo(5))
	require.NoError(t, err)
	assert.Equal(t, RestoreResult{Target: 5, RestoredID: 5}, res)

	st, err = s.Status()
	require.NoError(t, err)
	assert.Equal(t, seqs(3, 4, 5), st.Window)
	require.NotNil(t, st.NextExpected)
	assert.Equal(t, stream.SequenceNumber(6), *st.NextExpected)
	assert.Equal(t, Epoch(5), st.Epoch)
	assert.Equal(t, PhaseNormal.String(), st.Phase)

	// 6 is fresh again after the restore
	assert.Equal(t, sequence.Fresh, s.HandleData(6).Classification)

	sink.AssertExpectations(t)
	progress.AssertExpectations(t)
}

func TestStage_RollbackToStart(t *testing.T) {
	progress := new(MockProgressTracker)
	progress.On("ResetProgress", Epoch(0)).Return(nil).Once()
	sink := new(MockSink)
	sink.On("Emit", mock.Anything, mock.Anything).Return(nil)

	s := newTestStage(t, testConfig(3), progress, sink)
	ctx := context.Background()
	push(s, 1, 2)
	_, _, err := s.Checkpoint(ctx)
	require.NoError(t, err)
	push(s, 3)
	_, _, err = s.Checkpoint(ctx)
	require.NoError(t, err)

	res, err := s.Rollback(ctx, stream.RollbackToStart())
	require.NoError(t, err)
	assert.True(t, res.FromStart)
	assert.Equal(t, 2, res.Pruned)

	st, err := s.Status()
	require.NoError(t, err)
	assert.Empty(t, st.Window)
	assert.Empty(t, st.Checkpoints)
	assert.Nil(t, st.LastAccepted)
	assert.Nil(t, st.NextExpected)
	assert.Equal(t, Epoch(0), st.Epoch)

	// anything is fresh after a full reset
	assert.Equal(t, sequence.Fresh, s.HandleData(42).Classification)
	progress.AssertExpectations(t)
}

func TestStage_RollbackTo(t *testing.T) {
	// checkpoints at 2, 4 and 6 over a window of 10
	tests := []struct {
		name     string
		target   uint64
		restored uint64
		window   []stream.SequenceNumber
		left     []stream.SequenceNumber
		pruned   int
	}{
		{"exact match", 4, 4, seqs(1, 2, 3, 4), seqs(2, 4), 1},
		{"between ids", 5, 4, seqs(1, 2, 3, 4), seqs(2, 4), 1},
		{"lowest", 2, 2, seqs(1, 2), seqs(2), 2},
		{"newest", 6, 6, seqs(1, 2, 3, 4, 5, 6), seqs(2, 4, 6), 0},
		{"beyond newest", 100, 6, seqs(1, 2, 3, 4, 5, 6), seqs(2, 4, 6), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWatermark()
			s := newTestStage(t, testConfig(10), w, stream.NewChannelSink(8))
			ctx := context.Background()
			for _, v := range []uint64{2, 4, 6} {
				for next := uint64(1); next <= v; next++ {
					if last, ok := s.tracker.Last(); !ok || uint64(last) < next {
						push(s, next)
					}
				}
				_, _, err := s.Checkpoint(ctx)
				require.NoError(t, err)
			}

			res, err := s.Rollback(ctx, stream.RollbackTo(stream.SequenceNumber(tt.target)))
			require.NoError(t, err)
			assert.Equal(t, stream.SequenceNumber(tt.restored), res.RestoredID)
			assert.Equal(t, tt.pruned, res.Pruned)

			st, err := s.Status()
			require.NoError(t, err)
			assert.Equal(t, tt.window, st.Window)
			assert.Equal(t, tt.left, st.Checkpoints)
			assert.Equal(t, stream.SequenceNumber(tt.restored+1), *st.NextExpected)
			assert.Equal(t, Epoch(tt.restored), w.Epoch())
			for _, id := range st.Checkpoints {
				assert.LessOrEqual(t, uint64(id), tt.restored)
			}
		})
	}
}

func TestStage_RollbackNoCheckpoint(t *testing.T) {
	progress := new(MockProgressTracker)
	s := newTestStage(t, testConfig(3), progress, stream.NewChannelSink(1))
	push(s, 1, 2, 3)
	_, _, err := s.Checkpoint(context.Background())
	require.NoError(t, err)
	push(s, 4)

	_, err = s.Rollback(context.Background(), stream.RollbackTo(2))
	assert.ErrorIs(t, err, ErrNoApplicableCheckpoint)
	var nc *NoCheckpointError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, stream.SequenceNumber(2), nc.Target)

	st, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, seqs(2, 3, 4), st.Window)
	assert.Equal(t, seqs(3), st.Checkpoints)
	assert.Equal(t, stream.SequenceNumber(4), *st.LastAccepted)
	assert.Equal(t, uint64(1), st.Metrics.RollbackFailures)
	progress.AssertNotCalled(t, "ResetProgress", mock.Anything)
}

func TestStage_RollbackProgressRefused(t *testing.T) {
	progress := new(MockProgressTracker)
	progress.On("ResetProgress", Epoch(2)).Return(errors.New("runtime busy"))
	progress.On("ResetProgress", Epoch(0)).Return(errors.New("runtime busy"))

	s := newTestStage(t, testConfig(3), progress, stream.NewChannelSink(1))
	push(s, 1, 2)
	_, _, err := s.Checkpoint(context.Background())
	require.NoError(t, err)
	push(s, 3)

	for _, cmd := range []stream.RollbackCommand{stream.RollbackTo(2), stream.RollbackToStart()} {
		_, err = s.Rollback(context.Background(), cmd)
		assert.ErrorIs(t, err, ErrProgressReset, cmd.String())

		st, err := s.Status()
		require.NoError(t, err)
		assert.Equal(t, seqs(1, 2, 3), st.Window)
		assert.Equal(t, seqs(2), st.Checkpoints)
		assert.Equal(t, stream.SequenceNumber(3), *st.LastAccepted)
	}
}

func TestStage_RollbackStoreFailure(t *testing.T) {
	diskErr := errors.New("disk gone")

	for _, cmd := range []stream.RollbackCommand{stream.RollbackTo(5), stream.RollbackToStart()} {
		t.Run(cmd.String(), func(t *testing.T) {
			w := NewWatermark()
			s := newFailingStage(t, testConfig(3), w, diskErr)
			ctx := context.Background()
			push(s, 1, 2, 3, 4, 5)
			_, _, err := s.Checkpoint(ctx)
			require.NoError(t, err)
			push(s, 6, 7)
			_, _, err = s.Checkpoint(ctx)
			require.NoError(t, err)

			_, err = s.Rollback(ctx, cmd)
			assert.ErrorIs(t, err, diskErr)

			st, err := s.Status()
			require.NoError(t, err)
			assert.Equal(t, seqs(5, 6, 7), st.Window)
			assert.Equal(t, seqs(5, 7), st.Checkpoints)
			assert.Equal(t, stream.SequenceNumber(7), *st.LastAccepted)
			assert.Equal(t, Epoch(0), st.Epoch)
			assert.Equal(t, Epoch(0), w.Epoch())
			assert.Equal(t, uint64(1), st.Metrics.RollbackFailures)
		})
	}
}

func TestStage_RollbackStoreFailureRevertsProgress(t *testing.T) {
	progress := new(MockProgressTracker)
	progress.On("ResetProgress", Epoch(3)).Return(nil).Once()
	progress.On("ResetProgress", Epoch(0)).Return(nil).Once()

	s := newFailingStage(t, testConfig(3), progress, errors.New("disk gone"))
	push(s, 1, 2, 3)
	_, _, err := s.Checkpoint(context.Background())
	require.NoError(t, err)

	_, err = s.Rollback(context.Background(), stream.RollbackTo(3))
	require.Error(t, err)
	progress.AssertExpectations(t)
}

func TestStage_RoundTrip(t *testing.T) {
	for _, k := range []uint64{1, 3, 4, 9} {
		s := newTestStage(t, testConfig(4), NewWatermark(), stream.NewChannelSink(4))
		ctx := context.Background()
		for v := uint64(1); v <= k; v++ {
			push(s, v)
		}
		want := s.window.Snapshot()
		_, _, err := s.Checkpoint(ctx)
		require.NoError(t, err)

		push(s, k+1, k+2, k+3)
		require.NoError(t, s.Restore(ctx, stream.RollbackTo(stream.SequenceNumber(k))))
		assert.Equal(t, want, s.window.Snapshot(), "k=%d", k)
	}
}

func TestStage_CheckpointIsolatedFromWindow(t *testing.T) {
	s := newTestStage(t, testConfig(3), NewWatermark(), stream.NewChannelSink(4))
	push(s, 1, 2, 3)
	_, _, err := s.Checkpoint(context.Background())
	require.NoError(t, err)
	push(s, 4, 5, 6)

	cp, err := s.store.Get(3)
	require.NoError(t, err)
	assert.Equal(t, seqs(1, 2, 3), cp.Window)
}
