package stream

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s Source) []SequenceNumber {
	t.Helper()
	ch, err := s.Open(context.Background())
	require.NoError(t, err)
	var out []SequenceNumber
	for e := range ch {
		out = append(out, e.(DataMessage).Seq)
	}
	return out
}

func TestSequenceSource(t *testing.T) {
	assert.Equal(t, []SequenceNumber{1, 2, 2, 5}, collect(t, NewSequenceSource(1, 2, 2, 5)))
	assert.Equal(t, []SequenceNumber{7, 8, 9}, collect(t, NewRangeSource(7, 3)))
	assert.Empty(t, collect(t, NewRangeSource(1, 0)))
}

func TestSequenceSource_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := NewRangeSource(1, 100).Open(ctx)
	require.NoError(t, err)
	<-ch
	cancel()
	for range ch {
	}
}

func TestRollbackCommand(t *testing.T) {
	assert.Equal(t, "rollback(start)", RollbackToStart().String())
	assert.Equal(t, "rollback(5)", RollbackTo(5).String())

	msg := NewRollbackMessage(RollbackTo(5))
	assert.Equal(t, CommandRollback, msg.Tag)
	assert.True(t, IsControl(msg))
	assert.True(t, IsControl(&msg))
	assert.False(t, IsControl(DataMessage{Seq: 5}))
	assert.False(t, IsControl(Barrier{}))
}

func TestChannelSink(t *testing.T) {
	s := NewChannelSink(1)
	require.NoError(t, s.Emit(context.Background(), SnapshotNotification{ID: 3, NoWatermark: true}))
	assert.Equal(t, SnapshotNotification{ID: 3, NoWatermark: true}, <-s.C())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Emit(context.Background(), SnapshotNotification{ID: 4}), ErrSinkClosed)
	_, ok := <-s.C()
	assert.False(t, ok)
}

func TestChannelSink_Blocked(t *testing.T) {
	s := NewChannelSink(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Emit(ctx, SnapshotNotification{ID: 1}), context.Canceled)
}

func TestPrintSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewPrintSink(&buf)
	require.NoError(t, s.Emit(context.Background(), SnapshotNotification{ID: 9}))
	assert.Equal(t, "snapshot: 9\n", buf.String())
	assert.NoError(t, s.Close())
}
