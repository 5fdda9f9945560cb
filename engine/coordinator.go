package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/rewind/stream"
)

// Submitter accepts events for serialized processing. *Dispatcher
// implements it.
type Submitter interface {
	Submit(ctx context.Context, e stream.Event) (Result, error)
}

// CheckpointCoordinator triggers a checkpoint on a fixed interval by
// submitting a barrier.
type CheckpointCoordinator struct {
	interval time.Duration
	target   Submitter
	logger   zerolog.Logger
}

// NewCheckpointCoordinator creates a new CheckpointCoordinator.
func NewCheckpointCoordinator(interval time.Duration, target Submitter, logger zerolog.Logger) *CheckpointCoordinator {
	return &CheckpointCoordinator{
		interval: interval,
		target:   target,
		logger:   logger.With().Str("component", "coordinator").Logger(),
	}
}

// Start submits a barrier every interval until ctx is done or the target
// stops.
func (c *CheckpointCoordinator) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := c.target.Submit(ctx, stream.Barrier{})
			switch {
			case errors.Is(err, ErrDispatcherStopped), errors.Is(err, context.Canceled):
				return
			case err != nil:
				c.logger.Err(err).Msg("timed checkpoint failed")
			case res.Checkpoint != nil && res.Checkpoint.Taken:
				c.logger.Trace().Uint64("id", uint64(res.Checkpoint.ID)).Msg("timed checkpoint")
			}
		case <-ctx.Done():
			return
		}
	}
}
