package engine

import (
	"context"
	"fmt"

	"github.com/tarungka/rewind/stream"
)

// RestoreResult describes a completed rollback.
type RestoreResult struct {
	FromStart bool                  `json:"from_start"`
	Target    stream.SequenceNumber `json:"target"`
	// RestoredID is the checkpoint the window was restored from. Zero for a
	// rollback to the start.
	RestoredID stream.SequenceNumber `json:"restored_id"`
	// Pruned counts the checkpoints removed by the rollback.
	Pruned int `json:"pruned"`
}

// Rollback restores the stage according to cmd. A rollback to a target
// restores the newest checkpoint at or below it; when there is none the
// stage is left untouched and a *NoCheckpointError is returned.
func (s *Stage) Rollback(ctx context.Context, cmd stream.RollbackCommand) (RestoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase = PhaseRollingBack
	defer func() { s.phase = PhaseNormal }()

	var (
		res RestoreResult
		err error
	)
	if cmd.FromStart {
		res, err = s.restoreToStart()
	} else {
		res, err = s.restoreTo(cmd.Target)
	}
	if err != nil {
		s.metrics.inc(&s.metrics.rollbackFailures, numRollbackFailures, 1)
		s.logger.Err(err).Str("command", cmd.String()).Msg("rollback failed")
		return res, err
	}

	s.metrics.inc(&s.metrics.rollbacks, numRollbacks, 1)
	if res.Pruned > 0 {
		s.metrics.inc(&s.metrics.pruned, numPruned, uint64(res.Pruned))
	}
	return res, nil
}

func (s *Stage) restoreToStart() (RestoreResult, error) {
	res := RestoreResult{FromStart: true}
	n, err := s.store.Len()
	if err != nil {
		return res, err
	}
	if err := s.progress.ResetProgress(0); err != nil {
		return res, fmt.Errorf("%w: epoch 0: %v", ErrProgressReset, err)
	}
	if err := s.store.Clear(); err != nil {
		s.revertProgress()
		return res, err
	}

	s.window.Clear()
	s.tracker.Reset()
	s.epoch = 0
	res.Pruned = n

	s.logger.Info().Int("pruned", n).Msg("rolled back to the start")
	return res, nil
}

func (s *Stage) restoreTo(target stream.SequenceNumber) (RestoreResult, error) {
	res := RestoreResult{Target: target}
	cp, ok, err := s.store.Floor(target)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, &NoCheckpointError{Target: target}
	}

	// The runtime is told first so a refusal leaves local state untouched.
	epoch := Epoch(cp.ID)
	if err := s.progress.ResetProgress(epoch); err != nil {
		return res, fmt.Errorf("%w: epoch %d: %v", ErrProgressReset, epoch, err)
	}
	n, err := s.store.PruneAbove(cp.ID)
	if err != nil {
		s.revertProgress()
		return res, err
	}

	// Nothing below can fail.
	s.window.Restore(cp.Window)
	s.tracker.SetLast(cp.ID)
	s.epoch = epoch
	res.RestoredID = cp.ID
	res.Pruned = n

	s.logger.Info().
		Uint64("target", uint64(target)).
		Uint64("restored_id", uint64(cp.ID)).
		Int("window_size", len(cp.Window)).
		Int("pruned", n).
		Msg("rolled back to checkpoint")
	return res, nil
}

// revertProgress hands the runtime back the epoch the stage is still at
// after a rollback failed part way.
func (s *Stage) revertProgress() {
	if err := s.progress.ResetProgress(s.epoch); err != nil {
		s.logger.Err(err).Uint64("epoch", uint64(s.epoch)).Msg("failed to revert progress after a failed rollback")
	}
}
