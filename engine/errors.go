package engine

import (
	"errors"
	"fmt"

	"github.com/tarungka/rewind/stream"
)

var (
	// ErrNoApplicableCheckpoint is returned when a rollback target has no
	// checkpoint at or below it. The stage is left unchanged.
	ErrNoApplicableCheckpoint = errors.New("no applicable checkpoint")

	// ErrNotifyFailed is returned when a checkpoint was stored but the
	// snapshot notification could not be emitted.
	ErrNotifyFailed = errors.New("snapshot notification failed")

	// ErrCheckpointingDisabled is returned for a checkpoint request on a
	// stage with checkpointing turned off.
	ErrCheckpointingDisabled = errors.New("checkpointing disabled")

	// ErrUnknownCommand is returned for a control message that is not a
	// rollback.
	ErrUnknownCommand = errors.New("unknown control command")

	// ErrUnsupportedEvent is returned for events the dispatcher cannot route.
	ErrUnsupportedEvent = errors.New("unsupported event")

	// ErrDispatcherStopped is returned by Submit once Run has returned.
	ErrDispatcherStopped = errors.New("dispatcher stopped")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrProgressReset is returned when the runtime refuses a progress reset.
	ErrProgressReset = errors.New("progress reset failed")
)

// NoCheckpointError carries the rollback target that had no floor.
type NoCheckpointError struct {
	Target stream.SequenceNumber
}

func (e *NoCheckpointError) Error() string {
	return fmt.Sprintf("rollback to %d: %v", e.Target, ErrNoApplicableCheckpoint)
}

func (e *NoCheckpointError) Unwrap() error {
	return ErrNoApplicableCheckpoint
}
