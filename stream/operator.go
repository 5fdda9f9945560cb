package stream

import "context"

// Checkpointable is implemented by stages whose local state can be captured
// and rolled back by the runtime.
type Checkpointable interface {
	// Checkpoint captures the current state. ok is false when there was
	// nothing to capture.
	Checkpoint(ctx context.Context) (id SequenceNumber, ok bool, err error)
	// Restore rolls the local state back as described by cmd.
	Restore(ctx context.Context, cmd RollbackCommand) error
}

// Operator is a stream stage that consumes data messages one at a time.
type Operator interface {
	Checkpointable
	// ID returns the unique identifier of the operator.
	ID() string
	// Process handles a single data message.
	Process(ctx context.Context, msg DataMessage) error
}
