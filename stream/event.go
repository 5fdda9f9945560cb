package stream

import "fmt"

// SequenceNumber identifies a processed data item.
type SequenceNumber uint64

// Event represents a data record or a control event in the stream.
type Event interface{}

// DataMessage carries one sequence number on the data channel.
type DataMessage struct {
	Seq SequenceNumber
}

// Barrier is a special event that signals a checkpoint.
type Barrier struct{}

// CommandTag is the tag carried by a control message.
type CommandTag string

// CommandRollback is the only control command a stage understands.
const CommandRollback CommandTag = "ROLLBACK"

// RollbackCommand asks a stage to roll back either to the start or to the
// nearest checkpoint not after Target.
type RollbackCommand struct {
	// FromStart is true for a rollback to the beginning; Target is ignored.
	FromStart bool
	Target    SequenceNumber
}

// RollbackToStart returns a command that resets the stage completely.
func RollbackToStart() RollbackCommand {
	return RollbackCommand{FromStart: true}
}

// RollbackTo returns a command that restores the checkpoint with the largest
// id not greater than target.
func RollbackTo(target SequenceNumber) RollbackCommand {
	return RollbackCommand{Target: target}
}

func (c RollbackCommand) String() string {
	if c.FromStart {
		return "rollback(start)"
	}
	return fmt.Sprintf("rollback(%d)", c.Target)
}

// ControlMessage carries a command on the control channel.
type ControlMessage struct {
	Tag      CommandTag
	Rollback RollbackCommand
}

// NewRollbackMessage wraps cmd in a ROLLBACK control message.
func NewRollbackMessage(cmd RollbackCommand) ControlMessage {
	return ControlMessage{Tag: CommandRollback, Rollback: cmd}
}

// SnapshotNotification is emitted once per completed checkpoint. It carries
// no event time and is not subject to watermark ordering.
type SnapshotNotification struct {
	ID          SequenceNumber
	NoWatermark bool
}

// IsControl reports whether e belongs on the control path.
func IsControl(e Event) bool {
	switch e.(type) {
	case ControlMessage, *ControlMessage:
		return true
	default:
		return false
	}
}
