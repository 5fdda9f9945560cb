package engine

// Scheduler decides when the dispatcher takes an automatic checkpoint.
type Scheduler interface {
	// ShouldCheckpoint is asked after each accepted data message with the
	// number accepted since the last checkpoint attempt or restore.
	ShouldCheckpoint(acceptedSinceLast uint64) bool
}

// SchedulerFunc adapts a function to a Scheduler.
type SchedulerFunc func(acceptedSinceLast uint64) bool

func (f SchedulerFunc) ShouldCheckpoint(n uint64) bool { return f(n) }

// EveryN checkpoints on every nth accepted message. n below one never
// triggers.
func EveryN(n int) Scheduler {
	return SchedulerFunc(func(accepted uint64) bool {
		return n > 0 && accepted >= uint64(n)
	})
}

// Never is a Scheduler that never triggers.
var Never Scheduler = SchedulerFunc(func(uint64) bool { return false })
