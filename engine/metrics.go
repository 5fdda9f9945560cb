package engine

import (
	"expvar"
	"sync/atomic"
)

const (
	numFresh              = "fresh"
	numDuplicate          = "duplicate"
	numOutOfOrder         = "out_of_order"
	numCheckpoints        = "checkpoints"
	numCheckpointFailures = "checkpoint_failures"
	numEmptyCheckpoints   = "empty_checkpoints"
	numRollbacks          = "rollbacks"
	numRollbackFailures   = "rollback_failures"
	numPruned             = "pruned"
)

// stats aggregates the counters of every stage in the process.
var stats *expvar.Map

func init() {
	stats = expvar.NewMap("rewind_stage")
	ResetStats()
}

// ResetStats resets the expvar stats for this module. Mostly for test purposes.
func ResetStats() {
	stats.Init()
	for _, k := range []string{numFresh, numDuplicate, numOutOfOrder, numCheckpoints,
		numCheckpointFailures, numEmptyCheckpoints, numRollbacks, numRollbackFailures, numPruned} {
		stats.Add(k, 0)
	}
}

// Metrics holds the counters of a single stage.
type Metrics struct {
	fresh              atomic.Uint64
	duplicate          atomic.Uint64
	outOfOrder         atomic.Uint64
	checkpoints        atomic.Uint64
	checkpointFailures atomic.Uint64
	emptyCheckpoints   atomic.Uint64
	rollbacks          atomic.Uint64
	rollbackFailures   atomic.Uint64
	pruned             atomic.Uint64
}

func (m *Metrics) inc(c *atomic.Uint64, name string, n uint64) {
	c.Add(n)
	stats.Add(name, int64(n))
}

// MetricsStats is a point-in-time copy of a stage's counters.
type MetricsStats struct {
	Fresh              uint64 `json:"fresh"`
	Duplicate          uint64 `json:"duplicate"`
	OutOfOrder         uint64 `json:"out_of_order"`
	Checkpoints        uint64 `json:"checkpoints"`
	CheckpointFailures uint64 `json:"checkpoint_failures"`
	EmptyCheckpoints   uint64 `json:"empty_checkpoints"`
	Rollbacks          uint64 `json:"rollbacks"`
	RollbackFailures   uint64 `json:"rollback_failures"`
	Pruned             uint64 `json:"pruned"`
}

// Stats returns the current counters.
func (m *Metrics) Stats() MetricsStats {
	return MetricsStats{
		Fresh:              m.fresh.Load(),
		Duplicate:          m.duplicate.Load(),
		OutOfOrder:         m.outOfOrder.Load(),
		Checkpoints:        m.checkpoints.Load(),
		CheckpointFailures: m.checkpointFailures.Load(),
		EmptyCheckpoints:   m.emptyCheckpoints.Load(),
		Rollbacks:          m.rollbacks.Load(),
		RollbackFailures:   m.rollbackFailures.Load(),
		Pruned:             m.pruned.Load(),
	}
}
