// Package engine runs a single checkpointing stage: it owns the window,
// the sequence tracker and the checkpoint store, and serializes data,
// checkpoint and rollback handling.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tarungka/rewind/checkpoint"
	"github.com/tarungka/rewind/internal/sequence"
	"github.com/tarungka/rewind/internal/window"
	"github.com/tarungka/rewind/stream"
)

// Phase is the state of the restore protocol.
type Phase int

const (
	// PhaseNormal accepts data messages.
	PhaseNormal Phase = iota
	// PhaseCheckpointing is held while a checkpoint is taken.
	PhaseCheckpointing
	// PhaseRollingBack is held while a rollback runs.
	PhaseRollingBack
)

func (p Phase) String() string {
	switch p {
	case PhaseNormal:
		return "normal"
	case PhaseCheckpointing:
		return "checkpointing"
	case PhaseRollingBack:
		return "rolling_back"
	default:
		return "unknown"
	}
}

// DataResult describes what happened to one data message.
type DataResult struct {
	Seq            stream.SequenceNumber
	Classification sequence.Classification
	// Applied is true when the value was pushed into the window.
	Applied bool
}

// Stage is the single owned state of one stage instance. All methods are
// safe for concurrent use; they serialize on one mutex, so a checkpoint
// never observes a half-applied push and a rollback never interleaves with
// one.
type Stage struct {
	mu sync.Mutex

	id     string
	runID  uuid.UUID
	cfg    Config
	phase  Phase
	epoch  Epoch
	logger zerolog.Logger

	tracker  *sequence.Tracker
	window   *window.Window
	store    *checkpoint.Store
	progress ProgressTracker
	sink     stream.Sink
	metrics  *Metrics
}

// NewStage creates a stage. sink is the one output snapshot notifications
// are emitted to.
func NewStage(cfg Config, store *checkpoint.Store, progress ProgressTracker, sink stream.Sink, logger zerolog.Logger) (*Stage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || progress == nil || sink == nil {
		return nil, errors.New("stage needs a store, a progress tracker and a sink")
	}
	w, err := window.New(cfg.Window.Capacity)
	if err != nil {
		return nil, err
	}
	runID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("create run id: %w", err)
	}

	l := logger.With().Str("stage", cfg.StageID).Str("run_id", runID.String()).Logger()
	s := &Stage{
		id:       cfg.StageID,
		runID:    runID,
		cfg:      cfg,
		logger:   l,
		tracker:  sequence.New(l),
		window:   w,
		store:    store,
		progress: progress,
		sink:     sink,
		metrics:  &Metrics{},
	}
	s.logger.Info().
		Int("window_capacity", cfg.Window.Capacity).
		Str("duplicate_policy", string(cfg.Window.DuplicatePolicy)).
		Bool("checkpoint_enabled", cfg.Checkpoint.Enabled).
		Int("checkpoint_frequency", cfg.Checkpoint.Frequency).
		Msg("stage created")
	return s, nil
}

// ID returns the stage id.
func (s *Stage) ID() string { return s.id }

// Metrics returns the stage counters.
func (s *Stage) Metrics() *Metrics { return s.metrics }

// Config returns the configuration the stage was created with.
func (s *Stage) Config() Config { return s.cfg }

// CheckpointingEnabled reports whether checkpoints may be taken.
func (s *Stage) CheckpointingEnabled() bool { return s.cfg.Checkpoint.Enabled }

// HandleData classifies seq and, according to the duplicate policy, pushes
// it into the window.
func (s *Stage) HandleData(seq stream.SequenceNumber) DataResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.tracker.Observe(seq)
	switch c {
	case sequence.Fresh:
		s.metrics.inc(&s.metrics.fresh, numFresh, 1)
	case sequence.Duplicate:
		s.metrics.inc(&s.metrics.duplicate, numDuplicate, 1)
	case sequence.OutOfOrder:
		s.metrics.inc(&s.metrics.outOfOrder, numOutOfOrder, 1)
	}

	res := DataResult{Seq: seq, Classification: c}
	if c.Accepted() || s.cfg.Window.DuplicatePolicy == AppendAll {
		s.window.Push(seq)
		res.Applied = true
	}
	return res
}

// Process implements stream.Operator.
func (s *Stage) Process(ctx context.Context, msg stream.DataMessage) error {
	s.HandleData(msg.Seq)
	return nil
}

// Checkpoint stores a copy of the window under its newest value and emits
// a snapshot notification. An empty window is a no-op with ok false.
func (s *Stage) Checkpoint(ctx context.Context) (stream.SequenceNumber, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Checkpoint.Enabled {
		return 0, false, ErrCheckpointingDisabled
	}

	s.phase = PhaseCheckpointing
	defer func() { s.phase = PhaseNormal }()

	id, ok := s.window.Latest()
	if !ok {
		s.metrics.inc(&s.metrics.emptyCheckpoints, numEmptyCheckpoints, 1)
		s.logger.Debug().Msg("window empty, nothing to checkpoint")
		return 0, false, nil
	}

	if err := s.store.Put(id, s.window.Snapshot()); err != nil {
		s.metrics.inc(&s.metrics.checkpointFailures, numCheckpointFailures, 1)
		s.logger.Err(err).Uint64("id", uint64(id)).Msg("checkpoint failed")
		return id, false, err
	}
	s.metrics.inc(&s.metrics.checkpoints, numCheckpoints, 1)
	s.logger.Info().Uint64("id", uint64(id)).Msg("checkpointed at latest stored data")

	n := stream.SnapshotNotification{ID: id, NoWatermark: true}
	if err := s.sink.Emit(ctx, n); err != nil {
		s.logger.Err(err).Uint64("id", uint64(id)).Msg("failed to emit snapshot notification")
		return id, true, fmt.Errorf("%w: %v", ErrNotifyFailed, err)
	}
	return id, true, nil
}

// Restore implements stream.Checkpointable.
func (s *Stage) Restore(ctx context.Context, cmd stream.RollbackCommand) error {
	_, err := s.Rollback(ctx, cmd)
	return err
}

// Status is a point-in-time view of the stage.
type Status struct {
	StageID      string                  `json:"stage_id"`
	RunID        string                  `json:"run_id"`
	Phase        string                  `json:"phase"`
	Window       []stream.SequenceNumber `json:"window"`
	LastAccepted *stream.SequenceNumber  `json:"last_accepted"`
	NextExpected *stream.SequenceNumber  `json:"next_expected"`
	Checkpoints  []stream.SequenceNumber `json:"checkpoints"`
	Epoch        Epoch                   `json:"epoch"`
	Metrics      MetricsStats            `json:"metrics"`
}

// Status returns the current state of the stage.
func (s *Stage) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.store.IDs()
	if err != nil {
		return Status{}, err
	}
	st := Status{
		StageID:     s.id,
		RunID:       s.runID.String(),
		Phase:       s.phase.String(),
		Window:      s.window.Snapshot(),
		Checkpoints: ids,
		Epoch:       s.epoch,
		Metrics:     s.metrics.Stats(),
	}
	if last, ok := s.tracker.Last(); ok {
		st.LastAccepted = &last
	}
	if next, ok := s.tracker.Next(); ok {
		st.NextExpected = &next
	}
	return st, nil
}

var _ stream.Operator = (*Stage)(nil)
