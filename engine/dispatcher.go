package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/tarungka/rewind/stream"
)

// Result is the outcome of routing one event. Exactly one field is set.
type Result struct {
	Data       *DataResult       `json:"data,omitempty"`
	Checkpoint *CheckpointResult `json:"checkpoint,omitempty"`
	Rollback   *RestoreResult    `json:"rollback,omitempty"`
}

// CheckpointResult describes a checkpoint attempt.
type CheckpointResult struct {
	ID stream.SequenceNumber `json:"id"`
	// Taken is false for an empty window.
	Taken bool `json:"taken"`
}

type envelope struct {
	event stream.Event
	reply chan outcome
}

type outcome struct {
	result Result
	err    error
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithControlPredicate overrides how control events are recognised.
func WithControlPredicate(f func(stream.Event) bool) Option {
	return func(d *Dispatcher) { d.isControl = f }
}

// WithScheduler overrides the automatic checkpoint cadence.
func WithScheduler(s Scheduler) Option {
	return func(d *Dispatcher) { d.scheduler = s }
}

// WithMailboxSize sets the capacity of the Submit mailbox.
func WithMailboxSize(n int) Option {
	return func(d *Dispatcher) { d.mailboxSize = n }
}

// WithErrorBuffer sets the capacity of the Errors channel.
func WithErrorBuffer(n int) Option {
	return func(d *Dispatcher) { d.errBuffer = n }
}

// Dispatcher feeds a Stage from one data input and one control input. A
// single goroutine handles every event, including those handed in through
// Submit, so each is fully processed before the next one starts.
type Dispatcher struct {
	stage     *Stage
	isControl func(stream.Event) bool
	scheduler Scheduler
	logger    zerolog.Logger

	mailboxSize int
	errBuffer   int
	mailbox     chan envelope
	errs        chan error
	done        chan struct{}
	running     atomic.Bool

	// accepted counts fresh data messages since the last checkpoint
	// attempt or restore. Only touched by the Run goroutine.
	accepted uint64
}

// NewDispatcher creates a dispatcher in front of stage.
func NewDispatcher(stage *Stage, logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		stage:       stage,
		isControl:   stream.IsControl,
		logger:      logger.With().Str("component", "dispatcher").Str("stage", stage.ID()).Logger(),
		mailboxSize: 16,
		errBuffer:   64,
		done:        make(chan struct{}),
	}
	cfg := stage.Config()
	if cfg.Checkpoint.Enabled {
		d.scheduler = EveryN(cfg.Checkpoint.Frequency)
	} else {
		d.scheduler = Never
	}
	for _, opt := range opts {
		opt(d)
	}
	d.mailbox = make(chan envelope, d.mailboxSize)
	d.errs = make(chan error, d.errBuffer)
	return d
}

// Errors delivers errors raised while handling inbound events. Errors are
// dropped when nobody drains the channel.
func (d *Dispatcher) Errors() <-chan error {
	return d.errs
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Run processes events until both inputs are closed or ctx is done. A nil
// input is treated as closed. Run may only be called once.
func (d *Dispatcher) Run(ctx context.Context, data, control <-chan stream.Event) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("dispatcher already running")
	}
	defer close(d.done)

	d.logger.Info().Msg("dispatcher started")
	defer d.logger.Info().Msg("dispatcher stopped")

	for data != nil || control != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-data:
			if !ok {
				d.logger.Debug().Msg("data input closed")
				data = nil
				continue
			}
			d.handle(ctx, e)
		case e, ok := <-control:
			if !ok {
				d.logger.Debug().Msg("control input closed")
				control = nil
				continue
			}
			d.handle(ctx, e)
		case env := <-d.mailbox:
			res, err := d.route(ctx, env.event)
			env.reply <- outcome{result: res, err: err}
		}
	}
	return nil
}

// Submit hands e to the Run goroutine and waits for its outcome.
func (d *Dispatcher) Submit(ctx context.Context, e stream.Event) (Result, error) {
	env := envelope{event: e, reply: make(chan outcome, 1)}
	select {
	case d.mailbox <- env:
	case <-d.done:
		return Result{}, ErrDispatcherStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case o := <-env.reply:
		return o.result, o.err
	case <-d.done:
		// Run may have replied right before returning.
		select {
		case o := <-env.reply:
			return o.result, o.err
		default:
			return Result{}, ErrDispatcherStopped
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (d *Dispatcher) handle(ctx context.Context, e stream.Event) {
	if _, err := d.route(ctx, e); err != nil {
		d.report(err)
	}
}

func (d *Dispatcher) route(ctx context.Context, e stream.Event) (Result, error) {
	if d.isControl(e) {
		return d.control(ctx, e)
	}

	switch ev := e.(type) {
	case stream.DataMessage:
		res := d.stage.HandleData(ev.Seq)
		out := Result{Data: &res}
		// Only fresh values count toward the cadence. A duplicate pushed under
		// AppendAll would make the window's latest an id already stored.
		if !res.Classification.Accepted() {
			return out, nil
		}
		d.accepted++
		if !d.stage.CheckpointingEnabled() || !d.scheduler.ShouldCheckpoint(d.accepted) {
			return out, nil
		}
		if _, err := d.checkpoint(ctx); err != nil {
			return out, err
		}
		return out, nil
	case *stream.DataMessage:
		return d.route(ctx, *ev)
	case stream.Barrier, *stream.Barrier:
		cp, err := d.checkpoint(ctx)
		return Result{Checkpoint: &cp}, err
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnsupportedEvent, e)
	}
}

func (d *Dispatcher) control(ctx context.Context, e stream.Event) (Result, error) {
	var msg stream.ControlMessage
	switch ev := e.(type) {
	case stream.ControlMessage:
		msg = ev
	case *stream.ControlMessage:
		msg = *ev
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnsupportedEvent, e)
	}
	if msg.Tag != stream.CommandRollback {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownCommand, msg.Tag)
	}

	res, err := d.stage.Rollback(ctx, msg.Rollback)
	if err == nil {
		d.accepted = 0
	}
	return Result{Rollback: &res}, err
}

func (d *Dispatcher) checkpoint(ctx context.Context) (CheckpointResult, error) {
	d.accepted = 0
	id, ok, err := d.stage.Checkpoint(ctx)
	return CheckpointResult{ID: id, Taken: ok}, err
}

func (d *Dispatcher) report(err error) {
	d.logger.Err(err).Msg("failed to handle event")
	select {
	case d.errs <- err:
	default:
		d.logger.Warn().Msg("error channel full, dropping error")
	}
}

// Status returns the status of the stage behind the dispatcher.
func (d *Dispatcher) Status() (Status, error) {
	return d.stage.Status()
}
