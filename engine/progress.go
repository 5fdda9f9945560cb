package engine

import "sync/atomic"

// Epoch marks how far a stage has durably progressed.
type Epoch uint64

// ProgressTracker is the runtime collaborator told about rollbacks. It is
// called on every restore, with epoch 0 for a full reset.
type ProgressTracker interface {
	ResetProgress(epoch Epoch) error
}

// Watermark is an in-process ProgressTracker.
type Watermark struct {
	epoch  atomic.Uint64
	resets atomic.Uint64
}

// NewWatermark returns a watermark at epoch 0.
func NewWatermark() *Watermark {
	return &Watermark{}
}

// ResetProgress moves the watermark to epoch, backwards if need be.
func (w *Watermark) ResetProgress(epoch Epoch) error {
	w.epoch.Store(uint64(epoch))
	w.resets.Add(1)
	return nil
}

// Advance moves the watermark forward; it never moves it back.
func (w *Watermark) Advance(epoch Epoch) {
	for {
		cur := w.epoch.Load()
		if uint64(epoch) <= cur || w.epoch.CompareAndSwap(cur, uint64(epoch)) {
			return
		}
	}
}

// Epoch returns the current epoch.
func (w *Watermark) Epoch() Epoch {
	return Epoch(w.epoch.Load())
}

// Resets returns how many times ResetProgress was called.
func (w *Watermark) Resets() uint64 {
	return w.resets.Load()
}
