package engine

import (
	"fmt"
	"time"

	"github.com/tarungka/rewind/checkpoint"
)

// DuplicatePolicy decides whether rejected values still enter the window.
type DuplicatePolicy string

const (
	// AppendAll pushes every value, preserving the raw arrival history.
	AppendAll DuplicatePolicy = "append_all"
	// SkipRejected pushes only values the tracker classified as fresh.
	SkipRejected DuplicatePolicy = "skip_rejected"
)

// CheckpointConfig controls checkpoint cadence.
type CheckpointConfig struct {
	Enabled bool `koanf:"enabled" json:"enabled"`
	// Frequency checkpoints every Nth accepted data message.
	Frequency int `koanf:"frequency" json:"frequency"`
	// Interval, when positive, also checkpoints on a timer.
	Interval time.Duration `koanf:"interval" json:"interval"`
}

// WindowConfig controls the state window.
type WindowConfig struct {
	Capacity        int             `koanf:"capacity" json:"capacity"`
	DuplicatePolicy DuplicatePolicy `koanf:"duplicate_policy" json:"duplicate_policy"`
}

// Config configures one stage.
type Config struct {
	StageID    string                 `koanf:"stage_id" json:"stage_id"`
	Checkpoint CheckpointConfig       `koanf:"checkpoint" json:"checkpoint"`
	Window     WindowConfig           `koanf:"window" json:"window"`
	Store      checkpoint.StoreConfig `koanf:"store" json:"store"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		StageID: "sink",
		Checkpoint: CheckpointConfig{
			Enabled:   true,
			Frequency: 10,
		},
		Window: WindowConfig{
			Capacity:        10,
			DuplicatePolicy: AppendAll,
		},
		Store: checkpoint.StoreConfig{
			Backend:     checkpoint.BackendMemory,
			Compression: "none",
		},
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.StageID == "" {
		return fmt.Errorf("%w: stage_id cannot be empty", ErrInvalidConfig)
	}
	if c.Window.Capacity < 1 {
		return fmt.Errorf("%w: window.capacity must be positive, got %d", ErrInvalidConfig, c.Window.Capacity)
	}
	if c.Checkpoint.Enabled && c.Checkpoint.Frequency < 1 {
		return fmt.Errorf("%w: checkpoint.frequency must be positive, got %d", ErrInvalidConfig, c.Checkpoint.Frequency)
	}
	if c.Checkpoint.Interval < 0 {
		return fmt.Errorf("%w: checkpoint.interval cannot be negative", ErrInvalidConfig)
	}
	switch c.Window.DuplicatePolicy {
	case AppendAll, SkipRejected:
	default:
		return fmt.Errorf("%w: unknown window.duplicate_policy %q", ErrInvalidConfig, c.Window.DuplicatePolicy)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("%w: store: %v", ErrInvalidConfig, err)
	}
	return nil
}
