package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/rewind/checkpoint"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Checkpoint.Enabled)
	assert.Equal(t, 10, cfg.Checkpoint.Frequency)
	assert.Equal(t, 10, cfg.Window.Capacity)
	assert.Equal(t, AppendAll, cfg.Window.DuplicatePolicy)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty stage", func(c *Config) { c.StageID = "" }, false},
		{"zero capacity", func(c *Config) { c.Window.Capacity = 0 }, false},
		{"negative capacity", func(c *Config) { c.Window.Capacity = -1 }, false},
		{"zero frequency", func(c *Config) { c.Checkpoint.Frequency = 0 }, false},
		{"zero frequency while disabled", func(c *Config) {
			c.Checkpoint.Enabled = false
			c.Checkpoint.Frequency = 0
		}, true},
		{"negative interval", func(c *Config) { c.Checkpoint.Interval = -time.Second }, false},
		{"skip rejected", func(c *Config) { c.Window.DuplicatePolicy = SkipRejected }, true},
		{"unknown policy", func(c *Config) { c.Window.DuplicatePolicy = "keep_some" }, false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, false},
		{"unknown compression", func(c *Config) { c.Store.Compression = "lz4" }, false},
		{"bolt without dir", func(c *Config) { c.Store.Backend = checkpoint.BackendBolt }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
