package main

import (
	"fmt"

	"github.com/knadh/koanf/v2"
	"github.com/tarungka/rewind/engine"
	"github.com/tarungka/rewind/sinks"
	"github.com/tarungka/rewind/sources"
)

type LogConfig struct {
	File        string `koanf:"file"`
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

type HTTPConfig struct {
	Port string `koanf:"port"`
}

type KafkaConfig struct {
	Brokers       []string `koanf:"brokers"`
	Group         string   `koanf:"group"`
	DataTopic     string   `koanf:"data_topic"`
	ControlTopic  string   `koanf:"control_topic"`
	SnapshotTopic string   `koanf:"snapshot_topic"`
}

// Enabled reports whether the stage is wired to Kafka.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c KafkaConfig) Source() sources.KafkaConfig {
	return sources.KafkaConfig{
		Brokers:      c.Brokers,
		Group:        c.Group,
		DataTopic:    c.DataTopic,
		ControlTopic: c.ControlTopic,
	}
}

func (c KafkaConfig) Sink() sinks.KafkaConfig {
	return sinks.KafkaConfig{Brokers: c.Brokers, Topic: c.SnapshotTopic}
}

// Config is the whole service configuration. The stage settings live at the
// top level of the config tree.
type Config struct {
	Stage engine.Config
	Log   LogConfig
	HTTP  HTTPConfig
	Kafka KafkaConfig
	// SnapshotFile receives snapshot ids when Kafka is not configured.
	// Empty prints them to stdout.
	SnapshotFile string
}

func defaultConfig() Config {
	return Config{
		Stage: engine.DefaultConfig(),
		Log:   LogConfig{Level: "info"},
		HTTP:  HTTPConfig{Port: "8080"},
		Kafka: KafkaConfig{
			Group:         "rewind",
			DataTopic:     "rewind-data",
			ControlTopic:  "rewind-control",
			SnapshotTopic: "rewind-snapshots",
		},
	}
}

// loadConfig unmarshals ko over the defaults and validates the result.
func loadConfig(ko *koanf.Koanf) (Config, error) {
	cfg := defaultConfig()
	if err := ko.Unmarshal("", &cfg.Stage); err != nil {
		return cfg, fmt.Errorf("error reading stage config: %w", err)
	}
	for path, out := range map[string]any{"log": &cfg.Log, "http": &cfg.HTTP, "kafka": &cfg.Kafka} {
		if err := ko.Unmarshal(path, out); err != nil {
			return cfg, fmt.Errorf("error reading %s config: %w", path, err)
		}
	}

	cfg.SnapshotFile = ko.String("snapshot_file")

	if err := cfg.Stage.Validate(); err != nil {
		return cfg, err
	}
	if cfg.Kafka.Enabled() {
		if err := cfg.Kafka.Source().Validate(); err != nil {
			return cfg, fmt.Errorf("kafka: %w", err)
		}
		if err := cfg.Kafka.Sink().Validate(); err != nil {
			return cfg, fmt.Errorf("kafka: %w", err)
		}
	}
	return cfg, nil
}
