package sinks

import "errors"

// KafkaConfig configures the snapshot sink.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers" json:"brokers"`
	Topic   string   `koanf:"snapshot_topic" json:"snapshot_topic"`
}

func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 || c.Topic == "" {
		return errors.New("error missing config values")
	}
	return nil
}
