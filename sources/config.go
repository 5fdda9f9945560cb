package sources

import (
	"errors"
	"strings"
)

// KafkaConfig configures the Kafka source.
type KafkaConfig struct {
	Brokers      []string `koanf:"brokers" json:"brokers"`
	Group        string   `koanf:"group" json:"group"`
	DataTopic    string   `koanf:"data_topic" json:"data_topic"`
	ControlTopic string   `koanf:"control_topic" json:"control_topic"`
}

// Enabled reports whether any broker is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c KafkaConfig) Validate() error {
	if !c.Enabled() {
		return errors.New("error missing kafka brokers")
	}
	if strings.TrimSpace(c.Group) == "" || c.DataTopic == "" || c.ControlTopic == "" {
		return errors.New("error missing config values")
	}
	if c.DataTopic == c.ControlTopic {
		return errors.New("data and control topics must differ")
	}
	return nil
}
