package sinks

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tarungka/rewind/stream"
	"github.com/twmb/franz-go/pkg/kgo"
)

// NoWatermarkHeader marks a snapshot record as untimed.
const NoWatermarkHeader = "no_watermark"

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaSink publishes snapshot notifications to a topic, one record per
// completed checkpoint.
type KafkaSink struct {
	topic  string
	logger zerolog.Logger

	mu                  sync.Mutex
	kafkaProducerClient producer
}

// NewKafkaSink connects a producer for cfg.
func NewKafkaSink(cfg KafkaConfig, logger zerolog.Logger, opts ...kgo.Opt) (*KafkaSink, error) {
	if err := cfg.Validate(); err != nil {
		logger.Err(err).Msg("Error missing config values")
		return nil, err
	}
	logger.Trace().Msg("Connecting to kafka cluster as a sink...")
	opts = append([]kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.AllowAutoTopicCreation(),
	}, opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		logger.Err(err).Msg("Error when creating a kafka producer!")
		return nil, err
	}
	return newKafkaSink(cfg.Topic, client, logger), nil
}

func newKafkaSink(topic string, p producer, logger zerolog.Logger) *KafkaSink {
	return &KafkaSink{
		topic:               topic,
		logger:              logger.With().Str("component", "kafka-sink").Logger(),
		kafkaProducerClient: p,
	}
}

// SnapshotRecord builds the record announcing n. The timestamp is left
// unset.
func SnapshotRecord(topic string, n stream.SnapshotNotification) *kgo.Record {
	r := &kgo.Record{
		Topic: topic,
		Value: []byte(strconv.FormatUint(uint64(n.ID), 10)),
	}
	if n.NoWatermark {
		r.Headers = append(r.Headers, kgo.RecordHeader{Key: NoWatermarkHeader, Value: []byte("true")})
	}
	return r
}

// Emit produces the notification and waits for the broker to acknowledge it.
func (k *KafkaSink) Emit(ctx context.Context, n stream.SnapshotNotification) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.kafkaProducerClient == nil {
		return stream.ErrSinkClosed
	}

	record := SnapshotRecord(k.topic, n)
	if err := k.kafkaProducerClient.ProduceSync(ctx, record).FirstErr(); err != nil {
		k.logger.Err(err).Uint64("id", uint64(n.ID)).Msg("record had a produce error")
		return err
	}
	k.logger.Debug().Uint64("id", uint64(n.ID)).Msg("Successfully produced snapshot")
	return nil
}

func (k *KafkaSink) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.kafkaProducerClient == nil {
		return errors.New("kafka sink already closed")
	}
	k.logger.Info().Msg("Disconnecting kafka sink")
	k.kafkaProducerClient.Close()
	k.kafkaProducerClient = nil
	return nil
}

var _ stream.Sink = (*KafkaSink)(nil)
