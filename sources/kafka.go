package sources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarungka/rewind/stream"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSource consumes the data and control topics of a stage and turns
// their records into stream events.
type KafkaSource struct {
	cfg    KafkaConfig
	opts   []kgo.Opt
	logger zerolog.Logger

	kafkaConsumerClient *kgo.Client
}

// NewKafkaSource creates a source for cfg. Extra client options are
// appended to the defaults.
func NewKafkaSource(cfg KafkaConfig, logger zerolog.Logger, opts ...kgo.Opt) (*KafkaSource, error) {
	if err := cfg.Validate(); err != nil {
		logger.Err(err).Msg("Error missing config values")
		return nil, err
	}
	return &KafkaSource{
		cfg:    cfg,
		opts:   opts,
		logger: logger.With().Str("component", "kafka-source").Logger(),
	}, nil
}

func (k *KafkaSource) Connect(ctx context.Context) error {
	k.logger.Trace().Msg("Connecting to kafka cluster as a source...")
	opts := []kgo.Opt{
		kgo.SeedBrokers(k.cfg.Brokers...),
		kgo.ConsumerGroup(k.cfg.Group),
		kgo.ConsumeTopics(k.cfg.DataTopic, k.cfg.ControlTopic),
		kgo.AllowAutoTopicCreation(),
		kgo.AutoCommitMarks(),
	}
	opts = append(opts, k.opts...)
	client, err := kgo.NewClient(opts...)
	if err != nil {
		k.logger.Err(err).Msg("Error when creating a kafka consumer!")
		return err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return fmt.Errorf("ping kafka: %w", err)
	}
	k.kafkaConsumerClient = client
	return nil
}

// Read polls both topics until ctx is done or the client is closed. Records
// are split by topic onto the data and control channels, in the order they
// were fetched. Undecodable records are logged and skipped.
func (k *KafkaSource) Read(ctx context.Context, wg *sync.WaitGroup) (<-chan stream.Event, <-chan stream.Event, error) {
	if k.kafkaConsumerClient == nil {
		return nil, nil, errors.New("kafka source is not connected")
	}

	data := make(chan stream.Event, 16)
	control := make(chan stream.Event, 4)

	wg.Add(1)
	go func() {
		defer func() {
			k.logger.Trace().Msg("Done Reading from the kafka source")
			close(data)
			close(control)
			wg.Done()
		}()

		for {
			if ctx.Err() != nil {
				return
			}
			fetches := k.kafkaConsumerClient.PollFetches(ctx)
			if fetches.IsClientClosed() {
				return
			}
			fetches.EachError(func(t string, p int32, err error) {
				if errors.Is(err, context.Canceled) {
					return
				}
				k.logger.Err(err).Str("topic", t).Int32("partition", p).Msg("fetch error")
			})
			if fetches.Empty() {
				time.Sleep(100 * time.Millisecond)
				continue
			}

			iter := fetches.RecordIter()
			for !iter.Done() {
				record := iter.Next()
				e, out, err := k.decode(record, data, control)
				if err != nil {
					k.logger.Err(err).Str("topic", record.Topic).Int64("offset", record.Offset).Msg("dropping undecodable record")
					k.kafkaConsumerClient.MarkCommitRecords(record)
					continue
				}
				select {
				case out <- e:
					// Marked on hand-off, not after processing. A record still
					// buffered in the channel can be committed before the stage
					// sees it, so a crash may skip it; recovery replays from a
					// rollback target instead.
					k.kafkaConsumerClient.MarkCommitRecords(record)
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return data, control, nil
}

func (k *KafkaSource) decode(record *kgo.Record, data, control chan stream.Event) (stream.Event, chan stream.Event, error) {
	e, isControl, err := DecodeRecord(record, k.cfg.ControlTopic)
	if err != nil {
		return nil, nil, err
	}
	if isControl {
		return e, control, nil
	}
	return e, data, nil
}

// DecodeRecord decodes one record. Records from controlTopic are control
// messages, everything else is data.
func DecodeRecord(record *kgo.Record, controlTopic string) (stream.Event, bool, error) {
	if record.Topic == controlTopic {
		msg, err := ParseControl(record.Value)
		return msg, true, err
	}
	msg, err := ParseData(record.Value)
	return msg, false, err
}

func (k *KafkaSource) Disconnect() error {
	k.logger.Trace().Msg("Disconnecting kafka source")
	if k.kafkaConsumerClient != nil {
		k.kafkaConsumerClient.Close()
	}
	return nil
}

func (k *KafkaSource) Info() string {
	return fmt.Sprintf("Brokers:%v|Group:%s|Data:%s|Control:%s", k.cfg.Brokers, k.cfg.Group, k.cfg.DataTopic, k.cfg.ControlTopic)
}
