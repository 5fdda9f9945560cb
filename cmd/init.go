package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"github.com/tarungka/rewind/engine"
)

const envPrefix = "REWIND_"

func newFlagSet() *flag.FlagSet {
	d := defaultConfig()
	f := flag.NewFlagSet("config", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}

	f.StringSlice("config", nil, "path to one or more config files (will be merged in order)")
	f.Bool("version", false, "show current version of the build")

	f.String("stage_id", d.Stage.StageID, "id of the stage, also scopes its checkpoints")
	f.Bool("checkpoint.enabled", d.Stage.Checkpoint.Enabled, "take checkpoints")
	f.Int("checkpoint.frequency", d.Stage.Checkpoint.Frequency, "checkpoint every n accepted messages")
	f.Duration("checkpoint.interval", d.Stage.Checkpoint.Interval, "also checkpoint on this interval, 0 disables")
	f.Int("window.capacity", d.Stage.Window.Capacity, "number of sequence numbers kept in the window")
	f.String("window.duplicate_policy", string(d.Stage.Window.DuplicatePolicy),
		fmt.Sprintf("%s or %s", engine.AppendAll, engine.SkipRejected))
	f.String("store.backend", d.Stage.Store.Backend, "checkpoint backend: memory, badgerdb or boltdb")
	f.String("store.dir", d.Stage.Store.Dir, "directory of a durable checkpoint backend")
	f.Bool("store.in_memory", d.Stage.Store.InMemory, "run badgerdb in memory")
	f.String("store.compression", d.Stage.Store.Compression, "checkpoint compression: none, snappy or zstd")

	f.String("log.file", d.Log.File, "also write logs to this file")
	f.String("log.level", d.Log.Level, "log level")
	f.Bool("log.development", d.Log.Development, "human readable logs")
	f.String("http.port", d.HTTP.Port, "port to host the web server on")
	f.String("snapshot_file", d.SnapshotFile, "append snapshot ids to this file when kafka is disabled")

	f.StringSlice("kafka.brokers", d.Kafka.Brokers, "kafka seed brokers, none disables kafka")
	f.String("kafka.group", d.Kafka.Group, "consumer group")
	f.String("kafka.data_topic", d.Kafka.DataTopic, "topic carrying sequence numbers")
	f.String("kafka.control_topic", d.Kafka.ControlTopic, "topic carrying rollback commands")
	f.String("kafka.snapshot_topic", d.Kafka.SnapshotTopic, "topic snapshot ids are published to")
	return f
}

// initFlags loads config files, then REWIND_ environment variables, then
// command line flags, each overriding the previous.
func initFlags(ko *koanf.Koanf, args []string) error {
	f := newFlagSet()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("error loading flags: %w", err)
	}
	log.Trace().Msg("No errors when parsing the flags")

	configs, _ := f.GetStringSlice("config")
	for _, c := range configs {
		log.Debug().Msgf("Reading config from %s", c)
		parser, err := parserFor(c)
		if err != nil {
			return err
		}
		if err := ko.Load(file.Provider(c), parser); err != nil {
			return fmt.Errorf("error reading config: %w", err)
		}
		log.Trace().Msg("Successfully read the contents of the config file")
	}

	if err := ko.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return fmt.Errorf("error reading env config: %w", err)
	}

	if err := ko.Load(posflag.Provider(f, ".", ko), nil); err != nil {
		return fmt.Errorf("error reading flag config: %w", err)
	}
	return nil
}

// envKey maps REWIND_CHECKPOINT__FREQUENCY to checkpoint.frequency.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func parserFor(path string) (koanf.Parser, error) {
	fileExtension := path[strings.LastIndex(path, ".")+1:]
	switch fileExtension {
	case "yaml", "yml":
		return yaml.Parser(), nil
	case "json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported file extension %q", fileExtension)
	}
}
