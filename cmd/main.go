package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tarungka/rewind/checkpoint"
	"github.com/tarungka/rewind/engine"
	"github.com/tarungka/rewind/internal/logger"
	"github.com/tarungka/rewind/server"
	"github.com/tarungka/rewind/sinks"
	"github.com/tarungka/rewind/sources"
	"github.com/tarungka/rewind/stream"
	"golang.org/x/sync/errgroup"
)

var (
	buildString = "unknown"
	ko          = koanf.New(".")
)

func main() {
	if err := initFlags(ko, os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if ko.Bool("version") {
		fmt.Println(buildString)
		os.Exit(0)
	}

	cfg, err := loadConfig(ko)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	l, closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	defer closeLog()
	l.Info().Str("build", buildString).Msgf("Build Version: %s", buildString)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Err(err).Msg("stage exited with an error")
		closeLog()
		os.Exit(1)
	}
	l.Info().Msg("received interrupt signal; stage stopped")
}

func setupLogging(cfg LogConfig) (zerolog.Logger, func(), error) {
	closeLog := func() {}
	logger.SetDevelopment(cfg.Development)
	if err := logger.SetLevel(cfg.Level); err != nil {
		return zerolog.Nop(), closeLog, err
	}
	if cfg.File != "" {
		f, err := logger.OpenLogFile(cfg.File)
		if err != nil {
			return zerolog.Nop(), closeLog, err
		}
		logger.SetLogFile(f)
		closeLog = func() { f.Close() }
	}
	return logger.GetLogger("rewind"), closeLog, nil
}

func run(ctx context.Context, cfg Config, l zerolog.Logger) error {
	l.Info().Msg("Starting the application")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := checkpoint.Open(cfg.Stage.Store, cfg.Stage.StageID, l)
	if err != nil {
		return err
	}
	defer store.Close()

	var sink stream.Sink = stream.NewPrintSink(os.Stdout)
	var source *sources.KafkaSource
	switch {
	case cfg.Kafka.Enabled():
		ks, err := sinks.NewKafkaSink(cfg.Kafka.Sink(), l)
		if err != nil {
			return err
		}
		sink = ks

		source, err = sources.NewKafkaSource(cfg.Kafka.Source(), l)
		if err != nil {
			return err
		}
		if err := source.Connect(ctx); err != nil {
			return err
		}
		defer source.Disconnect()
	case cfg.SnapshotFile != "":
		fs, err := sinks.NewFileSink(cfg.SnapshotFile, l)
		if err != nil {
			return err
		}
		sink = fs
	}
	defer sink.Close()

	stage, err := engine.NewStage(cfg.Stage, store, engine.NewWatermark(), sink, l)
	if err != nil {
		return err
	}
	d := engine.NewDispatcher(stage, l)

	var wg sync.WaitGroup
	var data, control <-chan stream.Event
	if source != nil {
		data, control, err = source.Read(ctx, &wg)
		if err != nil {
			return err
		}
	} else {
		// no inputs; the stage is driven over HTTP only
		data = make(chan stream.Event)
	}

	go func() {
		for range d.Errors() {
			// already logged by the dispatcher
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// inputs closing ends the whole service
		defer cancel()
		err := d.Run(gctx, data, control)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.Stage.Checkpoint.Enabled && cfg.Stage.Checkpoint.Interval > 0 {
		g.Go(func() error {
			engine.NewCheckpointCoordinator(cfg.Stage.Checkpoint.Interval, d, l).Start(gctx)
			return nil
		})
	}

	srv := server.New(cfg.HTTP.Port, d, l)
	g.Go(func() error {
		l.Info().Msg("Starting the web server...")
		if err := srv.Run(gctx); err != nil {
			l.Err(err).Msg("web server stopped with an error")
			return err
		}
		return nil
	})

	err = g.Wait()
	cancel()
	wg.Wait()
	return err
}
