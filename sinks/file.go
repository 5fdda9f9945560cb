package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tarungka/rewind/stream"
)

type fileRecord struct {
	ID          uint64 `json:"id"`
	NoWatermark bool   `json:"no_watermark"`
}

// FileSink appends one JSON line per snapshot notification to a file.
type FileSink struct {
	filePath string
	logger   zerolog.Logger

	mu   sync.Mutex
	file *os.File
}

// NewFileSink opens filePath for appending, creating parent directories.
func NewFileSink(filePath string, logger zerolog.Logger) (*FileSink, error) {
	if filePath == "" {
		return nil, fmt.Errorf("missing file_path")
	}
	logger = logger.With().Str("component", "file-sink").Str("file_path", filePath).Logger()
	logger.Trace().Msg("Preparing to open file for writing")

	// Ensure parent directory exists
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Err(err).Str("directory", dir).Msg("Failed to create parent directories")
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	if _, err := os.Stat(filePath); err == nil {
		logger.Warn().Msg("File already exists; appending to it")
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.Err(err).Msg("Failed to open file")
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return &FileSink{filePath: filePath, logger: logger, file: file}, nil
}

func (f *FileSink) Emit(ctx context.Context, n stream.SnapshotNotification) error {
	line, err := json.Marshal(fileRecord{ID: uint64(n.ID), NoWatermark: n.NoWatermark})
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return stream.ErrSinkClosed
	}
	if _, err := f.file.Write(append(line, '\n')); err != nil {
		f.logger.Err(err).Msg("Failed to write to file")
		return err
	}
	f.logger.Debug().Uint64("id", uint64(n.ID)).Msg("Snapshot written to file")
	return nil
}

func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	f.logger.Info().Msg("Closing file sink")
	err := f.file.Close()
	f.file = nil
	if err != nil {
		f.logger.Err(err).Msg("Failed to close file")
	}
	return err
}

var _ stream.Sink = (*FileSink)(nil)
