package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu sync.Mutex

	isDevelopment = false // if running in debug mode

	level = zerolog.InfoLevel

	logFile io.Writer = nil
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// GetLogger returns a logger for serviceName writing to stderr and, when
// set, the log file.
func GetLogger(serviceName string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if !isDevelopment {
		var w io.Writer = os.Stderr
		if logFile != nil {
			w = zerolog.MultiLevelWriter(os.Stderr, logFile)
		}
		return zerolog.New(w).Level(level).With().Timestamp().Str("service", serviceName).Logger()
	}

	// human-readable console output, raw JSON to the file
	var w io.Writer = consoleWriter(os.Stderr)
	if logFile != nil {
		w = zerolog.MultiLevelWriter(w, logFile)
	}
	return zerolog.New(w).Level(zerolog.TraceLevel).With().Timestamp().Str("service", serviceName).Caller().Logger()
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339,
		FormatLevel: func(i any) string {
			return strings.ToUpper(fmt.Sprintf("[%5s]", i))
		},
		FormatMessage: func(i any) string {
			return fmt.Sprintf("| %s |", i)
		},
		FormatCaller: func(i any) string {
			return filepath.Base(fmt.Sprintf("%s", i))
		},
		PartsExclude: []string{
			zerolog.TimestampFieldName,
		}}
}

func SetDevelopment(value bool) {
	mu.Lock()
	defer mu.Unlock()
	isDevelopment = value
}

// SetLevel parses and sets the level used outside development mode.
func SetLevel(l string) error {
	parsed, err := zerolog.ParseLevel(strings.ToLower(l))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", l, err)
	}
	if parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	mu.Lock()
	defer mu.Unlock()
	level = parsed
	return nil
}

// SetLogFile adds w as a second log destination. It receives JSON lines in
// every mode; nil removes it.
func SetLogFile(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logFile = w
}

// OpenLogFile opens path for appending, creating parent directories.
func OpenLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}
