package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogger_Writer(t *testing.T) {
	require.NoError(t, SetLevel("debug"))
	t.Cleanup(func() { SetLevel("info") })

	var buf bytes.Buffer
	SetLogFile(&buf)
	t.Cleanup(func() { SetLogFile(nil) })

	l := GetLogger("rewind-test")
	l.Trace().Msg("hidden")
	l.Debug().Str("stage", "sink").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rewind-test", line["service"])
	assert.Equal(t, "sink", line["stage"])
	assert.Equal(t, "hello", line["message"])
}

func TestSetLevel(t *testing.T) {
	assert.Error(t, SetLevel("loud"))
	assert.NoError(t, SetLevel(""))
	assert.NoError(t, SetLevel("WARN"))
	assert.NoError(t, SetLevel("info"))
}

func TestGetLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rewind.log")
	f, err := OpenLogFile(path)
	require.NoError(t, err)
	defer f.Close()

	SetLogFile(f)
	t.Cleanup(func() { SetLogFile(nil) })

	l := GetLogger("rewind-file")
	l.Info().Msg("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"rewind-file"`)
}
