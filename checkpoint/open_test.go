package checkpoint

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarungka/rewind/state"
	"github.com/tarungka/rewind/state/badgerdb"
)

func TestOpen_Backends(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(dir string) StoreConfig
	}{
		{name: "default", cfg: func(string) StoreConfig { return StoreConfig{} }},
		{name: "memory", cfg: func(string) StoreConfig { return StoreConfig{Backend: BackendMemory} }},
		{name: "badger file", cfg: func(dir string) StoreConfig {
			return StoreConfig{Backend: BackendBadger, Dir: dir, Compression: "snappy"}
		}},
		{name: "badger in memory", cfg: func(string) StoreConfig {
			return StoreConfig{Backend: BackendBadger, InMemory: true}
		}},
		{name: "bolt", cfg: func(dir string) StoreConfig {
			return StoreConfig{Backend: BackendBolt, Dir: dir, Compression: "zstd"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg(t.TempDir()), "sink", zerolog.Nop())
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.Put(5, seqs(3, 4, 5)))
			assert.ErrorIs(t, s.Put(5, seqs(5)), ErrAlreadyExists)

			cp, ok, err := s.Floor(6)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, seqs(3, 4, 5), cp.Window)
		})
	}
}

func TestStoreConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StoreConfig
		wantErr bool
	}{
		{name: "empty", cfg: StoreConfig{}},
		{name: "unknown backend", cfg: StoreConfig{Backend: "rocksdb"}, wantErr: true},
		{name: "badger without dir", cfg: StoreConfig{Backend: BackendBadger}, wantErr: true},
		{name: "bolt without dir", cfg: StoreConfig{Backend: BackendBolt, InMemory: true}, wantErr: true},
		{name: "bad compression", cfg: StoreConfig{Compression: "gzip"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpenBackend_SharedBadger(t *testing.T) {
	bdb, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	defer bdb.Close()

	a, err := OpenBackend(badgerdb.NewShared(bdb, "a", zerolog.Nop()), "zstd", zerolog.Nop())
	require.NoError(t, err)
	b, err := OpenBackend(badgerdb.NewShared(bdb, "a/b", zerolog.Nop()), "none", zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, a.Put(3, seqs(1, 2, 3)))
	require.NoError(t, b.Put(7, seqs(7)))
	require.NoError(t, b.Put(3, seqs(3)), "ids are per namespace")

	ids, err := a.IDs()
	require.NoError(t, err)
	assert.Equal(t, seqs(3), ids)

	require.NoError(t, b.Clear())
	cp, err := a.Get(3)
	require.NoError(t, err)
	assert.Equal(t, seqs(1, 2, 3), cp.Window)

	require.NoError(t, a.Close())
	require.NoError(t, b.Put(9, seqs(9)))
	require.NoError(t, b.Close())
}

func TestOpenBackend_BadCompression(t *testing.T) {
	_, err := OpenBackend(state.NewInMemoryBackend(), "gzip", zerolog.Nop())
	assert.Error(t, err)
}
