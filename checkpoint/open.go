package checkpoint

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tarungka/rewind/state"
	"github.com/tarungka/rewind/state/badgerdb"
	"github.com/tarungka/rewind/state/boltdb"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBadger = "badgerdb"
	BackendBolt   = "boltdb"
)

// StoreConfig selects and configures the checkpoint backend.
type StoreConfig struct {
	Backend     string `koanf:"backend" json:"backend"`
	Dir         string `koanf:"dir" json:"dir"`
	InMemory    bool   `koanf:"in_memory" json:"in_memory"`
	Compression string `koanf:"compression" json:"compression"`
}

// Validate checks the backend name and compression setting.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "", BackendMemory:
	case BackendBadger:
		if c.Dir == "" && !c.InMemory {
			return fmt.Errorf("%s backend needs a directory or in_memory", c.Backend)
		}
	case BackendBolt:
		if c.Dir == "" {
			return fmt.Errorf("%s backend needs a directory", c.Backend)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	_, err := ParseCompressionType(c.Compression)
	return err
}

// Open builds a Store for cfg. namespace scopes the stored keys, typically
// to the stage id.
func Open(cfg StoreConfig, namespace string, logger zerolog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sc := &state.Config{Dir: cfg.Dir, InMemory: cfg.InMemory, Namespace: namespace}
	var backend state.Backend
	switch cfg.Backend {
	case BackendBadger:
		db := badgerdb.New(sc, logger)
		if err := db.Open(); err != nil {
			return nil, err
		}
		backend = db
	case BackendBolt:
		db := boltdb.New(sc, logger)
		if err := db.Open(); err != nil {
			return nil, err
		}
		backend = db
	default:
		backend = state.NewInMemoryBackend()
	}

	s, err := OpenBackend(backend, cfg.Compression, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	logger.Info().Str("backend", backendName(cfg.Backend)).Str("compression", cfg.Compression).Msg("opened checkpoint store")
	return s, nil
}

// OpenBackend builds a Store over an already open backend, such as a
// namespace of a database handle shared by several stages.
func OpenBackend(backend state.Backend, compression string, logger zerolog.Logger) (*Store, error) {
	ct, err := ParseCompressionType(compression)
	if err != nil {
		return nil, err
	}
	c, err := NewCodec(ct)
	if err != nil {
		return nil, err
	}
	return NewStore(backend, c, logger), nil
}

func backendName(b string) string {
	if b == "" {
		return BackendMemory
	}
	return b
}
