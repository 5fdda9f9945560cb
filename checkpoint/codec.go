package checkpoint

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/tarungka/rewind/stream"
)

// CompressionType defines the compression applied to encoded checkpoints.
type CompressionType byte

const (
	// CompressionNone indicates no compression.
	CompressionNone CompressionType = iota
	// CompressionSnappy indicates Snappy compression.
	CompressionSnappy
	// CompressionZSTD indicates Zstandard compression.
	CompressionZSTD
)

// ParseCompressionType converts a string representation of compression type
// into the CompressionType enum.
func ParseCompressionType(t string) (CompressionType, error) {
	switch strings.ToLower(t) {
	case "none", "":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unsupported compression type: %s", t)
	}
}

// record is the wire shape of a checkpoint.
type record struct {
	ID        uint64   `codec:"id"`
	Window    []uint64 `codec:"window"`
	CreatedAt int64    `codec:"created_at"`
}

// Codec turns checkpoints into bytes and back. The first byte of every
// encoded value names the compression used, so values written with one
// setting stay readable after it changes.
type Codec struct {
	compression CompressionType
	handle      *codec.MsgpackHandle
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
}

// NewCodec creates a codec writing with the given compression.
func NewCodec(compression CompressionType) (*Codec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Codec{
		compression: compression,
		handle:      &codec.MsgpackHandle{},
		encoder:     enc,
		decoder:     dec,
	}, nil
}

// Close releases the zstd encoder and decoder. The codec is unusable after.
func (c *Codec) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}

// Encode serializes cp.
func (c *Codec) Encode(cp Checkpoint) ([]byte, error) {
	r := record{
		ID:        uint64(cp.ID),
		Window:    make([]uint64, len(cp.Window)),
		CreatedAt: cp.CreatedAt.UnixNano(),
	}
	for i, v := range cp.Window {
		r.Window[i] = uint64(v)
	}

	buf := bytes.NewBuffer(nil)
	if err := codec.NewEncoder(buf, c.handle).Encode(&r); err != nil {
		return nil, err
	}

	var body []byte
	switch c.compression {
	case CompressionSnappy:
		body = snappy.Encode(nil, buf.Bytes())
	case CompressionZSTD:
		body = c.encoder.EncodeAll(buf.Bytes(), nil)
	default:
		body = buf.Bytes()
	}
	return append([]byte{byte(c.compression)}, body...), nil
}

// Decode reverses Encode.
func (c *Codec) Decode(data []byte) (Checkpoint, error) {
	if len(data) == 0 {
		return Checkpoint{}, fmt.Errorf("%w: empty value", ErrCorrupted)
	}

	var (
		raw []byte
		err error
	)
	switch CompressionType(data[0]) {
	case CompressionNone:
		raw = data[1:]
	case CompressionSnappy:
		raw, err = snappy.Decode(nil, data[1:])
	case CompressionZSTD:
		raw, err = c.decoder.DecodeAll(data[1:], nil)
	default:
		return Checkpoint{}, fmt.Errorf("%w: unknown compression %d", ErrCorrupted, data[0])
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	var r record
	if err := codec.NewDecoder(bytes.NewReader(raw), c.handle).Decode(&r); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	cp := Checkpoint{
		ID:        stream.SequenceNumber(r.ID),
		Window:    make([]stream.SequenceNumber, len(r.Window)),
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
	for i, v := range r.Window {
		cp.Window[i] = stream.SequenceNumber(v)
	}
	return cp, nil
}
