// Package snapshot persists parsed container graphs in a cache.Cache.
//
// A stored value is a short header followed by a zstd frame holding the
// CBOR encoding of an index.Snapshot. Concurrent loads of one key share a
// single read and decode.
package snapshot

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/assetlift/cache"
	"github.com/meigma/assetlift/index"
)

// formatVersion changes whenever the encoded layout does.
const formatVersion = 1

var magic = []byte("ALSN")

// ErrCorrupt is returned for stored values that cannot be decoded.
var ErrCorrupt = errors.New("snapshot: corrupt entry")

var _ index.SnapshotStore = (*Store)(nil)

// Store adapts a cache.Cache to index.SnapshotStore.
type Store struct {
	cache  cache.Cache
	logger *slog.Logger
	group  singleflight.Group

	encOnce sync.Once
	enc     *zstd.Encoder
	encErr  error
	dec     *zstd.Decoder
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New returns a Store backed by c.
func New(c cache.Cache, opts ...Option) (*Store, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("snapshot: create decoder: %w", err)
	}
	s := &Store{cache: c, dec: dec}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Close releases the codec state.
func (s *Store) Close() error {
	s.dec.Close()
	if s.enc != nil {
		return s.enc.Close()
	}
	return nil
}

// Get loads the snapshot stored under key.
func (s *Store) Get(key string) (*index.Snapshot, bool, error) {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return nil, false, fmt.Errorf("snapshot: key %q: %w", key, err)
	}
	v, err, shared := s.group.Do(key, func() (any, error) {
		data, ok := s.cache.Get(raw)
		if !ok {
			return (*index.Snapshot)(nil), nil
		}
		return s.decode(data)
	})
	if err != nil {
		return nil, false, err
	}
	snap, _ := v.(*index.Snapshot)
	if snap == nil {
		return nil, false, nil
	}
	s.log().Debug("snapshot loaded", "key", key, "shared", shared)
	return snap, true, nil
}

// Put stores snap under key.
func (s *Store) Put(key string, snap *index.Snapshot) error {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return fmt.Errorf("snapshot: key %q: %w", key, err)
	}
	data, err := s.encode(snap)
	if err != nil {
		return err
	}
	if err := s.cache.Put(raw, data); err != nil {
		return fmt.Errorf("snapshot: store: %w", err)
	}
	s.log().Debug("snapshot stored", "key", key, "bytes", len(data))
	return nil
}

func (s *Store) encoder() (*zstd.Encoder, error) {
	s.encOnce.Do(func() {
		s.enc, s.encErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return s.enc, s.encErr
}

func (s *Store) encode(snap *index.Snapshot) ([]byte, error) {
	body, err := cbor.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	enc, err := s.encoder()
	if err != nil {
		return nil, fmt.Errorf("snapshot: create encoder: %w", err)
	}
	out := make([]byte, 0, len(magic)+1+len(body)/2)
	out = append(out, magic...)
	out = append(out, formatVersion)
	return enc.EncodeAll(body, out), nil
}

func (s *Store) decode(data []byte) (*index.Snapshot, error) {
	header := len(magic) + 1
	if len(data) < header || !bytes.Equal(data[:len(magic)], magic) {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	if v := data[len(magic)]; v != formatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrCorrupt, v)
	}
	body, err := s.dec.DecodeAll(data[header:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	var snap index.Snapshot
	if err := cbor.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return &snap, nil
}
