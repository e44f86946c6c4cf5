package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meigma/assetlift/source"
)

// Decompressor decodes a stream payload to exactly expected bytes.
type Decompressor interface {
	Decompress(data []byte, expected int) ([]byte, error)
}

// Asset describes a Loaded slot.
type Asset struct {
	Kind    Kind
	Name    string
	Address uint64
	Summary Summary

	// Extract reads the slot's stream descriptor and payload and decodes it.
	// Each call uses its own cursor over the scanned source.
	Extract func(ctx context.Context) ([]byte, error)
}

// Scanner walks pools and classifies their slots.
type Scanner struct {
	classifier   Classifier
	decompressor Decompressor
	logger       *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClassifier replaces the default PlaceholderClassifier.
func WithClassifier(c Classifier) Option {
	return func(s *Scanner) {
		s.classifier = c
	}
}

// WithDecompressor sets the decoder used by Asset.Extract. Without one,
// Extract returns the raw stream bytes.
func WithDecompressor(d Decompressor) Option {
	return func(s *Scanner) {
		s.decompressor = d
	}
}

// WithLogger sets the scanner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// NewScanner creates a Scanner.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{classifier: NewPlaceholderClassifier()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Scanner) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Scan classifies every slot of t in a single ascending pass. A header that
// cannot be read aborts the scan; a name pointer that cannot be read marks
// the slot Null. Scanning an unchanged pool again yields the same result.
func (s *Scanner) Scan(ctx context.Context, src source.ByteSource, t Table) ([]Slot, error) {
	strategy, err := t.Kind.Strategy()
	if err != nil {
		return nil, err
	}
	if err := t.Pool.Validate(t.Kind); err != nil {
		return nil, err
	}

	c := source.NewCursor(src)
	s.classifier.Reset()
	slots := make([]Slot, 0, t.Pool.Count)
	var loaded, placeholders int
	for i := range int(t.Pool.Count) {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		addr := t.Pool.Slot(i)
		h, err := strategy.Decode(c, addr)
		if err != nil {
			return nil, fmt.Errorf("%s slot %d: %w", t.Kind, i, err)
		}
		v, err := s.classifier.Classify(c, t.Pool, h)
		if err != nil {
			if !errors.Is(err, source.ErrIOFault) {
				return nil, fmt.Errorf("%s slot %d: %w", t.Kind, i, err)
			}
			s.log().Debug("unreadable name pointer", "kind", t.Kind.String(), "slot", i, "name_ptr", h.NamePtr)
			v = Verdict{Status: StatusNull}
		}

		slot := Slot{Index: i, Address: addr, Status: v.Status}
		switch v.Status {
		case StatusLoaded:
			loaded++
			slot.Asset = &Asset{
				Kind:    t.Kind,
				Name:    v.Name,
				Address: addr,
				Summary: strategy.Summarize(h),
				Extract: s.extractor(src, addr),
			}
		case StatusPlaceholder:
			placeholders++
		}
		slots = append(slots, slot)
	}
	s.log().Debug("pool scanned",
		"kind", t.Kind.String(),
		"slots", len(slots),
		"loaded", loaded,
		"placeholders", placeholders)
	return slots, nil
}

// ScanAll scans each table in order and concatenates the Loaded assets.
func (s *Scanner) ScanAll(ctx context.Context, src source.ByteSource, tables []Table) ([]Slot, error) {
	var out []Slot
	for _, t := range tables {
		slots, err := s.Scan(ctx, src, t)
		if err != nil {
			return nil, err
		}
		out = append(out, slots...)
	}
	return out, nil
}

func (s *Scanner) extractor(src source.ByteSource, slot uint64) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := source.NewCursor(src)
		stream, err := ReadStream(c, slot)
		if err != nil {
			return nil, err
		}
		data, err := c.ReadBytes(stream.DataPtr, int(stream.CompressedSize))
		if err != nil {
			return nil, err
		}
		if s.decompressor == nil {
			return data, nil
		}
		return s.decompressor.Decompress(data, int(stream.UncompressedSize))
	}
}
