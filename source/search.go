package source

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultSearchBuffer is the refill buffer size used by FindBytes and
// FindPattern.
const DefaultSearchBuffer = 64 << 10

// Wild is one position of a search pattern. When Any is set the position
// matches every byte; the match still advances by exactly one byte.
type Wild struct {
	Value byte
	Any   bool
}

// Exact converts a literal needle into a pattern.
func Exact(needle []byte) []Wild {
	pattern := make([]Wild, len(needle))
	for i, b := range needle {
		pattern[i] = Wild{Value: b}
	}
	return pattern
}

// ParsePattern parses a space-separated signature such as "48 8B ?? 05".
// "?" and "??" are wildcards.
func ParsePattern(s string) ([]Wild, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, errors.New("source: empty pattern")
	}
	pattern := make([]Wild, len(fields))
	for i, f := range fields {
		if f == "?" || f == "??" {
			pattern[i] = Wild{Any: true}
			continue
		}
		v, err := strconv.ParseUint(f, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("source: pattern token %d %q: %w", i, f, err)
		}
		pattern[i] = Wild{Value: byte(v)}
	}
	return pattern, nil
}

// SearchOption configures FindBytes and FindPattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	bufSize int
}

// WithBufferSize sets the refill buffer size. Values < 1 are ignored.
func WithBufferSize(n int) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.bufSize = n
		}
	}
}

// FindBytes returns the addresses in [start, end) where needle occurs. When
// firstOnly is set, at most one address is returned.
func (c *Cursor) FindBytes(needle []byte, start, end uint64, firstOnly bool, opts ...SearchOption) ([]uint64, error) {
	return c.FindPattern(Exact(needle), start, end, firstOnly, opts...)
}

// FindPattern returns the addresses in [start, end) where pattern matches.
//
// The range is streamed through a bounded buffer. Match state is carried
// across refills, so occurrences that straddle two buffers are reported.
// Overlapping occurrences are all reported.
func (c *Cursor) FindPattern(pattern []Wild, start, end uint64, firstOnly bool, opts ...SearchOption) ([]uint64, error) {
	if len(pattern) == 0 {
		return nil, errors.New("source: empty pattern")
	}
	cfg := searchConfig{bufSize: DefaultSearchBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}
	if size := uint64(max(c.src.Size(), 0)); end > size { //nolint:gosec // clamped non-negative
		end = size
	}
	m := uint64(len(pattern))
	if end <= start || end-start < m {
		return nil, nil
	}

	mt := newMatcher(pattern)
	buf := make([]byte, min(uint64(cfg.bufSize), end-start)) //nolint:gosec // bufSize is positive

	var hits []uint64
	for pos := start; pos < end; {
		n := min(uint64(len(buf)), end-pos)
		chunk := buf[:n]
		if err := c.ReadInto(pos, chunk); err != nil {
			return hits, err
		}
		for i, b := range chunk {
			if !mt.step(b) {
				continue
			}
			hits = append(hits, pos+uint64(i)+1-m) //nolint:gosec // i is non-negative
			if firstOnly {
				return hits, nil
			}
		}
		pos += n
	}
	return hits, nil
}

// matcher is a bit-parallel (shift-and) pattern automaton. Bit i of state is
// set when the last i+1 bytes matched pattern[0..i], which is the partial
// match state carried from one buffer to the next.
type matcher struct {
	masks [256][]uint64
	state []uint64
	last  uint64
}

func newMatcher(pattern []Wild) *matcher {
	words := (len(pattern) + 63) / 64
	mt := &matcher{
		state: make([]uint64, words),
		last:  uint64(1) << ((len(pattern) - 1) % 64),
	}
	for c := range mt.masks {
		mt.masks[c] = make([]uint64, words)
	}
	for i, w := range pattern {
		bit := uint64(1) << (i % 64)
		if w.Any {
			for c := range mt.masks {
				mt.masks[c][i/64] |= bit
			}
			continue
		}
		mt.masks[w.Value][i/64] |= bit
	}
	return mt
}

// step consumes one byte and reports whether a full match ends at it.
func (mt *matcher) step(b byte) bool {
	mask := mt.masks[b]
	carry := uint64(1)
	for w := range mt.state {
		next := mt.state[w] >> 63
		mt.state[w] = (mt.state[w]<<1 | carry) & mask[w]
		carry = next
	}
	return mt.state[len(mt.state)-1]&mt.last != 0
}
