// Package pool scans fixed-stride asset header arrays in a process address
// space and classifies each slot as Loaded, Placeholder or Null.
//
// Liveness is never flagged explicitly in the headers; it is inferred from
// pointer structure by a Classifier. Each asset kind supplies a Strategy
// describing its stride, header layout and summary fields.
package pool

import (
	"errors"
	"fmt"

	"github.com/meigma/assetlift/internal/sizing"
)

// Sentinel errors.
var (
	// ErrLayout is returned when a pool table disagrees with the kind's
	// header layout.
	ErrLayout = errors.New("pool: unexpected layout")

	// ErrNotFound is returned when a signature does not occur in the
	// searched range.
	ErrNotFound = errors.New("pool: signature not found")
)

// Pool is a fixed-stride array of headers.
type Pool struct {
	Start  uint64
	Stride uint32
	Count  uint32
}

// End returns the first address past the last slot.
func (p Pool) End() uint64 {
	return p.Start + uint64(p.Stride)*uint64(p.Count)
}

// Contains reports whether addr lies inside [Start, End). A name pointer
// inside the pool refers to a sibling slot and marks a null record.
func (p Pool) Contains(addr uint64) bool {
	return addr >= p.Start && addr < p.End()
}

// Slot returns the address of slot i.
func (p Pool) Slot(i int) uint64 {
	return p.Start + uint64(p.Stride)*uint64(i) //nolint:gosec // i ranges over Count
}

// Validate checks that the pool matches the kind's stride and does not wrap
// the address space.
func (p Pool) Validate(k Kind) error {
	s, err := k.Strategy()
	if err != nil {
		return err
	}
	if p.Stride != s.Stride() {
		return fmt.Errorf("%w: %s stride 0x%x, want 0x%x", ErrLayout, k, p.Stride, s.Stride())
	}
	span, ok := sizing.MulUint64(uint64(p.Stride), uint64(p.Count))
	if _, fits := sizing.AddUint64(p.Start, span); !ok || !fits {
		return fmt.Errorf("%w: %s pool wraps the address space", ErrLayout, k)
	}
	return nil
}

// Table names a pool together with the kind of header it holds.
type Table struct {
	Kind Kind
	Pool Pool
}

// Status is the classification of one slot.
type Status int

// Slot statuses.
const (
	StatusNull Status = iota
	StatusPlaceholder
	StatusLoaded
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNull:
		return "null"
	case StatusPlaceholder:
		return "placeholder"
	case StatusLoaded:
		return "loaded"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Slot is the result of scanning one header.
type Slot struct {
	Index   int
	Address uint64
	Status  Status
	// Asset is set for Loaded slots only.
	Asset *Asset
}
