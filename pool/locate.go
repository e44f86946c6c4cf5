package pool

import (
	"fmt"

	"github.com/meigma/assetlift/source"
)

// Signature locates a pool table through an instruction that references it
// with a RIP-relative displacement.
type Signature struct {
	// Pattern matches the referencing instruction.
	Pattern []source.Wild
	// DispOffset is the offset of the signed 32-bit displacement within
	// the match.
	DispOffset int
	// InstrLen is the length of the instruction; the displacement is
	// relative to the next instruction.
	InstrLen int
}

// ParseSignature builds a Signature from a pattern string such as
// "48 8D 0D ?? ?? ?? ??".
func ParseSignature(pattern string, dispOffset, instrLen int) (Signature, error) {
	p, err := source.ParsePattern(pattern)
	if err != nil {
		return Signature{}, err
	}
	if dispOffset < 0 || dispOffset+4 > instrLen {
		return Signature{}, fmt.Errorf("%w: displacement at %d outside %d-byte instruction", ErrLayout, dispOffset, instrLen)
	}
	return Signature{Pattern: p, DispOffset: dispOffset, InstrLen: instrLen}, nil
}

// Locate searches [start, end) for sig and returns the address its first
// match references. Discovery is best-effort: a build whose code differs from
// the signature yields ErrNotFound.
func Locate(c *source.Cursor, sig Signature, start, end uint64) (uint64, error) {
	hits, err := c.FindPattern(sig.Pattern, start, end, true)
	if err != nil {
		return 0, err
	}
	if len(hits) == 0 {
		return 0, ErrNotFound
	}
	hit := hits[0]
	disp, err := c.Int32At(hit + uint64(sig.DispOffset)) //nolint:gosec // validated non-negative
	if err != nil {
		return 0, err
	}
	target := int64(hit) + int64(sig.InstrLen) + int64(disp) //nolint:gosec // two's-complement address arithmetic
	if target < 0 {
		return 0, fmt.Errorf("%w: displacement %d from 0x%x resolves below zero", ErrLayout, disp, hit)
	}
	return uint64(target), nil
}

// tableRecordSize is the size of one {Start u64, Stride u32, Count u32}
// record in the pool table.
const tableRecordSize = 16

type tableRecord struct {
	Start  uint64
	Stride uint32
	Count  uint32
}

// ReadTables reads the pool records for kinds from the table at addr. The
// table holds one record per kind, indexed by Kind. Records whose stride
// does not match the kind's layout are rejected.
func ReadTables(c *source.Cursor, addr uint64, kinds ...Kind) ([]Table, error) {
	if len(kinds) == 0 {
		kinds = Kinds
	}
	out := make([]Table, 0, len(kinds))
	for _, k := range kinds {
		rec, err := source.ReadStruct[tableRecord](c, addr+uint64(k)*tableRecordSize) //nolint:gosec // kinds are small non-negative
		if err != nil {
			return nil, fmt.Errorf("%s table: %w", k, err)
		}
		t := Table{Kind: k, Pool: Pool(rec)}
		if err := t.Pool.Validate(k); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
