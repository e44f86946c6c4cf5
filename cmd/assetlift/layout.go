package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meigma/assetlift/pool"
)

// Layout describes where a game build keeps its asset pools. Either
// Signature or Tables must be set; explicit tables win.
type Layout struct {
	// Signature locates the pool table through referencing code.
	Signature *SignatureLayout `yaml:"signature"`

	// Kinds restricts the pools read from a located table.
	Kinds []string `yaml:"kinds"`

	// Tables lists pools at known addresses.
	Tables []TableLayout `yaml:"tables"`
}

// SignatureLayout is a byte pattern plus the search range.
type SignatureLayout struct {
	Pattern    string `yaml:"pattern"`
	DispOffset int    `yaml:"disp_offset"`
	InstrLen   int    `yaml:"instr_len"`
	Start      uint64 `yaml:"start"`
	End        uint64 `yaml:"end"`
}

// TableLayout is one pool at a fixed address.
type TableLayout struct {
	Kind   string `yaml:"kind"`
	Start  uint64 `yaml:"start"`
	Stride uint32 `yaml:"stride"`
	Count  uint32 `yaml:"count"`
}

// LoadLayout reads and validates a layout file.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided layout path
	if err != nil {
		return nil, err
	}
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if l.Signature == nil && len(l.Tables) == 0 {
		return nil, errors.New("layout needs a signature or tables")
	}
	return &l, nil
}

// tables converts the explicit pool list.
func (l *Layout) tables() ([]pool.Table, error) {
	out := make([]pool.Table, 0, len(l.Tables))
	for i, t := range l.Tables {
		k, err := pool.ParseKind(t.Kind)
		if err != nil {
			return nil, fmt.Errorf("tables[%d]: %w", i, err)
		}
		p := pool.Pool{Start: t.Start, Stride: t.Stride, Count: t.Count}
		if err := p.Validate(k); err != nil {
			return nil, fmt.Errorf("tables[%d]: %w", i, err)
		}
		out = append(out, pool.Table{Kind: k, Pool: p})
	}
	return out, nil
}

// signature parses the signature and the kinds to read.
func (l *Layout) signature() (pool.Signature, []pool.Kind, error) {
	s := l.Signature
	sig, err := pool.ParseSignature(s.Pattern, s.DispOffset, s.InstrLen)
	if err != nil {
		return pool.Signature{}, nil, fmt.Errorf("signature: %w", err)
	}
	kinds := make([]pool.Kind, 0, len(l.Kinds))
	for _, name := range l.Kinds {
		k, err := pool.ParseKind(name)
		if err != nil {
			return pool.Signature{}, nil, err
		}
		kinds = append(kinds, k)
	}
	return sig, kinds, nil
}
