package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetlift/pool"
)

func TestLoadLayoutTables(t *testing.T) {
	t.Parallel()

	l, err := LoadLayout(writeYAML(t, `
tables:
  - kind: model
    start: 0x140010000
    stride: 0x40
    count: 512
  - kind: animation
    start: 0x140020000
    stride: 0x38
    count: 16
`))
	require.NoError(t, err)

	tables, err := l.tables()
	require.NoError(t, err)
	assert.Equal(t, []pool.Table{
		{Kind: pool.KindModel, Pool: pool.Pool{Start: 0x140010000, Stride: 0x40, Count: 512}},
		{Kind: pool.KindAnimation, Pool: pool.Pool{Start: 0x140020000, Stride: 0x38, Count: 16}},
	}, tables)
}

func TestLoadLayoutSignature(t *testing.T) {
	t.Parallel()

	l, err := LoadLayout(writeYAML(t, `
signature:
  pattern: "48 8D 0D ?? ?? ?? ?? E8"
  disp_offset: 3
  instr_len: 7
  start: 0x140000000
  end: 0x150000000
kinds: [model, image]
`))
	require.NoError(t, err)

	tables, err := l.tables()
	require.NoError(t, err)
	assert.Empty(t, tables)

	sig, kinds, err := l.signature()
	require.NoError(t, err)
	assert.Len(t, sig.Pattern, 8)
	assert.Equal(t, 3, sig.DispOffset)
	assert.Equal(t, []pool.Kind{pool.KindModel, pool.KindImage}, kinds)
	assert.Equal(t, uint64(0x150000000), l.Signature.End)
}

func TestLoadLayoutErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadLayout(writeYAML(t, "kinds: [model]\n"))
	require.Error(t, err)

	l, err := LoadLayout(writeYAML(t, "tables:\n  - {kind: model, start: 0, stride: 0x38, count: 1}\n"))
	require.NoError(t, err)
	_, err = l.tables()
	require.ErrorIs(t, err, pool.ErrLayout)

	l, err = LoadLayout(writeYAML(t, "tables:\n  - {kind: sound, start: 0, stride: 0x40, count: 1}\n"))
	require.NoError(t, err)
	_, err = l.tables()
	require.Error(t, err)

	l, err = LoadLayout(writeYAML(t, "signature: {pattern: \"48 ZZ\", disp_offset: 0, instr_len: 4}\n"))
	require.NoError(t, err)
	_, _, err = l.signature()
	require.Error(t, err)
}
