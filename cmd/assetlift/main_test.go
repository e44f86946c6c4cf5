package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetlift/export"
	"github.com/meigma/assetlift/index"
	"github.com/meigma/assetlift/internal/testutil"
)

// writeIndex lays out one container holding a stored model and a corrupt
// one.
func writeIndex(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	model := testutil.EncodeModel(t, testutil.SampleModel(testutil.Chain(2)))
	bad := []byte("XMDL?")
	size := func(b []byte) uint32 {
		return uint32(len(b)) //nolint:gosec // test sizes are small
	}
	entries := []testutil.TestEntry{
		{ID: 1, Type: uint32(index.TypeModel), Name: "crate", Destination: "props/crate", Uncompressed: size(model), Compressed: size(model)},
		{ID: 2, Type: uint32(index.TypeModel), Name: "bad", Position: uint64(size(model)), Uncompressed: size(bad), Compressed: size(bad)},
	}
	testutil.WriteFiles(t, dir, map[string][]byte{
		"master.idx": testutil.BuildMasterA(t, []testutil.ContainerPair{{IndexName: "c0.idx", Resource: "data.pak"}}, nil, nil),
		"c0.idx":     testutil.BuildContainerIndex(t, testutil.VersionA, entries),
		"data.pak":   append(model, bad...),
	})
	return filepath.Join(dir, "master.idx")
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunIndex(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, "index", writeIndex(t))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "XMDL\t0\tcrate\tprops/crate\t"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "XMDL\t0\tbad\t-\t"), lines[1])
}

func TestRunIndexTypes(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, "index", "--types", "XANM", writeIndex(t))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRunExport(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	out, _, err := runCLI(t, "export", "-o", outDir, "-f", "semodel", writeIndex(t))
	require.ErrorContains(t, err, "1 of 2 entries failed")
	assert.Contains(t, out, "exported\tcrate\n")
	assert.Contains(t, out, "error\tbad\tload: ")

	data, err := os.ReadFile(filepath.Join(outDir, "props", "crate.semodel"))
	require.NoError(t, err)
	sc, err := export.Read(data, export.FormatSEModel, "crate")
	require.NoError(t, err)
	assert.Len(t, sc.Model.Meshes, 2)
}

func TestRunExportNamed(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	cfg := writeYAML(t, "format: cast\noutput_dir: "+outDir+"\n")
	out, _, err := runCLI(t, "export", "--config", cfg, writeIndex(t), "crate")
	require.NoError(t, err)
	assert.Equal(t, "exported\tcrate\n", out)

	_, err = os.Stat(filepath.Join(outDir, "props", "crate.cast"))
	require.NoError(t, err)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"unpack"}},
		{name: "index without path", args: []string{"index"}},
		{name: "export without path", args: []string{"export"}},
		{name: "bad format", args: []string{"export", "-f", "fbx", "master.idx"}},
		{name: "scan without pid", args: []string{"scan", "--layout", "l.yaml"}},
		{name: "missing index", args: []string{"index", filepath.Join(t.TempDir(), "none.idx")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := runCLI(t, tt.args...)
			require.Error(t, err)
		})
	}
}

func TestRunHelp(t *testing.T) {
	t.Parallel()

	out, _, err := runCLI(t, "help")
	require.NoError(t, err)
	assert.Contains(t, out, "Commands:")
}
