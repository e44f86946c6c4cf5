package export_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetlift/export"
	"github.com/meigma/assetlift/internal/testutil"
	"github.com/meigma/assetlift/scene"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want export.Format
		ok   bool
	}{
		{in: "semodel", want: export.FormatSEModel, ok: true},
		{in: "SEModel", want: export.FormatSEModel, ok: true},
		{in: "cast", want: export.FormatCast, ok: true},
		{in: "fbx"},
		{in: ""},
	}
	for _, tt := range tests {
		got, err := export.ParseFormat(tt.in)
		if !tt.ok {
			require.ErrorIs(t, err, export.ErrUnsupported, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
	assert.Equal(t, ".cast", export.FormatCast.Ext())
	assert.Equal(t, ".semodel", export.FormatSEModel.Ext())
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	model := &scene.Scene{Name: "hero", Model: testutil.SampleModel(testutil.Chain(4))}
	anim := &scene.Scene{Name: "hero_run", Animation: testutil.SampleAnimation(30)}

	tests := []struct {
		name   string
		scene  *scene.Scene
		format export.Format
	}{
		{name: "semodel model", scene: model, format: export.FormatSEModel},
		{name: "cast model", scene: model, format: export.FormatCast},
		{name: "cast animation", scene: anim, format: export.FormatCast},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			require.NoError(t, export.Write(tt.scene, tt.format, &buf))
			got, err := export.Read(buf.Bytes(), tt.format, tt.scene.Name)
			require.NoError(t, err)
			assert.Equal(t, tt.scene.Name, got.Name)
			if tt.scene.Animation != nil {
				assert.Equal(t, tt.scene.Animation, got.Animation)
				return
			}
			require.NotNil(t, got.Model)
			require.Len(t, got.Model.Meshes, len(tt.scene.Model.Meshes))
			for i, mesh := range tt.scene.Model.Meshes {
				assert.Equal(t, mesh.Positions, got.Model.Meshes[i].Positions)
				assert.Equal(t, mesh.Faces, got.Model.Meshes[i].Faces)
			}
		})
	}
}

func TestSEModelRejectsAnimation(t *testing.T) {
	t.Parallel()

	sc := &scene.Scene{Name: "run", Animation: testutil.SampleAnimation(10)}
	err := export.Write(sc, export.FormatSEModel, &bytes.Buffer{})
	require.ErrorIs(t, err, export.ErrUnsupported)

	path := filepath.Join(t.TempDir(), "run.semodel")
	require.ErrorIs(t, export.WriteFile(sc, export.FormatSEModel, path), export.ErrUnsupported)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteRejectsInvalidScene(t *testing.T) {
	t.Parallel()

	m := testutil.SampleModel(testutil.Chain(2))
	m.Meshes[0].Influences[0].Bone = 40
	err := export.Write(&scene.Scene{Name: "bad", Model: m}, export.FormatCast, &bytes.Buffer{})
	require.ErrorIs(t, err, scene.ErrInvalid)
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "models", "hero.cast")
	sc := &scene.Scene{Name: "hero", Model: testutil.SampleModel(testutil.Chain(3))}
	require.NoError(t, export.WriteFile(sc, export.FormatCast, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := export.Read(data, export.FormatCast, "")
	require.NoError(t, err)
	assert.Equal(t, "hero", got.Name)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not remain")

	// A failed overwrite leaves the previous file intact.
	bad := &scene.Scene{Name: "hero"}
	require.Error(t, export.WriteFile(bad, export.FormatCast, path))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, after)
}
