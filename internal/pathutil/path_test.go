package pathutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "models/hero", want: "models/hero"},
		{in: `models\hero`, want: "models/hero"},
		{in: "/abs/hero", want: "abs/hero"},
		{in: `C:\game\hero`, want: "game/hero"},
		{in: "a/./b//c", want: "a/b/c"},
		{in: "../escape", err: true},
		{in: "a/../../b", err: true},
		{in: "", err: true},
		{in: "/", err: true},
	}
	for _, tt := range tests {
		got, err := Clean(tt.in)
		if tt.err {
			require.ErrorIs(t, err, ErrUnsafePath, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()

	got, err := Join("/out", "models/hero.cast")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", "models", "hero.cast"), got)

	_, err = Join("/out", "../x")
	require.ErrorIs(t, err, ErrUnsafePath)
}
