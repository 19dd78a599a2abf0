package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{name: "empty path", input: "", wantError: true},
		{name: "relative path", input: "./test", wantError: false},
		{name: "absolute path", input: "/tmp/test", wantError: false},
		{name: "home path", input: "~/drawings", wantError: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolvePath(tt.input)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, filepath.IsAbs(result))
			assert.False(t, strings.HasPrefix(result, "~"))
		})
	}
}

func TestNormPath(t *testing.T) {
	assert.Equal(t, "drawings/a.dwg", NormPath("/drawings/a.dwg"))
	assert.Equal(t, "drawings/a.dwg", NormPath("drawings//a.dwg"))
	assert.Equal(t, "drawings/a.dwg", NormPath(`drawings\a.dwg`))
}

func TestEnsureDirAndParent(t *testing.T) {
	tmp := t.TempDir()

	nested := filepath.Join(tmp, "a", "b", "c")
	require.NoError(t, EnsureDir(nested))
	assert.True(t, DirExists(nested))

	// idempotent
	require.NoError(t, EnsureDir(nested))

	file := filepath.Join(tmp, "x", "y", "file.dwg")
	require.NoError(t, EnsureParent(file))
	assert.True(t, DirExists(filepath.Dir(file)))
	assert.False(t, FileExists(file))

	require.NoError(t, os.WriteFile(file, []byte("data"), 0o644))
	assert.True(t, FileExists(file))
	assert.False(t, DirExists(file))
}
