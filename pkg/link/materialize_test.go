package link

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterializeHardlink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	dst := filepath.Join(dir, "out", "dst.txt")
	require.NoError(t, materialize(src, dst, Hardlink))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestMaterializeCopyPreservesRelativeSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks not exercised on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("data"), 0o644))

	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink("real.txt", link))

	dst := filepath.Join(dir, "out", "link.txt")
	require.NoError(t, copyPreservingSymlink(link, dst))

	fi, err := os.Lstat(dst)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeSymlink)

	got, err := os.Readlink(dst)
	require.NoError(t, err)
	assert.Equal(t, "real.txt", got)
}

func TestIsScriptDir(t *testing.T) {
	assert.True(t, isScriptDir("bin/foo"))
	assert.True(t, isScriptDir("Scripts/foo.bat"))
	assert.False(t, isScriptDir("lib/foo.so"))
}
