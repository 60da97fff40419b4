package link

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNoarchEntryPointsFlatSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noarch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"entry_points": ["foo = foo.cli:main"], "type": "python"}`), 0o644))

	eps, err := readNoarchEntryPoints(path)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, EntryPoint{Command: "foo", Module: "foo.cli", Func: "main"}, eps[0])
}

func TestReadNoarchEntryPointsMissingFile(t *testing.T) {
	eps, err := readNoarchEntryPoints(filepath.Join(t.TempDir(), "noarch.json"))
	require.NoError(t, err)
	assert.Empty(t, eps)
}
