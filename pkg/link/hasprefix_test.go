package link

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelpdev/kelp/pkg/record"
)

func TestParseHasPrefixLineBare(t *testing.T) {
	placeholder, mode, path, err := ParseHasPrefixLine("bin/foo")
	require.NoError(t, err)
	assert.Equal(t, PrefixPlaceholder, placeholder)
	assert.Equal(t, record.FileModeText, mode)
	assert.Equal(t, "bin/foo", path)
}

func TestParseHasPrefixLineExplicit(t *testing.T) {
	line := `/opt/custom binary lib/libfoo.so`
	placeholder, mode, path, err := ParseHasPrefixLine(line)
	require.NoError(t, err)
	assert.Equal(t, "/opt/custom", placeholder)
	assert.Equal(t, record.FileModeBinary, mode)
	assert.Equal(t, "lib/libfoo.so", path)
}

func TestParseHasPrefixLineQuoted(t *testing.T) {
	line := `"/opt/with space" text "bin/has space"`
	placeholder, mode, path, err := ParseHasPrefixLine(line)
	require.NoError(t, err)
	assert.Equal(t, "/opt/with space", placeholder)
	assert.Equal(t, record.FileModeText, mode)
	assert.Equal(t, "bin/has space", path)
}

func TestReadHasPrefixSkipsBlankLines(t *testing.T) {
	input := "bin/foo\n\n/opt/x binary lib/bar.so\n"
	entries, err := ReadHasPrefix(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bin/foo", entries[0].Path)
	assert.Equal(t, "lib/bar.so", entries[1].Path)
}

func TestBuildPathsDataV0(t *testing.T) {
	files := []string{"bin/foo", "lib/bar.so"}
	hp := []HasPrefixEntry{{Placeholder: PrefixPlaceholder, Mode: record.FileModeText, Path: "bin/foo"}}

	paths := BuildPathsDataV0(files, hp)
	require.Len(t, paths.Paths, 2)
	assert.Equal(t, "bin/foo", paths.Paths[0].Path)
	assert.True(t, paths.Paths[0].HasPrefixPlaceholder())
	assert.False(t, paths.Paths[1].HasPrefixPlaceholder())
}

func TestReadPathsJSONMissing(t *testing.T) {
	pd, err := readPathsJSON(filepath.Join(t.TempDir(), "paths.json"))
	require.NoError(t, err)
	assert.Nil(t, pd)
}

func TestReadPathsJSONParsesV1Manifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paths.json")
	body := `{"paths_version": 1, "paths": [
		{"_path": "bin/foo", "path_type": "hardlink", "prefix_placeholder": "/opt/anaconda1anaconda2anaconda3", "file_mode": "text", "sha256": "abc", "size_in_bytes": 3},
		{"_path": "lib/bar.so", "path_type": "hardlink"}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	pd, err := readPathsJSON(path)
	require.NoError(t, err)
	require.NotNil(t, pd)
	require.Len(t, pd.Paths, 2)

	files, hasPrefix := filesAndHasPrefixFromPathsV1(pd)
	assert.Equal(t, []string{"bin/foo", "lib/bar.so"}, files)
	require.Len(t, hasPrefix, 1)
	assert.Equal(t, "bin/foo", hasPrefix[0].Path)
	assert.Equal(t, record.FileModeText, hasPrefix[0].Mode)
}

func TestBuildPathsDataV1ReconcilesInstalled(t *testing.T) {
	manifest := &record.PathsData{PathsVersion: 1, Paths: []record.PathData{
		{Path: "site-packages/foo.py", PathType: record.PathHardlink, SHA256: "abc"},
	}}

	paths := BuildPathsDataV1(manifest, []string{"lib/python3.10/site-packages/foo.py"})
	require.Len(t, paths.Paths, 1)
	assert.Equal(t, "lib/python3.10/site-packages/foo.py", paths.Paths[0].Path)
	assert.Equal(t, record.PathHardlink, paths.Paths[0].PathType)
}
