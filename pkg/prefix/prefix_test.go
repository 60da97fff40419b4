package prefix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelpdev/kelp/pkg/record"
	"github.com/kelpdev/kelp/pkg/version"
)

func TestPrefixDataEmptyDir(t *testing.T) {
	d := New(t.TempDir())
	recs := d.IterRecords()
	assert.Empty(t, recs)
}

func TestPrefixDataInsertGetRemove(t *testing.T) {
	dir := t.TempDir()
	d := New(dir)

	v, err := version.Parse("1.2.3")
	require.NoError(t, err)
	r := record.PackageRecord{Name: "foo", Version: v, Build: "0"}

	require.NoError(t, d.Insert(r, []string{"bin/foo"}, record.PathsData{}))

	_, err = os.Stat(filepath.Join(dir, "conda-meta", "foo-1.2.3-0.json"))
	require.NoError(t, err)

	got, ok, err := d.Get("foo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "foo", got.Name)

	require.NoError(t, d.Remove("foo"))
	_, ok, err = d.Get("foo")
	require.NoError(t, err)
	assert.False(t, ok)
}
