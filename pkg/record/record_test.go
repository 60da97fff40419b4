package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelpdev/kelp/pkg/version"
)

func TestNormalizeTimestamp(t *testing.T) {
	assert.Equal(t, int64(1507565728000), NormalizeTimestamp(1507565728))
	assert.Equal(t, int64(1507565728999), NormalizeTimestamp(1507565728999))
	assert.Equal(t, int64(253402300799*1000), NormalizeTimestamp(253402300799))
	assert.Equal(t, int64(253402300800), NormalizeTimestamp(253402300800))
}

func TestNormalizePackageName(t *testing.T) {
	assert.Equal(t, "py-opt-name", NormalizePackageName("Py_Opt--Name"))
	assert.Equal(t, "numpy", NormalizePackageName("NumPy"))
}

func TestDistRoundTrip(t *testing.T) {
	v, err := version.Parse("1.2.3")
	require.NoError(t, err)
	r := PackageRecord{Channel: "conda-forge", Fn: "foo-1.2.3-0.tar.bz2", Name: "foo", Version: v, Build: "0"}
	assert.Equal(t, "conda-forge::foo-1.2.3-0.tar.bz2", r.Dist())

	def := PackageRecord{Channel: "defaults", Fn: "foo-1.2.3-0.tar.bz2"}
	assert.Equal(t, "foo-1.2.3-0.tar.bz2", def.Dist())

	channel, fn := ParseDist("conda-forge::foo-1.2.3-0.tar.bz2")
	assert.Equal(t, "conda-forge", channel)
	assert.Equal(t, "foo-1.2.3-0.tar.bz2", fn)

	name, ver, build := ParseDistQuad("foo-bar-1.2.3-0")
	assert.Equal(t, "foo-bar", name)
	assert.Equal(t, "1.2.3", ver)
	assert.Equal(t, "0", build)
}

func TestEqualityKey(t *testing.T) {
	v1, err := version.Parse("1.0")
	require.NoError(t, err)
	v2, err := version.Parse("1.0.0")
	require.NoError(t, err)

	a := PackageRecord{Channel: "c", Subdir: "linux-64", Name: "foo", Version: v1, Build: "0"}
	b := PackageRecord{Channel: "c", Subdir: "linux-64", Name: "foo", Version: v2, Build: "0"}
	assert.Equal(t, a.EqualityKey(), b.EqualityKey())
}
