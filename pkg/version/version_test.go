package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type versionCompareCase struct {
	a, b string
	want int
}

func TestVersionCompare(t *testing.T) {
	cases := []versionCompareCase{
		{"1.0", "1.0", 0},
		{"1.0", "1.0.0", 0},
		{"1.0", "1.1", -1},
		{"1.1", "1.0", 1},
		{"1.0rc1", "1.0", -1},
		{"1.0", "1.0post1", -1},
		{"1.0dev1", "1.0rc1", -1},
		{"1.0dev1", "1.0", -1},
		{"1!1.0", "2.0", 1},
		{"1.0+local1", "1.0+local2", -1},
		{"1.0", "1.0+local1", -1},
	}
	for _, tc := range cases {
		a, err := Parse(tc.a)
		require.NoError(t, err)
		b, err := Parse(tc.b)
		require.NoError(t, err)
		assert.Equal(t, tc.want, a.Compare(b), "%s vs %s", tc.a, tc.b)
	}
}

func TestVersionCompareTotality(t *testing.T) {
	values := []string{"1.0", "1.0rc1", "1.0dev1", "1.0post1", "2.0", "1.0+local"}
	parsed := make([]Version, len(values))
	for i, v := range values {
		p, err := Parse(v)
		require.NoError(t, err)
		parsed[i] = p
	}
	for i := range parsed {
		for j := range parsed {
			lt := parsed[i].Compare(parsed[j]) < 0
			eq := parsed[i].Compare(parsed[j]) == 0
			gt := parsed[i].Compare(parsed[j]) > 0
			count := 0
			for _, b := range []bool{lt, eq, gt} {
				if b {
					count++
				}
			}
			assert.Equal(t, 1, count, "exactly one of lt/eq/gt must hold for %s,%s", values[i], values[j])
			assert.Equal(t, eq, parsed[i].Equal(parsed[j]))
		}
	}
}

func TestVersionWildcardMatch(t *testing.T) {
	spec, err := Parse("1.2.*")
	require.NoError(t, err)
	assert.True(t, spec.IsWildcard())

	matching, err := Parse("1.2.7")
	require.NoError(t, err)
	assert.Equal(t, 0, spec.Compare(matching))

	nonMatching, err := Parse("1.3.0")
	require.NoError(t, err)
	assert.NotEqual(t, 0, spec.Compare(nonMatching))
}

func TestVersionInvalidCharacters(t *testing.T) {
	_, err := Parse("1.0#garbage")
	require.Error(t, err)
	source, ok := InvalidVersion(err)
	require.True(t, ok)
	assert.Equal(t, "1.0#garbage", source)
}

func TestVersionStringRoundTrip(t *testing.T) {
	for _, s := range []string{"1.0", "1!2.0.1", "1.0+local.1", "1.0rc1", "1.0.post1"} {
		v, err := Parse(s)
		require.NoError(t, err)
		v2, err := Parse(v.String())
		require.NoError(t, err)
		assert.True(t, v.Equal(v2))
	}
}

func TestVersionJSONRoundTrip(t *testing.T) {
	v, err := Parse("1.2.3")
	require.NoError(t, err)
	data, err := v.MarshalJSON()
	require.NoError(t, err)

	var v2 Version
	require.NoError(t, v2.UnmarshalJSON(data))
	assert.True(t, v.Equal(v2))
}
