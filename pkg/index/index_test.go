package index

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelpdev/kelp/pkg/record"
	"github.com/kelpdev/kelp/pkg/repodata"
	"github.com/kelpdev/kelp/pkg/version"
)

type fakePrefix struct {
	records []record.PackageRecord
}

func (f fakePrefix) IterRecords() []record.PackageRecord { return f.records }

func rawPkg(t *testing.T, name, ver, build string) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"name": name, "version": ver, "build": build, "build_number": 0,
	})
	require.NoError(t, err)
	return data
}

func TestBuildMergePriority(t *testing.T) {
	channelA := ChannelRepodata{
		URL:  "https://repo.example/A/linux-64",
		Info: ChannelInfo{CanonicalName: "A", Priority: 0},
		Repodata: &repodata.CacheFile{Packages: map[string]json.RawMessage{
			"foo-1.0-0.tar.bz2": rawPkg(t, "foo", "1.0", "0"),
			"foo-2.0-0.tar.bz2": rawPkg(t, "foo", "2.0", "0"),
		}},
	}
	channelB := ChannelRepodata{
		URL:  "https://repo.example/B/linux-64",
		Info: ChannelInfo{CanonicalName: "B", Priority: 1},
		Repodata: &repodata.CacheFile{Packages: map[string]json.RawMessage{
			"foo-2.0-0.tar.bz2": rawPkg(t, "foo", "2.0", "0"),
		}},
	}

	idx, err := Build([]ChannelRepodata{channelA, channelB})
	require.NoError(t, err)

	a, ok := idx.Get("A::foo-2.0-0.tar.bz2")
	require.True(t, ok)
	assert.Equal(t, 0, a.Priority)

	b, ok := idx.Get("B::foo-2.0-0.tar.bz2")
	require.True(t, ok)
	assert.Equal(t, 1, b.Priority)

	assert.Equal(t, 3, idx.Len())
}

func TestBuildDefaultsBareFn(t *testing.T) {
	channel := ChannelRepodata{
		URL:  "https://repo.anaconda.com/pkgs/main/linux-64",
		Info: ChannelInfo{CanonicalName: "defaults", Priority: 0},
		Repodata: &repodata.CacheFile{Packages: map[string]json.RawMessage{
			"foo-1.0-0.tar.bz2": rawPkg(t, "foo", "1.0", "0"),
		}},
	}
	idx, err := Build([]ChannelRepodata{channel})
	require.NoError(t, err)

	_, ok := idx.Get("foo-1.0-0.tar.bz2")
	assert.True(t, ok)
}

func TestPrioritizeChannelsDedup(t *testing.T) {
	urls := []string{"https://a", "https://b", "https://a"}
	infos := PrioritizeChannels(urls, func(u string) string { return u })
	assert.Equal(t, 0, infos["https://a"].Priority)
	assert.Equal(t, 1, infos["https://b"].Priority)
}

func TestSupplementWithPrefix(t *testing.T) {
	channel := ChannelRepodata{
		URL:  "https://repo.example/A/linux-64",
		Info: ChannelInfo{CanonicalName: "A", Priority: 0},
		Repodata: &repodata.CacheFile{Packages: map[string]json.RawMessage{
			"foo-1.0-0.tar.bz2": rawPkg(t, "foo", "1.0", "0"),
		}},
	}
	idx, err := Build([]ChannelRepodata{channel})
	require.NoError(t, err)

	v, err := version.Parse("1.0")
	require.NoError(t, err)

	installed := fakePrefix{records: []record.PackageRecord{
		// Already present in the merged index: only Link should change,
		// Priority stays at the channel's configured value.
		{Name: "foo", Version: v, Build: "0", Channel: "A", Fn: "foo-1.0-0.tar.bz2", Link: record.Link{Source: "/pkgs/foo-1.0-0", Type: "hardlink"}},
		// Gone from the merged index but its channel is still configured:
		// maximally dispreferred.
		{Name: "foo", Version: v, Build: "0", Channel: "A", Fn: "foo-3.0-0.tar.bz2"},
		// Installed from a channel no longer configured at all: a normal
		// trailing priority, one past every configured channel.
		{Name: "bar", Version: v, Build: "0", Channel: "C", Fn: "bar-1.0-0.tar.bz2"},
	}}

	idx.SupplementWithPrefix(installed)

	merged, ok := idx.Get("A::foo-1.0-0.tar.bz2")
	require.True(t, ok)
	assert.Equal(t, 0, merged.Priority)
	assert.Equal(t, record.Link{Source: "/pkgs/foo-1.0-0", Type: "hardlink"}, merged.Link)

	removed, ok := idx.Get("A::foo-3.0-0.tar.bz2")
	require.True(t, ok)
	assert.Equal(t, MaxChannelPriority, removed.Priority)

	unconfigured, ok := idx.Get("C::bar-1.0-0.tar.bz2")
	require.True(t, ok)
	assert.Equal(t, 1, unconfigured.Priority)
}

func TestSupplementPipDependency(t *testing.T) {
	channel := ChannelRepodata{
		URL:  "https://repo.example/A/linux-64",
		Info: ChannelInfo{CanonicalName: "A", Priority: 0},
		Repodata: &repodata.CacheFile{Packages: map[string]json.RawMessage{
			"python-3.10-0.tar.bz2": rawPkg(t, "python", "3.10", "0"),
		}},
	}
	idx, err := Build([]ChannelRepodata{channel})
	require.NoError(t, err)

	idx.SupplementPipDependency()
	rec, ok := idx.Get("A::python-3.10-0.tar.bz2")
	require.True(t, ok)
	assert.Contains(t, rec.Depends, "pip")
}
