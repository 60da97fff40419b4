// Package record defines the canonical PackageRecord type and the small
// set of identity/normalization helpers shared by the index, prefix, and
// link packages.
package record

import (
	"regexp"
	"strings"

	"github.com/kelpdev/kelp/pkg/version"
)

// Noarch classifies a package's platform independence.
type Noarch string

const (
	NoarchNone Noarch = ""
	NoarchGeneric Noarch = "generic"
	NoarchPython Noarch = "python"
)

// Link captures where a linked package's payload came from and how it was
// materialized. EMPTY_LINK is the zero value, attached to a freshly built
// PackageRecord before it has been linked into any prefix.
type Link struct {
	Source string `json:"source"`
	Type string `json:"type,omitempty"`
}

// EmptyLink is the canonical unlinked sentinel ("EMPTY_LINK").
var EmptyLink = Link{}

// PackageRecord is the canonical identity and metadata of an available or
// installed package.
type PackageRecord struct {
	Name string `json:"name"`
	Version version.Version `json:"version"`
	Build string `json:"build"`
	BuildNumber int `json:"build_number"`

	Channel string `json:"channel"`
	Subdir string `json:"subdir"`
	Fn string `json:"fn"`

	URL string `json:"url,omitempty"`
	MD5 string `json:"md5,omitempty"`

	Depends []string `json:"depends,omitempty"`
	Constrains []string `json:"constrains,omitempty"`

	Timestamp int64 `json:"timestamp,omitempty"`
	Size int64 `json:"size,omitempty"`
	License string `json:"license,omitempty"`
	Noarch Noarch `json:"noarch,omitempty"`
	Features []string `json:"features,omitempty"`
	TrackFeatures []string `json:"track_features,omitempty"`
	PreferredEnv string `json:"preferred_env,omitempty"`

	Link Link `json:"link"`

	// Priority is assigned by the index builder and is not
	// part of a package's on-disk identity.
	Priority int `json:"-"`
}

// Key is the tuple (channel, subdir, name, version, build) that decides
// package identity. Two PackageRecords with the same Key must compare equal
// and hash equal.
type Key struct {
	Channel string
	Subdir string
	Name string
	Version string
	Build string
}

// EqualityKey returns r's equality key. The version part drops trailing
// zero components (via Version.Truncate) and keeps any local segment, so
// "1.0" and "1.0.0" produce the same key.
func (r PackageRecord) EqualityKey() Key {
	ver := r.Version.String()
	local := ""
	if i := strings.IndexByte(ver, '+'); i >= 0 {
		local = ver[i:]
	}
	// Truncating past the last component yields the whole public part; the
	// shortest truncation still equal to it has no trailing zero components.
	public := r.Version.Truncate(len(ver))
	for n := 1; n < len(ver); n++ {
		if t := r.Version.Truncate(n); t.Equal(public) {
			ver = t.String() + local
			break
		}
	}
	return Key{
		Channel: r.Channel,
		Subdir: r.Subdir,
		Name: r.Name,
		Version: ver,
		Build: r.Build,
	}
}

// Stem is the conda-meta file stem for r: "<name>-<version>-<build>".
func (r PackageRecord) Stem() string {
	return r.Name + "-" + r.Version.String() + "-" + r.Build
}

var normalizeRe = regexp.MustCompile(`[-_.]+`)

// NormalizePackageName lowercases name and collapses runs of '-', '_', and
// '.' into a single '-'. Dist keys and MatchSpec name matching do not apply
// it; they compare names as published.
func NormalizePackageName(name string) string {
	return normalizeRe.ReplaceAllString(strings.ToLower(name), "-")
}

// SplitFeatures splits a whitespace-or-comma separated feature set.
func SplitFeatures(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

const timestampSecondsBoundary = 253402300799

// NormalizeTimestamp applies the rule from `TimestampField._make_milliseconds`
// in conda's index_record.py: a value at or below the boundary (9999-12-31
// as Unix seconds) is assumed to be seconds and scaled to milliseconds.
func NormalizeTimestamp(t int64) int64 {
	if t <= timestampSecondsBoundary {
		return t * 1000
	}
	return t
}

// Dist renders the canonical Dist identity for r: "<channel>::<fn>", or
// bare fn when the channel is the "defaults" sentinel.
func (r PackageRecord) Dist() string {
	if r.Channel == "" || r.Channel == "defaults" {
		return r.Fn
	}
	return r.Channel + "::" + r.Fn
}

// ParseDist splits a Dist string into its channel (possibly empty) and
// filename, grounded on conda's install.py `dist2pair` (split on "::").
func ParseDist(dist string) (channel, fn string) {
	if idx := strings.Index(dist, "::"); idx >= 0 {
		return dist[:idx], dist[idx+2:]
	}
	return "", dist
}

// ParseDistQuad splits a bare (channel stripped) dist filename stem into
// name, version, and build, grounded on conda's install.py `dist2quad`:
// the extension is dropped, then the remainder is rsplit on '-' at most
// twice.
func ParseDistQuad(stem string) (name, ver, build string) {
	stem = strings.TrimSuffix(stem, ".tar.bz2")
	stem = strings.TrimSuffix(stem, ".conda")
	parts := strings.Split(stem, "-")
	if len(parts) < 3 {
		return stem, "", ""
	}
	n := len(parts)
	return strings.Join(parts[:n-2], "-"), parts[n-2], parts[n-1]
}
