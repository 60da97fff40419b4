// Package matchspec implements the bag-of-field-predicates query object
// matched against PackageRecord values.
package matchspec

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kelpdev/kelp/pkg/record"
	"github.com/kelpdev/kelp/pkg/version"
)

// globField is a predicate over a plain string field: either an exact
// string, or a glob compiled to an anchored regex.
type globField struct {
	raw string
	exact string
	re *regexp.Regexp
}

func newGlobField(raw string) globField {
	if !strings.Contains(raw, "*") {
		return globField{raw: raw, exact: raw}
	}
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range raw {
		if r == '*' {
			b.WriteString(".*")
		} else {
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return globField{raw: raw, re: regexp.MustCompile(b.String())}
}

func (f globField) match(s string) bool {
	if f.re != nil {
		return f.re.MatchString(s)
	}
	return f.exact == s
}

// MatchSpec is a bag of field predicates over a PackageRecord. Any field
// left at its zero value is don't-care; Match requires every populated
// field to match.
type MatchSpec struct {
	Name *globField
	Version *version.VersionSpec
	Build *globField
	BuildNumber *version.BuildNumberSpec
	Channel *globField
	Subdir *globField
	Features []string
	TrackFeatures []string
	MD5 string
	URL string
}

// New returns an empty MatchSpec, which matches every record; the With*
// setters add field predicates to it.
func New() *MatchSpec { return &MatchSpec{} }

// WithName sets a glob/exact predicate on the package name.
func (m *MatchSpec) WithName(pattern string) *MatchSpec {
	f := newGlobField(pattern)
	m.Name = &f
	return m
}

// WithVersion sets a VersionSpec predicate on the package version.
func (m *MatchSpec) WithVersion(spec *version.VersionSpec) *MatchSpec {
	m.Version = spec
	return m
}

// WithBuild sets a glob/exact predicate on the build string.
func (m *MatchSpec) WithBuild(pattern string) *MatchSpec {
	f := newGlobField(pattern)
	m.Build = &f
	return m
}

// WithBuildNumber sets a BuildNumberSpec predicate on the build number.
func (m *MatchSpec) WithBuildNumber(spec *version.BuildNumberSpec) *MatchSpec {
	m.BuildNumber = spec
	return m
}

// WithChannel sets a glob/exact predicate on the channel.
func (m *MatchSpec) WithChannel(pattern string) *MatchSpec {
	f := newGlobField(pattern)
	m.Channel = &f
	return m
}

// WithSubdir sets a glob/exact predicate on the subdir.
func (m *MatchSpec) WithSubdir(pattern string) *MatchSpec {
	f := newGlobField(pattern)
	m.Subdir = &f
	return m
}

// Match reports whether r satisfies every populated field of m.
func (m *MatchSpec) Match(r record.PackageRecord) bool {
	if m.Name != nil && !m.Name.match(r.Name) {
		return false
	}
	if m.Version != nil && !m.Version.Match(r.Version) {
		return false
	}
	if m.Build != nil && !m.Build.match(r.Build) {
		return false
	}
	if m.BuildNumber != nil && !m.BuildNumber.Match(int64(r.BuildNumber)) {
		return false
	}
	if m.Channel != nil && !m.Channel.match(r.Channel) {
		return false
	}
	if m.Subdir != nil && !m.Subdir.match(r.Subdir) {
		return false
	}
	if len(m.Features) > 0 && !containsAll(r.Features, m.Features) {
		return false
	}
	if len(m.TrackFeatures) > 0 && !containsAll(r.TrackFeatures, m.TrackFeatures) {
		return false
	}
	if m.MD5 != "" && m.MD5 != r.MD5 {
		return false
	}
	if m.URL != "" && m.URL != r.URL {
		return false
	}
	return true
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// String renders the canonical structured form of m as
// name[key=value,...], with keys in the fixed order version, build,
// build_number, channel, subdir, features, track_features, md5, url. This
// package has no parser for that form.
func (m *MatchSpec) String() string {
	var name string
	if m.Name != nil {
		name = fieldPattern(*m.Name)
	} else {
		name = "*"
	}

	var kv []string
	if m.Version != nil {
		kv = append(kv, "version="+quoteIfNeeded(m.Version.Source()))
	}
	if m.Build != nil {
		kv = append(kv, "build="+quoteIfNeeded(fieldPattern(*m.Build)))
	}
	if m.BuildNumber != nil {
		kv = append(kv, "build_number="+quoteIfNeeded(m.BuildNumber.Source()))
	}
	if m.Channel != nil {
		kv = append(kv, "channel="+quoteIfNeeded(fieldPattern(*m.Channel)))
	}
	if m.Subdir != nil {
		kv = append(kv, "subdir="+quoteIfNeeded(fieldPattern(*m.Subdir)))
	}
	if len(m.Features) > 0 {
		sorted := append([]string(nil), m.Features...)
		sort.Strings(sorted)
		kv = append(kv, "features="+quoteIfNeeded(strings.Join(sorted, " ")))
	}
	if len(m.TrackFeatures) > 0 {
		sorted := append([]string(nil), m.TrackFeatures...)
		sort.Strings(sorted)
		kv = append(kv, "track_features="+quoteIfNeeded(strings.Join(sorted, " ")))
	}
	if m.MD5 != "" {
		kv = append(kv, "md5="+quoteIfNeeded(m.MD5))
	}
	if m.URL != "" {
		kv = append(kv, "url="+quoteIfNeeded(m.URL))
	}

	if len(kv) == 0 {
		return name
	}
	return name + "[" + strings.Join(kv, ",") + "]"
}

func fieldPattern(f globField) string {
	return f.raw
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ",[]=") {
		return "'" + s + "'"
	}
	return s
}
