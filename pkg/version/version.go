// Package version implements the version and constraint algebra: parsing,
// normalizing, comparing, and matching version strings, plus the VersionSpec
// and BuildNumberSpec expression trees built on top of them.
package version

import (
	"regexp"
	"strconv"
	"strings"
)

var allowedCharsRe = regexp.MustCompile(`^[*.+!_0-9a-z]*$`)

var epochRe = regexp.MustCompile(`^([0-9]+)!(.*)$`)

// Version is a parsed, comparable version: an optional epoch, a
// dot-separated public release, and an optional local segment.
type Version struct {
	epoch      int64
	public     string
	local      string
	hasLocal   bool
	components []component
	localParts []component
}

// Parse parses s into a Version. It returns an *invalidVersionError
// (inspect with InvalidVersion) if s contains characters outside
// [*.+!_0-9a-z] or a malformed numeric token.
func Parse(s string) (Version, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if !allowedCharsRe.MatchString(norm) {
		return Version{}, errInvalidVersion(s)
	}

	var epoch int64
	rest := norm
	if m := epochRe.FindStringSubmatch(norm); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Version{}, errInvalidVersion(s)
		}
		epoch = n
		rest = m[2]
	}

	public := rest
	local := ""
	hasLocal := false
	if idx := strings.IndexByte(rest, '+'); idx >= 0 {
		public = rest[:idx]
		local = rest[idx+1:]
		hasLocal = true
	}

	if public == "" {
		return Version{}, errInvalidVersion(s)
	}

	components, err := splitComponents(public)
	if err != nil {
		return Version{}, errInvalidVersion(s)
	}

	v := Version{
		epoch:      epoch,
		public:     public,
		local:      local,
		hasLocal:   hasLocal,
		components: components,
	}
	if hasLocal {
		if local == "" {
			return Version{}, errInvalidVersion(s)
		}
		localParts, err := splitComponents(local)
		if err != nil {
			return Version{}, errInvalidVersion(s)
		}
		v.localParts = localParts
	}
	return v, nil
}

// MustParse is Parse but panics on error; for literal versions in code.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func splitComponents(s string) ([]component, error) {
	pieces := strings.Split(s, ".")
	out := make([]component, 0, len(pieces))
	for _, p := range pieces {
		c, err := tokenizeComponent(p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		if c.wildcard {
			break
		}
	}
	return out, nil
}

// IsWildcard reports whether the public release ends in a wildcard
// component (e.g. "1.2.*").
func (v Version) IsWildcard() bool {
	for _, c := range v.components {
		if c.wildcard {
			return true
		}
	}
	return false
}

// String renders the canonical, normalized form of v.
func (v Version) String() string {
	var b strings.Builder
	if v.epoch != 0 {
		b.WriteString(strconv.FormatInt(v.epoch, 10))
		b.WriteByte('!')
	}
	b.WriteString(v.public)
	if v.hasLocal {
		b.WriteByte('+')
		b.WriteString(v.local)
	}
	return b.String()
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other. Epoch dominates; then the public components are compared
// componentwise; the local segment is only consulted when the public
// segments compare equal.
func (v Version) Compare(other Version) int {
	if v.epoch != other.epoch {
		if v.epoch < other.epoch {
			return -1
		}
		return 1
	}

	if c := compareComponentSeqs(v.components, other.components); c != 0 {
		return c
	}

	// A missing local segment sorts before any present local segment,
	// regardless of what its first token would otherwise compare as.
	switch {
	case !v.hasLocal && !other.hasLocal:
		return 0
	case v.hasLocal != other.hasLocal:
		if !v.hasLocal {
			return -1
		}
		return 1
	default:
		return compareComponentSeqs(v.localParts, other.localParts)
	}
}

func compareComponentSeqs(a, b []component) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	emptyZero := component{tokens: []token{zeroToken}}
	for i := 0; i < n; i++ {
		ca, cb := emptyZero, emptyZero
		if i < len(a) {
			ca = a[i]
		}
		if i < len(b) {
			cb = b[i]
		}
		if c := compareComponents(ca, cb); c != 0 {
			return c
		}
		if ca.wildcard || cb.wildcard {
			return 0
		}
	}
	return 0
}

// Equal reports whether v and other normalize identically.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// LessThan reports whether v sorts before other.
func (v Version) LessThan(other Version) bool {
	return v.Compare(other) < 0
}

// GreaterThan reports whether v sorts after other.
func (v Version) GreaterThan(other Version) bool {
	return v.Compare(other) > 0
}

// HasPrefix reports whether v, truncated to len(prefix.components)
// components (ignoring epoch and local), equals prefix component-for-
// component. Used by the compatible-release (~=) operator.
func (v Version) HasPrefix(prefix Version) bool {
	if v.epoch != prefix.epoch {
		return false
	}
	if len(prefix.components) > len(v.components) {
		return false
	}
	for i, pc := range prefix.components {
		if compareComponents(v.components[i], pc) != 0 {
			return false
		}
	}
	return true
}

// Truncate returns a copy of v keeping only the first n public components
// (used to compute the ~=X.Y truncated-prefix bound).
func (v Version) Truncate(n int) Version {
	if n >= len(v.components) {
		return Version{epoch: v.epoch, public: v.public, components: v.components}
	}
	if n < 0 {
		n = 0
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, componentText(v.components[i]))
	}
	public := strings.Join(parts, ".")
	components := make([]component, n)
	copy(components, v.components[:n])
	return Version{epoch: v.epoch, public: public, components: components}
}

func componentText(c component) string {
	if c.wildcard {
		return "*"
	}
	var b strings.Builder
	for _, t := range c.tokens {
		switch t.tier {
		case tierDev:
			b.WriteString("dev")
		case tierPost:
			b.WriteString("post")
		case tierAlpha:
			b.WriteString(t.text)
		default:
			b.WriteString(strconv.FormatInt(t.num, 10))
		}
	}
	return b.String()
}

// MarshalJSON renders v as its canonical string.
func (v Version) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(v.String())), nil
}

// UnmarshalJSON parses v from its canonical string.
func (v *Version) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
