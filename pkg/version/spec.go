package version

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

const (
	opEq = "=="
	opNe = "!="
	opLt = "<"
	opLe = "<="
	opGt = ">"
	opGe = ">="
	opStartsWith = "="
	opCompatible = "~="
	opNotStartsWith = "!=startswith"
	opTripleEq = "==="
	relationalLeafRe = `^(===|==|!=|<=|>=|<|>|~=|=)(\S+)$`
)

var relationalRe = regexp.MustCompile(relationalLeafRe)

// versionLeaf is a compiled VersionSpec leaf predicate.
type versionLeaf struct {
	raw string
	alwaysTru bool
	literal string // compared via Version.String() equality (leaves containing '@')
	regex *regexp.Regexp
	op string
	version Version
	truncated Version // lower bound for ~=
}

func (l *versionLeaf) evaluate(v Version) bool {
	switch {
	case l.alwaysTru:
		return true
	case l.literal != "":
		return v.String() == l.literal
	case l.regex != nil:
		return l.regex.MatchString(v.String())
	}
	switch l.op {
	case opEq, opTripleEq:
		return v.Equal(l.version)
	case opNe:
		return !v.Equal(l.version)
	case opLt:
		return v.LessThan(l.version)
	case opLe:
		return v.Compare(l.version) <= 0
	case opGt:
		return v.GreaterThan(l.version)
	case opGe:
		return v.Compare(l.version) >= 0
	case opStartsWith:
		return v.HasPrefix(l.version)
	case opNotStartsWith:
		return !v.HasPrefix(l.version)
	case opCompatible:
		return v.Compare(l.version) >= 0 && v.HasPrefix(l.truncated)
	}
	return false
}

func compileVersionLeaf(raw string) (*versionLeaf, error) {
	if raw == "*" {
		return &versionLeaf{raw: raw, alwaysTru: true}, nil
	}
	if strings.HasPrefix(raw, "^") {
		if !strings.HasSuffix(raw, "$") {
			return nil, invalidSpec(raw, "regex leaf must end in '$'")
		}
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, invalidSpec(raw, "invalid regex: "+err.Error())
		}
		return &versionLeaf{raw: raw, regex: re}, nil
	}
	if strings.ContainsAny(raw, "@") {
		return &versionLeaf{raw: raw, literal: raw}, nil
	}
	if m := relationalRe.FindStringSubmatch(raw); m != nil {
		op, rest := m[1], m[2]
		if strings.HasSuffix(rest, ".*") {
			switch op {
			case opCompatible:
				return nil, invalidSpec(raw, "~= does not accept a trailing.*")
			case opNe:
				op = opNotStartsWith
			}
			rest = strings.TrimSuffix(rest, ".*")
		}
		ver, err := Parse(rest)
		if err != nil {
			return nil, err
		}
		l := &versionLeaf{raw: raw, op: op, version: ver}
		if op == opCompatible {
			n := len(ver.components) - 1
			if n < 1 {
				n = 1
			}
			l.truncated = ver.Truncate(n)
		}
		return l, nil
	}
	if hasBareGlob(raw) {
		re, err := globToRegex(raw)
		if err != nil {
			return nil, err
		}
		return &versionLeaf{raw: raw, regex: re}, nil
	}
	if strings.HasSuffix(raw, "*") {
		prefix := strings.TrimSuffix(raw, "*")
		prefix = strings.TrimSuffix(prefix, ".")
		ver, err := Parse(prefix)
		if err != nil {
			return nil, err
		}
		return &versionLeaf{raw: raw, op: opStartsWith, version: ver}, nil
	}
	ver, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return &versionLeaf{raw: raw, op: opEq, version: ver}, nil
}

// hasBareGlob reports whether raw contains '*' anywhere other than as a
// trailing ".*".
func hasBareGlob(raw string) bool {
	idx := strings.IndexByte(raw, '*')
	if idx < 0 {
		return false
	}
	if strings.HasSuffix(raw, ".*") && strings.Count(raw, "*") == 1 {
		return false
	}
	return true
}

func globToRegex(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range glob {
		if r == '*' {
			b.WriteString(".*")
		} else {
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, invalidSpec(glob, "invalid glob")
	}
	return re, nil
}

// matchNode mirrors specNode but carries compiled version leaves.
type matchNode struct {
	leaf *versionLeaf
	op byte
	children []*matchNode
}

func (n *matchNode) evaluate(v Version) bool {
	if n.leaf != nil {
		return n.leaf.evaluate(v)
	}
	if n.op == '|' {
		for _, c := range n.children {
			if c.evaluate(v) {
				return true
			}
		}
		return false
	}
	for _, c := range n.children {
		if !c.evaluate(v) {
			return false
		}
	}
	return true
}

func compileMatchTree(n *specNode) (*matchNode, error) {
	if n.isLeaf() {
		l, err := compileVersionLeaf(n.leaf)
		if err != nil {
			return nil, err
		}
		return &matchNode{leaf: l}, nil
	}
	children := make([]*matchNode, 0, len(n.children))
	for _, c := range n.children {
		cm, err := compileMatchTree(c)
		if err != nil {
			return nil, err
		}
		children = append(children, cm)
	}
	return &matchNode{op: n.op, children: children}, nil
}

// VersionSpec is a predicate over Version compiled from a constraint
// expression string.
type VersionSpec struct {
	source string
	tree *matchNode
	isExact bool
}

var versionSpecCache sync.Map // string -> *VersionSpec

// ParseVersionSpec parses and caches source, keyed on its trimmed form.
// Repeated calls with the same canonical source string return the same
// *VersionSpec value.
func ParseVersionSpec(source string) (*VersionSpec, error) {
	key := strings.TrimSpace(source)
	if v, ok := versionSpecCache.Load(key); ok {
		return v.(*VersionSpec), nil
	}

	node, err := treeify(key)
	if err != nil {
		return nil, err
	}
	tree, err := compileMatchTree(node)
	if err != nil {
		return nil, err
	}
	spec := &VersionSpec{
		source: key,
		tree: tree,
		isExact: isExactTree(node, tree),
	}
	actual, _ := versionSpecCache.LoadOrStore(key, spec)
	return actual.(*VersionSpec), nil
}

func isExactTree(n *specNode, m *matchNode) bool {
	if !n.isLeaf() {
		return false
	}
	if m.leaf == nil {
		return false
	}
	return m.leaf.op == opEq && m.leaf.regex == nil && m.leaf.literal == ""
}

// Source returns the canonical source string this spec was parsed from.
func (s *VersionSpec) Source() string { return s.source }

// IsExact reports whether s matches exactly one normalized Version.
func (s *VersionSpec) IsExact() bool { return s.isExact }

// Match reports whether v satisfies s.
func (s *VersionSpec) Match(v Version) bool { return s.tree.evaluate(v) }

// MergeVersionSpecs returns the conjunction of specs, expressed by sorting
// and comma-joining their source strings and reparsing.
func MergeVersionSpecs(specs...*VersionSpec) (*VersionSpec, error) {
	return combineVersionSpecs(",", specs)
}

// UnionVersionSpecs returns the disjunction of specs, expressed by sorting
// and pipe-joining their source strings and reparsing.
func UnionVersionSpecs(specs...*VersionSpec) (*VersionSpec, error) {
	return combineVersionSpecs("|", specs)
}

func combineVersionSpecs(sep string, specs []*VersionSpec) (*VersionSpec, error) {
	sources := make([]string, len(specs))
	for i, s := range specs {
		sources[i] = s.source
	}
	sort.Strings(sources)
	return ParseVersionSpec(strings.Join(sources, sep))
}
