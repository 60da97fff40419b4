package version

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var buildNumberRelRe = regexp.MustCompile(`^(==|!=|<=|>=|<|>|=)(\S+)$`)

type buildNumberLeaf struct {
	alwaysTru bool
	op        string
	value     int64
}

func (l *buildNumberLeaf) evaluate(n int64) bool {
	if l.alwaysTru {
		return true
	}
	switch l.op {
	case opEq, opStartsWith:
		return n == l.value
	case opNe:
		return n != l.value
	case opLt:
		return n < l.value
	case opLe:
		return n <= l.value
	case opGt:
		return n > l.value
	case opGe:
		return n >= l.value
	}
	return false
}

func compileBuildNumberLeaf(raw string) (*buildNumberLeaf, error) {
	if raw == "*" {
		return &buildNumberLeaf{alwaysTru: true}, nil
	}
	op := opEq
	rest := raw
	if m := buildNumberRelRe.FindStringSubmatch(raw); m != nil {
		op, rest = m[1], m[2]
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return nil, invalidSpec(raw, "build number must be an integer")
	}
	return &buildNumberLeaf{op: op, value: n}, nil
}

type buildNumberMatchNode struct {
	leaf     *buildNumberLeaf
	op       byte
	children []*buildNumberMatchNode
}

func (n *buildNumberMatchNode) evaluate(v int64) bool {
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

func compileBuildNumberTree(n *specNode) (*buildNumberMatchNode, error) {
	if n.isLeaf() {
		l, err := compileBuildNumberLeaf(n.leaf)
		if err != nil {
			return nil, err
		}
		return &buildNumberMatchNode{leaf: l}, nil
	}
	children := make([]*buildNumberMatchNode, 0, len(n.children))
	for _, c := range n.children {
		cm, err := compileBuildNumberTree(c)
		if err != nil {
			return nil, err
		}
		children = append(children, cm)
	}
	return &buildNumberMatchNode{op: n.op, children: children}, nil
}

// BuildNumberSpec is a predicate over a package's integer build number,
// analogous to VersionSpec but over integers.
type BuildNumberSpec struct {
	source string
	tree   *buildNumberMatchNode
}

var buildNumberSpecCache sync.Map // string -> *BuildNumberSpec

// ParseBuildNumberSpec parses and caches source, keyed on its trimmed form.
func ParseBuildNumberSpec(source string) (*BuildNumberSpec, error) {
	key := strings.TrimSpace(source)
	if v, ok := buildNumberSpecCache.Load(key); ok {
		return v.(*BuildNumberSpec), nil
	}

	node, err := treeify(key)
	if err != nil {
		return nil, err
	}
	tree, err := compileBuildNumberTree(node)
	if err != nil {
		return nil, err
	}
	spec := &BuildNumberSpec{source: key, tree: tree}
	actual, _ := buildNumberSpecCache.LoadOrStore(key, spec)
	return actual.(*BuildNumberSpec), nil
}

// Source returns the canonical source string this spec was parsed from.
func (s *BuildNumberSpec) Source() string { return s.source }

// Match reports whether n satisfies s.
func (s *BuildNumberSpec) Match(n int64) bool { return s.tree.evaluate(n) }
