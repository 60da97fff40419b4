package version

import (
	"regexp"
	"strconv"
	"strings"
)

// componentSplitRe tokenizes a single dot-separated component into its
// alternating runs of digits, asterisks, and other (alphabetic) characters.
var componentSplitRe = regexp.MustCompile(`[0-9]+|[*]+|[^0-9*]+`)

// Token tiers. The special order required by the version algebra is
// dev < letters < empty/numeric < post. Tier -1 is dev, 0 is an alphabetic
// run compared lexicographically, 1 is numeric (used both for genuine
// integer tokens and the implicit empty/ZERO token used to pad a shorter
// component), and 2 is post.
const (
	tierDev = -1
	tierAlpha = 0
	tierNum = 1
	tierPost = 2
)

type token struct {
	tier int8
	num int64
	text string
}

var zeroToken = token{tier: tierNum}

func (a token) compare(b token) int {
	if a.tier != b.tier {
		if a.tier < b.tier {
			return -1
		}
		return 1
	}
	switch a.tier {
	case tierAlpha:
		return strings.Compare(a.text, b.text)
	case tierNum:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		default:
			return 0
		}
	default:
		// dev and post tokens carry no further payload; their tier already
		// placed them relative to everything else.
		return 0
	}
}

// component is the tokenization of one dot-separated piece of a version.
// A wildcard component (bare "*") matches any corresponding piece of
// another version and ends comparison of the component sequence it is in.
type component struct {
	wildcard bool
	tokens []token
}

func tokenizeComponent(s string) (component, error) {
	if s == "" {
		return component{tokens: []token{zeroToken}}, nil
	}

	matches := componentSplitRe.FindAllString(s, -1)
	if strings.Join(matches, "") != s {
		return component{}, errInvalidVersion(s)
	}

	if len(matches) == 1 && strings.Trim(matches[0], "*") == "" {
		return component{wildcard: true}, nil
	}

	toks := make([]token, 0, len(matches))
	for _, m := range matches {
		if m[0] >= '0' && m[0] <= '9' {
			n, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				return component{}, errInvalidVersion(s)
			}
			toks = append(toks, token{tier: tierNum, num: n})
			continue
		}
		if strings.Trim(m, "*") == "" {
			// an asterisk run embedded alongside other tokens is not a
			// standalone wildcard component; treat literally as alpha text
			// so comparisons stay well defined.
			toks = append(toks, token{tier: tierAlpha, text: m})
			continue
		}
		switch m {
		case "dev":
			toks = append(toks, token{tier: tierDev})
		case "post", "rev", "r":
			toks = append(toks, token{tier: tierPost})
		default:
			toks = append(toks, token{tier: tierAlpha, text: m})
		}
	}
	return component{tokens: toks}, nil
}

// compareComponents compares two components token by token. A missing
// trailing token on either side is treated as the zero token. When either
// side is a wildcard, the components are considered equal.
func compareComponents(a, b component) int {
	if a.wildcard || b.wildcard {
		return 0
	}

	n := len(a.tokens)
	if len(b.tokens) > n {
		n = len(b.tokens)
	}
	for i := 0; i < n; i++ {
		ta, tb := zeroToken, zeroToken
		if i < len(a.tokens) {
			ta = a.tokens[i]
		}
		if i < len(b.tokens) {
			tb = b.tokens[i]
		}
		if c := ta.compare(tb); c != 0 {
			return c
		}
	}
	return 0
}

type invalidVersionError struct {
	source string
}

func (e *invalidVersionError) Error() string {
	return "invalid version: '" + e.source + "'"
}

func errInvalidVersion(source string) error {
	return &invalidVersionError{source: source}
}

// InvalidVersion reports whether err is an InvalidVersion error 
// and, if so, the offending source string.
func InvalidVersion(err error) (string, bool) {
	if e, ok := err.(*invalidVersionError); ok {
		return e.source, true
	}
	return "", false
}
