package link

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kelpdev/kelp/pkg/record"
)

// ParseHasPrefixLine parses one line of info/has_prefix. A bare path
// defaults to the canonical placeholder and text mode; a three-token line
// supplies an explicit placeholder and mode, with tokens optionally quoted
// by '"' or '\''.
func ParseHasPrefixLine(line string) (placeholder string, mode record.FileMode, path string, err error) {
	tokens := splitQuoted(line)
	switch len(tokens) {
	case 1:
		return PrefixPlaceholder, record.FileModeText, tokens[0], nil
	case 3:
		m := record.FileMode(tokens[1])
		if m != record.FileModeText && m != record.FileModeBinary {
			return "", "", "", fmt.Errorf("has_prefix: invalid mode %q", tokens[1])
		}
		return tokens[0], m, tokens[2], nil
	default:
		return "", "", "", fmt.Errorf("has_prefix: malformed line %q", line)
	}
}

// splitQuoted splits on whitespace, treating a run wrapped in matching
// '"'/'\'' quotes as a single token (grounded on
// `shlex.split(line, posix=False)` in conda's install.py).
func splitQuoted(line string) []string {
	var tokens []string
	var cur strings.Builder
	var quote rune
	inToken := false

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t':
			flush()
		default:
			inToken = true
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// HasPrefixEntry is one parsed line of info/has_prefix.
type HasPrefixEntry struct {
	Placeholder string
	Mode record.FileMode
	Path string
}

// ReadHasPrefix parses every non-blank line of r.
func ReadHasPrefix(r io.Reader) ([]HasPrefixEntry, error) {
	var out []HasPrefixEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		placeholder, mode, path, err := ParseHasPrefixLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, HasPrefixEntry{Placeholder: placeholder, Mode: mode, Path: path})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// BuildPathsDataV0 constructs a V1-shaped PathsData from the V0 fallback
// manifest: info/files plus info/has_prefix.
func BuildPathsDataV0(files []string, hasPrefix []HasPrefixEntry) record.PathsData {
	byPath := make(map[string]HasPrefixEntry, len(hasPrefix))
	for _, e := range hasPrefix {
		byPath[e.Path] = e
	}

	paths := make([]record.PathData, 0, len(files))
	for _, f := range files {
		pd := record.PathData{Path: f, PathType: record.PathHardlink}
		if e, ok := byPath[f]; ok {
			pd.Prefix = e.Placeholder
			pd.FileMode = e.Mode
		}
		paths = append(paths, pd)
	}
	return record.PathsData{PathsVersion: 1, Paths: paths}
}

// readPathsJSON parses a package's info/paths.json (the V1 manifest). A
// missing file returns (nil, nil): callers fall back to info/files plus
// info/has_prefix.
func readPathsJSON(path string) (*record.PathsData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var pd record.PathsData
	if err := json.Unmarshal(data, &pd); err != nil {
		return nil, err
	}
	return &pd, nil
}

// filesAndHasPrefixFromPathsV1 derives the plain file list and the
// has_prefix entries linkDirectFiles/linkNoarchPython/applyPrefixRewrites
// need from an already-parsed V1 manifest.
func filesAndHasPrefixFromPathsV1(pd *record.PathsData) (files []string, hasPrefix []HasPrefixEntry) {
	files = make([]string, 0, len(pd.Paths))
	for _, p := range pd.Paths {
		files = append(files, p.Path)
		if p.HasPrefixPlaceholder() {
			hasPrefix = append(hasPrefix, HasPrefixEntry{Placeholder: p.Prefix, Mode: p.FileMode, Path: p.Path})
		}
	}
	return files, hasPrefix
}

// BuildPathsDataV1 reconciles an already-read V1 manifest against the
// files actually installed (noarch filtering/renaming can make the two
// lists diverge), the same way BuildPathsDataV0 reconciles the V0
// fallback shape.
func BuildPathsDataV1(manifest *record.PathsData, installed []string) record.PathsData {
	byPath := make(map[string]record.PathData, len(manifest.Paths))
	for _, p := range manifest.Paths {
		byPath[p.Path] = p
	}

	paths := make([]record.PathData, 0, len(installed))
	for _, f := range installed {
		pd := record.PathData{Path: f, PathType: record.PathHardlink}
		if src, ok := byPath[f]; ok {
			pd = src
			pd.Path = f
		}
		paths = append(paths, pd)
	}
	return record.PathsData{PathsVersion: 1, Paths: paths}
}
