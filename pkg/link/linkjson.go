package link

import (
	"encoding/json"
	"os"
)

// noarchJSON is the subset of info/noarch.json this engine consumes: the
// flat list of console entry point declarations ("create_entry_points").
type noarchJSON struct {
	EntryPoints []string `json:"entry_points"`
}

// readNoarchEntryPoints parses a package's info/noarch.json for its
// declared console entry points. A missing file yields no entry points.
func readNoarchEntryPoints(path string) ([]EntryPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var nj noarchJSON
	if err := json.Unmarshal(data, &nj); err != nil {
		return nil, err
	}

	out := make([]EntryPoint, 0, len(nj.EntryPoints))
	for _, spec := range nj.EntryPoints {
		ep, err := ParseEntryPoint(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}
