package link

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/datawire/dlib/dlog"

	"github.com/kelpdev/kelp/pkg/prefix"
)

const trashDirName = ".kelp-trash"

// UnlinkPackage runs name's pre-unlink script, removes its installed
// files in reverse order, prunes directories left empty, and drops its
// conda-meta record. A file that cannot be removed directly (locked, in
// use) is moved into a per-prefix trash directory instead, keyed by a
// random name so concurrent unlinks never collide.
func UnlinkPackage(ctx context.Context, opts Options, name string, prefixData *prefix.Data) error {
	r, ok, err := prefixData.Get(name)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if opts.RunScripts {
		scriptPath := lifecycleScriptPath(opts.Prefix, name, "pre-unlink")
		if err := runPackageScript(ctx, opts.RootPrefix, opts.Prefix, scriptPath, r, "pre-unlink"); err != nil {
			return err
		}
	}

	files, err := installedFiles(opts.Prefix, name)
	if err != nil {
		return err
	}

	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	dirs := make(map[string]bool)
	for _, f := range files {
		path := filepath.Join(opts.Prefix, f)
		if err := removeOrTrash(opts.Prefix, path); err != nil {
			return err
		}
		dirs[filepath.Dir(path)] = true
	}
	pruneEmptyDirs(dirs)

	if err := prefixData.Remove(name); err != nil {
		return err
	}
	dlog.Infof(ctx, "unlinked %s from %s", r.Dist(), opts.Prefix)
	return nil
}

// installedFiles returns the file list recorded for name's conda-meta
// entry, read directly since prefix.Data does not expose it through
// IterRecords.
func installedFiles(prefixDir, name string) ([]string, error) {
	stemPattern := filepath.Join(prefixDir, "conda-meta", name+"-*.json")
	matches, err := filepath.Glob(stemPattern)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		var mr struct {
			Files []string `json:"files"`
		}
		if json.Unmarshal(data, &mr) == nil {
			files = append(files, mr.Files...)
		}
	}
	return files, nil
}

// removeOrTrash deletes path, falling back to moving it into the prefix's
// trash directory when the direct removal fails.
func removeOrTrash(prefixDir, path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}

	trashDir := filepath.Join(prefixDir, trashDirName)
	if err := os.MkdirAll(trashDir, 0o755); err != nil {
		return &LinkError{Path: path, Cause: err}
	}
	dst := filepath.Join(trashDir, uuid.NewString())
	if err := os.Rename(path, dst); err != nil {
		return &LinkError{Path: path, Cause: err}
	}
	return nil
}

// pruneEmptyDirs removes every directory in dirs that is now empty,
// walking upward toward the prefix root as each removal may empty its
// parent in turn.
func pruneEmptyDirs(dirs map[string]bool) {
	ordered := make([]string, 0, len(dirs))
	for d := range dirs {
		ordered = append(ordered, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ordered)))
	for _, d := range ordered {
		for {
			entries, err := os.ReadDir(d)
			if err != nil || len(entries) > 0 {
				break
			}
			if err := os.Remove(d); err != nil {
				break
			}
			d = filepath.Dir(d)
		}
	}
}
