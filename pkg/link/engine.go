package link

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/datawire/dlib/dlog"

	"github.com/kelpdev/kelp/pkg/prefix"
	"github.com/kelpdev/kelp/pkg/record"
)

// PackagePayload is one extracted package cache entry ready to be linked
// into a prefix: its record, its extracted root directory (whose info/
// manifest lists the payload files), and the link type to use.
type PackagePayload struct {
	Record record.PackageRecord
	RootDir string // extracted package directory (contains info/ and payload)
	LinkType Type
}

// Options configures a LinkPackage/UnlinkPackage run.
type Options struct {
	RootPrefix string // the base conda install, for ROOT_PREFIX
	Prefix string // the target environment prefix
	PythonExe string // python interpreter inside Prefix, for noarch packages
	RunScripts bool
}

// LinkPackage materializes pkg's payload into opts.Prefix, rewrites prefix
// placeholders, lays out noarch python packages, runs the post-link
// script, and records the result in prefixData.
func LinkPackage(ctx context.Context, opts Options, pkg PackagePayload, prefixData *prefix.Data) error {
	infoDir := filepath.Join(pkg.RootDir, "info")

	files, hasPrefix, manifestV1, err := readManifest(infoDir)
	if err != nil {
		return err
	}

	var installed []string
	if PackageRecordNoarchPython(pkg.Record) {
		installed, err = linkNoarchPython(ctx, opts, pkg, files)
	} else {
		installed, err = linkDirectFiles(opts, pkg, files)
	}
	if err != nil {
		return err
	}

	if err := applyPrefixRewrites(opts.Prefix, installed, hasPrefix); err != nil {
		return err
	}

	var paths record.PathsData
	if manifestV1 != nil {
		paths = BuildPathsDataV1(manifestV1, installed)
	} else {
		paths = BuildPathsDataV0(installed, hasPrefix)
	}

	if opts.RunScripts {
		scriptPath := lifecycleScriptPath(opts.Prefix, pkg.Record.Name, "post-link")
		if err := runPackageScript(ctx, opts.RootPrefix, opts.Prefix, scriptPath, pkg.Record, "post-link"); err != nil {
			return err
		}
	}

	pkg.Record.Link = record.Link{Source: pkg.RootDir, Type: pkg.LinkType.String()}
	if err := prefixData.Insert(pkg.Record, installed, paths); err != nil {
		return err
	}

	dlog.Infof(ctx, "linked %s into %s", pkg.Record.Dist(), opts.Prefix)
	return nil
}

// readManifest loads a package's file manifest, preferring the V1
// info/paths.json and falling back to info/files plus info/has_prefix
// when paths.json is absent. manifestV1 is non-nil only when paths.json
// was read, so callers can reconcile the richer V1 metadata against the
// files actually installed instead of re-deriving it from V0 shape.
func readManifest(infoDir string) (files []string, hasPrefix []HasPrefixEntry, manifestV1 *record.PathsData, err error) {
	pd, err := readPathsJSON(filepath.Join(infoDir, "paths.json"))
	if err != nil {
		return nil, nil, nil, err
	}
	if pd != nil {
		files, hasPrefix = filesAndHasPrefixFromPathsV1(pd)
		return files, hasPrefix, pd, nil
	}

	filesPath := filepath.Join(infoDir, "files")
	data, err := os.ReadFile(filesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil, nil
		}
		return nil, nil, nil, err
	}
	for _, line := range splitLines(string(data)) {
		if line != "" {
			files = append(files, line)
		}
	}

	hpPath := filepath.Join(infoDir, "has_prefix")
	hp, err := os.Open(hpPath)
	if err != nil {
		if os.IsNotExist(err) {
			return files, nil, nil, nil
		}
		return nil, nil, nil, err
	}
	defer hp.Close()
	hasPrefix, err = ReadHasPrefix(hp)
	if err != nil {
		return nil, nil, nil, err
	}
	return files, hasPrefix, nil, nil
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			out = append(out, line)
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

// linkDirectFiles materializes every payload file at its same relative
// path in the target prefix.
func linkDirectFiles(opts Options, pkg PackagePayload, files []string) ([]string, error) {
	installed := make([]string, 0, len(files))
	for _, f := range files {
		src := filepath.Join(pkg.RootDir, f)
		dst := filepath.Join(opts.Prefix, f)
		if err := materialize(src, dst, pkg.LinkType); err != nil {
			return nil, err
		}
		if isScriptDir(f) {
			if err := applyScriptPermissions(dst); err != nil {
				return nil, err
			}
		}
		installed = append(installed, f)
	}
	return installed, nil
}

// linkNoarchPython materializes a noarch python package's site-packages
// payload and generates its console entry-point launchers.
func linkNoarchPython(ctx context.Context, opts Options, pkg PackagePayload, files []string) ([]string, error) {
	siteDir := noarchSitePackagesDir(opts.Prefix, "3")
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return nil, err
	}

	installed := make([]string, 0, len(files))
	for _, f := range files {
		src := filepath.Join(pkg.RootDir, "site-packages", f)
		if _, err := os.Stat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		dst := filepath.Join(siteDir, f)
		if err := materialize(src, dst, pkg.LinkType); err != nil {
			return nil, err
		}
		rel, _ := filepath.Rel(opts.Prefix, dst)
		installed = append(installed, filepath.ToSlash(rel))
	}

	entryPoints, err := readNoarchEntryPoints(filepath.Join(pkg.RootDir, "info", "noarch.json"))
	if err != nil {
		return nil, err
	}
	if len(entryPoints) > 0 {
		created, err := WriteEntryPoints(opts.Prefix, opts.PythonExe, entryPoints)
		if err != nil {
			return nil, err
		}
		installed = append(installed, created...)
	}

	if opts.PythonExe != "" {
		if err := CompilePyc(ctx, opts.PythonExe, siteDir); err != nil {
			dlog.Warnf(ctx, "pyc compilation failed for %s: %v", pkg.Record.Name, err)
		}
	}

	sort.Strings(installed)
	return installed, nil
}

// applyPrefixRewrites rewrites every installed path declaring a has_prefix
// placeholder, skipping paths that were not actually installed by this
// pass (e.g. filtered noarch resources).
func applyPrefixRewrites(prefixDir string, installed []string, entries []HasPrefixEntry) error {
	if len(entries) == 0 {
		return nil
	}
	installedSet := make(map[string]bool, len(installed))
	for _, f := range installed {
		installedSet[f] = true
	}
	for _, e := range entries {
		if !installedSet[e.Path] {
			continue
		}
		target := filepath.Join(prefixDir, e.Path)
		if err := rewritePrefix(target, e.Placeholder, prefixDir, e.Mode); err != nil {
			return err
		}
	}
	return nil
}
