package link

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/datawire/dlib/dexec"

	"github.com/kelpdev/kelp/pkg/record"
)

// EntryPoint is one console_scripts-style entry declared by a noarch
// python package's info/noarch.json.
type EntryPoint struct {
	Command string // the script name to generate
	Module string // dotted module path
	Func string // callable within Module
}

// ParseEntryPoint parses conda's "name = module:func" entry point syntax.
func ParseEntryPoint(spec string) (EntryPoint, error) {
	eq := strings.Index(spec, "=")
	if eq < 0 {
		return EntryPoint{}, fmt.Errorf("noarch: malformed entry point %q", spec)
	}
	cmd := strings.TrimSpace(spec[:eq])
	rest := strings.TrimSpace(spec[eq+1:])
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return EntryPoint{}, fmt.Errorf("noarch: malformed entry point %q", spec)
	}
	return EntryPoint{Command: cmd, Module: strings.TrimSpace(rest[:colon]), Func: strings.TrimSpace(rest[colon+1:])}, nil
}

// noarchSitePackagesDir returns where a noarch python package's library
// payload lands within prefix, which differs between POSIX and Windows
// conda layouts.
func noarchSitePackagesDir(prefix, pythonVersion string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(prefix, "Lib", "site-packages")
	}
	return filepath.Join(prefix, "lib", "python"+pythonVersion, "site-packages")
}

func noarchScriptsDir(prefix string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(prefix, "Scripts")
	}
	return filepath.Join(prefix, "bin")
}

// posixEntryPointScript renders the launcher script text for a POSIX
// console entry point.
func posixEntryPointScript(pythonExe string, ep EntryPoint) string {
	return fmt.Sprintf(`#!%s
# generated by kelp from noarch python entry point
if __name__ == '__main__':
 import sys
 from %s import %s
 sys.exit(%s())
`, pythonExe, ep.Module, ep.Func, ep.Func)
}

// windowsEntryPointScript renders a `.py` stub matched with an importable
// launcher `.exe`-free fallback. kelp does not vendor conda's compiled
// launcher stub, so on Windows it installs a `.py` + `.bat` shim pair
// instead of a pyzzer-style native launcher.
func windowsEntryPointScript(ep EntryPoint) string {
	return fmt.Sprintf(`import sys
from %s import %s
if __name__ == '__main__':
 sys.exit(%s())
`, ep.Module, ep.Func, ep.Func)
}

func windowsEntryPointBatch(command string) string {
	return fmt.Sprintf("@echo off\r\npython.exe \"%%~dp0%s-script.py\" %%*\r\n", command)
}

// WriteEntryPoints materializes the launcher scripts for a noarch python
// package's declared entry points, returning the relative paths created.
func WriteEntryPoints(prefix, pythonExe string, entryPoints []EntryPoint) ([]string, error) {
	scriptsDir := noarchScriptsDir(prefix)
	if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
		return nil, err
	}

	var created []string
	for _, ep := range entryPoints {
		if runtime.GOOS == "windows" {
			pyPath := filepath.Join(scriptsDir, ep.Command+"-script.py")
			if err := os.WriteFile(pyPath, []byte(windowsEntryPointScript(ep)), 0o644); err != nil {
				return nil, err
			}
			batPath := filepath.Join(scriptsDir, ep.Command+".bat")
			if err := os.WriteFile(batPath, []byte(windowsEntryPointBatch(ep.Command)), 0o644); err != nil {
				return nil, err
			}
			created = append(created, rel(prefix, pyPath), rel(prefix, batPath))
			continue
		}

		path := filepath.Join(scriptsDir, ep.Command)
		if err := os.WriteFile(path, []byte(posixEntryPointScript(pythonExe, ep)), 0o755); err != nil {
			return nil, err
		}
		created = append(created, rel(prefix, path))
	}
	return created, nil
}

func rel(base, path string) string {
	r, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}

// CompilePyc byte-compiles every .py file under dir using the prefix's own
// python interpreter, mirroring a noarch python package's post-link .pyc
// generation. Compile failures are non-fatal: a package installs fine
// without its .pyc cache.
func CompilePyc(ctx context.Context, pythonExe, dir string) error {
	cmd := dexec.CommandContext(ctx, pythonExe, "-m", "compileall", "-q", dir)
	return cmd.Run()
}

// PackageRecordNoarchPython reports whether r is a noarch python package
// needing the noarch install layout instead of a direct file copy.
func PackageRecordNoarchPython(r record.PackageRecord) bool {
	return r.Noarch == record.NoarchPython
}
