package link

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/datawire/dlib/dexec"
	"github.com/datawire/dlib/dlog"

	"github.com/kelpdev/kelp/pkg/record"
)

// scriptEnv builds the environment passed to a post-link or pre-unlink
// script, step 6.
func scriptEnv(rootPrefix, prefix string, r record.PackageRecord) []string {
	env := os.Environ()
	env = append(env,
		"ROOT_PREFIX="+rootPrefix,
		"PREFIX="+prefix,
		"PKG_NAME="+r.Name,
		"PKG_VERSION="+r.Version.String(),
		"PKG_BUILDNUM="+strconv.Itoa(r.BuildNumber),
	)
	return env
}

// runPackageScript runs scriptPath for r if it exists, via dexec so
// execution is logged and context-cancellable.
func runPackageScript(ctx context.Context, rootPrefix, prefix, scriptPath string, r record.PackageRecord, phase string) error {
	if scriptPath == "" {
		return nil
	}
	if _, err := os.Stat(scriptPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var cmd *dexec.Cmd
	if runtime.GOOS == "windows" {
		comspec := os.Getenv("COMSPEC")
		if comspec == "" {
			return nil
		}
		cmd = dexec.CommandContext(ctx, comspec, "/c", scriptPath)
	} else {
		shell := "/bin/bash"
		if strings.Contains(runtime.GOOS, "bsd") {
			shell = "/bin/sh"
		}
		cmd = dexec.CommandContext(ctx, shell, scriptPath)
	}
	cmd.Dir = prefix
	cmd.Env = scriptEnv(rootPrefix, prefix, r)

	if err := cmd.Run(); err != nil {
		dlog.Errorf(ctx, "%s script failed for %s: %v", phase, r.Name, err)
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &ScriptError{Package: r.Name, Phase: phase, ExitCode: exitCode}
	}
	return nil
}

// lifecycleScriptPath returns where a package's hidden lifecycle script
// lives once installed: "<prefix>/bin/.<name>-<action>.sh", or
// "<prefix>\Scripts\.<name>-<action>.bat" on Windows. Packages that ship a
// lifecycle script carry it as a regular payload file at this same path,
// so it is materialized by the normal file-copy step before
// runPackageScript ever looks for it (grounded on
// `original_source/conda/install.py`'s `run_script`).
func lifecycleScriptPath(prefix, name, action string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(prefix, "Scripts", "."+name+"-"+action+".bat")
	}
	return filepath.Join(prefix, "bin", "."+name+"-"+action+".sh")
}
