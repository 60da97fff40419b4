package link

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelpdev/kelp/pkg/prefix"
	"github.com/kelpdev/kelp/pkg/record"
	"github.com/kelpdev/kelp/pkg/version"
)

func writePkgRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestLinkAndUnlinkDirectPackage(t *testing.T) {
	v, err := version.Parse("1.0")
	require.NoError(t, err)

	pkgRoot := writePkgRoot(t, map[string]string{
		"info/files":      "bin/greet\n",
		"info/has_prefix": "bin/greet\n",
		"bin/greet":        "#!/bin/sh\necho " + PrefixPlaceholder + "\n",
	})

	envDir := t.TempDir()
	prefixData := prefix.New(envDir)

	opts := Options{RootPrefix: envDir, Prefix: envDir}
	payload := PackagePayload{
		Record: record.PackageRecord{Name: "greet", Version: v, Build: "0"},
		RootDir: pkgRoot,
		LinkType: Copy,
	}

	require.NoError(t, LinkPackage(context.Background(), opts, payload, prefixData))

	installedPath := filepath.Join(envDir, "bin", "greet")
	content, err := os.ReadFile(installedPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), envDir)
	assert.NotContains(t, string(content), PrefixPlaceholder)

	got, ok, err := prefixData.Get("greet")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "greet", got.Name)

	require.NoError(t, UnlinkPackage(context.Background(), opts, "greet", prefixData))
	_, err = os.Stat(installedPath)
	assert.True(t, os.IsNotExist(err))

	_, ok, err = prefixData.Get("greet")
	require.NoError(t, err)
	assert.False(t, ok)
}
