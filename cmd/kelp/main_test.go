package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelpdev/kelp/internal/config"
)

func TestNewRepodataClientWiresConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	client := newRepodataClient(cfg)
	assert.Equal(t, time.Duration(cfg.RemoteReadTimeoutSecs())*time.Second, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.Equal(t, !cfg.SSLVerify(), transport.TLSClientConfig.InsecureSkipVerify)
	require.NotNil(t, transport.DialContext)
}

func TestRunVersion(t *testing.T) {
	code, err := run([]string{"kelp", "version"})
	assert.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRunHelp(t *testing.T) {
	code, err := run([]string{"kelp"})
	assert.NoError(t, err)
	assert.Equal(t, 2, code)
}

func TestRunUnknownCommand(t *testing.T) {
	code, err := run([]string{"kelp", "bogus"})
	assert.NoError(t, err)
	assert.Equal(t, 2, code)
}

func TestRunPrefixListEmptyPrefix(t *testing.T) {
	dir := t.TempDir()
	code, err := run([]string{"kelp", "prefix-list", dir})
	assert.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRunUnlinkMissingPackageIsNoop(t *testing.T) {
	dir := t.TempDir()
	code, err := run([]string{"kelp", "unlink", "--prefix", dir, "not-installed"})
	assert.NoError(t, err)
	assert.Equal(t, 0, code)
}
