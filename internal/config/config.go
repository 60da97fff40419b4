// Package config loads the YAML configuration recognized by the core,
// mirroring the way conda's own `.condarc` is loaded by
// `conda/common/yaml.py` / `conda_env/yaml.py`: a thin named-load/dump pair
// wrapped around the YAML library rather than a bespoke parser.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".kelpconfig"

// Config is the subset of conda's `.condarc` schema this core consumes.
type Config struct {
	ChannelList []string `yaml:"channels"`
	SubdirName string `yaml:"subdir"`
	PkgsDirList []string `yaml:"pkgs_dirs"`
	ChannelAliasURL string `yaml:"channel_alias"`

	RepodataTimeout int `yaml:"repodata_timeout_secs"`
	RemoteConnectTimeout int `yaml:"remote_connect_timeout_secs"`
	RemoteReadTimeout int `yaml:"remote_read_timeout_secs"`
	VerifySSL bool `yaml:"ssl_verify"`
	RunConcurrent bool `yaml:"concurrent"`
	PipAsPythonDep bool `yaml:"add_pip_as_python_dependency"`
}

// Provider is the narrow read-only view of the configuration. repodata,
// index, and link do not take it: cmd/kelp reads these values and passes
// them on as plain options, so none of those packages imports this package.
type Provider interface {
	Channels() []string
	Subdir() string
	PkgsDir() string
	ChannelAlias() string
	RepodataTimeoutSecs() int
	RemoteConnectTimeoutSecs() int
	RemoteReadTimeoutSecs() int
	SSLVerify() bool
	Concurrent() bool
	AddPipAsPythonDependency() bool
}

func defaults() *Config {
	return &Config{
		ChannelList: []string{"defaults"},
		SubdirName: "linux-64",
		PkgsDirList: []string{defaultPkgsDir()},
		ChannelAliasURL: "https://conda.anaconda.org",
		RepodataTimeout: 60,
		RemoteConnectTimeout: 9,
		RemoteReadTimeout: 60,
		VerifySSL: true,
		RunConcurrent: true,
		PipAsPythonDep: true,
	}
}

func defaultPkgsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pkgs"
	}
	return home + "/.kelp/pkgs"
}

// Load reads path as YAML, falling back to sensible defaults when path
// does not exist. An empty path loads from the default file name in the
// current directory.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigFile
	}

	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Channels() []string { return c.ChannelList }
func (c *Config) Subdir() string { return c.SubdirName }
func (c *Config) ChannelAlias() string { return c.ChannelAliasURL }

func (c *Config) PkgsDir() string {
	if len(c.PkgsDirList) == 0 {
		return ""
	}
	return c.PkgsDirList[0]
}

func (c *Config) RepodataTimeoutSecs() int { return c.RepodataTimeout }
func (c *Config) RemoteConnectTimeoutSecs() int { return c.RemoteConnectTimeout }
func (c *Config) RemoteReadTimeoutSecs() int { return c.RemoteReadTimeout }
func (c *Config) SSLVerify() bool { return c.VerifySSL }
func (c *Config) Concurrent() bool { return c.RunConcurrent }
func (c *Config) AddPipAsPythonDependency() bool { return c.PipAsPythonDep }

var _ Provider = (*Config)(nil)
