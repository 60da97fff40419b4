package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/kelpdev/kelp/internal/config"
	"github.com/kelpdev/kelp/pkg/index"
	"github.com/kelpdev/kelp/pkg/link"
	"github.com/kelpdev/kelp/pkg/prefix"
	"github.com/kelpdev/kelp/pkg/record"
	"github.com/kelpdev/kelp/pkg/repodata"
	"github.com/kelpdev/kelp/pkg/version"
)

// Version identifies the version of kelp. Modified by CI during release.
var Version = "dev"

const defaultHelp = `kelp is a cross-platform binary package manager core

Usage:

 kelp <command> [options]

The commands are:

 fetch fetch and cache a channel's repodata
 index build a merged index from one or more channels
 link link a package into a prefix
 unlink unlink a package from a prefix
 prefix-list list packages installed in a prefix
 version show kelp version
`

func run(args []string) (int, error) {
	arg := ""
	if len(args) > 1 {
		arg = args[1]
	}

	switch arg {
	case "", "help", "--help", "-h":
		fmt.Print(defaultHelp)
		return 2, nil
	case "version", "--version":
		fmt.Printf("kelp version: %s\n", Version)
		return 0, nil
	case "fetch":
		return runFetch(args[1:])
	case "index":
		return runIndex(args[1:])
	case "link":
		return runLink(args[1:])
	case "unlink":
		return runUnlink(args[1:])
	case "prefix-list":
		return runPrefixList(args[1:])
	default:
		fmt.Printf("kelp %s: unknown command\n", arg)
		return 2, nil
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	return config.Load(configPath)
}

// newRepodataClient builds the *http.Client channel fetches run over,
// wiring the connect timeout and SSL verification setting out of
// .kelpconfig into the transport rather than leaving them as inert
// round-tripped fields.
func newRepodataClient(cfg *config.Config) *http.Client {
	dialer := &net.Dialer{Timeout: time.Duration(cfg.RemoteConnectTimeoutSecs()) * time.Second}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.SSLVerify()}, //nolint:gosec // gated by ssl_verify, same as conda's own verify_ssl
	}
	return &http.Client{
		Timeout: time.Duration(cfg.RemoteReadTimeoutSecs()) * time.Second,
		Transport: transport,
	}
}

func runFetch(args []string) (int, error) {
	flagSet := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to .kelpconfig")
	cacheDir := flagSet.String("cache-dir", "", "repodata cache directory")
	if err := flagSet.Parse(args[1:]); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 2, err
	}
	channelURLs := flagSet.Args()
	if len(channelURLs) == 0 {
		fmt.Println("kelp fetch: no channel URLs provided")
		return 2, nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return 1, err
	}
	dir := *cacheDir
	if dir == "" {
		dir = cfg.PkgsDir()
	}

	client := newRepodataClient(cfg)
	results, err := repodata.CollectRepodatas(context.Background(), channelURLs, repodata.CollectOptions{
		Client: client,
		CacheDir: dir,
		Concurrent: cfg.Concurrent(),
		Fetch: repodata.Options{
			RepodataTimeout: time.Duration(cfg.RepodataTimeoutSecs()) * time.Second,
			ChannelAlias: cfg.ChannelAlias(),
		},
	})
	if err != nil {
		return 1, err
	}

	for i, cf := range results {
		if cf == nil {
			fmt.Printf("%s: not found\n", channelURLs[i])
			continue
		}
		fmt.Printf("%s: %d packages\n", channelURLs[i], len(cf.Packages))
	}
	return 0, nil
}

func runIndex(args []string) (int, error) {
	flagSet := pflag.NewFlagSet("index", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to .kelpconfig")
	cacheDir := flagSet.String("cache-dir", "", "repodata cache directory")
	prefixDir := flagSet.String("prefix", "", "prefix to overlay installed packages from")
	if err := flagSet.Parse(args[1:]); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 2, err
	}
	channelURLs := flagSet.Args()
	if len(channelURLs) == 0 {
		fmt.Println("kelp index: no channel URLs provided")
		return 2, nil
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return 1, err
	}
	dir := *cacheDir
	if dir == "" {
		dir = cfg.PkgsDir()
	}

	infos := index.PrioritizeChannels(channelURLs, nil)
	client := newRepodataClient(cfg)
	results, err := repodata.CollectRepodatas(context.Background(), channelURLs, repodata.CollectOptions{
		Client: client,
		CacheDir: dir,
		Concurrent: cfg.Concurrent(),
		Fetch: repodata.Options{
			RepodataTimeout: time.Duration(cfg.RepodataTimeoutSecs()) * time.Second,
			ChannelAlias: cfg.ChannelAlias(),
		},
	})
	if err != nil {
		return 1, err
	}

	channels := make([]index.ChannelRepodata, 0, len(channelURLs))
	for i, url := range channelURLs {
		channels = append(channels, index.ChannelRepodata{URL: url, Info: infos[url], Repodata: results[i]})
	}

	idx, err := index.Build(channels)
	if err != nil {
		return 1, err
	}
	if cfg.AddPipAsPythonDependency() {
		idx.SupplementPipDependency()
	}

	if *prefixDir != "" {
		idx.SupplementWithPrefix(prefix.New(*prefixDir))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return 0, enc.Encode(idx.Records())
}

func runLink(args []string) (int, error) {
	flagSet := pflag.NewFlagSet("link", pflag.ContinueOnError)
	prefixDir := flagSet.String("prefix", "", "target prefix")
	rootPrefix := flagSet.String("root-prefix", "", "base conda install")
	pythonExe := flagSet.String("python", "", "python interpreter for noarch packages")
	runScripts := flagSet.Bool("run-scripts", true, "run post-link scripts")
	if err := flagSet.Parse(args[1:]); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 2, err
	}
	if *prefixDir == "" || flagSet.NArg() == 0 {
		fmt.Println("kelp link: --prefix and a package root directory are required")
		return 2, nil
	}
	pkgRoot := flagSet.Arg(0)

	rec, err := readPackageIndexJSON(pkgRoot)
	if err != nil {
		return 1, err
	}

	prefixData := prefix.New(*prefixDir)
	opts := link.Options{
		RootPrefix: *rootPrefix,
		Prefix: *prefixDir,
		PythonExe: *pythonExe,
		RunScripts: *runScripts,
	}
	payload := link.PackagePayload{Record: rec, RootDir: pkgRoot, LinkType: link.Hardlink}

	fmt.Fprintf(os.Stderr, "linking %s into %s\n", rec.Dist(), *prefixDir)
	if err := link.LinkPackage(context.Background(), opts, payload, prefixData); err != nil {
		return 1, err
	}
	fmt.Printf("linked %s\n", rec.Dist())
	return 0, nil
}

// readPackageIndexJSON decodes a package cache entry's info/index.json into
// a PackageRecord, the on-disk metadata every extracted package carries
// alongside its payload.
func readPackageIndexJSON(pkgRoot string) (record.PackageRecord, error) {
	data, err := os.ReadFile(filepath.Join(pkgRoot, "info", "index.json"))
	if err != nil {
		return record.PackageRecord{}, err
	}

	var raw struct {
		Name string `json:"name"`
		Version string `json:"version"`
		Build string `json:"build"`
		BuildNumber int `json:"build_number"`
		Noarch string `json:"noarch"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return record.PackageRecord{}, err
	}

	v, err := version.Parse(raw.Version)
	if err != nil {
		return record.PackageRecord{}, err
	}
	return record.PackageRecord{
		Name: raw.Name,
		Version: v,
		Build: raw.Build,
		BuildNumber: raw.BuildNumber,
		Noarch: record.Noarch(raw.Noarch),
	}, nil
}

func runUnlink(args []string) (int, error) {
	flagSet := pflag.NewFlagSet("unlink", pflag.ContinueOnError)
	prefixDir := flagSet.String("prefix", "", "target prefix")
	rootPrefix := flagSet.String("root-prefix", "", "base conda install")
	runScripts := flagSet.Bool("run-scripts", true, "run pre-unlink scripts")
	if err := flagSet.Parse(args[1:]); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 2, err
	}
	if *prefixDir == "" || flagSet.NArg() == 0 {
		fmt.Println("kelp unlink: --prefix and a package name are required")
		return 2, nil
	}
	name := flagSet.Arg(0)

	prefixData := prefix.New(*prefixDir)
	opts := link.Options{RootPrefix: *rootPrefix, Prefix: *prefixDir, RunScripts: *runScripts}
	if err := link.UnlinkPackage(context.Background(), opts, name, prefixData); err != nil {
		return 1, err
	}
	fmt.Printf("unlinked %s\n", name)
	return 0, nil
}

func runPrefixList(args []string) (int, error) {
	flagSet := pflag.NewFlagSet("prefix-list", pflag.ContinueOnError)
	if err := flagSet.Parse(args[1:]); err == pflag.ErrHelp {
		return 0, nil
	} else if err != nil {
		return 2, err
	}
	if flagSet.NArg() == 0 {
		fmt.Println("kelp prefix-list: a prefix directory is required")
		return 2, nil
	}
	prefixData := prefix.New(flagSet.Arg(0))
	for _, rec := range prefixData.IterRecords() {
		fmt.Printf("%s-%s-%s\n", rec.Name, rec.Version.String(), rec.Build)
	}
	return 0, nil
}

func main() {
	exitCode, err := run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode)
}
