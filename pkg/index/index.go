// Package index implements the channel-prioritized index merge and the
// installed-prefix overlay.
package index

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/kelpdev/kelp/pkg/record"
	"github.com/kelpdev/kelp/pkg/repodata"
	"github.com/kelpdev/kelp/pkg/version"
)

// MaxChannelPriority is the dispreferred-priority sentinel given to an
// installed package that is missing from the merged index while its source
// channel is still in the configured channel table ("Prefix overlay").
const MaxChannelPriority = int(^uint(0) >> 1)

// ChannelInfo is one entry of the channel prioritization table.
type ChannelInfo struct {
	CanonicalName string
	Priority int
}

// PrioritizeChannels assigns increasing priorities (0, 1, 2,...) to
// channel URLs in input order; a duplicate URL retains its first priority.
func PrioritizeChannels(urls []string, canonicalName func(url string) string) map[string]ChannelInfo {
	out := make(map[string]ChannelInfo, len(urls))
	next := 0
	for _, url := range urls {
		if _, ok := out[url]; ok {
			continue
		}
		name := url
		if canonicalName != nil {
			name = canonicalName(url)
		}
		out[url] = ChannelInfo{CanonicalName: name, Priority: next}
		next++
	}
	return out
}

// ChannelRepodata pairs a channel URL with its fetched repodata.
type ChannelRepodata struct {
	URL string
	Info ChannelInfo
	Repodata *repodata.CacheFile
}

// Index is the merged, deduplicated view over one or more channels' package
// records, keyed by Dist.
type Index struct {
	records map[string]record.PackageRecord
	// channelPriority is the configured channel/priority table Build was
	// called with, keyed by canonical channel name. It is kept independent
	// of records so SupplementWithPrefix can tell "channel is still part of
	// the current configuration" from "channel fetch produced no packages".
	channelPriority map[string]int
}

// Build merges channels in priority order into a single Index. For each
// channel's repodata, packages are iterated in deterministic (filename)
// order; the first writer wins per Dist key ("Merge").
func Build(channels []ChannelRepodata) (*Index, error) {
	idx := &Index{
		records: make(map[string]record.PackageRecord),
		channelPriority: make(map[string]int, len(channels)),
	}
	for _, ch := range channels {
		idx.channelPriority[ch.Info.CanonicalName] = ch.Info.Priority
		if ch.Repodata == nil {
			continue
		}
		fns := make([]string, 0, len(ch.Repodata.Packages))
		for fn := range ch.Repodata.Packages {
			fns = append(fns, fn)
		}
		sort.Strings(fns)

		for _, fn := range fns {
			rec, err := decodeRecord(ch.Repodata.Packages[fn])
			if err != nil {
				return nil, err
			}
			rec.Fn = fn
			rec.Channel = ch.Info.CanonicalName
			rec.Subdir = subdirOf(ch.URL)
			rec.Priority = ch.Info.Priority
			if rec.URL == "" {
				rec.URL = strings.TrimSuffix(ch.URL, "/") + "/" + fn
			}

			key := distKey(ch.Info.CanonicalName, fn)
			if _, exists := idx.records[key]; exists {
				continue
			}
			idx.records[key] = rec
		}
	}
	return idx, nil
}

func distKey(canonicalName, fn string) string {
	if canonicalName == "" || canonicalName == "defaults" {
		return fn
	}
	return canonicalName + "::" + fn
}

func subdirOf(channelURL string) string {
	trimmed := strings.TrimSuffix(channelURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// rawRecord mirrors conda's index.json shape closely enough to decode a
// repodata package entry into a PackageRecord.
type rawRecord struct {
	Name string `json:"name"`
	Version string `json:"version"`
	Build string `json:"build"`
	BuildNumber int `json:"build_number"`
	Depends []string `json:"depends"`
	Constrains []string `json:"constrains"`
	Timestamp int64 `json:"timestamp"`
	Size int64 `json:"size"`
	License string `json:"license"`
	Noarch string `json:"noarch"`
	MD5 string `json:"md5"`
	Features string `json:"features"`
	TrackFeatures string `json:"track_features"`
	PreferredEnv string `json:"preferred_env"`
}

func decodeRecord(raw json.RawMessage) (record.PackageRecord, error) {
	var rr rawRecord
	if err := json.Unmarshal(raw, &rr); err != nil {
		return record.PackageRecord{}, err
	}
	v, err := version.Parse(rr.Version)
	if err != nil {
		return record.PackageRecord{}, err
	}
	return record.PackageRecord{
		Name: rr.Name,
		Version: v,
		Build: rr.Build,
		BuildNumber: rr.BuildNumber,
		Depends: rr.Depends,
		Constrains: rr.Constrains,
		Timestamp: record.NormalizeTimestamp(rr.Timestamp),
		Size: rr.Size,
		License: rr.License,
		Noarch: record.Noarch(rr.Noarch),
		MD5: rr.MD5,
		Features: record.SplitFeatures(rr.Features),
		TrackFeatures: record.SplitFeatures(rr.TrackFeatures),
		PreferredEnv: rr.PreferredEnv,
	}, nil
}

// Get returns the record at Dist key, if present.
func (idx *Index) Get(dist string) (record.PackageRecord, bool) {
	r, ok := idx.records[dist]
	return r, ok
}

// Len returns the number of records in the index.
func (idx *Index) Len() int { return len(idx.records) }

// Records returns a snapshot of all records keyed by Dist.
func (idx *Index) Records() map[string]record.PackageRecord {
	out := make(map[string]record.PackageRecord, len(idx.records))
	for k, v := range idx.records {
		out[k] = v
	}
	return out
}

// PrefixInstalled is the narrow view of PrefixData SupplementWithPrefix
// needs for the overlay step, avoiding a dependency on pkg/prefix.
type PrefixInstalled interface {
	IterRecords() []record.PackageRecord
}

// SupplementWithPrefix overlays a prefix's installed records onto idx. This
// is the sole authoritative overlay path; conda's duplicated get_index
// logic for the same purpose is not carried forward.
//
// "Known" here means the installed package's channel is part of idx's own
// configured channel/priority table (idx.channelPriority), not merely that
// the installed record happens to carry a non-empty Channel string. A
// known-channel package missing from the merged index was removed upstream
// (or that channel is offline) and is maximally dispreferred; a package
// installed from a channel outside the current configuration instead gets
// a normal trailing priority, one past every configured channel.
func (idx *Index) SupplementWithPrefix(prefix PrefixInstalled) {
	installed := prefix.IterRecords()

	maxPriority := 1
	for _, p := range idx.channelPriority {
		if p+1 > maxPriority {
			maxPriority = p + 1
		}
	}

	for _, installedRec := range installed {
		key := distKey(installedRec.Channel, installedRec.Fn)
		if existing, ok := idx.records[key]; ok {
			merged := existing
			merged.Link = installedRec.Link
			idx.records[key] = merged
			continue
		}

		rec := installedRec
		if _, known := idx.channelPriority[rec.Channel]; known {
			rec.Priority = MaxChannelPriority
		} else {
			rec.Priority = maxPriority
		}
		idx.records[key] = rec
	}
}

// SupplementPipDependency appends "pip" to the depends list of any record
// named "python" whose version starts with "2." or "3.", deduplicated.
func (idx *Index) SupplementPipDependency() {
	for key, rec := range idx.records {
		if rec.Name != "python" {
			continue
		}
		vs := rec.Version.String()
		if !strings.HasPrefix(vs, "2.") && !strings.HasPrefix(vs, "3.") {
			continue
		}
		if containsString(rec.Depends, "pip") {
			continue
		}
		rec.Depends = append(append([]string{}, rec.Depends...), "pip")
		idx.records[key] = rec
	}
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
