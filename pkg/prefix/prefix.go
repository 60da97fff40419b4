// Package prefix implements PrefixData: a read-through cache of a prefix
// directory's installed PackageRecords.
package prefix

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/kelpdev/kelp/pkg/matchspec"
	"github.com/kelpdev/kelp/pkg/record"
)

const metaDir = "conda-meta"

// metaRecord is the on-disk shape of a conda-meta/<stem>.json file
// ("conda-meta record").
type metaRecord struct {
	record.PackageRecord
	Files []string `json:"files,omitempty"`
	PathsData record.PathsData `json:"paths_data,omitempty"`
}

// Data is the in-memory index of one prefix's installed packages, keyed by
// package name. An absent conda-meta directory is equivalent to empty.
type Data struct {
	prefixDir string

	mu sync.RWMutex
	loaded bool
	byName map[string]record.PackageRecord
	byFiles map[string][]string
}

// New returns a PrefixData for prefixDir. Records are not read until the
// first query (read-through).
func New(prefixDir string) *Data {
	return &Data{prefixDir: prefixDir}
}

func (d *Data) ensureLoaded() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		return nil
	}

	d.byName = make(map[string]record.PackageRecord)
	d.byFiles = make(map[string][]string)

	dir := filepath.Join(d.prefixDir, metaDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		d.loaded = true
		return nil
	}
	if err != nil {
		return err
	}

	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, ent.Name()))
		if err != nil {
			return err
		}
		var mr metaRecord
		if err := json.Unmarshal(data, &mr); err != nil {
			return err
		}
		d.byName[mr.Name] = mr.PackageRecord
		d.byFiles[mr.Name] = mr.Files
	}
	d.loaded = true
	return nil
}

// Get returns the installed record for name, if any.
func (d *Data) Get(name string) (record.PackageRecord, bool, error) {
	if err := d.ensureLoaded(); err != nil {
		return record.PackageRecord{}, false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.byName[name]
	return r, ok, nil
}

// IterRecords returns every installed record. It satisfies
// index.PrefixInstalled.
func (d *Data) IterRecords() []record.PackageRecord {
	if err := d.ensureLoaded(); err != nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]record.PackageRecord, 0, len(d.byName))
	for _, r := range d.byName {
		out = append(out, r)
	}
	return out
}

// Query returns every installed record matching spec.
func (d *Data) Query(spec *matchspec.MatchSpec) ([]record.PackageRecord, error) {
	if err := d.ensureLoaded(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []record.PackageRecord
	for _, r := range d.byName {
		if spec.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Insert atomically writes the conda-meta record for r (and its installed
// file list) and updates the in-memory cache.
func (d *Data) Insert(r record.PackageRecord, files []string, paths record.PathsData) error {
	if err := d.ensureLoaded(); err != nil {
		return err
	}

	mr := metaRecord{PackageRecord: r, Files: files, PathsData: paths}
	data, err := json.MarshalIndent(mr, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Join(d.prefixDir, metaDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, r.Stem()+".json")
	tmp, err := os.CreateTemp(dir, ".meta-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.byName[r.Name] = r
	d.byFiles[r.Name] = files
	return nil
}

// Remove deletes the conda-meta record for name and drops it from the
// in-memory cache.
func (d *Data) Remove(name string) error {
	if err := d.ensureLoaded(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.byName[name]
	if !ok {
		return nil
	}
	path := filepath.Join(d.prefixDir, metaDir, r.Stem()+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	delete(d.byName, name)
	delete(d.byFiles, name)
	return nil
}
