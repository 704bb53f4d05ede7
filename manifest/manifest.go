// Package manifest handles kestrel.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/kestrel-lang/kestrel/core"
)

// Manifest represents a kestrel.toml project configuration.
type Manifest struct {
	Project  Project        `toml:"project"`
	Runtime  RuntimeConfig  `toml:"runtime"`
	Snapshot SnapshotConfig `toml:"snapshot"`

	// Dir is the directory containing the kestrel.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// RuntimeConfig tunes the value heap.
type RuntimeConfig struct {
	// GCTrigger is the allocation count that triggers a collection.
	// 0 uses the built-in default; a negative value disables the trigger.
	GCTrigger int `toml:"gc-trigger"`

	// InternCapacity is the initial symbol table capacity. It is rounded
	// up to a prime; 0 uses the built-in default.
	InternCapacity int `toml:"intern-capacity"`

	// MoldLimit caps rendered text length. 0 means unlimited.
	MoldLimit int `toml:"mold-limit"`

	// BootWords are symbols interned at startup with stable fixed IDs.
	BootWords []string `toml:"boot-words"`
}

// SnapshotConfig configures the snapshot catalog.
type SnapshotConfig struct {
	Catalog string `toml:"catalog"`
}

// Load parses a kestrel.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "kestrel.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Snapshot.Catalog == "" {
		m.Snapshot.Catalog = filepath.Join(".kestrel", "snapshots.db")
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a kestrel.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "kestrel.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Default returns the manifest used when no kestrel.toml is present.
func Default() *Manifest {
	return &Manifest{
		Snapshot: SnapshotConfig{Catalog: filepath.Join(".kestrel", "snapshots.db")},
	}
}

// RuntimeOptions translates the manifest into a core runtime configuration.
func (m *Manifest) RuntimeOptions() core.Config {
	return core.Config{
		GCTrigger:      m.Runtime.GCTrigger,
		InternCapacity: m.Runtime.InternCapacity,
		MoldLimit:      m.Runtime.MoldLimit,
		BootWords:      m.Runtime.BootWords,
	}
}

// CatalogPath returns the absolute path of the snapshot catalog.
func (m *Manifest) CatalogPath() string {
	if filepath.IsAbs(m.Snapshot.Catalog) {
		return m.Snapshot.Catalog
	}
	return filepath.Join(m.Dir, m.Snapshot.Catalog)
}
