// Package manifest handles groove.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultCachePath is the chunk cache location used when groove.toml
// does not name one.
const DefaultCachePath = ".groove/chunks.db"

// Manifest represents a groove.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Source  Source      `toml:"source"`
	Cache   CacheConfig `toml:"cache"`

	// Dir is the directory containing the groove.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures where scripts live.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// CacheConfig configures the compiled-chunk cache.
type CacheConfig struct {
	Enabled *bool  `toml:"enabled"` // nil means enabled
	Path    string `toml:"path"`
}

// Load parses a groove.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "groove.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	m.Dir = dir
	return &m, nil
}

// Default returns the configuration used when no groove.toml exists.
func Default(dir string) *Manifest {
	return &Manifest{Dir: dir}
}

// CacheEnabled reports whether the chunk cache should be used.
func (m *Manifest) CacheEnabled() bool {
	return m.Cache.Enabled == nil || *m.Cache.Enabled
}

// CachePath returns the chunk cache location, resolved against the
// manifest directory.
func (m *Manifest) CachePath() string {
	path := m.Cache.Path
	if path == "" {
		path = DefaultCachePath
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.Dir, path)
}

// EntryPath returns the configured entry script resolved against the
// manifest directory, or "" if none is set.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Source.Entry) {
		return m.Source.Entry
	}
	return filepath.Join(m.Dir, m.Source.Entry)
}
