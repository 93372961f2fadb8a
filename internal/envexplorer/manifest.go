package envexplorer

import (
	"fmt"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// Package is one manifest entry. Exactly one of Version and Paths is set.
type Package struct {
	Version string   `yaml:"version,omitempty"`
	Paths   []string `yaml:"paths,omitempty"`
	Binary  bool     `yaml:"binary,omitempty"`
}

// Local reports whether the entry ships files instead of a reference.
func (p Package) Local() bool { return p.Version == "" }

// Manifest maps a module or top-level package name to how it is provided.
type Manifest struct {
	Packages map[string]Package `yaml:"packages"`
}

// Names returns the entry names in sorted order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Packages))
	for n := range m.Packages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// Unmarshal decodes a manifest produced by Marshal.
func Unmarshal(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.Packages == nil {
		m.Packages = map[string]Package{}
	}
	return &m, nil
}

func (m *Manifest) addPath(name, path string, binary bool) {
	p := m.Packages[name]
	p.Version = ""
	if path != "" && !slices.Contains(p.Paths, path) {
		p.Paths = append(p.Paths, path)
		sort.Strings(p.Paths)
	}
	p.Binary = p.Binary || binary
	m.Packages[name] = p
}

func (m *Manifest) addVersion(name, version string, binary bool) {
	p := m.Packages[name]
	if len(p.Paths) > 0 {
		p.Binary = p.Binary || binary
		m.Packages[name] = p
		return
	}
	p.Version = version
	p.Binary = p.Binary || binary
	m.Packages[name] = p
}
