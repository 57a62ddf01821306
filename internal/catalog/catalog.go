// Package catalog loads repository indexes (repo.db.yaml) and merges
// them into a single lookup across the ordered repository list.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Package is one metadata record, shared by repository catalogs and
// package archives' embedded metadata.yaml.
type Package struct {
	Name            string   `yaml:"name"`
	Version         string   `yaml:"version"`
	Description     string   `yaml:"description"`
	FileName        string   `yaml:"file_name"`
	Dependencies    []string `yaml:"dependencies"`
	Files           []string `yaml:"files"`
	StripComponents int      `yaml:"strip_components"`
	Size            string   `yaml:"size,omitempty"`
	Arch            string   `yaml:"arch,omitempty"`
	BuildDate       string   `yaml:"build_date,omitempty"`
	UpdateDirs      []string `yaml:"update_dirs,omitempty"`
	UpdateTime      string   `yaml:"update_time,omitempty"`
}

// File is the parsed form of one repo.db.yaml.
type File struct {
	Packages []Package `yaml:"packages"`
}

// Entry is a catalog record together with the repository that provided
// it, so archives can later be fetched from the matching URL.
type Entry struct {
	Package
	Repo string
}

// Catalog is the merged view over every reachable repository index.
// The first repository to define a name wins; later definitions of the
// same name are ignored.
type Catalog struct {
	byName map[string]Entry
	order  []string
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{byName: make(map[string]Entry)}
}

// ParseFile parses one repo.db.yaml from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse parses repo.db.yaml content.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &f, nil
}

// Merge inserts every record of f attributed to repoURL. Records whose
// name is already present are skipped, which gives earlier repositories
// precedence when Merge is called in configuration order. Records
// missing a name are dropped.
func (c *Catalog) Merge(repoURL string, f *File) {
	for _, p := range f.Packages {
		if p.Name == "" {
			continue
		}
		if _, exists := c.byName[p.Name]; exists {
			continue
		}
		c.byName[p.Name] = Entry{Package: p, Repo: repoURL}
		c.order = append(c.order, p.Name)
	}
}

// Lookup returns the winning record for name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	e, ok := c.byName[name]
	return e, ok
}

// Has reports whether name is present.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Names returns every package name in insertion order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of merged records.
func (c *Catalog) Len() int {
	return len(c.byName)
}
