// Package repoindex builds repo.db.yaml catalogs from a directory of
// package archives.
package repoindex

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sfg-os/starpack/internal/archive"
	"github.com/sfg-os/starpack/internal/catalog"
	"github.com/sfg-os/starpack/internal/output"
)

// CatalogName is the index filename written into the repository
// directory.
const CatalogName = "repo.db.yaml"

// metadata mirrors the metadata.yaml carried inside each archive.
type metadata struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Description  string   `yaml:"description"`
	Dependencies []string `yaml:"dependencies"`
}

// trimVariant drops a "/variant" suffix from a package or dependency
// name.
func trimVariant(name string) string {
	if idx := strings.IndexByte(name, '/'); idx >= 0 {
		return name[:idx]
	}
	return name
}

// commonComponents counts the leading path components shared by every
// path.
func commonComponents(paths []string) int {
	if len(paths) == 0 {
		return 0
	}
	common := strings.Split(strings.Trim(paths[0], "/"), "/")
	for _, p := range paths[1:] {
		comps := strings.Split(strings.Trim(p, "/"), "/")
		n := len(common)
		if len(comps) < n {
			n = len(comps)
		}
		j := 0
		for ; j < n; j++ {
			if common[j] != comps[j] {
				break
			}
		}
		common = common[:j]
		if len(common) == 0 {
			break
		}
	}
	return len(common)
}

// stripComponentsFor derives the strip_components value for an
// archive from its entry paths. A single shared component means the
// package nests its payload one level deeper, so two components are
// stripped.
func stripComponentsFor(entries []archive.Entry) int {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Name)
	}
	count := commonComponents(paths)
	if count == 1 {
		return 2
	}
	return count
}

// indexOne builds the catalog record for a single archive.
func indexOne(path string) (catalog.Package, error) {
	var pkg catalog.Package

	raw, err := archive.ExtractFile(path, "metadata.yaml")
	if err != nil {
		return pkg, fmt.Errorf("failed to extract metadata.yaml from %s: %w", path, err)
	}
	var meta metadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return pkg, fmt.Errorf("failed to parse metadata.yaml of %s: %w", path, err)
	}

	entries, err := archive.Entries(path)
	if err != nil {
		return pkg, err
	}
	strip := stripComponentsFor(entries)

	var files []string
	for _, e := range entries {
		if e.Dir {
			continue
		}
		if !e.Regular && !e.Symlink {
			continue
		}
		rel, ok := archive.SectionPath(e.Name, "files", strip)
		if !ok {
			continue
		}
		files = append(files, rel)
	}

	deps := make([]string, 0, len(meta.Dependencies))
	for _, dep := range meta.Dependencies {
		deps = append(deps, trimVariant(dep))
	}

	pkg = catalog.Package{
		Name:            trimVariant(meta.Name),
		Version:         meta.Version,
		Description:     meta.Description,
		FileName:        filepath.Base(path),
		Dependencies:    deps,
		Files:           files,
		StripComponents: strip,
	}
	return pkg, nil
}

// listArchives returns the *.starpack files in dir sorted by name.
func listArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository directory %s: %w", dir, err)
	}
	var archives []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".starpack") {
			continue
		}
		archives = append(archives, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(archives)
	return archives, nil
}

// indexAll processes archives on a bounded worker pool, returning
// records in input order. Archives that fail to index are warned
// about and skipped.
func indexAll(paths []string) []catalog.Package {
	results := make([]*catalog.Package, len(paths))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			output.Info("processing package %s", filepath.Base(path))
			pkg, err := indexOne(path)
			if err != nil {
				output.Warn("skipping %s: %v", filepath.Base(path), err)
				return nil
			}
			results[i] = &pkg
			return nil
		})
	}
	g.Wait()

	packages := make([]catalog.Package, 0, len(paths))
	for _, pkg := range results {
		if pkg != nil {
			packages = append(packages, *pkg)
		}
	}
	return packages
}

func writeCatalog(dir string, packages []catalog.Package) error {
	data, err := yaml.Marshal(catalog.File{Packages: packages})
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}

	dbPath := filepath.Join(dir, CatalogName)
	tmp := dbPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace catalog: %w", err)
	}

	output.Success("repository database created at %s", dbPath)
	return nil
}

// Build replaces the catalog in dir with a freshly generated one
// covering every archive present.
func Build(dir string) error {
	archives, err := listArchives(dir)
	if err != nil {
		return err
	}
	return writeCatalog(dir, indexAll(archives))
}

// AddMissing extends an existing catalog with archives it does not
// list yet, keyed by file_name. A missing catalog degrades to a full
// build.
func AddMissing(dir string) error {
	dbPath := filepath.Join(dir, CatalogName)
	raw, err := os.ReadFile(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Build(dir)
		}
		return fmt.Errorf("failed to read catalog %s: %w", dbPath, err)
	}

	existing, err := catalog.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", dbPath, err)
	}

	known := make(map[string]bool, len(existing.Packages))
	for _, pkg := range existing.Packages {
		known[pkg.FileName] = true
	}

	archives, err := listArchives(dir)
	if err != nil {
		return err
	}
	var missing []string
	for _, path := range archives {
		if !known[filepath.Base(path)] {
			missing = append(missing, path)
		}
	}
	if len(missing) == 0 {
		output.Info("catalog already covers all %d archive(s)", len(archives))
		return nil
	}

	packages := append(existing.Packages, indexAll(missing)...)
	return writeCatalog(dir, packages)
}
