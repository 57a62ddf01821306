package pkgdb

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sfg-os/starpack/internal/catalog"
)

// readLines loads the whole database as lines. A missing file reads as
// empty: a root with no database simply has nothing installed.
func (d *DB) readLines() ([]string, error) {
	f, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read database: %w", err)
	}
	return lines, nil
}

// records parses every record in file order.
func (d *DB) records() ([]Record, error) {
	lines, err := d.readLines()
	if err != nil {
		return nil, err
	}

	var recs []Record
	for i := 0; i < len(lines); i++ {
		name, ok := isHeader(lines[i])
		if !ok {
			continue
		}
		end := i + 1
		for end < len(lines) && lines[end] != Separator {
			end++
		}
		recs = append(recs, parseBlock(name, lines[i+1:min(end+1, len(lines))]))
		i = end
	}
	return recs, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// IsInstalled reports whether a record exists for name.
func (d *DB) IsInstalled(name string) (bool, error) {
	lines, err := d.readLines()
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		if n, ok := isHeader(line); ok && n == name {
			return true, nil
		}
	}
	return false, nil
}

// InstalledPackages returns every installed package name in file order.
func (d *DB) InstalledPackages() ([]string, error) {
	lines, err := d.readLines()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range lines {
		if n, ok := isHeader(line); ok {
			names = append(names, n)
		}
	}
	return names, nil
}

// Record returns the parsed record for name.
func (d *DB) Record(name string) (Record, error) {
	recs, err := d.records()
	if err != nil {
		return Record{}, err
	}
	for _, rec := range recs {
		if rec.Name == name {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("%w: %s", ErrNotInstalled, name)
}

// Files returns the absolute paths owned by name.
func (d *DB) Files(name string) ([]string, error) {
	rec, err := d.Record(name)
	if err != nil {
		return nil, err
	}
	return rec.Files, nil
}

// Dependencies returns the dependency strings recorded for name.
func (d *DB) Dependencies(name string) ([]string, error) {
	rec, err := d.Record(name)
	if err != nil {
		return nil, err
	}
	return rec.Dependencies, nil
}

// UpdateTimeOf returns the recorded Update-time (or Build-date when no
// update time was recorded) for name.
func (d *DB) UpdateTimeOf(name string) (string, error) {
	rec, err := d.Record(name)
	if err != nil {
		return "", err
	}
	if rec.UpdateTime != "" {
		return rec.UpdateTime, nil
	}
	return rec.BuildDate, nil
}

// VersionOf returns the recorded version for name.
func (d *DB) VersionOf(name string) (string, error) {
	rec, err := d.Record(name)
	if err != nil {
		return "", err
	}
	return rec.Version, nil
}

// ReverseDependencies returns the names of installed packages whose
// Dependencies list includes name. Constraint suffixes on recorded
// dependency strings are ignored for the name match.
func (d *DB) ReverseDependencies(name string) ([]string, error) {
	recs, err := d.records()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rec := range recs {
		if rec.Name == name {
			continue
		}
		for _, dep := range rec.Dependencies {
			if catalog.ParseDependency(dep).Name == name {
				out = append(out, rec.Name)
				break
			}
		}
	}
	return out, nil
}

// Orphans filters candidates down to those that are installed, not in
// the exclusion set, and not required by any remaining record's
// Dependencies.
func (d *DB) Orphans(candidates []string, exclude map[string]bool) ([]string, error) {
	recs, err := d.records()
	if err != nil {
		return nil, err
	}

	installed := make(map[string]bool, len(recs))
	required := make(map[string]bool)
	for _, rec := range recs {
		installed[rec.Name] = true
		if exclude[rec.Name] {
			continue
		}
		for _, dep := range rec.Dependencies {
			required[catalog.ParseDependency(dep).Name] = true
		}
	}

	var orphans []string
	seen := make(map[string]bool)
	for _, cand := range candidates {
		name := catalog.ParseDependency(cand).Name
		if seen[name] || exclude[name] {
			continue
		}
		seen[name] = true
		if installed[name] && !required[name] {
			orphans = append(orphans, name)
		}
	}
	return orphans, nil
}
