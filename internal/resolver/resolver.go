// Package resolver computes dependency closures over a merged catalog
// and orders them for installation.
package resolver

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sfg-os/starpack/internal/catalog"
	"github.com/sfg-os/starpack/internal/output"
	"github.com/sfg-os/starpack/internal/pkgdb"
)

// ErrUnresolvable is returned when a dependency is absent from every
// catalog and not already installed.
var ErrUnresolvable = errors.New("unresolvable dependency")

// Closure walks the catalog dependency graph depth-first from the
// requested set and returns every name that must be present. A name
// missing from the catalog but already installed counts as satisfied
// and is not included. A name missing from both fails resolution.
func Closure(cat *catalog.Catalog, db *pkgdb.DB, requested []string) ([]string, error) {
	var order []string
	visited := make(map[string]bool)

	stack := make([]string, 0, len(requested))
	for i := len(requested) - 1; i >= 0; i-- {
		stack = append(stack, requested[i])
	}

	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[name] {
			continue
		}
		visited[name] = true

		entry, ok := cat.Lookup(name)
		if !ok {
			installed, err := db.IsInstalled(name)
			if err != nil {
				return nil, err
			}
			if installed {
				continue
			}
			return nil, fmt.Errorf("%w: %s is not in any repository and not installed", ErrUnresolvable, name)
		}

		order = append(order, name)

		for _, depStr := range entry.Dependencies {
			dep := catalog.ParseDependency(depStr)
			if dep.Constrained() {
				if target, ok := cat.Lookup(dep.Name); ok && !dep.SatisfiedBy(target.Version) {
					output.Warn("dependency %s of %s: repository version %s does not satisfy %s %s",
						dep.Name, name, target.Version, dep.Op, dep.Version)
				}
			}
			if !visited[dep.Name] {
				stack = append(stack, dep.Name)
			}
		}
	}

	return order, nil
}

// Sort orders the closure topologically so that dependencies precede
// their dependents. If a cycle remains after the Kahn pass, its
// members are warned about and appended in alphabetical order; the
// resolver must still make progress on bootstrap sets with accidental
// cycles.
func Sort(cat *catalog.Catalog, closure []string) []string {
	inClosure := make(map[string]bool, len(closure))
	for _, name := range closure {
		inClosure[name] = true
	}

	// dependents[d] lists packages that depend on d; indegree counts
	// each package's unmet in-closure dependencies.
	dependents := make(map[string][]string, len(closure))
	indegree := make(map[string]int, len(closure))
	for _, name := range closure {
		indegree[name] += 0
		entry, ok := cat.Lookup(name)
		if !ok {
			continue
		}
		for _, depStr := range entry.Dependencies {
			dep := catalog.ParseDependency(depStr).Name
			if !inClosure[dep] || dep == name {
				continue
			}
			dependents[dep] = append(dependents[dep], name)
			indegree[name]++
		}
	}

	var ready []string
	for _, name := range closure {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	ordered := make([]string, 0, len(closure))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, name)

		next := dependents[name]
		sort.Strings(next)
		for _, dependent := range next {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(ordered) < len(closure) {
		var cycle []string
		placed := make(map[string]bool, len(ordered))
		for _, name := range ordered {
			placed[name] = true
		}
		for _, name := range closure {
			if !placed[name] {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		output.Warn("dependency cycle detected among: %v; appending in alphabetical order", cycle)
		ordered = append(ordered, cycle...)
	}

	return ordered
}

// FilterInstalled drops names that already have a database record,
// preserving order.
func FilterInstalled(db *pkgdb.DB, ordered []string) ([]string, error) {
	out := make([]string, 0, len(ordered))
	for _, name := range ordered {
		installed, err := db.IsInstalled(name)
		if err != nil {
			return nil, err
		}
		if !installed {
			out = append(out, name)
		}
	}
	return out, nil
}

// Resolve is the full resolution pipeline: closure, topological sort,
// installed filtering.
func Resolve(cat *catalog.Catalog, db *pkgdb.DB, requested []string) ([]string, error) {
	closure, err := Closure(cat, db, requested)
	if err != nil {
		return nil, err
	}
	return FilterInstalled(db, Sort(cat, closure))
}
