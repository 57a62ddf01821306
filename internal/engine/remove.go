package engine

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sfg-os/starpack/internal/hooks"
	"github.com/sfg-os/starpack/internal/output"
)

// Remove uninstalls the requested packages and then the orphans their
// removal leaves behind, breadth-first. Critical packages are always
// refused; force overrides reverse-dependency blockers but never the
// critical list.
func (e *Engine) Remove(names []string, force bool) error {
	if !e.confirm("remove", names) {
		return ErrAborted
	}

	requested := make(map[string]bool, len(names))
	for _, n := range names {
		requested[n] = true
	}

	queue := append([]string(nil), names...)
	processed := make(map[string]bool)
	removed := 0

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if processed[name] {
			continue
		}
		processed[name] = true

		if name == "starpack" {
			output.Warn(CriticalMessage(name))
			continue
		}
		if IsCritical(name) {
			output.Error("refusing to remove critical package %s", name)
			output.Warn(CriticalMessage(name))
			continue
		}

		installed, err := e.db.IsInstalled(name)
		if err != nil {
			return err
		}
		if !installed {
			if requested[name] {
				output.Error("package %s is not installed", name)
			}
			continue
		}

		if !force {
			blockers, err := e.blockers(name, requested, processed)
			if err != nil {
				return err
			}
			if len(blockers) > 0 {
				output.Error("cannot remove %s: required by %s", name, strings.Join(blockers, ", "))
				continue
			}
		}

		rec, err := e.db.Record(name)
		if err != nil {
			return err
		}
		relFiles := relativePaths(rec.Files)

		if _, err := hooks.Run(hooks.PreRemove, "Remove", relFiles, e.root, name); err != nil {
			output.Warn("pre-remove hooks for %s: %v", name, err)
		}

		e.removeFiles(rec.Files)
		os.RemoveAll(filepath.Join(e.root, "etc", "starpack", "hooks", name))

		if err := e.db.Remove(name); err != nil {
			return err
		}
		removed++
		output.Success("removed %s %s", name, rec.Version)

		if _, err := hooks.Run(hooks.PostRemove, "Remove", relFiles, e.root, name); err != nil {
			output.Warn("post-remove hooks for %s: %v", name, err)
		}

		orphans, err := e.db.Orphans(rec.Dependencies, processed)
		if err != nil {
			return err
		}
		for _, orphan := range orphans {
			output.Info("%s is no longer required by any installed package", orphan)
			queue = append(queue, orphan)
		}
	}

	if removed == 0 {
		output.Info("nothing was removed")
		return nil
	}
	output.Success("removed %d package(s)", removed)
	return nil
}

// blockers returns the installed packages that still depend on name
// and are neither part of the removal batch nor already processed.
func (e *Engine) blockers(name string, requested, processed map[string]bool) ([]string, error) {
	rdeps, err := e.db.ReverseDependencies(name)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range rdeps {
		if requested[r] || processed[r] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// removeFiles deletes the recorded paths under the root, longest path
// first so directory contents go before their directories. Directories
// are only removed when empty; a second ascending pass catches
// directories that became empty during the first.
func (e *Engine) removeFiles(files []string) {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		rel := strings.TrimPrefix(f, "/")
		if rel == "" || strings.Contains(rel, "..") {
			output.Warn("refusing to remove suspicious path %q", f)
			continue
		}
		paths = append(paths, filepath.Join(e.root, rel))
	}

	sort.Slice(paths, func(i, j int) bool { return len(paths[i]) > len(paths[j]) })
	for _, p := range paths {
		e.removeOne(p)
	}

	sort.Slice(paths, func(i, j int) bool { return len(paths[i]) < len(paths[j]) })
	for _, p := range paths {
		if fi, err := os.Lstat(p); err == nil && fi.IsDir() {
			os.Remove(p)
		}
	}
}

// removeOne deletes a single path. Directories are attempted with a
// plain remove so shared, non-empty directories survive.
func (e *Engine) removeOne(path string) {
	fi, err := os.Lstat(path)
	if err != nil {
		return
	}
	if fi.IsDir() {
		os.Remove(path)
		return
	}
	if err := os.Remove(path); err != nil {
		output.Warn("failed to remove %s: %v", path, err)
	}
}
