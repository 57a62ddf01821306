package engine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sfg-os/starpack/internal/archive"
	"github.com/sfg-os/starpack/internal/catalog"
	"github.com/sfg-os/starpack/internal/fetch"
	"github.com/sfg-os/starpack/internal/hooks"
	"github.com/sfg-os/starpack/internal/output"
	"github.com/sfg-os/starpack/internal/verify"
)

// Update brings the named packages, or every installed package when
// names is empty, to the best candidate offered by any repository.
func (e *Engine) Update(ctx context.Context, names []string) error {
	if err := e.db.Init(); err != nil {
		return err
	}
	catalogs, err := e.fetchCatalogs(ctx)
	if err != nil {
		return err
	}

	explicit := len(names) > 0
	targets := names
	if !explicit {
		targets, err = e.db.InstalledPackages()
		if err != nil {
			return err
		}
	}

	type pendingUpdate struct {
		name  string
		entry catalog.Entry
	}
	var updates []pendingUpdate
	for _, name := range targets {
		installed, err := e.db.IsInstalled(name)
		if err != nil {
			return err
		}
		if !installed {
			if explicit {
				output.Error("package %s is not installed", name)
			}
			continue
		}

		cand, ok := bestCandidate(catalogs, name)
		if !ok {
			if explicit {
				output.Warn("no repository provides %s", name)
			}
			continue
		}

		newer, err := e.candidateIsNewer(name, cand)
		if err != nil {
			return err
		}
		if !newer {
			if explicit {
				output.Info("%s is already up to date", name)
			}
			continue
		}
		updates = append(updates, pendingUpdate{name: name, entry: cand})
	}

	if len(updates) == 0 {
		output.Info("all packages are up to date")
		return nil
	}

	updNames := make([]string, 0, len(updates))
	for _, u := range updates {
		updNames = append(updNames, fmt.Sprintf("%s -> %s", u.name, u.entry.Version))
	}
	if !e.confirm("update", updNames) {
		return ErrAborted
	}

	for _, u := range updates {
		if err := e.updateOne(ctx, u.name, u.entry); err != nil {
			return fmt.Errorf("failed to update %s: %w", u.name, err)
		}
	}
	output.Success("updated %d package(s)", len(updates))
	return nil
}

// bestCandidate picks the winning update candidate for name across
// every repository: the highest version, with the later update time
// breaking version ties.
func bestCandidate(catalogs []RepoCatalog, name string) (catalog.Entry, bool) {
	var best catalog.Entry
	found := false
	for _, rc := range catalogs {
		for _, pkg := range rc.File.Packages {
			if pkg.Name != name {
				continue
			}
			cand := catalog.Entry{Package: pkg, Repo: rc.Repo}
			if !found {
				best, found = cand, true
				continue
			}
			switch catalog.CompareVersions(cand.Version, best.Version) {
			case 1:
				best = cand
			case 0:
				if catalog.CompareDates(cand.UpdateTime, best.UpdateTime) > 0 {
					best = cand
				}
			}
		}
	}
	return best, found
}

// candidateIsNewer reports whether the candidate beats the installed
// record, by version first and by update time on a version tie.
func (e *Engine) candidateIsNewer(name string, cand catalog.Entry) (bool, error) {
	installedVersion, err := e.db.VersionOf(name)
	if err != nil {
		return false, err
	}
	switch catalog.CompareVersions(cand.Version, installedVersion) {
	case 1:
		return true, nil
	case -1:
		return false, nil
	}
	installedTime, err := e.db.UpdateTimeOf(name)
	if err != nil {
		return false, err
	}
	return catalog.CompareDates(cand.UpdateTime, installedTime) > 0, nil
}

// updateOne downloads, verifies, and stages the candidate archive,
// then promotes the staged files into the root and refreshes the
// database record.
func (e *Engine) updateOne(ctx context.Context, name string, entry catalog.Entry) error {
	oldRec, err := e.db.Record(name)
	if err != nil {
		return err
	}

	output.Info("updating %s %s -> %s", name, oldRec.Version, entry.Version)

	tmp, err := os.MkdirTemp(e.CacheDir(), "update-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	pkgPath := filepath.Join(tmp, entry.FileName)
	reqs := []fetch.Request{
		{URL: entry.Repo + entry.FileName, Dest: pkgPath},
		{URL: entry.Repo + entry.FileName + ".sig", Dest: pkgPath + ".sig"},
	}
	if err := e.fetcher.FetchAll(ctx, reqs, "Fetching "+name); err != nil {
		return err
	}

	v := verify.New(e.root, e.fetcher, e.repos)
	if err := v.Verify(ctx, pkgPath, pkgPath+".sig"); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}

	// The archive's own metadata.yaml is authoritative for the file
	// list, strip_components, and update_dirs; the repository record is
	// the fallback when it is missing or unreadable.
	meta := readUpdateMetadata(pkgPath, entry)
	if len(meta.Files) == 0 {
		return fmt.Errorf("no file list in metadata of %s", name)
	}
	changed := relativePaths(meta.Files)

	if _, err := hooks.Run(hooks.PreUpdate, "Update", changed, e.root, name); err != nil {
		output.Warn("pre-update hooks for %s: %v", name, err)
	}

	stage := filepath.Join(tmp, "stage")
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := archive.ExtractSection(pkgPath, "files", stage, meta.StripComponents); err != nil {
		return err
	}
	if err := e.promoteStaged(stage); err != nil {
		return err
	}

	if err := e.db.UpdateFields(name, entry.Version, entry.UpdateTime); err != nil {
		return err
	}

	// Packages that declare update_dirs manage their own obsolete
	// content; leave their trees alone.
	if len(meta.UpdateDirs) == 0 {
		e.removeObsolete(oldRec.Files, meta.Files)
	}

	if err := e.installHookFiles(pkgPath, name, meta.StripComponents); err != nil {
		output.Warn("failed to refresh hook files of %s: %v", name, err)
	}

	if _, err := hooks.Run(hooks.PostUpdate, "Update", changed, e.root, name); err != nil {
		output.Warn("post-update hooks for %s: %v", name, err)
	}

	output.Success("updated %s to %s", name, entry.Version)
	if IsCritical(name) {
		output.Warn("NOTICE: '%s' is critical. A reboot is recommended.", name)
	}
	return nil
}

// updateMetadata is the slice of metadata.yaml the update pipeline
// consumes.
type updateMetadata struct {
	Files           []string `yaml:"files"`
	StripComponents int      `yaml:"strip_components"`
	UpdateDirs      []string `yaml:"update_dirs"`
}

// readUpdateMetadata extracts metadata.yaml from the downloaded
// archive. When the member is missing or unparseable it falls back to
// the repository record.
func readUpdateMetadata(pkgPath string, entry catalog.Entry) updateMetadata {
	fallback := updateMetadata{
		Files:           entry.Files,
		StripComponents: entry.StripComponents,
		UpdateDirs:      entry.UpdateDirs,
	}

	raw, err := archive.ExtractFile(pkgPath, "metadata.yaml")
	if err != nil {
		output.Warn("could not extract metadata.yaml from %s, using repository metadata: %v",
			filepath.Base(pkgPath), err)
		return fallback
	}
	var meta updateMetadata
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		output.Warn("could not parse metadata.yaml of %s, using repository metadata: %v",
			filepath.Base(pkgPath), err)
		return fallback
	}
	return meta
}

// promoteStaged moves the staging tree into the root entry by entry.
// Regular files are replaced with a remove-then-rename; a cross-device
// rename falls back to a copy.
func (e *Engine) promoteStaged(stage string) error {
	return filepath.WalkDir(stage, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stage, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dest := filepath.Join(e.root, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(dest, info.Mode().Perm())
		}

		os.Remove(dest)
		if err := os.Rename(path, dest); err == nil {
			return nil
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, dest)
		}
		return copyFile(path, dest, info.Mode().Perm())
	})
}

// removeObsolete deletes files the old record owned that the new
// package no longer ships.
func (e *Engine) removeObsolete(oldFiles, newFiles []string) {
	keep := make(map[string]bool, len(newFiles))
	for _, f := range newFiles {
		keep[strings.TrimPrefix(f, "/")] = true
	}
	var obsolete []string
	for _, f := range oldFiles {
		if !keep[strings.TrimPrefix(f, "/")] {
			obsolete = append(obsolete, f)
		}
	}
	if len(obsolete) == 0 {
		return
	}
	output.Info("removing %d obsolete file(s)", len(obsolete))
	e.removeFiles(obsolete)
}
