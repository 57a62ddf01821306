package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sfg-os/starpack/internal/archive"
	"github.com/sfg-os/starpack/internal/catalog"
	"github.com/sfg-os/starpack/internal/fetch"
	"github.com/sfg-os/starpack/internal/hooks"
	"github.com/sfg-os/starpack/internal/output"
	"github.com/sfg-os/starpack/internal/pkgdb"
	"github.com/sfg-os/starpack/internal/resolver"
	"github.com/sfg-os/starpack/internal/verify"
)

// Install resolves the requested names to a dependency-ordered set,
// downloads and verifies every archive up front, then installs them
// one by one. Post-install hooks run after the whole batch so a hook
// never observes a half-installed dependency chain.
func (e *Engine) Install(ctx context.Context, names []string) error {
	if err := e.db.Init(); err != nil {
		return err
	}
	cat, err := e.LoadCatalog(ctx)
	if err != nil {
		return err
	}

	ordered, err := resolver.Resolve(cat, e.db, names)
	if err != nil {
		return err
	}
	if len(ordered) == 0 {
		output.Info("all requested packages are already installed")
		return nil
	}

	if !e.confirm("install", ordered) {
		return ErrAborted
	}

	if err := e.downloadArchives(ctx, cat, ordered); err != nil {
		return err
	}
	if err := e.verifyArchives(ctx, cat, ordered); err != nil {
		return err
	}

	type installedPkg struct {
		name  string
		files []string
	}
	var installed []installedPkg
	for _, name := range ordered {
		entry, _ := cat.Lookup(name)
		rec, err := e.installOne(name, entry)
		if err != nil {
			return fmt.Errorf("failed to install %s: %w", name, err)
		}
		if rec != nil {
			installed = append(installed, installedPkg{name: name, files: relativePaths(rec.Files)})
		}
	}

	for _, p := range installed {
		if _, err := hooks.Run(hooks.PostInstall, "Install", p.files, e.root, p.name); err != nil {
			output.Warn("post-install hooks for %s: %v", p.name, err)
		}
	}

	output.Success("installed %d package(s)", len(installed))
	return nil
}

// archivePath is the cache location of a catalog entry's archive.
func (e *Engine) archivePath(entry catalog.Entry) string {
	return filepath.Join(e.CacheDir(), entry.FileName)
}

// downloadArchives fetches every archive and its detached signature
// into the cache. Already cached files are skipped by the fetcher.
func (e *Engine) downloadArchives(ctx context.Context, cat *catalog.Catalog, names []string) error {
	reqs := make([]fetch.Request, 0, 2*len(names))
	for _, name := range names {
		entry, ok := cat.Lookup(name)
		if !ok {
			return fmt.Errorf("package %s disappeared from the catalog", name)
		}
		dest := e.archivePath(entry)
		reqs = append(reqs,
			fetch.Request{URL: entry.Repo + entry.FileName, Dest: dest},
			fetch.Request{URL: entry.Repo + entry.FileName + ".sig", Dest: dest + ".sig"},
		)
	}
	return e.fetcher.FetchAll(ctx, reqs, "Fetching packages")
}

// verifyArchives checks each archive against its detached signature,
// importing missing repository keys on the way.
func (e *Engine) verifyArchives(ctx context.Context, cat *catalog.Catalog, names []string) error {
	v := verify.New(e.root, e.fetcher, e.repos)
	for _, name := range names {
		entry, _ := cat.Lookup(name)
		dest := e.archivePath(entry)
		if err := v.Verify(ctx, dest, dest+".sig"); err != nil {
			return fmt.Errorf("signature verification of %s failed: %w", name, err)
		}
	}
	output.Success("verified %d signature(s)", len(names))
	return nil
}

// installOne extracts one verified archive into the root and records
// it. Returns nil when the package turned out to be installed already.
func (e *Engine) installOne(name string, entry catalog.Entry) (*pkgdb.Record, error) {
	installed, err := e.db.IsInstalled(name)
	if err != nil {
		return nil, err
	}
	if installed {
		output.Info("%s is already installed, skipping", name)
		return nil, nil
	}

	output.Info("installing %s %s", name, entry.Version)

	if _, err := hooks.Run(hooks.PreInstall, "Install", nil, e.root, name); err != nil {
		return nil, err
	}

	pkgPath := e.archivePath(entry)
	if err := archive.ExtractSection(pkgPath, "files", e.root, entry.StripComponents); err != nil {
		return nil, err
	}

	e.propagateSkel()

	if err := e.installHookFiles(pkgPath, name, entry.StripComponents); err != nil {
		output.Warn("failed to install hook files of %s: %v", name, err)
	}

	rec := recordFor(entry)
	if err := e.db.Append(rec); err != nil {
		return nil, err
	}
	output.Success("installed %s %s", name, entry.Version)
	return &rec, nil
}

// installHookFiles extracts the archive's hooks section into a scratch
// directory and copies the *.hook files into the package's hook
// directory under the root.
func (e *Engine) installHookFiles(pkgPath, name string, strip int) error {
	tmp, err := os.MkdirTemp("", "starpack-hooks-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if err := archive.ExtractSection(pkgPath, "hooks", tmp, strip); err != nil {
		return err
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		return err
	}
	var hookFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".hook" {
			hookFiles = append(hookFiles, entry.Name())
		}
	}
	if len(hookFiles) == 0 {
		return nil
	}

	dir := filepath.Join(e.root, "etc", "starpack", "hooks", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range hookFiles {
		if err := copyFile(filepath.Join(tmp, f), filepath.Join(dir, f), 0o644); err != nil {
			return err
		}
	}
	output.Info("installed %d hook file(s) for %s", len(hookFiles), name)
	return nil
}
