// Package engine orchestrates the install, update, remove, and clean
// pipelines over the catalog, downloader, verifier, extractor, hook
// engine, and installed database.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sfg-os/starpack/internal/catalog"
	"github.com/sfg-os/starpack/internal/config"
	"github.com/sfg-os/starpack/internal/fetch"
	"github.com/sfg-os/starpack/internal/output"
	"github.com/sfg-os/starpack/internal/pkgdb"
	"github.com/sfg-os/starpack/internal/store"
)

// Engine ties the pipeline components to one install root.
type Engine struct {
	root      string
	repos     []string
	db        *pkgdb.DB
	fetcher   *fetch.Fetcher
	index     *store.Store
	assumeYes bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRepos overrides the repository list instead of reading
// repos.conf.
func WithRepos(urls []string) Option {
	return func(e *Engine) {
		e.repos = (&config.Repos{URLs: urls}).Normalized()
	}
}

// WithFetcher sets a custom downloader.
func WithFetcher(f *fetch.Fetcher) Option {
	return func(e *Engine) {
		e.fetcher = f
	}
}

// WithAssumeYes skips confirmation prompts.
func WithAssumeYes(yes bool) Option {
	return func(e *Engine) {
		e.assumeYes = yes
	}
}

// New creates an Engine rooted at root. Repositories default to
// /etc/starpack/repos.conf; a missing file leaves the list empty so
// operations that need repositories can report it.
func New(root string, opts ...Option) *Engine {
	e := &Engine{
		root: root,
		db:   pkgdb.New(root),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.repos == nil {
		repos, err := config.LoadRepos(config.DefaultReposPath)
		if err != nil {
			output.Warn("failed to read repository configuration: %v", err)
		} else {
			e.repos = repos.Normalized()
		}
	}

	if e.fetcher == nil {
		opts := []fetch.Option{}
		if idx, err := e.openCacheIndex(); err == nil {
			e.index = idx
			opts = append(opts, fetch.WithRecorder(idx))
		}
		e.fetcher = fetch.New(opts...)
	}
	return e
}

// DB exposes the installed database.
func (e *Engine) DB() *pkgdb.DB { return e.db }

// Repos returns the normalized repository URLs.
func (e *Engine) Repos() []string { return e.repos }

// CacheDir is where catalogs, archives, signatures, and keys land.
func (e *Engine) CacheDir() string {
	return filepath.Join(e.root, "var", "lib", "starpack", "cache")
}

// Close releases the cache index if one was opened.
func (e *Engine) Close() error {
	if e.index != nil {
		return e.index.Close()
	}
	return nil
}

func (e *Engine) openCacheIndex() (*store.Store, error) {
	if err := os.MkdirAll(e.CacheDir(), 0o755); err != nil {
		return nil, err
	}
	idx, err := store.New(filepath.Join(e.CacheDir(), "cache.db"))
	if err != nil {
		return nil, err
	}
	if err := idx.CreateSchema(); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}

// safeRepoName flattens a repository URL into a cache filename
// component.
func safeRepoName(repoURL string) string {
	s := strings.ReplaceAll(repoURL, "/", "_")
	return strings.ReplaceAll(s, ":", "_")
}

// catalogCachePath is where a repository's index is cached locally.
func (e *Engine) catalogCachePath(repoURL string) string {
	return filepath.Join(e.CacheDir(), safeRepoName(repoURL)+"repo.db.yaml")
}

// RepoCatalog pairs a repository URL with its parsed index.
type RepoCatalog struct {
	Repo string
	File *catalog.File
}

// Catalogs fetches and parses every repository index without merging,
// preserving the configured repository order.
func (e *Engine) Catalogs(ctx context.Context) ([]RepoCatalog, error) {
	return e.fetchCatalogs(ctx)
}

// fetchCatalogs downloads every repository index into the cache and
// parses the ones that arrived. A failing repository is skipped with
// a warning. Cached copies are discarded first so each run sees fresh
// indexes.
func (e *Engine) fetchCatalogs(ctx context.Context) ([]RepoCatalog, error) {
	if len(e.repos) == 0 {
		return nil, fmt.Errorf("no repository URLs configured in %s", config.DefaultReposPath)
	}
	if err := os.MkdirAll(e.CacheDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	reqs := make([]fetch.Request, 0, len(e.repos))
	for _, repo := range e.repos {
		dest := e.catalogCachePath(repo)
		os.Remove(dest)
		reqs = append(reqs, fetch.Request{URL: repo + "repo.db.yaml", Dest: dest})
	}
	if err := e.fetcher.FetchAll(ctx, reqs, "Fetching repository databases"); err != nil {
		output.Warn("one or more repository database downloads failed: %v", err)
	}

	var catalogs []RepoCatalog
	for _, repo := range e.repos {
		path := e.catalogCachePath(repo)
		f, err := catalog.ParseFile(path)
		if err != nil {
			output.Warn("skipping repository %s: %v", repo, err)
			continue
		}
		output.Info("loaded %d package definition(s) from %s", len(f.Packages), repo)
		catalogs = append(catalogs, RepoCatalog{Repo: repo, File: f})
	}
	return catalogs, nil
}

// LoadCatalog fetches every repository index and merges them with
// first-seen-wins precedence.
func (e *Engine) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	catalogs, err := e.fetchCatalogs(ctx)
	if err != nil {
		return nil, err
	}

	cat := catalog.New()
	for _, rc := range catalogs {
		cat.Merge(rc.Repo, rc.File)
	}
	if cat.Len() == 0 {
		return nil, fmt.Errorf("no packages found in any repository database")
	}
	return cat, nil
}

// recordFor converts a catalog entry into an installed database
// record, normalizing file paths to absolute form.
func recordFor(entry catalog.Entry) pkgdb.Record {
	files := make([]string, 0, len(entry.Files))
	for _, f := range entry.Files {
		if f == "" {
			continue
		}
		if !strings.HasPrefix(f, "/") {
			f = "/" + f
		}
		files = append(files, f)
	}

	return pkgdb.Record{
		Name:         entry.Name,
		Version:      entry.Version,
		Description:  entry.Description,
		Size:         entry.Size,
		Architecture: entry.Arch,
		UpdateTime:   entry.UpdateTime,
		BuildDate:    entry.BuildDate,
		Files:        files,
		Dependencies: append([]string(nil), entry.Dependencies...),
	}
}

// relativePaths strips leading slashes so hook matching and removal
// operate on root-relative paths.
func relativePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimPrefix(p, "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
