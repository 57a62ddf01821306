// Package config provides configuration file parsing for starpack.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultReposPath is where the repository list lives on the host.
// It is read from the host even when installing into an alternate root.
const DefaultReposPath = "/etc/starpack/repos.conf"

// Repos holds the ordered repository URLs declared in repos.conf.
// Order matters: the resolver gives earlier repositories precedence
// when the same package name appears more than once.
type Repos struct {
	URLs []string
}

// LoadRepos reads a repos.conf file and returns the parsed config.
// Blank lines and lines starting with "#" are skipped. URLs are kept
// exactly as written; use Normalized to get slash-terminated copies.
func LoadRepos(path string) (*Repos, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository config: %w", err)
	}
	defer f.Close()

	cfg := &Repos{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip blank lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cfg.URLs = append(cfg.URLs, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read repository config: %w", err)
	}

	return cfg, nil
}

// Normalized returns the repository URLs with a trailing slash
// guaranteed on each, preserving order and dropping duplicates.
func (r *Repos) Normalized() []string {
	seen := make(map[string]bool, len(r.URLs))
	out := make([]string, 0, len(r.URLs))
	for _, u := range r.URLs {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// Add appends a repository URL. Returns an error if it is already present.
func (r *Repos) Add(url string) error {
	for _, u := range r.URLs {
		if u == url {
			return fmt.Errorf("repository already exists: %s", url)
		}
	}
	r.URLs = append(r.URLs, url)
	return nil
}

// Remove deletes a repository URL. Returns an error if it is not present.
func (r *Repos) Remove(url string) error {
	for i, u := range r.URLs {
		if u == url {
			r.URLs = append(r.URLs[:i], r.URLs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("repository not found: %s", url)
}

// Save writes the repository list back to path with a comment header.
// The file is truncated and rewritten in full.
func (r *Repos) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open repository config for writing: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "# Starpack Repository Configuration")
	fmt.Fprintln(w, "# Define repositories for Starpack to fetch packages from.")
	fmt.Fprintln(w)
	for _, u := range r.URLs {
		fmt.Fprintln(w, u)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write repository config: %w", err)
	}
	return nil
}
