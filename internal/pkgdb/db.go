// Package pkgdb implements the installed-package database: an ordered
// text file of per-package records under
// <root>/var/lib/starpack/installed.db.
//
// Records are only ever appended, rewritten to a temp sibling and
// renamed, or left untouched. The live file is never mutated in place.
package pkgdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Separator terminates every record in the database.
const Separator = "----------------------------------------"

// ErrNotInstalled is returned by lookups for packages with no record.
var ErrNotInstalled = errors.New("package is not installed")

// DB provides access to one root's installed database.
type DB struct {
	path string
}

// New returns a DB for the database under the given install root.
func New(root string) *DB {
	return &DB{path: filepath.Join(root, "var", "lib", "starpack", "installed.db")}
}

// NewAtPath returns a DB reading the given file directly (useful for
// testing).
func NewAtPath(path string) *DB {
	return &DB{path: path}
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Init creates the database directory and an empty database file if
// either is missing.
func (d *DB) Init() error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create database file: %w", err)
	}
	return f.Close()
}
