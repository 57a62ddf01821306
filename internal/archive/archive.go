// Package archive stream-extracts named sections of gzip-compressed
// package archives into a destination directory.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sfg-os/starpack/internal/output"
)

// ErrSectionEmpty is returned by ExtractFile when the requested entry
// does not exist in the archive.
var ErrSectionEmpty = errors.New("entry not found in archive")

// open returns a tar reader over the gzip stream plus a closer for
// both layers.
func open(path string) (*tar.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to read gzip stream of %s: %w", path, err)
	}
	closer := func() error {
		gerr := gz.Close()
		ferr := f.Close()
		if gerr != nil {
			return gerr
		}
		return ferr
	}
	return tar.NewReader(gz), closer, nil
}

// SectionPath maps an archive member name to its payload path inside
// the named section. strip counts the leading components up to and
// including the section component itself; zero means the section is
// the member's first component. The second return is false when the
// member is outside the section or nothing remains after stripping.
func SectionPath(name, section string, strip int) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	for i := 1; i < strip; i++ {
		idx := strings.IndexByte(name, '/')
		if idx < 0 {
			return "", false
		}
		name = name[idx+1:]
	}
	rest, ok := strings.CutPrefix(name, section+"/")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

// ExtractSection extracts every entry under the given section prefix
// into destRoot. strip is read as in SectionPath: it counts the leading
// components up to and including the section component.
// Type conflicts at the destination (directory vs non-directory) are
// resolved by removing the existing entry with a warning; entries
// that still cannot be written are skipped as soft failures. Owner is
// preserved only when running as root.
func ExtractSection(archivePath, section, destRoot string, strip int) error {
	tr, closer, err := open(archivePath)
	if err != nil {
		return err
	}
	defer closer()

	section = strings.TrimSuffix(section, "/")
	asRoot := os.Geteuid() == 0

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive %s: %w", archivePath, err)
		}

		rel, ok := SectionPath(hdr.Name, section, strip)
		if !ok {
			continue
		}
		if !filepath.IsLocal(rel) {
			output.Warn("skipping unsafe archive entry %s", hdr.Name)
			continue
		}
		dest := filepath.Join(destRoot, rel)

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", dest, err)
		}
		if !clearConflict(dest, hdr.Typeflag == tar.TypeDir) {
			continue
		}

		if err := writeEntry(tr, hdr, dest, destRoot, section, strip, asRoot); err != nil {
			output.Warn("failed to extract %s: %v", hdr.Name, err)
		}
	}
}

// clearConflict removes a pre-existing destination whose type
// conflicts with the incoming entry. Returns false when the entry
// must be skipped.
func clearConflict(dest string, entryIsDir bool) bool {
	fi, err := os.Lstat(dest)
	if err != nil {
		return true
	}
	if fi.IsDir() == entryIsDir {
		return true
	}
	output.Warn("replacing %s: existing entry type conflicts with package contents", dest)
	if err := os.RemoveAll(dest); err != nil {
		output.Warn("failed to remove conflicting entry %s: %v", dest, err)
		return false
	}
	return true
}

func writeEntry(tr *tar.Reader, hdr *tar.Header, dest, destRoot, section string, strip int, asRoot bool) error {
	mode := os.FileMode(hdr.Mode & 0o7777)

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(dest, mode); err != nil {
			return err
		}
	case tar.TypeSymlink:
		os.Remove(dest)
		if err := os.Symlink(hdr.Linkname, dest); err != nil {
			return err
		}
	case tar.TypeLink:
		// Hardlink targets point inside the archive; retarget them
		// under the destination root.
		target, ok := SectionPath(hdr.Linkname, section, strip)
		if !ok {
			return fmt.Errorf("hardlink target %s is outside the extracted section", hdr.Linkname)
		}
		os.Remove(dest)
		if err := os.Link(filepath.Join(destRoot, target), dest); err != nil {
			return err
		}
	case tar.TypeReg:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return err
		}
		_, err = io.Copy(f, tr)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dest)
			return err
		}
	default:
		return nil
	}

	restoreMetadata(dest, hdr, mode, asRoot)
	return nil
}

// restoreMetadata applies permissions, mtime, and (as root) ownership.
// Symlinks only get ownership since their own mode is meaningless.
func restoreMetadata(dest string, hdr *tar.Header, mode os.FileMode, asRoot bool) {
	if hdr.Typeflag != tar.TypeSymlink {
		os.Chmod(dest, mode)
		if !hdr.ModTime.IsZero() {
			os.Chtimes(dest, time.Now(), hdr.ModTime)
		}
	}
	if asRoot {
		os.Lchown(dest, hdr.Uid, hdr.Gid)
	}
}

// ExtractFile reads a single named entry out of the archive and
// returns its contents. The name matches either exactly or as the
// trailing path of a member, so nested archive layouts still resolve
// their top-level metadata.
func ExtractFile(archivePath, name string) ([]byte, error) {
	tr, closer, err := open(archivePath)
	if err != nil {
		return nil, err
	}
	defer closer()

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s in %s", ErrSectionEmpty, name, archivePath)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive %s: %w", archivePath, err)
		}
		member := strings.TrimPrefix(hdr.Name, "./")
		if member != name && !strings.HasSuffix(member, "/"+name) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from %s: %w", name, archivePath, err)
		}
		return data, nil
	}
}

// List returns the paths of every entry under the given section after
// prefix and component stripping, in archive order.
func List(archivePath, section string, strip int) ([]string, error) {
	tr, closer, err := open(archivePath)
	if err != nil {
		return nil, err
	}
	defer closer()

	section = strings.TrimSuffix(section, "/")
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive %s: %w", archivePath, err)
		}
		if rel, ok := SectionPath(hdr.Name, section, strip); ok {
			names = append(names, rel)
		}
	}
}
