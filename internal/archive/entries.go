package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"strings"
)

// Entry is one archive member header.
type Entry struct {
	Name    string
	Dir     bool
	Symlink bool
	Regular bool
}

// Entries lists every member of the archive without extracting data.
func Entries(archivePath string) ([]Entry, error) {
	tr, closer, err := open(archivePath)
	if err != nil {
		return nil, err
	}
	defer closer()

	var entries []Entry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive %s: %w", archivePath, err)
		}
		name := strings.TrimPrefix(hdr.Name, "./")
		if name == "" {
			continue
		}
		entries = append(entries, Entry{
			Name:    name,
			Dir:     hdr.Typeflag == tar.TypeDir,
			Symlink: hdr.Typeflag == tar.TypeSymlink,
			Regular: hdr.Typeflag == tar.TypeReg,
		})
	}
}
