package engine

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sfg-os/starpack/internal/output"
)

// propagateSkel copies /etc/skel under the install root into /root and
// every existing /home/<user>. Files the target already has are left
// alone.
func (e *Engine) propagateSkel() {
	skel := filepath.Join(e.root, "etc", "skel")
	if fi, err := os.Stat(skel); err != nil || !fi.IsDir() {
		return
	}

	targets := []string{filepath.Join(e.root, "root")}
	homes, _ := os.ReadDir(filepath.Join(e.root, "home"))
	for _, h := range homes {
		if h.IsDir() {
			targets = append(targets, filepath.Join(e.root, "home", h.Name()))
		}
	}

	for _, target := range targets {
		if _, err := os.Stat(target); err != nil {
			continue
		}
		if err := copyTree(skel, target); err != nil {
			output.Warn("failed to copy skeleton files to %s: %v", target, err)
		}
	}
}

// copyTree copies the src tree into dst without overwriting existing
// destination entries.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&fs.ModeSymlink != 0:
			if _, err := os.Lstat(target); err == nil {
				return nil
			}
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			if _, err := os.Lstat(target); err == nil {
				return nil
			}
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
	}
	return err
}
