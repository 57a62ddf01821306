// Package chroot runs commands inside an install root with /proc and
// /dev/pts mounted for the duration of the call.
package chroot

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/sfg-os/starpack/internal/output"
)

// hookEnv is the only environment hook commands see.
var hookEnv = []string{"PATH=/usr/bin:/bin:/usr/sbin:/sbin"}

// mountAPIFilesystems mounts proc and devpts under root. Returns the
// mount points in mount order so they can be unwound.
func mountAPIFilesystems(root string) ([]string, error) {
	var mounted []string

	procDir := filepath.Join(root, "proc")
	if err := os.MkdirAll(procDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", procDir, err)
	}
	if err := unix.Mount("proc", procDir, "proc", unix.MS_NODEV|unix.MS_NOEXEC|unix.MS_NOSUID, ""); err != nil {
		return nil, fmt.Errorf("failed to mount proc at %s: %w", procDir, err)
	}
	mounted = append(mounted, procDir)

	ptsDir := filepath.Join(root, "dev", "pts")
	if err := os.MkdirAll(ptsDir, 0o755); err != nil {
		unmountAll(mounted)
		return nil, fmt.Errorf("failed to create %s: %w", ptsDir, err)
	}
	err := unix.Mount("devpts", ptsDir, "devpts", unix.MS_NOSUID|unix.MS_NOEXEC, "gid=5,mode=620")
	if err != nil {
		// Some kernels reject the gid option; retry bare.
		err = unix.Mount("devpts", ptsDir, "devpts", unix.MS_NOSUID|unix.MS_NOEXEC, "")
	}
	if err != nil {
		unmountAll(mounted)
		return nil, fmt.Errorf("failed to mount devpts at %s: %w", ptsDir, err)
	}
	mounted = append(mounted, ptsDir)

	return mounted, nil
}

// unmountAll detaches mounts in reverse order. Lazy detach first,
// plain unmount as fallback; already-gone mounts are tolerated.
func unmountAll(mounted []string) {
	for i := len(mounted) - 1; i >= 0; i-- {
		target := mounted[i]
		err := unix.Unmount(target, unix.MNT_DETACH)
		if err != nil {
			err = unix.Unmount(target, 0)
		}
		if err != nil && !errors.Is(err, unix.ENOENT) && !errors.Is(err, unix.EINVAL) {
			output.Warn("failed to unmount %s: %v", target, err)
		}
	}
}

// Run executes argv[0] with the given arguments chrooted into root.
// The command runs with a fixed minimal environment; stdout and
// stderr pass through. A non-zero exit or signal is an error.
func Run(root string, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty command for chroot execution")
	}
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("chroot target %s: %w", root, err)
	}

	mounted, err := mountAPIFilesystems(root)
	if err != nil {
		return err
	}
	defer unmountAll(mounted)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Chroot: root}
	cmd.Dir = "/"
	cmd.Env = hookEnv
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %v failed in chroot %s: %w", argv, root, err)
	}
	return nil
}

// RunShell executes a shell command line inside root via /bin/sh -c.
func RunShell(root, command string) error {
	if _, err := os.Stat(filepath.Join(root, "bin", "sh")); err != nil {
		return fmt.Errorf("/bin/sh not found within chroot %s: %w", root, err)
	}
	return Run(root, []string{"/bin/sh", "-c", command})
}
