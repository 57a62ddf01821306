package hooks

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/sfg-os/starpack/internal/chroot"
	"github.com/sfg-os/starpack/internal/output"
)

// UniversalDir holds host-wide hooks that apply to every operation.
// Overridable for tests.
var UniversalDir = "/etc/starpack.d/universal-hooks"

// discover gathers candidate hook files, deduplicated by basename
// with universal hooks taking precedence over package hooks.
func discover(root, pkg string) []string {
	var files []string
	seen := make(map[string]bool)

	collect := func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".hook" {
				continue
			}
			if seen[entry.Name()] {
				continue
			}
			seen[entry.Name()] = true
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}

	collect(UniversalDir)
	if pkg != "" {
		collect(filepath.Join(root, "etc", "starpack", "hooks", pkg))
	}
	return files
}

// Run discovers, filters, and executes the hooks matching the given
// phase, operation, and affected paths. Hooks run sequentially in
// ascending source-path order; pkg may be empty when no package
// context exists. Returns the number of hooks executed.
func Run(phase, operation string, affectedPaths []string, root, pkg string) (int, error) {
	var matching []*Hook
	for _, path := range discover(root, pkg) {
		hook, err := Parse(path)
		if err != nil {
			output.Warn("error parsing hook file %s: %v, skipping", path, err)
			continue
		}
		if hook.Phase != phase {
			continue
		}
		if hook.Matches(operation, affectedPaths) {
			matching = append(matching, hook)
		}
	}
	if len(matching) == 0 {
		return 0, nil
	}

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].SourcePath < matching[j].SourcePath
	})

	useChroot := !isHostRoot(root)
	output.Info("running %d %s hook(s) for %s", len(matching), phase, operation)

	executed := 0
	for _, hook := range matching {
		name := filepath.Base(hook.SourcePath)
		if hook.Command == "" {
			output.Warn("empty command in hook %s, skipping", name)
			continue
		}
		if hook.NeedsPaths {
			output.Warn("hook %s sets NeedsPaths but path passing is not implemented, command runs without paths", name)
		}

		executed++
		output.Info("executing hook (%d/%d): %s", executed, len(matching), name)

		var err error
		if useChroot {
			err = chroot.RunShell(root, hook.Command)
		} else {
			err = runDirect(hook.Command)
		}
		if err != nil {
			return executed, fmt.Errorf("hook %s failed: %w", name, err)
		}
	}
	return executed, nil
}

func runDirect(command string) error {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// isHostRoot compares root against / through symlink resolution,
// falling back to a string comparison when resolution fails.
func isHostRoot(root string) bool {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return root == "/"
	}
	return resolved == "/"
}
