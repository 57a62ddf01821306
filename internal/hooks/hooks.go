// Package hooks parses INI-style .hook files and runs the ones that
// match a lifecycle phase, operation, and set of affected paths.
package hooks

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/sfg-os/starpack/internal/output"
)

// Lifecycle phases.
const (
	PreInstall  = "PreInstall"
	PostInstall = "PostInstall"
	PreUpdate   = "PreUpdate"
	PostUpdate  = "PostUpdate"
	PreRemove   = "PreRemove"
	PostRemove  = "PostRemove"
)

// Hook is one parsed .hook file.
type Hook struct {
	SourcePath  string
	Name        string
	Description string

	Phase     string
	Ops       []string
	Paths     []string
	Negations []string

	Command    string
	NeedsPaths bool
}

// Parse reads a .hook file. Unknown keys, out-of-section data, and
// malformed lines warn and are skipped; a missing Phase or Command
// warns but still returns the hook so discovery can report it.
func Parse(path string) (*Hook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open hook file %s: %w", path, err)
	}
	defer f.Close()

	hook := &Hook{SourcePath: path}
	section := ""
	lineNum := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			output.Warn("invalid line (missing '=') in %s:%d: %s", path, lineNum, line)
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			output.Warn("empty key in %s:%d", path, lineNum)
			continue
		}

		switch section {
		case "Hook":
			switch key {
			case "Name":
				hook.Name = value
			case "Description":
				hook.Description = value
			default:
				output.Warn("unknown key %q in [Hook] section of %s:%d", key, path, lineNum)
			}
		case "When":
			switch key {
			case "Phase":
				hook.Phase = value
			case "Operation":
				hook.Ops = append(hook.Ops, value)
			case "Paths":
				hook.Paths = append(hook.Paths, value)
			case "Negation":
				hook.Negations = append(hook.Negations, value)
			default:
				output.Warn("unknown key %q in [When] section of %s:%d", key, path, lineNum)
			}
		case "Exec":
			switch key {
			case "Command":
				hook.Command = value
			case "NeedsPaths":
				lower := strings.ToLower(value)
				hook.NeedsPaths = lower == "yes" || lower == "true"
			default:
				output.Warn("unknown key %q in [Exec] section of %s:%d", key, path, lineNum)
			}
		default:
			output.Warn("data outside of a known section in %s:%d: %s", path, lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hook file %s: %w", path, err)
	}

	if hook.Phase == "" {
		output.Warn("hook file %s is missing mandatory Phase field in [When] section", path)
	}
	if hook.Command == "" {
		output.Warn("hook file %s is missing mandatory Command field in [Exec] section", path)
	}
	return hook, nil
}

// matchWildcard supports *, prefix X*, suffix *X, and containment
// *X*. More complex patterns fall back to a literal comparison with a
// warning.
func matchWildcard(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	first := strings.IndexByte(pattern, '*')
	if first < 0 {
		return pattern == s
	}
	last := strings.LastIndexByte(pattern, '*')

	switch {
	case first == 0 && last == len(pattern)-1 && len(pattern) > 2:
		return strings.Contains(s, pattern[1:len(pattern)-1])
	case first == 0 && last == 0:
		return strings.HasSuffix(s, pattern[1:])
	case first == len(pattern)-1 && last == len(pattern)-1:
		return strings.HasPrefix(s, pattern[:len(pattern)-1])
	}

	output.Warn("wildcard pattern %q is too complex for basic matching, treating as literal", pattern)
	return pattern == s
}

// Matches reports whether the hook applies to the given operation and
// affected paths. The phase is checked by the caller during
// discovery.
func (h *Hook) Matches(operation string, affectedPaths []string) bool {
	if len(h.Ops) > 0 {
		found := false
		for _, op := range h.Ops {
			if op == operation {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(h.Paths) > 0 {
		matched := false
		for _, pattern := range h.Paths {
			for _, p := range affectedPaths {
				if matchWildcard(pattern, p) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, pattern := range h.Negations {
		for _, p := range affectedPaths {
			if matchWildcard(pattern, p) {
				return false
			}
		}
	}
	return true
}
