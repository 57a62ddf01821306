package catalog

import (
	"regexp"
	"strings"
)

// Dependency is one parsed dependency string: a bare name or
// "name OP version" with OP in {>, >=, <, <=, =, ==, !=}.
type Dependency struct {
	Name    string
	Op      string
	Version string
}

var constraintRe = regexp.MustCompile(`(!=|[><=]=?)\s*([\w.\-+~]+)\s*$`)

// ParseDependency splits a dependency entry into name, operator, and
// version. A bare name yields an empty Op. The single "=" operator is
// normalized to "==".
func ParseDependency(s string) Dependency {
	s = strings.TrimSpace(s)

	loc := constraintRe.FindStringSubmatchIndex(s)
	if loc == nil || loc[0] == 0 {
		return Dependency{Name: s}
	}

	name := strings.TrimSpace(s[:loc[0]])
	op := s[loc[2]:loc[3]]
	version := s[loc[4]:loc[5]]
	if name == "" {
		return Dependency{Name: s}
	}
	if op == "=" {
		op = "=="
	}
	return Dependency{Name: name, Op: op, Version: version}
}

// SatisfiedBy reports whether the given catalog version meets this
// dependency's constraint. An unconstrained dependency is satisfied by
// any version. An unknown operator is treated as non-matching; the
// caller decides whether to warn.
func (d Dependency) SatisfiedBy(version string) bool {
	if d.Op == "" {
		return true
	}
	cmp := CompareVersions(version, d.Version)
	switch d.Op {
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	default:
		return false
	}
}

// Constrained reports whether the dependency carries a version bound.
func (d Dependency) Constrained() bool {
	return d.Op != ""
}
