// Package pattern implements the small glob dialect used by filename
// override tables.
package pattern

import (
	"path/filepath"
	"strings"
)

// Match reports whether name matches pattern, ignoring case. Supported
// forms are "*", "prefix*", "*suffix" and "*fragment*"; anything else must
// equal name exactly. Only the base name of a path is compared.
func Match(pattern, name string) bool {
	p := strings.ToLower(strings.TrimSpace(pattern))
	n := strings.ToLower(filepath.Base(name))

	if p == "" {
		return false
	}
	if p == "*" {
		return true
	}

	leading := strings.HasPrefix(p, "*")
	trailing := strings.HasSuffix(p, "*")
	core := strings.TrimSuffix(strings.TrimPrefix(p, "*"), "*")

	switch {
	case leading && trailing:
		return strings.Contains(n, core)
	case trailing:
		return strings.HasPrefix(n, core)
	case leading:
		return strings.HasSuffix(n, core)
	default:
		return n == p
	}
}

// Rule pairs a pattern with the value it selects.
type Rule[T any] struct {
	Pattern string
	Value   T
}

// First returns the first rule, in table order, whose pattern matches name.
func First[T any](rules []Rule[T], name string) (Rule[T], bool) {
	for _, r := range rules {
		if Match(r.Pattern, name) {
			return r, true
		}
	}
	var zero Rule[T]
	return zero, false
}
