package jwtware

import "strings"

// PathMatcher matches request paths against public route patterns.
//
//	/ping          exact match (a trailing slash on the request is ignored)
//	/api-docs*     prefix match
//	/api/auth/**   the path itself and everything below it
type PathMatcher struct {
	exact    map[string]struct{}
	prefixes []string
	trees    []string
	fold     bool
}

// NewPathMatcher compiles patterns; blank patterns are ignored.
func NewPathMatcher(patterns ...string) *PathMatcher {
	m := &PathMatcher{exact: make(map[string]struct{})}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
		case strings.HasSuffix(p, "/**"):
			m.trees = append(m.trees, strings.TrimSuffix(p, "/**"))
		case strings.HasSuffix(p, "*"):
			m.prefixes = append(m.prefixes, strings.TrimSuffix(p, "*"))
		default:
			m.exact[trimSlash(p)] = struct{}{}
		}
	}
	return m
}

// Fold returns a copy of m that ignores case, for apps that route
// case-insensitively (fiber's default).
func (m *PathMatcher) Fold() *PathMatcher {
	if m == nil {
		return nil
	}
	out := &PathMatcher{exact: make(map[string]struct{}, len(m.exact)), fold: true}
	for p := range m.exact {
		out.exact[strings.ToLower(p)] = struct{}{}
	}
	for _, p := range m.prefixes {
		out.prefixes = append(out.prefixes, strings.ToLower(p))
	}
	for _, p := range m.trees {
		out.trees = append(out.trees, strings.ToLower(p))
	}
	return out
}

// Match reports whether path is public
func (m *PathMatcher) Match(path string) bool {
	if m == nil {
		return false
	}
	if m.fold {
		path = strings.ToLower(path)
	}
	if _, ok := m.exact[trimSlash(path)]; ok {
		return true
	}
	for _, prefix := range m.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, root := range m.trees {
		if path == root || strings.HasPrefix(path, root+"/") {
			return true
		}
	}
	return false
}

func trimSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimRight(p, "/")
	}
	return p
}
