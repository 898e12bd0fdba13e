// Package visibility decides whether the floating support widget renders.
package visibility

import (
	"slices"
	"strings"

	"github.com/soyeahso/supportline/internal/config"
	"github.com/soyeahso/supportline/internal/domain"
)

// ShouldRender reports whether the widget renders for the given page,
// visitor and widget state. It depends on its arguments only.
func ShouldRender(page domain.PageContext, id domain.Identity, vis domain.VisibilityState) bool {
	if !id.Authenticated {
		return false
	}
	if vis.PermanentlyHidden {
		return false
	}
	if !Allowed(page.Path, page.AllowedPaths) {
		return false
	}
	return RoleAllowed(id.Role, page.RequiredRoles)
}

// Allowed reports whether path matches any of the patterns.
func Allowed(path string, patterns []string) bool {
	for _, p := range patterns {
		if MatchPath(p, path) {
			return true
		}
	}
	return false
}

// RoleAllowed reports whether role satisfies the gate. An empty gate admits every role.
func RoleAllowed(role domain.Role, required []domain.Role) bool {
	return len(required) == 0 || slices.Contains(required, role)
}

// MatchPath matches a route against a pattern. Patterns are exact paths,
// prefixes ending in "/*", or paths with ":param" segments. Query strings,
// fragments and trailing slashes on the route are ignored.
func MatchPath(pattern, path string) bool {
	path = Normalize(path)
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}

	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		prefix = Normalize(prefix)
		if prefix == "/" {
			return path != "/"
		}
		rest, found := strings.CutPrefix(path, prefix+"/")
		return found && rest != ""
	}

	pattern = Normalize(pattern)
	if !strings.Contains(pattern, ":") {
		return pattern == path
	}

	want := strings.Split(pattern, "/")
	got := strings.Split(path, "/")
	if len(want) != len(got) {
		return false
	}
	for i, seg := range want {
		if strings.HasPrefix(seg, ":") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if seg != got[i] {
			return false
		}
	}
	return true
}

// Normalize strips query, fragment and trailing slash, and guarantees a leading slash.
func Normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

// PageContext builds the page context for path from configuration.
func PageContext(cfg config.VisibilityConfig, path string) domain.PageContext {
	roles := make([]domain.Role, 0, len(cfg.RequiredRoles))
	for _, r := range cfg.RequiredRoles {
		roles = append(roles, domain.Role(r))
	}
	return domain.PageContext{
		Path:          Normalize(path),
		AllowedPaths:  slices.Clone(cfg.AllowedPaths),
		RequiredRoles: roles,
	}
}
