// Package hook holds the immutable hook registry.
//
// The registry maps request paths to hook descriptors. It is built once from
// configuration before the server accepts its first connection and is never
// mutated afterward, so concurrent lookups need no locking.
package hook

import (
	"sort"
	"strings"
)

// Hook describes one external program bound to a request path.
// Identity is Path. A nil Secret means the hook requires no authentication.
type Hook struct {
	Path    string
	Program string
	Args    []string
	Secret  []byte
}

// CommandLine renders the hook's program and arguments for logging.
func (h *Hook) CommandLine() string {
	if len(h.Args) == 0 {
		return h.Program
	}
	return h.Program + " " + strings.Join(h.Args, " ")
}

// Authenticated reports whether the hook has a shared secret configured.
func (h *Hook) Authenticated() bool {
	return h.Secret != nil
}

// Registry is a read-only mapping from request path to hook.
type Registry struct {
	hooks map[string]*Hook
}

// NewRegistry builds a registry from a sequence of hooks. Duplicate paths are
// resolved last-wins; the overwritten paths are returned so the caller can
// surface the misconfiguration.
func NewRegistry(hooks []Hook) (*Registry, []string) {
	m := make(map[string]*Hook, len(hooks))
	var overwritten []string
	for i := range hooks {
		h := hooks[i]
		if _, exists := m[h.Path]; exists {
			overwritten = append(overwritten, h.Path)
		}
		m[h.Path] = &h
	}
	return &Registry{hooks: m}, overwritten
}

// Lookup returns the hook registered at path. The match is exact: no prefix
// matching and no trailing-slash normalization.
func (r *Registry) Lookup(path string) (*Hook, bool) {
	h, ok := r.hooks[path]
	return h, ok
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	return len(r.hooks)
}

// All returns the registered hooks sorted by path, for startup logging.
func (r *Registry) All() []*Hook {
	out := make([]*Hook, 0, len(r.hooks))
	for _, h := range r.hooks {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
