package gateway

import (
	"sort"
	"strings"

	"myinfra-hq/smartgate/pkg/config"
)

// Registry is the immutable in-memory mapping of configured projects,
// indexed for longest-prefix lookup on the request path. A Registry is
// built once from a configuration snapshot and never mutated; reloads
// swap in a whole new Registry.
type Registry struct {
	// projects is sorted by descending prefix length so the first match
	// during resolution is the longest.
	projects []*Project
}

// NewRegistry compiles all configured projects into a Registry.
func NewRegistry(projects map[string]*config.ProjectConfig) (*Registry, error) {
	r := &Registry{projects: make([]*Project, 0, len(projects))}

	for _, cfg := range projects {
		p, err := NewProject(cfg)
		if err != nil {
			return nil, err
		}
		r.projects = append(r.projects, p)
	}

	sort.Slice(r.projects, func(i, j int) bool {
		pi, pj := r.projects[i].Prefix(), r.projects[j].Prefix()
		if len(pi) != len(pj) {
			return len(pi) > len(pj)
		}
		return pi < pj
	})

	return r, nil
}

// Resolve returns the project whose prefix is the longest match for the
// request path, or nil when no project matches. A prefix matches when the
// path equals it exactly or continues it at a "/" boundary, so the prefix
// "/a" matches "/a" and "/a/x" but not "/ab".
func (r *Registry) Resolve(path string) *Project {
	for _, p := range r.projects {
		prefix := p.Prefix()
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return p
		}
	}
	return nil
}

// Projects returns all registered projects in resolution order.
func (r *Registry) Projects() []*Project {
	return r.projects
}
