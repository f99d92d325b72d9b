// Package memory implements a volatile in-process registry used for
// tests and tutorials. Content disappears with the process.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
	"github.com/formlio/forml/internal/project"
)

// Ensure Registry implements the interface.
var _ driven.Registry = (*Registry)(nil)

type lineage struct {
	pkg         []byte
	packageDir  string
	staged      map[string][]byte
	generations map[domain.Generation]generation
}

type generation struct {
	tag    domain.Tag
	states map[string][]byte
}

// Registry is an in-memory registry hierarchy guarded by a single lock.
type Registry struct {
	mu       sync.RWMutex
	projects map[domain.Project]map[string]*lineage
}

// New creates an empty in-memory registry.
func New() *Registry {
	return &Registry{projects: make(map[domain.Project]map[string]*lineage)}
}

// Shutdown implements driven.Registry; nothing to release.
func (r *Registry) Shutdown() error {
	return nil
}

// Projects lists the known project keys in stable order.
func (r *Registry) Projects(context.Context) ([]domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	projects := make([]domain.Project, 0, len(r.projects))
	for p := range r.projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i] < projects[j] })
	return projects, nil
}

// Lineages lists the lineage versions of a project.
func (r *Registry) Lineages(_ context.Context, p domain.Project) ([]domain.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var versions []domain.Version
	for raw := range r.projects[p] {
		versions = append(versions, domain.MustVersion(raw))
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Compare(versions[j]) < 0 })
	return versions, nil
}

// Generations lists the committed generations of a lineage.
func (r *Registry) Generations(_ context.Context, p domain.Project, l domain.Version) ([]domain.Generation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry := r.projects[p][l.String()]
	if entry == nil {
		return nil, nil
	}
	generations := make([]domain.Generation, 0, len(entry.generations))
	for g := range entry.generations {
		generations = append(generations, g)
	}
	sort.Slice(generations, func(i, j int) bool { return generations[i] < generations[j] })
	return generations, nil
}

// Push stores the package bytes under its manifest coordinates.
func (r *Registry) Push(_ context.Context, pkg domain.Package) error {
	info, err := os.Stat(pkg.Path)
	if err != nil {
		return fmt.Errorf("reading package: %w", err)
	}
	var raw []byte
	var dir string
	if info.IsDir() {
		dir = pkg.Path
	} else {
		if raw, err = os.ReadFile(pkg.Path); err != nil {
			return fmt.Errorf("reading package: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	name := pkg.Manifest.Name
	if r.projects[name] == nil {
		r.projects[name] = make(map[string]*lineage)
	}
	key := pkg.Manifest.Version.String()
	if _, ok := r.projects[name][key]; ok {
		return fmt.Errorf("%w: lineage %s", domain.ErrAlreadyExists, pkg.Manifest)
	}
	r.projects[name][key] = &lineage{
		pkg:         raw,
		packageDir:  dir,
		staged:      make(map[string][]byte),
		generations: make(map[domain.Generation]generation),
	}
	return nil
}

// Pull materializes the stored package back into a readable path.
func (r *Registry) Pull(_ context.Context, p domain.Project, l domain.Version) (domain.Package, error) {
	r.mu.RLock()
	entry := r.projects[p][l.String()]
	r.mu.RUnlock()
	if entry == nil {
		return domain.Package{}, fmt.Errorf("%w: lineage %s/%s", domain.ErrNotFound, p, l)
	}
	if entry.packageDir != "" {
		return project.Open(entry.packageDir)
	}
	path := filepath.Join(os.TempDir(), fmt.Sprintf("forml-%s-%s.%s", p, l, domain.PackageFormat))
	if err := os.WriteFile(path, entry.pkg, 0o600); err != nil {
		return domain.Package{}, fmt.Errorf("materializing package: %w", err)
	}
	return project.Open(path)
}

// Write stages a state blob.
func (r *Registry) Write(_ context.Context, p domain.Project, l domain.Version, sid string, state []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.projects[p][l.String()]
	if entry == nil {
		return fmt.Errorf("%w: lineage %s/%s", domain.ErrNotFound, p, l)
	}
	entry.staged[sid] = append([]byte(nil), state...)
	return nil
}

// Read fetches a committed state blob.
func (r *Registry) Read(_ context.Context, p domain.Project, l domain.Version, g domain.Generation, sid string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry := r.projects[p][l.String()]
	if entry == nil {
		return nil, fmt.Errorf("%w: lineage %s/%s", domain.ErrNotFound, p, l)
	}
	gen, ok := entry.generations[g]
	if !ok {
		return nil, fmt.Errorf("%w: generation %s", domain.ErrNotFound, g)
	}
	state, ok := gen.states[sid]
	if !ok {
		return nil, fmt.Errorf("%w: state %s", domain.ErrNotFound, sid)
	}
	return state, nil
}

// Open fetches a committed generation tag.
func (r *Registry) Open(_ context.Context, p domain.Project, l domain.Version, g domain.Generation) (domain.Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry := r.projects[p][l.String()]
	if entry == nil {
		return domain.Tag{}, fmt.Errorf("%w: lineage %s/%s", domain.ErrNotFound, p, l)
	}
	gen, ok := entry.generations[g]
	if !ok {
		return domain.Tag{}, fmt.Errorf("%w: generation %s", domain.ErrNotFound, g)
	}
	return gen.tag, nil
}

// Close promotes staged states into a committed generation.
func (r *Registry) Close(_ context.Context, p domain.Project, l domain.Version, g domain.Generation, tag domain.Tag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.projects[p][l.String()]
	if entry == nil {
		return fmt.Errorf("%w: lineage %s/%s", domain.ErrNotFound, p, l)
	}
	if _, ok := entry.generations[g]; ok {
		return fmt.Errorf("%w: generation %s", domain.ErrAlreadyExists, g)
	}
	states := make(map[string][]byte, len(tag.States))
	for _, sid := range tag.States {
		state, ok := entry.staged[sid]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrStateNotStaged, sid)
		}
		states[sid] = state
	}
	for _, sid := range tag.States {
		delete(entry.staged, sid)
	}
	entry.generations[g] = generation{tag: tag, states: states}
	return nil
}
