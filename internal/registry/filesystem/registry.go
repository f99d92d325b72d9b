// Package filesystem implements the registry provider as a plain
// hierarchical file tree: project/lineage/generation directories with
// the lineage package, committed state blobs and a per-lineage staging
// area for generations still being trained.
package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
	"github.com/formlio/forml/internal/logger"
	"github.com/formlio/forml/internal/project"
)

const (
	// stageDir holds staged states of uncommitted generations.
	stageDir = ".stage"

	// tagFile closes a generation directory.
	tagFile = "tag.json"

	// stateSuffix marks persisted state blobs.
	stateSuffix = ".bin"

	// packageFile is the lineage package entry.
	packageFile = "package." + domain.PackageFormat
)

// Ensure Registry implements the interface.
var _ driven.Registry = (*Registry)(nil)

// Registry is a locally-accessible file based registry hierarchy.
// Directory listings are cached; an fsnotify watcher over the visited
// directories invalidates the cache when anything else touches the
// tree (a concurrent push from another process, manual pruning).
type Registry struct {
	root string

	mu      sync.Mutex
	cache   map[string][]os.DirEntry
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New creates (and if necessary initializes) a filesystem registry
// rooted at the given path.
func New(root string) (*Registry, error) {
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving registry root: %w", err)
	}
	if err := os.MkdirAll(absolute, 0o700); err != nil {
		return nil, fmt.Errorf("creating registry root: %w", err)
	}
	r := &Registry{
		root:  absolute,
		cache: make(map[string][]os.DirEntry),
		done:  make(chan struct{}),
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Degraded mode: no caching, every listing hits the disk.
		logger.Warn("registry watcher unavailable: %v", err)
		return r, nil
	}
	r.watcher = watcher
	go r.invalidate()
	return r, nil
}

// invalidate drops the whole listing cache on any tree event.
func (r *Registry) invalidate() {
	for {
		select {
		case <-r.done:
			return
		case _, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			r.mu.Lock()
			r.cache = make(map[string][]os.DirEntry)
			r.mu.Unlock()
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("registry watcher: %v", err)
		}
	}
}

// Shutdown stops the watcher.
func (r *Registry) Shutdown() error {
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	return r.watcher.Close()
}

// listing returns the directory entries of path, cached until the
// watcher reports a change.
func (r *Registry) listing(path string) ([]os.DirEntry, error) {
	r.mu.Lock()
	if entries, ok := r.cache[path]; ok {
		r.mu.Unlock()
		return entries, nil
	}
	r.mu.Unlock()

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	if r.watcher != nil {
		if err := r.watcher.Add(path); err == nil {
			r.mu.Lock()
			r.cache[path] = entries
			r.mu.Unlock()
		}
	}
	return entries, nil
}

// forget drops the cache entries below the given path after a mutation
// of our own making.
func (r *Registry) forget() {
	r.mu.Lock()
	r.cache = make(map[string][]os.DirEntry)
	r.mu.Unlock()
}

func (r *Registry) projectPath(p domain.Project) string {
	return filepath.Join(r.root, p.String())
}

func (r *Registry) lineagePath(p domain.Project, l domain.Version) string {
	return filepath.Join(r.projectPath(p), l.String())
}

func (r *Registry) generationPath(p domain.Project, l domain.Version, g domain.Generation) string {
	return filepath.Join(r.lineagePath(p, l), g.String())
}

func (r *Registry) stagePath(p domain.Project, l domain.Version) string {
	return filepath.Join(r.lineagePath(p, l), stageDir)
}

// Projects lists valid project directories under the root.
func (r *Registry) Projects(context.Context) ([]domain.Project, error) {
	entries, err := r.listing(r.root)
	if err != nil {
		return nil, err
	}
	var projects []domain.Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := domain.ParseProject(entry.Name())
		if err != nil {
			logger.Debug("skipping non-project entry %s", entry.Name())
			continue
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// Lineages lists lineage directories carrying a package.
func (r *Registry) Lineages(_ context.Context, p domain.Project) ([]domain.Version, error) {
	entries, err := r.listing(r.projectPath(p))
	if err != nil {
		return nil, err
	}
	var lineages []domain.Version
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		version, err := domain.ParseVersion(entry.Name())
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.projectPath(p), entry.Name(), packageFile)); err != nil {
			continue
		}
		lineages = append(lineages, version)
	}
	return lineages, nil
}

// Generations lists generation directories closed with a tag.
func (r *Registry) Generations(_ context.Context, p domain.Project, l domain.Version) ([]domain.Generation, error) {
	entries, err := r.listing(r.lineagePath(p, l))
	if err != nil {
		return nil, err
	}
	var generations []domain.Generation
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		generation, err := domain.ParseGeneration(entry.Name())
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.lineagePath(p, l), entry.Name(), tagFile)); err != nil {
			continue
		}
		generations = append(generations, generation)
	}
	return generations, nil
}

// Push stores the package under its manifest coordinates.
func (r *Registry) Push(_ context.Context, pkg domain.Package) error {
	defer r.forget()
	target := filepath.Join(r.lineagePath(pkg.Manifest.Name, pkg.Manifest.Version), packageFile)
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("%w: lineage %s", domain.ErrAlreadyExists, pkg.Manifest)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("creating lineage: %w", err)
	}
	info, err := os.Stat(pkg.Path)
	if err != nil {
		return fmt.Errorf("reading package: %w", err)
	}
	if info.IsDir() {
		// Directory based ("virtual") packages are archived in place.
		_, err = project.Create(pkg.Path, pkg.Manifest, target)
		return err
	}
	raw, err := os.ReadFile(pkg.Path)
	if err != nil {
		return fmt.Errorf("reading package: %w", err)
	}
	return os.WriteFile(target, raw, 0o600)
}

// Pull retrieves the package of a lineage.
func (r *Registry) Pull(_ context.Context, p domain.Project, l domain.Version) (domain.Package, error) {
	path := filepath.Join(r.lineagePath(p, l), packageFile)
	if _, err := os.Stat(path); err != nil {
		return domain.Package{}, fmt.Errorf("%w: lineage %s/%s", domain.ErrNotFound, p, l)
	}
	return project.Open(path)
}

// Write stages a state blob for the lineage.
func (r *Registry) Write(_ context.Context, p domain.Project, l domain.Version, sid string, state []byte) error {
	defer r.forget()
	stage := r.stagePath(p, l)
	if err := os.MkdirAll(stage, 0o700); err != nil {
		return fmt.Errorf("creating staging area: %w", err)
	}
	logger.Debug("staging %d bytes as %s", len(state), sid)
	return os.WriteFile(filepath.Join(stage, sid+stateSuffix), state, 0o600)
}

// Read fetches a committed state blob.
func (r *Registry) Read(_ context.Context, p domain.Project, l domain.Version, g domain.Generation, sid string) ([]byte, error) {
	path := filepath.Join(r.generationPath(p, l, g), sid+stateSuffix)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: state %s", domain.ErrNotFound, sid)
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}
	return raw, nil
}

// Open fetches the tag of a committed generation.
func (r *Registry) Open(_ context.Context, p domain.Project, l domain.Version, g domain.Generation) (domain.Tag, error) {
	raw, err := os.ReadFile(filepath.Join(r.generationPath(p, l, g), tagFile))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Tag{}, fmt.Errorf("%w: generation %s/%s/%s", domain.ErrNotFound, p, l, g)
		}
		return domain.Tag{}, fmt.Errorf("reading tag: %w", err)
	}
	return domain.ParseTag(raw)
}

// Close commits a generation from its staged states.
func (r *Registry) Close(_ context.Context, p domain.Project, l domain.Version, g domain.Generation, tag domain.Tag) error {
	defer r.forget()
	target := r.generationPath(p, l, g)
	if _, err := os.Stat(filepath.Join(target, tagFile)); err == nil {
		return fmt.Errorf("%w: generation %s/%s/%s", domain.ErrAlreadyExists, p, l, g)
	}
	if err := os.MkdirAll(target, 0o700); err != nil {
		return fmt.Errorf("creating generation: %w", err)
	}
	for _, sid := range tag.States {
		source := filepath.Join(r.stagePath(p, l), sid+stateSuffix)
		if _, err := os.Stat(source); err != nil {
			return fmt.Errorf("%w: %s", domain.ErrStateNotStaged, sid)
		}
		if err := os.Rename(source, filepath.Join(target, sid+stateSuffix)); err != nil {
			return fmt.Errorf("promoting state %s: %w", sid, err)
		}
	}
	raw, err := tag.Bytes()
	if err != nil {
		return err
	}
	logger.Debug("committing %s as generation %s/%s/%s", tag, p, l, g)
	return os.WriteFile(filepath.Join(target, tagFile), raw, 0o600)
}
