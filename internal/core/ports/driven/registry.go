package driven

import (
	"context"

	"github.com/formlio/forml/internal/core/domain"
)

// Registry is the persistent artifact store provider. It is organized
// as a three-level hierarchy (project / lineage / generation) with a
// per-lineage staging area for states of generations still being
// trained.
type Registry interface {
	// Projects lists the project keys present in the registry.
	Projects(ctx context.Context) ([]domain.Project, error)

	// Lineages lists the lineage versions of a project.
	Lineages(ctx context.Context, project domain.Project) ([]domain.Version, error)

	// Generations lists the committed generation ordinals of a lineage.
	Generations(ctx context.Context, project domain.Project, lineage domain.Version) ([]domain.Generation, error)

	// Push stores a package under its manifest coordinates. Pushing to
	// an existing lineage fails with domain.ErrAlreadyExists.
	Push(ctx context.Context, pkg domain.Package) error

	// Pull retrieves the package of a lineage.
	Pull(ctx context.Context, project domain.Project, lineage domain.Version) (domain.Package, error)

	// Write stages a state blob for a generation in the making and
	// returns nothing; the state is addressed by the caller-minted sid.
	Write(ctx context.Context, project domain.Project, lineage domain.Version, sid string, state []byte) error

	// Read fetches a state blob of a committed generation.
	Read(ctx context.Context, project domain.Project, lineage domain.Version, generation domain.Generation, sid string) ([]byte, error)

	// Open fetches the tag of a committed generation.
	Open(ctx context.Context, project domain.Project, lineage domain.Version, generation domain.Generation) (domain.Tag, error)

	// Close commits a generation: the staged states listed in the tag
	// are promoted out of the staging area and the tag persisted.
	// Referencing an unstaged state fails with domain.ErrStateNotStaged.
	Close(ctx context.Context, project domain.Project, lineage domain.Version, generation domain.Generation, tag domain.Tag) error

	// Shutdown releases any resources held by the registry.
	Shutdown() error
}
