package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
	"github.com/formlio/forml/internal/flow"
	"github.com/formlio/forml/internal/flow/compile"
)

// Directory is the asset access layer on top of a raw registry
// provider: it resolves partial coordinates to concrete registry levels
// and enforces the publishing rules the raw providers don't.
type Directory struct {
	registry driven.Registry
}

// NewDirectory wraps a registry provider.
func NewDirectory(registry driven.Registry) *Directory {
	return &Directory{registry: registry}
}

// ResolveLineage resolves a project name and optional lineage key, the
// empty lineage meaning the latest one.
func (d *Directory) ResolveLineage(ctx context.Context, project, lineage string) (domain.Project, domain.Version, error) {
	p, err := domain.ParseProject(project)
	if err != nil {
		return "", domain.Version{}, err
	}
	if lineage != "" {
		l, err := domain.ParseVersion(lineage)
		return p, l, err
	}
	versions, err := d.registry.Lineages(ctx, p)
	if err != nil {
		return "", domain.Version{}, err
	}
	latest, err := domain.LatestVersion(versions)
	if err != nil {
		return "", domain.Version{}, fmt.Errorf("%w: project %s has no lineages", domain.ErrNotFound, p)
	}
	return p, latest, nil
}

// ResolveGeneration resolves an optional generation key, the empty key
// meaning the latest committed one.
func (d *Directory) ResolveGeneration(ctx context.Context, p domain.Project, l domain.Version, generation string) (domain.Generation, error) {
	if generation != "" {
		return domain.ParseGeneration(generation)
	}
	generations, err := d.registry.Generations(ctx, p, l)
	if err != nil {
		return 0, err
	}
	latest, err := domain.LatestGeneration(generations)
	if err != nil {
		return 0, fmt.Errorf("%w: lineage %s/%s has no generations", domain.ErrNotTrained, p, l)
	}
	return latest, nil
}

// Put publishes a package, insisting on a strictly increasing lineage
// version within the project.
func (d *Directory) Put(ctx context.Context, pkg domain.Package) error {
	versions, err := d.registry.Lineages(ctx, pkg.Manifest.Name)
	if err != nil {
		return err
	}
	if latest, err := domain.LatestVersion(versions); err == nil {
		if pkg.Manifest.Version.Compare(latest) <= 0 {
			return fmt.Errorf("%w: %s does not supersede %s",
				domain.ErrVersionNotIncremented, pkg.Manifest.Version, latest)
		}
	}
	return d.registry.Push(ctx, pkg)
}

// NextGeneration returns the ordinal the next commit to the lineage
// will receive.
func (d *Directory) NextGeneration(ctx context.Context, p domain.Project, l domain.Version) (domain.Generation, error) {
	generations, err := d.registry.Generations(ctx, p, l)
	if err != nil {
		return 0, err
	}
	latest, err := domain.LatestGeneration(generations)
	if err != nil {
		return 1, nil
	}
	return latest + 1, nil
}

// Writer returns a state writer staging blobs into the lineage under
// freshly minted state IDs.
func (d *Directory) Writer(p domain.Project, l domain.Version) compile.StateWriter {
	return func(ctx context.Context, state []byte) (string, error) {
		sid := uuid.NewString()
		if err := d.registry.Write(ctx, p, l, sid, state); err != nil {
			return "", err
		}
		return sid, nil
	}
}

// Readers maps the stateful steps of a pipeline to readers of their
// committed states, pairing the tag's ordered states list with the
// pipeline's stateful workers.
func (d *Directory) Readers(p domain.Project, l domain.Version, g domain.Generation, tag domain.Tag, pipeline flow.Pipeline) (map[string]compile.StateReader, error) {
	stateful := pipeline.Stateful()
	if len(stateful) != len(tag.States) {
		return nil, fmt.Errorf("%w: generation %s/%s/%s carries %d states for %d stateful steps",
			domain.ErrNotTrained, p, l, g, len(tag.States), len(stateful))
	}
	readers := make(map[string]compile.StateReader, len(stateful))
	for i, name := range stateful {
		sid := tag.States[i]
		readers[name] = func(ctx context.Context) ([]byte, error) {
			return d.registry.Read(ctx, p, l, g, sid)
		}
	}
	return readers, nil
}
