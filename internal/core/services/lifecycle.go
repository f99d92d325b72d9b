package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
	"github.com/formlio/forml/internal/core/ports/driving"
	"github.com/formlio/forml/internal/flow"
	"github.com/formlio/forml/internal/flow/compile"
	"github.com/formlio/forml/internal/logger"
	"github.com/formlio/forml/internal/project"
)

// Ensure Lifecycle implements the interface.
var _ driving.Lifecycle = (*Lifecycle)(nil)

// Lifecycle implements the project lifecycle operations on top of the
// configured providers.
type Lifecycle struct {
	directory *Directory
	runner    driven.Runner
	feed      driven.Feed
	sink      driven.Sink
	factory   flow.Factory
	workdir   string
}

// NewLifecycle creates the lifecycle service. Pulled packages install
// under workdir, defaulting to a forml directory in the system temp.
func NewLifecycle(
	directory *Directory,
	runner driven.Runner,
	feed driven.Feed,
	sink driven.Sink,
	factory flow.Factory,
	workdir string,
) *Lifecycle {
	if workdir == "" {
		workdir = filepath.Join(os.TempDir(), "forml")
	}
	return &Lifecycle{
		directory: directory,
		runner:    runner,
		feed:      feed,
		sink:      sink,
		factory:   factory,
		workdir:   workdir,
	}
}

// Init scaffolds a new project skeleton under dir.
func (s *Lifecycle) Init(_ context.Context, name, dir string) (string, error) {
	key, err := domain.ParseProject(name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dir, key.String())
	if _, err := project.ReadManifest(target); err == nil {
		return "", fmt.Errorf("%w: project at %s", domain.ErrAlreadyExists, target)
	}
	if err := os.MkdirAll(filepath.Join(target, "data"), 0o700); err != nil {
		return "", fmt.Errorf("creating project skeleton: %w", err)
	}
	manifest := domain.Manifest{Name: key, Version: domain.MustVersion("0.1")}
	if err := project.WriteManifest(target, manifest); err != nil {
		return "", err
	}
	starter := domain.Descriptor{
		Source: domain.Source{
			Query:    "data/train.csv",
			Features: []string{"feature1", "feature2"},
			Label:    "label",
		},
		Pipeline: []domain.Step{
			{Name: "imputer"},
			{Name: "scaler"},
			{Name: "knn", Params: map[string]float64{"k": 3}},
		},
		Evaluation: domain.Evaluation{Metric: "accuracy", Holdout: 0.2},
	}
	if err := project.WriteDescriptor(target, starter); err != nil {
		return "", err
	}
	sample := "feature1,feature2,label\n"
	if err := os.WriteFile(filepath.Join(target, "data", "train.csv"), []byte(sample), 0o600); err != nil {
		return "", fmt.Errorf("creating sample data: %w", err)
	}
	logger.Info("Initialized project %s at %s", key, target)
	return target, nil
}

// List enumerates registry content at the level addressed by the given
// keys.
func (s *Lifecycle) List(ctx context.Context, proj, lineage string) ([]string, error) {
	if proj == "" {
		if lineage != "" {
			return nil, fmt.Errorf("%w: lineage given without a project", domain.ErrInvalidLevel)
		}
		projects, err := s.directory.registry.Projects(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(projects))
		for i, p := range projects {
			out[i] = p.String()
		}
		return out, nil
	}
	p, err := domain.ParseProject(proj)
	if err != nil {
		return nil, err
	}
	if lineage == "" {
		versions, err := s.directory.registry.Lineages(ctx, p)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(versions))
		for i, v := range versions {
			out[i] = v.String()
		}
		return out, nil
	}
	l, err := domain.ParseVersion(lineage)
	if err != nil {
		return nil, err
	}
	generations, err := s.directory.registry.Generations(ctx, p, l)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(generations))
	for i, g := range generations {
		out[i] = g.String()
	}
	return out, nil
}

// Train fits a new generation of the project and commits it.
func (s *Lifecycle) Train(ctx context.Context, req driving.TrainRequest) (driving.TrainReport, error) {
	p, l, err := s.directory.ResolveLineage(ctx, req.Project, req.Lineage)
	if err != nil {
		return driving.TrainReport{}, err
	}
	descriptor, pipeline, err := s.assemble(ctx, p, l)
	if err != nil {
		return driving.TrainReport{}, err
	}

	lower := req.Lower
	if lower == nil {
		if lower, err = s.previousOrdinal(ctx, p, l); err != nil {
			return driving.TrainReport{}, err
		}
	}
	features, labels, err := s.feed.Extract(ctx, descriptor.Source, lower, req.Upper)
	if err != nil {
		return driving.TrainReport{}, err
	}
	if labels.Width() == 0 {
		return driving.TrainReport{}, fmt.Errorf("%w: label column %q not present in source",
			domain.ErrNotFound, descriptor.Source.Label)
	}

	var ordinal float64
	if req.Upper != nil {
		ordinal = *req.Upper
	}
	program, err := compile.TrainProgram(pipeline, features, labels, ordinal, s.directory.Writer(p, l))
	if err != nil {
		return driving.TrainReport{}, err
	}

	logger.Info("Training %s/%s on %d rows", p, l, features.Len())
	results, err := s.runner.Run(ctx, program)
	if err != nil {
		return driving.TrainReport{}, err
	}
	tag, ok := results[program.Terminal].(domain.Tag)
	if !ok {
		return driving.TrainReport{}, fmt.Errorf("training run produced no tag")
	}

	generation, err := s.directory.NextGeneration(ctx, p, l)
	if err != nil {
		return driving.TrainReport{}, err
	}
	if err := s.directory.registry.Close(ctx, p, l, generation, tag); err != nil {
		return driving.TrainReport{}, err
	}
	logger.Info("Committed generation %s/%s/%s", p, l, generation)
	return driving.TrainReport{
		Project:    p.String(),
		Lineage:    l.String(),
		Generation: int(generation),
		States:     len(tag.States),
	}, nil
}

// Apply scores fresh source data with a committed generation.
func (s *Lifecycle) Apply(ctx context.Context, req driving.ApplyRequest) (driving.ApplyReport, error) {
	p, l, err := s.directory.ResolveLineage(ctx, req.Project, req.Lineage)
	if err != nil {
		return driving.ApplyReport{}, err
	}
	generation, err := s.directory.ResolveGeneration(ctx, p, l, req.Generation)
	if err != nil {
		return driving.ApplyReport{}, err
	}
	tag, err := s.directory.registry.Open(ctx, p, l, generation)
	if err != nil {
		return driving.ApplyReport{}, err
	}
	descriptor, pipeline, err := s.assemble(ctx, p, l)
	if err != nil {
		return driving.ApplyReport{}, err
	}
	readers, err := s.directory.Readers(p, l, generation, tag, pipeline)
	if err != nil {
		return driving.ApplyReport{}, err
	}

	features, _, err := s.feed.Extract(ctx, descriptor.Source, nil, nil)
	if err != nil {
		return driving.ApplyReport{}, err
	}

	var rows int
	publisher := func(ctx context.Context, output domain.Dataset) error {
		rows = output.Len()
		return s.sink.Publish(ctx, output)
	}
	program, err := compile.ApplyProgram(pipeline, features, readers, publisher)
	if err != nil {
		return driving.ApplyReport{}, err
	}

	logger.Info("Applying %s/%s/%s to %d rows", p, l, generation, features.Len())
	if _, err := s.runner.Run(ctx, program); err != nil {
		return driving.ApplyReport{}, err
	}
	return driving.ApplyReport{
		Project:    p.String(),
		Lineage:    l.String(),
		Generation: int(generation),
		Rows:       rows,
	}, nil
}

// Upload packages a project tree and publishes it as a new lineage.
func (s *Lifecycle) Upload(ctx context.Context, path string) (driving.UploadReport, error) {
	pkg, err := project.Open(path)
	if err != nil {
		return driving.UploadReport{}, err
	}
	if err := s.directory.Put(ctx, pkg); err != nil {
		return driving.UploadReport{}, err
	}
	logger.Info("Uploaded lineage %s", pkg.Manifest)
	return driving.UploadReport{
		Project: pkg.Manifest.Name.String(),
		Lineage: pkg.Manifest.Version.String(),
	}, nil
}

// assemble pulls the lineage package, installs it into the workdir and
// composes its pipeline.
func (s *Lifecycle) assemble(ctx context.Context, p domain.Project, l domain.Version) (domain.Descriptor, flow.Pipeline, error) {
	pkg, err := s.directory.registry.Pull(ctx, p, l)
	if err != nil {
		return domain.Descriptor{}, nil, err
	}
	root, err := project.Install(pkg, filepath.Join(s.workdir, p.String(), l.String()))
	if err != nil {
		return domain.Descriptor{}, nil, err
	}
	descriptor, err := project.ReadDescriptor(root)
	if err != nil {
		return domain.Descriptor{}, nil, err
	}
	pipeline, err := flow.Build(descriptor.Pipeline, s.factory)
	if err != nil {
		return domain.Descriptor{}, nil, err
	}
	return descriptor, pipeline, nil
}

// previousOrdinal derives the incremental lower bound from the latest
// committed generation, nil when the lineage has no usable history.
func (s *Lifecycle) previousOrdinal(ctx context.Context, p domain.Project, l domain.Version) (*float64, error) {
	generation, err := s.directory.ResolveGeneration(ctx, p, l, "")
	if err != nil {
		if errors.Is(err, domain.ErrNotTrained) {
			return nil, nil
		}
		return nil, err
	}
	tag, err := s.directory.registry.Open(ctx, p, l, generation)
	if err != nil {
		return nil, err
	}
	if !tag.Training.Done() || tag.Training.Ordinal == 0 {
		return nil, nil
	}
	ordinal := tag.Training.Ordinal
	return &ordinal, nil
}
