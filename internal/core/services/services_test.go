package services_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
	"github.com/formlio/forml/internal/core/ports/driving"
	"github.com/formlio/forml/internal/core/services"
	"github.com/formlio/forml/internal/flow/actors"
	"github.com/formlio/forml/internal/io/feed"
	"github.com/formlio/forml/internal/project"
	"github.com/formlio/forml/internal/registry/memory"
	"github.com/formlio/forml/internal/runner"
)

// captureSink records the last published dataset.
type captureSink struct {
	output domain.Dataset
}

func (s *captureSink) Publish(_ context.Context, output domain.Dataset) error {
	s.output = output
	return nil
}

func trainingTable() domain.Dataset {
	return domain.Dataset{
		Columns: []string{"seq", "f1", "f2", "label"},
		Rows: [][]float64{
			{1, 1.0, 2.0, 0},
			{2, 1.2, 2.1, 0},
			{3, 0.9, 1.8, 0},
			{4, 1.1, 2.2, 0},
			{5, 8.0, 9.0, 1},
			{6, 8.2, 9.3, 1},
			{7, 7.9, 8.8, 1},
			{8, 8.1, 9.1, 1},
		},
	}
}

func testDescriptor() domain.Descriptor {
	return domain.Descriptor{
		Source: domain.Source{
			Query:    "observations",
			Features: []string{"f1", "f2"},
			Label:    "label",
			Ordinal:  "seq",
		},
		Pipeline: []domain.Step{
			{Name: "imputer"},
			{Name: "scaler"},
			{Name: "knn", Params: map[string]float64{"k": 3}},
		},
		Evaluation: domain.Evaluation{Metric: "accuracy", Holdout: 0.25},
		Tuning:     map[string][]float64{"knn.k": {1, 3}},
	}
}

// scaffoldProject builds an uploadable project tree.
func scaffoldProject(t *testing.T, version string) string {
	t.Helper()
	dir := t.TempDir()
	name, err := domain.ParseProject("iris")
	require.NoError(t, err)
	manifest := domain.Manifest{Name: name, Version: domain.MustVersion(version)}
	require.NoError(t, project.WriteManifest(dir, manifest))
	require.NoError(t, project.WriteDescriptor(dir, testDescriptor()))
	return dir
}

type harness struct {
	lifecycle *services.Lifecycle
	sink      *captureSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	source := feed.NewMemory()
	source.Add("observations", trainingTable())
	sink := &captureSink{}
	directory := services.NewDirectory(memory.New())
	lifecycle := services.NewLifecycle(
		directory, runner.NewSerial(), source, sink, actors.New,
		filepath.Join(t.TempDir(), "work"))
	return &harness{lifecycle: lifecycle, sink: sink}
}

func (h *harness) upload(t *testing.T, version string) {
	t.Helper()
	_, err := h.lifecycle.Upload(context.Background(), scaffoldProject(t, version))
	require.NoError(t, err)
}

// TestInit tests the project scaffold
func TestInit(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()

	target, err := h.lifecycle.Init(context.Background(), "titanic", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "titanic"), target)

	manifest, err := project.ReadManifest(target)
	require.NoError(t, err)
	assert.Equal(t, "titanic", manifest.Name.String())

	descriptor, err := project.ReadDescriptor(target)
	require.NoError(t, err)
	assert.NotEmpty(t, descriptor.Pipeline)
	assert.FileExists(t, filepath.Join(target, "data", "train.csv"))

	// Repeated init must not clobber the existing project.
	_, err = h.lifecycle.Init(context.Background(), "titanic", dir)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = h.lifecycle.Init(context.Background(), "Not Valid", dir)
	assert.ErrorIs(t, err, domain.ErrInvalidLevel)
}

// TestUpload_List tests publishing and the three listing levels
func TestUpload_List(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.upload(t, "0.1")

	projects, err := h.lifecycle.List(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"iris"}, projects)

	lineages, err := h.lifecycle.List(ctx, "iris", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0.1"}, lineages)

	generations, err := h.lifecycle.List(ctx, "iris", "0.1")
	require.NoError(t, err)
	assert.Empty(t, generations)

	_, err = h.lifecycle.List(ctx, "", "0.1")
	assert.ErrorIs(t, err, domain.ErrInvalidLevel)
}

// TestUpload_Monotonic tests the strict lineage version ordering
func TestUpload_Monotonic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.upload(t, "0.2")

	_, err := h.lifecycle.Upload(ctx, scaffoldProject(t, "0.2"))
	assert.ErrorIs(t, err, domain.ErrVersionNotIncremented)

	_, err = h.lifecycle.Upload(ctx, scaffoldProject(t, "0.1"))
	assert.ErrorIs(t, err, domain.ErrVersionNotIncremented)

	_, err = h.lifecycle.Upload(ctx, scaffoldProject(t, "0.3"))
	assert.NoError(t, err)
}

// TestTrain_Apply tests the full train-then-score cycle
func TestTrain_Apply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.upload(t, "0.1")

	report, err := h.lifecycle.Train(ctx, driving.TrainRequest{Project: "iris"})
	require.NoError(t, err)
	assert.Equal(t, "iris", report.Project)
	assert.Equal(t, "0.1", report.Lineage)
	assert.Equal(t, 1, report.Generation)
	// imputer, scaler and knn all persist state.
	assert.Equal(t, 3, report.States)

	generations, err := h.lifecycle.List(ctx, "iris", "0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, generations)

	applied, err := h.lifecycle.Apply(ctx, driving.ApplyRequest{Project: "iris"})
	require.NoError(t, err)
	assert.Equal(t, 1, applied.Generation)
	assert.Equal(t, trainingTable().Len(), applied.Rows)

	col := h.sink.output.Column("prediction")
	require.GreaterOrEqual(t, col, 0)
	// The model must at least reproduce its own training labels.
	assert.Equal(t, 0.0, h.sink.output.Rows[0][col])
	assert.Equal(t, 1.0, h.sink.output.Rows[len(h.sink.output.Rows)-1][col])
}

// TestTrain_SecondGeneration tests incremental generations
func TestTrain_SecondGeneration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.upload(t, "0.1")

	first, err := h.lifecycle.Train(ctx, driving.TrainRequest{Project: "iris"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Generation)

	second, err := h.lifecycle.Train(ctx, driving.TrainRequest{Project: "iris"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Generation)
}

// TestTrain_UnknownProject tests resolution failures
func TestTrain_UnknownProject(t *testing.T) {
	h := newHarness(t)
	_, err := h.lifecycle.Train(context.Background(), driving.TrainRequest{Project: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestApply_Untrained tests scoring against an untrained lineage
func TestApply_Untrained(t *testing.T) {
	h := newHarness(t)
	h.upload(t, "0.1")
	_, err := h.lifecycle.Apply(context.Background(), driving.ApplyRequest{Project: "iris"})
	assert.ErrorIs(t, err, domain.ErrNotTrained)
}

// TestTune tests the random search sweep
func TestTune(t *testing.T) {
	h := newHarness(t)
	h.upload(t, "0.1")

	report, err := h.lifecycle.Tune(context.Background(), driving.TuneRequest{
		Project: "iris",
		Rounds:  4,
		Seed:    42,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Rounds)
	assert.Equal(t, "accuracy", report.Metric)
	assert.Contains(t, report.Params, "knn.k")
	// The clusters are well separated, any k should score perfectly.
	assert.Equal(t, 1.0, report.Score)
}

// TestTune_Reproducible tests that a fixed seed pins the winner
func TestTune_Reproducible(t *testing.T) {
	h := newHarness(t)
	h.upload(t, "0.1")
	req := driving.TuneRequest{Project: "iris", Rounds: 3, Seed: 7}

	first, err := h.lifecycle.Tune(context.Background(), req)
	require.NoError(t, err)
	second, err := h.lifecycle.Tune(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Params, second.Params)
	assert.Equal(t, first.Score, second.Score)
}

// TestBank tests alias resolution and the unknown-provider failure
func TestBank(t *testing.T) {
	bank := services.NewBank()
	bank.RegisterRunner("serial", func(services.Options) (driven.Runner, error) {
		return runner.NewSerial(), nil
	})
	bank.RegisterFeed("memory", func(services.Options) (driven.Feed, error) {
		return feed.NewMemory(), nil
	})

	resolved, err := bank.Runner("serial", nil)
	require.NoError(t, err)
	assert.NotNil(t, resolved)

	_, err = bank.Runner("dask", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
	assert.Contains(t, err.Error(), "serial")

	_, err = bank.Feed("csv", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

// TestOptions tests the typed option getters
func TestOptions(t *testing.T) {
	opts := services.Options{"path": "/tmp/reg", "limit": int64(5), "rate": 2.5}
	assert.Equal(t, "/tmp/reg", opts.String("path", ""))
	assert.Equal(t, "fallback", opts.String("missing", "fallback"))
	assert.Equal(t, 5.0, opts.Float("limit", 0))
	assert.Equal(t, 2.5, opts.Float("rate", 0))
	assert.Equal(t, 1.0, opts.Float("missing", 1))
}
