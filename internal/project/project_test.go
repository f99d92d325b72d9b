package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/project"
)

func sampleDescriptor() domain.Descriptor {
	return domain.Descriptor{
		Source: domain.Source{
			Query:    "data/train.csv",
			Features: []string{"age", "fare"},
			Label:    "survived",
		},
		Pipeline: []domain.Step{
			{Name: "imputer"},
			{Name: "knn", Params: map[string]float64{"k": 3}},
		},
		Evaluation: domain.Evaluation{Metric: "accuracy", Holdout: 0.2},
		Tuning:     map[string][]float64{"knn.k": {1, 3, 5}},
	}
}

func sampleManifest(t *testing.T) domain.Manifest {
	t.Helper()
	name, err := domain.ParseProject("titanic")
	require.NoError(t, err)
	return domain.Manifest{Name: name, Version: domain.MustVersion("0.1")}
}

func scaffold(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, project.WriteManifest(dir, sampleManifest(t)))
	require.NoError(t, project.WriteDescriptor(dir, sampleDescriptor()))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "train.csv"), []byte("age,fare,survived\n22,7.25,0\n"), 0o600))
	return dir
}

// TestManifest_RoundTrip tests directory manifest read/write
func TestManifest_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	manifest := sampleManifest(t)
	require.NoError(t, project.WriteManifest(dir, manifest))

	read, err := project.ReadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, manifest, read)
}

// TestReadManifest_Missing tests the missing-manifest failure
func TestReadManifest_Missing(t *testing.T) {
	_, err := project.ReadManifest(t.TempDir())
	assert.ErrorIs(t, err, domain.ErrInvalidManifest)
}

// TestDescriptor_RoundTrip tests project.toml read/write
func TestDescriptor_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	descriptor := sampleDescriptor()
	require.NoError(t, project.WriteDescriptor(dir, descriptor))

	read, err := project.ReadDescriptor(dir)
	require.NoError(t, err)
	assert.Equal(t, descriptor, read)
}

// TestDescriptor_Invalid tests rejection of empty pipelines
func TestDescriptor_Invalid(t *testing.T) {
	descriptor := sampleDescriptor()
	descriptor.Pipeline = nil
	err := project.WriteDescriptor(t.TempDir(), descriptor)
	assert.ErrorIs(t, err, domain.ErrInvalidPipeline)
}

// TestCreate_Install tests the archive/install round trip
func TestCreate_Install(t *testing.T) {
	source := scaffold(t)
	target := filepath.Join(t.TempDir(), "titanic-0.1.4ml")

	pkg, err := project.Create(source, sampleManifest(t), target)
	require.NoError(t, err)
	assert.Equal(t, "titanic-0.1", pkg.Manifest.String())

	install := filepath.Join(t.TempDir(), "installed")
	root, err := project.Install(pkg, install)
	require.NoError(t, err)

	descriptor, err := project.ReadDescriptor(root)
	require.NoError(t, err)
	assert.Equal(t, sampleDescriptor(), descriptor)

	data, err := os.ReadFile(filepath.Join(root, "data", "train.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "22,7.25,0")
}

// TestInstall_Idempotent tests that a matching install is skipped
func TestInstall_Idempotent(t *testing.T) {
	source := scaffold(t)
	pkg, err := project.Open(source)
	require.NoError(t, err)

	install := filepath.Join(t.TempDir(), "installed")
	_, err = project.Install(pkg, install)
	require.NoError(t, err)

	// A sentinel file survives the second install of the same manifest.
	sentinel := filepath.Join(install, "sentinel")
	require.NoError(t, os.WriteFile(sentinel, []byte("keep"), 0o600))
	_, err = project.Install(pkg, install)
	require.NoError(t, err)
	assert.FileExists(t, sentinel)
}

// TestOpen_Directory tests opening an unpacked package
func TestOpen_Directory(t *testing.T) {
	source := scaffold(t)
	pkg, err := project.Open(source)
	require.NoError(t, err)
	assert.Equal(t, "titanic", pkg.Manifest.Name.String())
}
