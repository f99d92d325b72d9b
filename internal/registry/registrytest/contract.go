// Package registrytest holds a conformance suite shared by the
// registry provider tests: every provider must exhibit the same
// push/stage/commit/read behaviour regardless of its backend.
package registrytest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
	"github.com/formlio/forml/internal/project"
)

// Factory produces a fresh empty registry for one test case. Cleanup
// is registered by the suite.
type Factory func(t *testing.T) driven.Registry

// Fixture builds a directory based project package for the given
// coordinates.
func Fixture(t *testing.T, name, version string) domain.Package {
	t.Helper()
	dir := t.TempDir()
	key, err := domain.ParseProject(name)
	require.NoError(t, err)
	manifest := domain.Manifest{Name: key, Version: domain.MustVersion(version)}
	require.NoError(t, project.WriteManifest(dir, manifest))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "project.toml"), []byte("[source]\nquery = \"data.csv\"\n"), 0o600))
	pkg, err := project.Open(dir)
	require.NoError(t, err)
	return pkg
}

// Run executes the conformance suite against the provider.
func Run(t *testing.T, factory Factory) {
	t.Run("Empty", func(t *testing.T) { testEmpty(t, factory) })
	t.Run("PushPull", func(t *testing.T) { testPushPull(t, factory) })
	t.Run("Commit", func(t *testing.T) { testCommit(t, factory) })
	t.Run("CommitConflicts", func(t *testing.T) { testCommitConflicts(t, factory) })
}

func open(t *testing.T, factory Factory) driven.Registry {
	t.Helper()
	registry := factory(t)
	t.Cleanup(func() { assert.NoError(t, registry.Shutdown()) })
	return registry
}

func testEmpty(t *testing.T, factory Factory) {
	registry := open(t, factory)
	ctx := context.Background()

	projects, err := registry.Projects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)

	_, err = registry.Pull(ctx, "titanic", domain.MustVersion("0.1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testPushPull(t *testing.T, factory Factory) {
	registry := open(t, factory)
	ctx := context.Background()
	pkg := Fixture(t, "titanic", "0.1")

	require.NoError(t, registry.Push(ctx, pkg))

	projects, err := registry.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Project{"titanic"}, projects)

	lineages, err := registry.Lineages(ctx, "titanic")
	require.NoError(t, err)
	require.Len(t, lineages, 1)
	assert.Equal(t, "0.1", lineages[0].String())

	// Lineage versions are immutable.
	err = registry.Push(ctx, Fixture(t, "titanic", "0.1"))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	pulled, err := registry.Pull(ctx, "titanic", domain.MustVersion("0.1"))
	require.NoError(t, err)
	assert.Equal(t, pkg.Manifest, pulled.Manifest)

	require.NoError(t, registry.Push(ctx, Fixture(t, "titanic", "0.2")))
	lineages, err = registry.Lineages(ctx, "titanic")
	require.NoError(t, err)
	require.Len(t, lineages, 2)
	assert.Equal(t, "0.1", lineages[0].String())
	assert.Equal(t, "0.2", lineages[1].String())
}

func testCommit(t *testing.T, factory Factory) {
	registry := open(t, factory)
	ctx := context.Background()
	lineage := domain.MustVersion("0.1")
	require.NoError(t, registry.Push(ctx, Fixture(t, "titanic", "0.1")))

	generations, err := registry.Generations(ctx, "titanic", lineage)
	require.NoError(t, err)
	assert.Empty(t, generations)

	first, second := uuid.NewString(), uuid.NewString()
	require.NoError(t, registry.Write(ctx, "titanic", lineage, first, []byte("alpha")))
	require.NoError(t, registry.Write(ctx, "titanic", lineage, second, []byte("beta")))

	// Staged states are invisible until the generation is closed.
	_, err = registry.Read(ctx, "titanic", lineage, 1, first)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	tag := domain.Tag{
		Training: domain.Event{Timestamp: time.Now().UTC().Truncate(time.Second), Ordinal: 42},
		States:   []string{first, second},
	}
	require.NoError(t, registry.Close(ctx, "titanic", lineage, 1, tag))

	generations, err = registry.Generations(ctx, "titanic", lineage)
	require.NoError(t, err)
	assert.Equal(t, []domain.Generation{1}, generations)

	opened, err := registry.Open(ctx, "titanic", lineage, 1)
	require.NoError(t, err)
	assert.Equal(t, tag.States, opened.States)
	assert.True(t, opened.Training.Done())
	assert.Equal(t, 42.0, opened.Training.Ordinal)
	assert.False(t, opened.Tuning.Done())

	alpha, err := registry.Read(ctx, "titanic", lineage, 1, first)
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), alpha)

	_, err = registry.Read(ctx, "titanic", lineage, 1, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = registry.Open(ctx, "titanic", lineage, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testCommitConflicts(t *testing.T, factory Factory) {
	registry := open(t, factory)
	ctx := context.Background()
	lineage := domain.MustVersion("0.1")
	require.NoError(t, registry.Push(ctx, Fixture(t, "titanic", "0.1")))

	sid := uuid.NewString()
	require.NoError(t, registry.Write(ctx, "titanic", lineage, sid, []byte("alpha")))
	tag := domain.Tag{Training: domain.Event{Timestamp: time.Now().UTC()}, States: []string{sid}}
	require.NoError(t, registry.Close(ctx, "titanic", lineage, 1, tag))

	// Generations are write-once.
	err := registry.Close(ctx, "titanic", lineage, 1, tag)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// A tag may only reference states sitting in the staging area.
	err = registry.Close(ctx, "titanic", lineage, 2, domain.Tag{States: []string{uuid.NewString()}})
	assert.ErrorIs(t, err, domain.ErrStateNotStaged)
}
