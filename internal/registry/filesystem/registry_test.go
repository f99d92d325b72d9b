package filesystem_test

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
	"github.com/formlio/forml/internal/registry/filesystem"
	"github.com/formlio/forml/internal/registry/registrytest"
)

func TestConformance(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) driven.Registry {
		registry, err := filesystem.New(t.TempDir())
		require.NoError(t, err)
		return registry
	})
}

// TestLayout tests the on-disk tree produced by a full cycle
func TestLayout(t *testing.T) {
	root := t.TempDir()
	registry, err := filesystem.New(root)
	require.NoError(t, err)
	defer registry.Shutdown()

	ctx := context.Background()
	lineage := domain.MustVersion("1.0")
	require.NoError(t, registry.Push(ctx, registrytest.Fixture(t, "titanic", "1.0")))

	sid := uuid.NewString()
	require.NoError(t, registry.Write(ctx, "titanic", lineage, sid, []byte("state")))
	assert.FileExists(t, filepath.Join(root, "titanic", "1.0", ".stage", sid+".bin"))

	tag := domain.Tag{Training: domain.Event{Timestamp: time.Now().UTC()}, States: []string{sid}}
	require.NoError(t, registry.Close(ctx, "titanic", lineage, 1, tag))

	assert.FileExists(t, filepath.Join(root, "titanic", "1.0", "package.4ml"))
	assert.FileExists(t, filepath.Join(root, "titanic", "1.0", "1", "tag.json"))
	assert.FileExists(t, filepath.Join(root, "titanic", "1.0", "1", sid+".bin"))
	assert.NoFileExists(t, filepath.Join(root, "titanic", "1.0", ".stage", sid+".bin"))
}

// TestForeignEntries tests that stray files and directories are skipped
func TestForeignEntries(t *testing.T) {
	root := t.TempDir()
	registry, err := filesystem.New(root)
	require.NoError(t, err)
	defer registry.Shutdown()

	ctx := context.Background()
	require.NoError(t, registry.Push(ctx, registrytest.Fixture(t, "titanic", "1.0")))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "NotAProject"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "titanic", "draft"), 0o700))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "titanic", "2.0"), 0o700))

	projects, err := registry.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Project{"titanic"}, projects)

	// 2.0 has no package, draft is not a version key.
	lineages, err := registry.Lineages(ctx, "titanic")
	require.NoError(t, err)
	require.Len(t, lineages, 1)
	assert.Equal(t, "1.0", lineages[0].String())
}

// TestCacheInvalidation tests that out-of-band changes become visible
func TestCacheInvalidation(t *testing.T) {
	root := t.TempDir()
	registry, err := filesystem.New(root)
	require.NoError(t, err)
	defer registry.Shutdown()

	ctx := context.Background()
	projects, err := registry.Projects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)

	// Simulate another process pushing into the same tree.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "titanic"), 0o700))

	assert.Eventually(t, func() bool {
		projects, err := registry.Projects(ctx)
		return err == nil && len(projects) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
