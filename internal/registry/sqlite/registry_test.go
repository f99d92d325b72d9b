package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
	"github.com/formlio/forml/internal/registry/registrytest"
	"github.com/formlio/forml/internal/registry/sqlite"
)

func TestConformance(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) driven.Registry {
		registry, err := sqlite.New(filepath.Join(t.TempDir(), "registry.db"))
		require.NoError(t, err)
		return registry
	})
}

// TestPersistence tests that content survives reopening the database
func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	ctx := context.Background()
	lineage := domain.MustVersion("0.1")

	registry, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, registry.Push(ctx, registrytest.Fixture(t, "titanic", "0.1")))
	sid := uuid.NewString()
	require.NoError(t, registry.Write(ctx, "titanic", lineage, sid, []byte("state")))
	tag := domain.Tag{Training: domain.Event{Timestamp: time.Now().UTC()}, States: []string{sid}}
	require.NoError(t, registry.Close(ctx, "titanic", lineage, 1, tag))
	require.NoError(t, registry.Shutdown())

	// Reopen runs migrations idempotently and sees the prior content.
	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Shutdown()

	projects, err := reopened.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Project{"titanic"}, projects)

	state, err := reopened.Read(ctx, "titanic", lineage, 1, sid)
	require.NoError(t, err)
	assert.Equal(t, []byte("state"), state)

	opened, err := reopened.Open(ctx, "titanic", lineage, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{sid}, opened.States)
}
