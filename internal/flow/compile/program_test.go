package compile_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/flow/compile"
)

// TestProgram_Add tests symbol registration and terminal tracking
func TestProgram_Add(t *testing.T) {
	program := compile.NewProgram()
	first, err := program.Add(compile.Loader("a", domain.Dataset{}))
	require.NoError(t, err)
	second, err := program.Add(compile.Loader("b", domain.Dataset{}), first)
	require.NoError(t, err)

	assert.Equal(t, 2, program.Len())
	assert.Equal(t, second, program.Terminal)
}

// TestProgram_UnknownArgument tests rejection of dangling references
func TestProgram_UnknownArgument(t *testing.T) {
	program := compile.NewProgram()
	_, err := program.Add(compile.Loader("a", domain.Dataset{}), uuid.New())
	assert.ErrorIs(t, err, compile.ErrUnknownSymbol)
}

// TestProgram_Sorted tests dependency-respecting order
func TestProgram_Sorted(t *testing.T) {
	program := compile.NewProgram()
	a, err := program.Add(compile.Loader("a", domain.Dataset{}))
	require.NoError(t, err)
	b, err := program.Add(compile.Loader("b", domain.Dataset{}))
	require.NoError(t, err)
	c, err := program.Add(compile.Commit(0))
	require.NoError(t, err)
	d, err := program.Add(compile.Publish(func(context.Context, domain.Dataset) error { return nil }), a, b)
	require.NoError(t, err)

	sorted, err := program.Sorted()
	require.NoError(t, err)
	require.Len(t, sorted, 4)

	position := make(map[uuid.UUID]int)
	for i, symbol := range sorted {
		position[symbol.ID] = i
	}
	assert.Less(t, position[a], position[d])
	assert.Less(t, position[b], position[d])
	assert.Contains(t, position, c)
}

// TestProgram_Dependents tests the reverse dependency index
func TestProgram_Dependents(t *testing.T) {
	program := compile.NewProgram()
	a, err := program.Add(compile.Loader("a", domain.Dataset{}))
	require.NoError(t, err)
	b, err := program.Add(compile.Commit(0), a)
	require.NoError(t, err)

	dependents := program.Dependents()
	assert.Equal(t, []uuid.UUID{b}, dependents[a])
}
