package flow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/flow"
)

func identityFactory(name string, _ flow.Params) (flow.Actor, error) {
	return flow.ApplyFunc(func(_ context.Context, args ...domain.Dataset) (domain.Dataset, error) {
		return args[0], nil
	}), nil
}

// TestBuild_OrdersWorkers tests pipeline composition from descriptor steps
func TestBuild_OrdersWorkers(t *testing.T) {
	steps := []domain.Step{{Name: "first"}, {Name: "second"}, {Name: "third"}}
	pipeline, err := flow.Build(steps, identityFactory)
	require.NoError(t, err)
	require.Len(t, pipeline, 3)
	assert.Equal(t, "first", pipeline[0].Name)
	assert.Equal(t, "third", pipeline[2].Name)
}

// TestBuild_Empty tests rejection of an empty pipeline
func TestBuild_Empty(t *testing.T) {
	_, err := flow.Build(nil, identityFactory)
	assert.ErrorIs(t, err, domain.ErrInvalidPipeline)
}

// TestBuild_DuplicateStep tests rejection of duplicate step names
func TestBuild_DuplicateStep(t *testing.T) {
	steps := []domain.Step{{Name: "same"}, {Name: "same"}}
	_, err := flow.Build(steps, identityFactory)
	assert.ErrorIs(t, err, domain.ErrInvalidPipeline)
}

// TestBuild_FactoryFailure tests propagation of instantiation errors
func TestBuild_FactoryFailure(t *testing.T) {
	broken := func(name string, _ flow.Params) (flow.Actor, error) {
		return nil, domain.ErrNotFound
	}
	_, err := flow.Build([]domain.Step{{Name: "missing"}}, broken)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// TestSpec_Instantiate tests deferred per-compilation construction
func TestSpec_Instantiate(t *testing.T) {
	calls := 0
	counting := func(name string, params flow.Params) (flow.Actor, error) {
		calls++
		assert.Equal(t, "step", name)
		assert.Equal(t, 1.0, params.Get("k", 0))
		return flow.ApplyFunc(func(_ context.Context, args ...domain.Dataset) (domain.Dataset, error) {
			return args[0], nil
		}), nil
	}

	spec := flow.NewSpec("step", flow.Params{"k": 1}, counting)
	first, err := spec.Instantiate()
	require.NoError(t, err)
	second, err := spec.Instantiate()
	require.NoError(t, err)

	assert.NotNil(t, first)
	assert.NotNil(t, second)
	assert.Equal(t, 2, calls)
}

// TestPipeline_Stateful tests stateful worker enumeration
func TestPipeline_Stateful(t *testing.T) {
	pipeline := flow.Pipeline{
		{Name: "stateless", Actor: flow.ApplyFunc(nil)},
		{Name: "fitted", Actor: &fakeStateful{}},
	}
	assert.Equal(t, []string{"fitted"}, pipeline.Stateful())
}

type fakeStateful struct{}

func (f *fakeStateful) Apply(_ context.Context, args ...domain.Dataset) (domain.Dataset, error) {
	return args[0], nil
}

func (f *fakeStateful) Train(context.Context, domain.Dataset, domain.Dataset) error { return nil }
func (f *fakeStateful) State() ([]byte, error)                                      { return []byte("{}"), nil }
func (f *fakeStateful) SetState([]byte) error                                       { return nil }
