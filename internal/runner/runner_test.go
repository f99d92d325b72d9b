package runner_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/flow"
	"github.com/formlio/forml/internal/flow/actors"
	"github.com/formlio/forml/internal/flow/compile"
	"github.com/formlio/forml/internal/runner"
)

// memoryStates is a test double for the staging area of a registry.
type memoryStates struct {
	mu     sync.Mutex
	next   int
	states map[string][]byte
}

func newMemoryStates() *memoryStates {
	return &memoryStates{states: make(map[string][]byte)}
}

func (m *memoryStates) writer(_ context.Context, state []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	sid := fmt.Sprintf("state-%d", m.next)
	m.states[sid] = state
	return sid, nil
}

func (m *memoryStates) reader(sid string) compile.StateReader {
	return func(context.Context) ([]byte, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		state, ok := m.states[sid]
		if !ok {
			return nil, domain.ErrStateNotStaged
		}
		return state, nil
	}
}

func trainingData() (domain.Dataset, domain.Dataset) {
	features := domain.Dataset{
		Columns: []string{"x", "y"},
		Rows:    [][]float64{{0, 0}, {1, 0}, {0, 1}, {10, 10}, {11, 10}, {10, 11}},
	}
	labels := domain.Dataset{
		Columns: []string{"label"},
		Rows:    [][]float64{{0}, {0}, {0}, {1}, {1}, {1}},
	}
	return features, labels
}

func buildPipeline(t *testing.T) flow.Pipeline {
	t.Helper()
	steps := []domain.Step{
		{Name: "imputer"},
		{Name: "scaler"},
		{Name: "centroid"},
	}
	pipeline, err := flow.Build(steps, actors.New)
	require.NoError(t, err)
	return pipeline
}

func runTrainApply(t *testing.T, run func(context.Context, *compile.Program) (compile.Results, error)) {
	t.Helper()
	ctx := context.Background()
	states := newMemoryStates()
	features, labelled := trainingData()

	train, err := compile.TrainProgram(buildPipeline(t), features, labelled, 0, states.writer)
	require.NoError(t, err)

	results, err := run(ctx, train)
	require.NoError(t, err)

	tag, ok := results[train.Terminal].(domain.Tag)
	require.True(t, ok, "terminal symbol must produce a tag")
	require.Len(t, tag.States, 3)
	assert.True(t, tag.Training.Done())

	// Fresh pipeline instance, states restored from the staging area.
	pipeline := buildPipeline(t)
	readers := make(map[string]compile.StateReader)
	for i, name := range pipeline.Stateful() {
		readers[name] = states.reader(tag.States[i])
	}

	var published domain.Dataset
	sink := func(_ context.Context, out domain.Dataset) error {
		published = out
		return nil
	}
	apply, err := compile.ApplyProgram(pipeline, domain.Dataset{
		Columns: []string{"x", "y"},
		Rows:    [][]float64{{0.5, 0.5}, {10.5, 10.5}},
	}, readers, sink)
	require.NoError(t, err)

	_, err = run(ctx, apply)
	require.NoError(t, err)
	require.Len(t, published.Rows, 2)
	assert.Equal(t, 0.0, published.Rows[0][0])
	assert.Equal(t, 1.0, published.Rows[1][0])
}

// TestSerial_TrainApply tests the full train-then-apply cycle serially
func TestSerial_TrainApply(t *testing.T) {
	runTrainApply(t, runner.NewSerial().Run)
}

// TestLocal_TrainApply tests the full train-then-apply cycle concurrently
func TestLocal_TrainApply(t *testing.T) {
	runTrainApply(t, runner.NewLocal(4).Run)
}

// TestLocal_DefaultParallelism tests the CPU-count fallback
func TestLocal_DefaultParallelism(t *testing.T) {
	states := newMemoryStates()
	features, labelled := trainingData()
	program, err := compile.TrainProgram(buildPipeline(t), features, labelled, 0, states.writer)
	require.NoError(t, err)

	_, err = runner.NewLocal(0).Run(context.Background(), program)
	assert.NoError(t, err)
}

// TestSerial_Cancelled tests context cancellation
func TestSerial_Cancelled(t *testing.T) {
	states := newMemoryStates()
	features, labelled := trainingData()
	program, err := compile.TrainProgram(buildPipeline(t), features, labelled, 0, states.writer)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runner.NewSerial().Run(ctx, program)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestRun_InstructionFailure tests error propagation with symbol context
func TestRun_InstructionFailure(t *testing.T) {
	pipeline := flow.Pipeline{{Name: "broken", Actor: flow.ApplyFunc(
		func(context.Context, ...domain.Dataset) (domain.Dataset, error) {
			return domain.Dataset{}, fmt.Errorf("exploded")
		},
	)}}
	states := newMemoryStates()
	program, err := compile.TrainProgram(pipeline, domain.Dataset{}, domain.Dataset{}, 0, states.writer)
	require.NoError(t, err)

	_, err = runner.NewSerial().Run(context.Background(), program)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exploded")
	assert.Contains(t, err.Error(), "broken")
}
