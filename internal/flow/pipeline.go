package flow

import (
	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/formlio/forml/internal/core/domain"
)

// sourceVertex and sinkVertex bracket every composed pipeline in the
// validation graph.
const (
	sourceVertex = "$source"
	sinkVertex   = "$sink"
)

// Worker is one resolved pipeline stage: a named, instantiated actor.
type Worker struct {
	Name  string
	Actor Actor
}

// Pipeline is the composed chain of workers in execution order.
type Pipeline []Worker

// Stateful returns the names of the stateful workers, in order. The
// slice matches the states list of a generation tag one to one.
func (p Pipeline) Stateful() []string {
	var names []string
	for _, w := range p {
		if IsStateful(w.Actor) {
			names = append(names, w.Name)
		}
	}
	return names
}

// Build composes a pipeline from descriptor steps using the given
// factory. The chain is mirrored into a cycle-preventing DAG so any
// composition defect surfaces here rather than at run time.
func Build(steps []domain.Step, factory Factory) (Pipeline, error) {
	if len(steps) == 0 {
		return nil, errors.WithStack(domain.ErrInvalidPipeline)
	}

	dag := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, vertex := range []string{sourceVertex, sinkVertex} {
		if err := dag.AddVertex(vertex); err != nil {
			return nil, errors.Wrap(err, "composing pipeline")
		}
	}

	previous := sourceVertex
	pipeline := make(Pipeline, 0, len(steps))
	for _, step := range steps {
		if err := dag.AddVertex(step.Name); err != nil {
			if errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, errors.Wrapf(domain.ErrInvalidPipeline, "duplicate step %q", step.Name)
			}
			return nil, errors.Wrapf(err, "adding step %q", step.Name)
		}
		if err := dag.AddEdge(previous, step.Name); err != nil {
			return nil, errors.Wrapf(err, "linking %q -> %q", previous, step.Name)
		}

		actor, err := NewSpec(step.Name, Params(step.Params), factory).Instantiate()
		if err != nil {
			return nil, errors.Wrapf(err, "instantiating step %q", step.Name)
		}
		pipeline = append(pipeline, Worker{Name: step.Name, Actor: actor})
		previous = step.Name
	}
	if err := dag.AddEdge(previous, sinkVertex); err != nil {
		return nil, errors.Wrap(err, "terminating pipeline")
	}

	// Execution order follows the validated topology, not the raw
	// descriptor order.
	order, err := graph.TopologicalSort(dag)
	if err != nil {
		return nil, errors.Wrap(err, "sorting pipeline")
	}
	byName := make(map[string]Worker, len(pipeline))
	for _, w := range pipeline {
		byName[w.Name] = w
	}
	sorted := make(Pipeline, 0, len(pipeline))
	for _, vertex := range order {
		if w, ok := byName[vertex]; ok {
			sorted = append(sorted, w)
		}
	}
	return sorted, nil
}
