package flow

import (
	"context"

	"github.com/formlio/forml/internal/core/domain"
)

// Actor is the unit of work in a pipeline. Stateless actors implement
// just Apply; stateful ones additionally implement Stateful.
type Actor interface {
	// Apply transforms the input datasets into an output dataset.
	Apply(ctx context.Context, args ...domain.Dataset) (domain.Dataset, error)
}

// Stateful is an actor whose Apply depends on a prior Train. Its state
// round-trips through opaque bytes so runners and registries never see
// the internal representation.
type Stateful interface {
	Actor

	// Train fits the actor on the given features and labels.
	Train(ctx context.Context, features, labels domain.Dataset) error

	// State serializes the fitted state.
	State() ([]byte, error)

	// SetState restores a previously serialized state.
	SetState(state []byte) error
}

// IsStateful reports whether the actor carries trainable state.
func IsStateful(actor Actor) bool {
	_, ok := actor.(Stateful)
	return ok
}

// ApplyFunc adapts a plain function into a stateless Actor.
type ApplyFunc func(ctx context.Context, args ...domain.Dataset) (domain.Dataset, error)

// Apply implements Actor.
func (f ApplyFunc) Apply(ctx context.Context, args ...domain.Dataset) (domain.Dataset, error) {
	return f(ctx, args...)
}

// Params are the hyperparameters handed to an actor factory.
type Params map[string]float64

// Get returns the named parameter or the fallback when absent.
func (p Params) Get(name string, fallback float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return fallback
}

// Factory constructs a named actor from the component catalog.
type Factory func(name string, params Params) (Actor, error)

// Spec is a deferred actor constructor - component name plus params.
// Specs instantiate fresh actors per compilation so concurrent runs
// never share mutable state.
type Spec struct {
	Name    string
	Params  Params
	factory Factory
}

// NewSpec binds a component reference to a factory.
func NewSpec(name string, params Params, factory Factory) Spec {
	return Spec{Name: name, Params: params, factory: factory}
}

// Instantiate builds a fresh actor from the spec.
func (s Spec) Instantiate() (Actor, error) {
	return s.factory(s.Name, s.Params)
}
