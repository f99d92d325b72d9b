package actors

import (
	"fmt"
	"sort"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/flow"
)

// builders maps component names to their constructors.
var builders = map[string]func(flow.Params) (flow.Actor, error){
	"imputer":    newImputer,
	"scaler":     newScaler,
	"polynomial": newPolynomial,
	"knn":        newKNN,
	"centroid":   newCentroid,
}

// New is the flow.Factory over the built-in catalog.
func New(name string, params flow.Params) (flow.Actor, error) {
	builder, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: component %q (available: %v)", domain.ErrNotFound, name, Names())
	}
	return builder(params)
}

// Names lists the catalog components in stable order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
