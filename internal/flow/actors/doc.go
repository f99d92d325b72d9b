// Package actors provides the built-in component catalog: the concrete
// actors a project descriptor can reference by name in its pipeline.
//
// Stateful components (imputer, scaler, knn, centroid) serialize their
// fitted state as JSON blobs; the stateless polynomial expander carries
// no state at all.
package actors
