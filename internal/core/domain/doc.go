// Package domain defines the core business entities for forml.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Project: A named line of ML work held in a registry
//   - Version: A monotonically increasing lineage key
//   - Tag: The closing record of a trained generation
//   - Manifest/Package: A distributable project archive and its metadata
//   - Dataset: Tabular data exchanged between feeds, actors and sinks
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
