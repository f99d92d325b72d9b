// Package runner provides the built-in runner providers executing
// compiled symbol programs.
//
// The serial runner walks the program in topological order and is
// fully deterministic; the local runner executes independent symbols
// concurrently in dependency waves with a configurable parallelism
// limit. Both produce identical results for a valid program.
package runner

import "github.com/formlio/forml/internal/core/ports/driven"

// Ensure both runners implement the interface.
var (
	_ driven.Runner = (*Serial)(nil)
	_ driven.Runner = (*Local)(nil)
)
