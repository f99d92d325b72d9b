package driven

import (
	"context"

	"github.com/formlio/forml/internal/flow/compile"
)

// Runner executes a compiled symbol program and returns the results of
// all symbols, keyed by symbol ID.
type Runner interface {
	Run(ctx context.Context, program *compile.Program) (compile.Results, error)
}
