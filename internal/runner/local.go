package runner

import (
	"context"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/formlio/forml/internal/flow/compile"
	"github.com/formlio/forml/internal/logger"
)

// Local executes independent symbols concurrently. Symbols are
// scheduled in dependency waves: every wave runs all symbols whose
// arguments are already resolved, bounded by the parallelism limit.
type Local struct {
	parallelism int
}

// NewLocal creates a local runner. A non-positive parallelism defaults
// to the number of CPUs.
func NewLocal(parallelism int) *Local {
	if parallelism < 1 {
		parallelism = runtime.NumCPU()
	}
	return &Local{parallelism: parallelism}
}

// Run executes the program concurrently and returns all symbol results.
func (r *Local) Run(ctx context.Context, program *compile.Program) (compile.Results, error) {
	// Topological sort up front also validates the program before any
	// instruction runs.
	if _, err := program.Sorted(); err != nil {
		return nil, err
	}

	remaining := make(map[uuid.UUID]int, program.Len())
	for _, symbol := range program.Symbols() {
		remaining[symbol.ID] = len(symbol.Args)
	}
	dependents := program.Dependents()

	var mu sync.Mutex
	results := make(compile.Results, program.Len())

	for len(results) < program.Len() {
		ready := make([]compile.Symbol, 0)
		for _, symbol := range program.Symbols() {
			if _, done := results[symbol.ID]; done {
				continue
			}
			if remaining[symbol.ID] == 0 {
				ready = append(ready, symbol)
			}
		}
		if len(ready) == 0 {
			return nil, errors.New("local runner: no runnable symbols left")
		}
		logger.Debug("wave of %d symbols (parallelism %d)", len(ready), r.parallelism)

		grp, gCtx := errgroup.WithContext(ctx)
		grp.SetLimit(r.parallelism)
		for _, symbol := range ready {
			symbol := symbol
			grp.Go(func() error {
				args := make([]any, len(symbol.Args))
				mu.Lock()
				for i, arg := range symbol.Args {
					args[i] = results[arg]
				}
				mu.Unlock()
				value, err := symbol.Instruction.Execute(gCtx, args...)
				if err != nil {
					return errors.Wrapf(err, "symbol %s", symbol.Instruction)
				}
				mu.Lock()
				results[symbol.ID] = value
				mu.Unlock()
				return nil
			})
		}
		if err := grp.Wait(); err != nil {
			return nil, err
		}
		for _, symbol := range ready {
			for _, dependent := range dependents[symbol.ID] {
				remaining[dependent]--
			}
		}
	}
	return results, nil
}
