package runner

import (
	"context"

	"github.com/pkg/errors"

	"github.com/formlio/forml/internal/flow/compile"
	"github.com/formlio/forml/internal/logger"
)

// Serial executes a program one symbol at a time in topological order.
type Serial struct{}

// NewSerial creates a serial runner.
func NewSerial() *Serial {
	return &Serial{}
}

// Run executes all symbols sequentially.
func (r *Serial) Run(ctx context.Context, program *compile.Program) (compile.Results, error) {
	sorted, err := program.Sorted()
	if err != nil {
		return nil, err
	}
	results := make(compile.Results, len(sorted))
	for _, symbol := range sorted {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "serial runner")
		default:
		}
		args := make([]any, len(symbol.Args))
		for i, arg := range symbol.Args {
			args[i] = results[arg]
		}
		logger.Debug("executing %s", symbol.Instruction)
		value, err := symbol.Instruction.Execute(ctx, args...)
		if err != nil {
			return nil, errors.Wrapf(err, "symbol %s", symbol.Instruction)
		}
		results[symbol.ID] = value
	}
	return results, nil
}
