package compile

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/flow"
)

// TrainProgram compiles the training path of a pipeline: every stateful
// worker is fitted on the dataset flowing into it, its state staged
// through the writer, and the run closed by a commit symbol producing
// the generation tag.
func TrainProgram(
	pipeline flow.Pipeline,
	features, labels domain.Dataset,
	ordinal float64,
	writer StateWriter,
) (*Program, error) {
	if len(pipeline) == 0 {
		return nil, errors.WithStack(domain.ErrInvalidPipeline)
	}
	program := NewProgram()

	current, err := program.Add(Loader("features", features))
	if err != nil {
		return nil, err
	}
	labelled, err := program.Add(Loader("labels", labels))
	if err != nil {
		return nil, err
	}

	var dumps []uuid.UUID
	for _, worker := range pipeline {
		if flow.IsStateful(worker.Actor) {
			trained, err := program.Add(Train(worker), current, labelled)
			if err != nil {
				return nil, err
			}
			dumped, err := program.Add(Dump(worker.Name, writer), trained)
			if err != nil {
				return nil, err
			}
			dumps = append(dumps, dumped)
			// The trained symbol doubles as an ordering dependency so
			// the apply of this worker never races its own training.
			current, err = program.Add(Apply(worker), current, trained)
			if err != nil {
				return nil, err
			}
			continue
		}
		current, err = program.Add(Apply(worker), current)
		if err != nil {
			return nil, err
		}
	}

	if _, err := program.Add(Commit(ordinal), dumps...); err != nil {
		return nil, err
	}
	return program, nil
}

// ApplyProgram compiles the scoring path: persisted states are restored
// into their stateful workers, the dataset flows through the chain and
// the result is handed to the sink.
func ApplyProgram(
	pipeline flow.Pipeline,
	features domain.Dataset,
	readers map[string]StateReader,
	sink Publisher,
) (*Program, error) {
	if len(pipeline) == 0 {
		return nil, errors.WithStack(domain.ErrInvalidPipeline)
	}
	program := NewProgram()

	current, err := program.Add(Loader("features", features))
	if err != nil {
		return nil, err
	}

	for _, worker := range pipeline {
		if flow.IsStateful(worker.Actor) {
			reader, ok := readers[worker.Name]
			if !ok {
				return nil, errors.Wrapf(domain.ErrNotTrained, "no state for step %q", worker.Name)
			}
			restored, err := program.Add(Restore(worker, reader))
			if err != nil {
				return nil, err
			}
			current, err = program.Add(Apply(worker), current, restored)
			if err != nil {
				return nil, err
			}
			continue
		}
		current, err = program.Add(Apply(worker), current)
		if err != nil {
			return nil, err
		}
	}

	if _, err := program.Add(Publish(sink), current); err != nil {
		return nil, err
	}
	return program, nil
}
