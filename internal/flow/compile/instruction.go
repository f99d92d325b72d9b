package compile

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/flow"
	"github.com/formlio/forml/internal/logger"
)

// Instruction is the callable part of a symbol.
type Instruction interface {
	fmt.Stringer

	// Execute runs the instruction on the results of its argument
	// symbols, in argument order.
	Execute(ctx context.Context, args ...any) (any, error)
}

// StateReader loads one persisted state blob.
type StateReader func(ctx context.Context) ([]byte, error)

// StateWriter stages one state blob and returns its assigned ID.
type StateWriter func(ctx context.Context, state []byte) (string, error)

// Publisher pushes an output dataset to a sink.
type Publisher func(ctx context.Context, output domain.Dataset) error

// token is the result of side-effecting instructions; it exists only
// to carry ordering dependencies between symbols.
type token struct{}

// datasets filters instruction arguments down to the dataset payloads,
// skipping ordering tokens and state bytes.
func datasets(args []any) []domain.Dataset {
	var out []domain.Dataset
	for _, arg := range args {
		if ds, ok := arg.(domain.Dataset); ok {
			out = append(out, ds)
		}
	}
	return out
}

// loader injects a constant dataset into the program.
type loader struct {
	name  string
	value domain.Dataset
}

// Loader returns an instruction producing the given dataset.
func Loader(name string, value domain.Dataset) Instruction {
	return &loader{name: name, value: value}
}

func (i *loader) String() string { return fmt.Sprintf("loader[%s]", i.name) }

func (i *loader) Execute(_ context.Context, _ ...any) (any, error) {
	return i.value, nil
}

// applier invokes a worker's apply path.
type applier struct {
	worker flow.Worker
}

// Apply returns an instruction running the worker's Apply on its
// dataset arguments.
func Apply(worker flow.Worker) Instruction {
	return &applier{worker: worker}
}

func (i *applier) String() string { return fmt.Sprintf("apply[%s]", i.worker.Name) }

func (i *applier) Execute(ctx context.Context, args ...any) (any, error) {
	start := time.Now()
	out, err := i.worker.Actor.Apply(ctx, datasets(args)...)
	if err != nil {
		return nil, errors.Wrapf(err, "apply %s", i.worker.Name)
	}
	logger.Debug("%s completed (%.2fms)", i, float64(time.Since(start).Microseconds())/1000)
	return out, nil
}

// trainer fits a stateful worker and emits its serialized state.
type trainer struct {
	worker flow.Worker
}

// Train returns an instruction fitting the worker on (features, labels)
// and producing the resulting state bytes.
func Train(worker flow.Worker) Instruction {
	return &trainer{worker: worker}
}

func (i *trainer) String() string { return fmt.Sprintf("train[%s]", i.worker.Name) }

func (i *trainer) Execute(ctx context.Context, args ...any) (any, error) {
	stateful, ok := i.worker.Actor.(flow.Stateful)
	if !ok {
		return nil, errors.Errorf("train %s: actor is stateless", i.worker.Name)
	}
	data := datasets(args)
	if len(data) != 2 {
		return nil, errors.Errorf("train %s: expected features and labels, got %d args", i.worker.Name, len(data))
	}
	start := time.Now()
	if err := stateful.Train(ctx, data[0], data[1]); err != nil {
		return nil, errors.Wrapf(err, "train %s", i.worker.Name)
	}
	logger.Debug("%s completed (%.2fms)", i, float64(time.Since(start).Microseconds())/1000)
	state, err := stateful.State()
	if err != nil {
		return nil, errors.Wrapf(err, "train %s: state", i.worker.Name)
	}
	return state, nil
}

// restorer loads persisted state into a stateful worker.
type restorer struct {
	worker flow.Worker
	reader StateReader
}

// Restore returns an instruction reading a state blob and restoring it
// into the worker. Its token result orders the downstream apply.
func Restore(worker flow.Worker, reader StateReader) Instruction {
	return &restorer{worker: worker, reader: reader}
}

func (i *restorer) String() string { return fmt.Sprintf("restore[%s]", i.worker.Name) }

func (i *restorer) Execute(ctx context.Context, _ ...any) (any, error) {
	stateful, ok := i.worker.Actor.(flow.Stateful)
	if !ok {
		return nil, errors.Errorf("restore %s: actor is stateless", i.worker.Name)
	}
	state, err := i.reader(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "restore %s", i.worker.Name)
	}
	if err := stateful.SetState(state); err != nil {
		return nil, errors.Wrapf(err, "restore %s", i.worker.Name)
	}
	return token{}, nil
}

// dumper persists state bytes through a writer.
type dumper struct {
	name   string
	writer StateWriter
}

// Dump returns an instruction staging its state-bytes argument and
// producing the assigned state ID.
func Dump(name string, writer StateWriter) Instruction {
	return &dumper{name: name, writer: writer}
}

func (i *dumper) String() string { return fmt.Sprintf("dump[%s]", i.name) }

func (i *dumper) Execute(ctx context.Context, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, errors.Errorf("dump %s: expected single state argument", i.name)
	}
	state, ok := args[0].([]byte)
	if !ok {
		return nil, errors.Errorf("dump %s: state argument is not bytes", i.name)
	}
	sid, err := i.writer(ctx, state)
	if err != nil {
		return nil, errors.Wrapf(err, "dump %s", i.name)
	}
	return sid, nil
}

// committer closes a training run into a generation tag.
type committer struct {
	ordinal float64
}

// Commit returns an instruction assembling the staged state IDs into a
// tag stamped with the training event.
func Commit(ordinal float64) Instruction {
	return &committer{ordinal: ordinal}
}

func (i *committer) String() string { return "commit" }

func (i *committer) Execute(_ context.Context, args ...any) (any, error) {
	states := make([]string, 0, len(args))
	for _, arg := range args {
		sid, ok := arg.(string)
		if !ok {
			return nil, errors.Errorf("commit: state id argument is not a string")
		}
		states = append(states, sid)
	}
	return domain.Tag{
		Training: domain.Event{Timestamp: time.Now().UTC(), Ordinal: i.ordinal},
		States:   states,
	}, nil
}

// publisher pushes the final dataset to a sink.
type publisher struct {
	sink Publisher
}

// Publish returns an instruction handing its dataset argument to the sink.
func Publish(sink Publisher) Instruction {
	return &publisher{sink: sink}
}

func (i *publisher) String() string { return "publish" }

func (i *publisher) Execute(ctx context.Context, args ...any) (any, error) {
	data := datasets(args)
	if len(data) != 1 {
		return nil, errors.Errorf("publish: expected single dataset argument")
	}
	if err := i.sink(ctx, data[0]); err != nil {
		return nil, errors.Wrap(err, "publish")
	}
	return data[0], nil
}
