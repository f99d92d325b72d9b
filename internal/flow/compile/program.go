package compile

import (
	"github.com/dominikbraun/graph"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrUnknownSymbol indicates a symbol argument referencing an ID the
// program never defined.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Symbol is one schedulable unit: an instruction plus the IDs of the
// symbols whose results feed it, in argument order.
type Symbol struct {
	ID          uuid.UUID
	Instruction Instruction
	Args        []uuid.UUID
}

// Results maps symbol IDs to their computed values after a run.
type Results map[uuid.UUID]any

// Program is an immutable-once-built set of symbols with their
// dependency DAG. Terminal identifies the symbol whose result is the
// outcome of the run (a tag in train mode, a publish token in apply).
type Program struct {
	symbols  []Symbol
	index    map[uuid.UUID]int
	dag      graph.Graph[string, string]
	Terminal uuid.UUID
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{
		index: make(map[uuid.UUID]int),
		dag:   graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
	}
}

// Add appends a symbol consuming the given argument symbols. Arguments
// must already be part of the program, which keeps the structure
// acyclic by construction; the DAG guard is kept as a second line for
// future non-linear composition.
func (p *Program) Add(instruction Instruction, args ...uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	if err := p.dag.AddVertex(id.String()); err != nil {
		return uuid.Nil, errors.Wrapf(err, "adding symbol %s", instruction)
	}
	for _, arg := range args {
		if _, ok := p.index[arg]; !ok {
			return uuid.Nil, errors.Wrapf(ErrUnknownSymbol, "argument %s of %s", arg, instruction)
		}
		if err := p.dag.AddEdge(arg.String(), id.String()); err != nil {
			return uuid.Nil, errors.Wrapf(err, "linking %s", instruction)
		}
	}
	p.index[id] = len(p.symbols)
	p.symbols = append(p.symbols, Symbol{ID: id, Instruction: instruction, Args: args})
	p.Terminal = id
	return id, nil
}

// Len returns the number of symbols.
func (p *Program) Len() int {
	return len(p.symbols)
}

// Symbols returns the symbols in definition order.
func (p *Program) Symbols() []Symbol {
	return p.symbols
}

// Symbol returns the symbol with the given ID.
func (p *Program) Symbol(id uuid.UUID) (Symbol, error) {
	i, ok := p.index[id]
	if !ok {
		return Symbol{}, errors.Wrapf(ErrUnknownSymbol, "%s", id)
	}
	return p.symbols[i], nil
}

// Sorted returns the symbols in a valid execution order derived from
// the dependency DAG.
func (p *Program) Sorted() ([]Symbol, error) {
	order, err := graph.TopologicalSort(p.dag)
	if err != nil {
		return nil, errors.Wrap(err, "sorting program")
	}
	sorted := make([]Symbol, 0, len(p.symbols))
	for _, vertex := range order {
		id, err := uuid.Parse(vertex)
		if err != nil {
			return nil, errors.Wrap(err, "sorting program")
		}
		symbol, err := p.Symbol(id)
		if err != nil {
			return nil, err
		}
		sorted = append(sorted, symbol)
	}
	return sorted, nil
}

// Dependents returns, for every symbol, the IDs of the symbols that
// consume its result. Used by concurrent runners for scheduling.
func (p *Program) Dependents() map[uuid.UUID][]uuid.UUID {
	out := make(map[uuid.UUID][]uuid.UUID, len(p.symbols))
	for _, symbol := range p.symbols {
		for _, arg := range symbol.Args {
			out[arg] = append(out[arg], symbol.ID)
		}
	}
	return out
}
