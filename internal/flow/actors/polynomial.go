package actors

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/flow"
)

// Polynomial is a stateless feature expander raising every column to
// the powers 1..degree.
type Polynomial struct {
	degree int
}

func newPolynomial(params flow.Params) (flow.Actor, error) {
	degree := int(params.Get("degree", 2))
	if degree < 1 {
		return nil, errors.Errorf("polynomial: degree must be positive, got %d", degree)
	}
	return &Polynomial{degree: degree}, nil
}

// Apply expands each input column into degree power columns.
func (a *Polynomial) Apply(_ context.Context, args ...domain.Dataset) (domain.Dataset, error) {
	if len(args) != 1 {
		return domain.Dataset{}, errors.New("polynomial: expected single input")
	}
	in := args[0]
	columns := make([]string, 0, in.Width()*a.degree)
	for _, name := range in.Columns {
		columns = append(columns, name)
		for p := 2; p <= a.degree; p++ {
			columns = append(columns, fmt.Sprintf("%s^%d", name, p))
		}
	}
	out := domain.Dataset{Columns: columns, Rows: make([][]float64, len(in.Rows))}
	for r, row := range in.Rows {
		expanded := make([]float64, 0, len(columns))
		for _, v := range row {
			expanded = append(expanded, v)
			for p := 2; p <= a.degree; p++ {
				expanded = append(expanded, math.Pow(v, float64(p)))
			}
		}
		out.Rows[r] = expanded
	}
	return out, nil
}
