package actors

import (
	"context"
	"encoding/json"
	"math"

	"github.com/pkg/errors"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/flow"
)

// ErrNotFitted indicates apply was invoked on a stateful actor whose
// state was never trained or restored.
var ErrNotFitted = errors.New("actor not fitted")

// Imputer replaces missing values (NaN) with the column mean observed
// during training.
type Imputer struct {
	means []float64
}

func newImputer(flow.Params) (flow.Actor, error) {
	return &Imputer{}, nil
}

// Train computes per-column means over the non-missing values.
func (a *Imputer) Train(_ context.Context, features, _ domain.Dataset) error {
	a.means = make([]float64, features.Width())
	for col := range a.means {
		var sum float64
		var count int
		for _, row := range features.Rows {
			if !math.IsNaN(row[col]) {
				sum += row[col]
				count++
			}
		}
		if count > 0 {
			a.means[col] = sum / float64(count)
		}
	}
	return nil
}

// Apply substitutes missing cells with the trained means.
func (a *Imputer) Apply(_ context.Context, args ...domain.Dataset) (domain.Dataset, error) {
	if a.means == nil {
		return domain.Dataset{}, errors.Wrap(ErrNotFitted, "imputer")
	}
	if len(args) != 1 {
		return domain.Dataset{}, errors.New("imputer: expected single input")
	}
	in := args[0]
	out := domain.Dataset{Columns: in.Columns, Rows: make([][]float64, len(in.Rows))}
	for r, row := range in.Rows {
		filled := make([]float64, len(row))
		for c, v := range row {
			if math.IsNaN(v) && c < len(a.means) {
				filled[c] = a.means[c]
			} else {
				filled[c] = v
			}
		}
		out.Rows[r] = filled
	}
	return out, nil
}

// State serializes the fitted means.
func (a *Imputer) State() ([]byte, error) {
	return json.Marshal(a.means)
}

// SetState restores previously fitted means.
func (a *Imputer) SetState(state []byte) error {
	return json.Unmarshal(state, &a.means)
}
