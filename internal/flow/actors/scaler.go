package actors

import (
	"context"
	"encoding/json"
	"math"

	"github.com/pkg/errors"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/flow"
)

// scalerState is the serialized form of a fitted Scaler.
type scalerState struct {
	Means []float64 `json:"means"`
	Devs  []float64 `json:"devs"`
}

// Scaler standardizes features to zero mean and unit variance using
// moments observed during training.
type Scaler struct {
	state *scalerState
}

func newScaler(flow.Params) (flow.Actor, error) {
	return &Scaler{}, nil
}

// Train computes per-column mean and standard deviation.
func (a *Scaler) Train(_ context.Context, features, _ domain.Dataset) error {
	width := features.Width()
	state := &scalerState{Means: make([]float64, width), Devs: make([]float64, width)}
	n := float64(features.Len())
	if n == 0 {
		a.state = state
		return nil
	}
	for col := 0; col < width; col++ {
		var sum float64
		for _, row := range features.Rows {
			sum += row[col]
		}
		mean := sum / n
		var sq float64
		for _, row := range features.Rows {
			d := row[col] - mean
			sq += d * d
		}
		state.Means[col] = mean
		state.Devs[col] = math.Sqrt(sq / n)
	}
	a.state = state
	return nil
}

// Apply standardizes each cell; constant columns pass through shifted.
func (a *Scaler) Apply(_ context.Context, args ...domain.Dataset) (domain.Dataset, error) {
	if a.state == nil {
		return domain.Dataset{}, errors.Wrap(ErrNotFitted, "scaler")
	}
	if len(args) != 1 {
		return domain.Dataset{}, errors.New("scaler: expected single input")
	}
	in := args[0]
	out := domain.Dataset{Columns: in.Columns, Rows: make([][]float64, len(in.Rows))}
	for r, row := range in.Rows {
		scaled := make([]float64, len(row))
		for c, v := range row {
			mean, dev := 0.0, 1.0
			if c < len(a.state.Means) {
				mean = a.state.Means[c]
				if a.state.Devs[c] > 0 {
					dev = a.state.Devs[c]
				}
			}
			scaled[c] = (v - mean) / dev
		}
		out.Rows[r] = scaled
	}
	return out, nil
}

// State serializes the fitted moments.
func (a *Scaler) State() ([]byte, error) {
	if a.state == nil {
		return nil, errors.Wrap(ErrNotFitted, "scaler")
	}
	return json.Marshal(a.state)
}

// SetState restores previously fitted moments.
func (a *Scaler) SetState(state []byte) error {
	restored := &scalerState{}
	if err := json.Unmarshal(state, restored); err != nil {
		return err
	}
	a.state = restored
	return nil
}
