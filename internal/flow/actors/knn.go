package actors

import (
	"context"
	"encoding/json"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/flow"
)

// knnState is the serialized form of a fitted KNN.
type knnState struct {
	Rows   [][]float64 `json:"rows"`
	Labels []float64   `json:"labels"`
}

// KNN is a k-nearest-neighbours classifier: training memorizes the
// dataset, apply predicts by majority vote among the k closest rows
// under Euclidean distance.
type KNN struct {
	k     int
	state *knnState
}

func newKNN(params flow.Params) (flow.Actor, error) {
	k := int(params.Get("k", 3))
	if k < 1 {
		return nil, errors.Errorf("knn: k must be positive, got %d", k)
	}
	return &KNN{k: k}, nil
}

// Train memorizes the training rows and their labels.
func (a *KNN) Train(_ context.Context, features, labels domain.Dataset) error {
	if labels.Len() != features.Len() {
		return errors.Errorf("knn: %d feature rows vs %d labels", features.Len(), labels.Len())
	}
	state := &knnState{Rows: features.Rows, Labels: make([]float64, labels.Len())}
	for i, row := range labels.Rows {
		if len(row) == 0 {
			return errors.New("knn: empty label row")
		}
		state.Labels[i] = row[0]
	}
	a.state = state
	return nil
}

// Apply emits a single "prediction" column with the majority label of
// the k nearest memorized rows.
func (a *KNN) Apply(_ context.Context, args ...domain.Dataset) (domain.Dataset, error) {
	if a.state == nil {
		return domain.Dataset{}, errors.Wrap(ErrNotFitted, "knn")
	}
	if len(args) != 1 {
		return domain.Dataset{}, errors.New("knn: expected single input")
	}
	in := args[0]
	out := domain.Dataset{Columns: []string{"prediction"}, Rows: make([][]float64, len(in.Rows))}
	for r, row := range in.Rows {
		out.Rows[r] = []float64{a.predict(row)}
	}
	return out, nil
}

func (a *KNN) predict(row []float64) float64 {
	type neighbour struct {
		distance float64
		label    float64
	}
	neighbours := make([]neighbour, len(a.state.Rows))
	for i, kept := range a.state.Rows {
		neighbours[i] = neighbour{distance: euclidean(row, kept), label: a.state.Labels[i]}
	}
	sort.Slice(neighbours, func(i, j int) bool {
		if neighbours[i].distance != neighbours[j].distance {
			return neighbours[i].distance < neighbours[j].distance
		}
		return neighbours[i].label < neighbours[j].label
	})
	k := a.k
	if k > len(neighbours) {
		k = len(neighbours)
	}
	votes := make(map[float64]int)
	for _, n := range neighbours[:k] {
		votes[n.label]++
	}
	best, bestCount := 0.0, -1
	for label, count := range votes {
		if count > bestCount || (count == bestCount && label < best) {
			best, bestCount = label, count
		}
	}
	return best
}

func euclidean(a, b []float64) float64 {
	size := len(a)
	if len(b) < size {
		size = len(b)
	}
	var sum float64
	for i := 0; i < size; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// State serializes the memorized dataset.
func (a *KNN) State() ([]byte, error) {
	if a.state == nil {
		return nil, errors.Wrap(ErrNotFitted, "knn")
	}
	return json.Marshal(a.state)
}

// SetState restores a memorized dataset.
func (a *KNN) SetState(state []byte) error {
	restored := &knnState{}
	if err := json.Unmarshal(state, restored); err != nil {
		return err
	}
	a.state = restored
	return nil
}
