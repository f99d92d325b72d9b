package actors

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/flow"
)

// Centroid is a nearest-centroid classifier: training averages the
// feature vectors per label, apply predicts the label of the closest
// centroid.
type Centroid struct {
	// centroids maps the label (rendered as a string for JSON map
	// keys) to its mean feature vector.
	centroids map[string][]float64
}

func newCentroid(flow.Params) (flow.Actor, error) {
	return &Centroid{}, nil
}

// Train averages feature rows per label value.
func (a *Centroid) Train(_ context.Context, features, labels domain.Dataset) error {
	if labels.Len() != features.Len() {
		return errors.Errorf("centroid: %d feature rows vs %d labels", features.Len(), labels.Len())
	}
	sums := make(map[string][]float64)
	counts := make(map[string]int)
	for i, row := range features.Rows {
		if len(labels.Rows[i]) == 0 {
			return errors.New("centroid: empty label row")
		}
		key := strconv.FormatFloat(labels.Rows[i][0], 'g', -1, 64)
		if sums[key] == nil {
			sums[key] = make([]float64, len(row))
		}
		for c, v := range row {
			sums[key][c] += v
		}
		counts[key]++
	}
	centroids := make(map[string][]float64, len(sums))
	for key, sum := range sums {
		mean := make([]float64, len(sum))
		for c, v := range sum {
			mean[c] = v / float64(counts[key])
		}
		centroids[key] = mean
	}
	a.centroids = centroids
	return nil
}

// Apply emits a single "prediction" column with the nearest centroid label.
func (a *Centroid) Apply(_ context.Context, args ...domain.Dataset) (domain.Dataset, error) {
	if a.centroids == nil {
		return domain.Dataset{}, errors.Wrap(ErrNotFitted, "centroid")
	}
	if len(args) != 1 {
		return domain.Dataset{}, errors.New("centroid: expected single input")
	}

	// Stable iteration order keeps distance ties deterministic.
	keys := make([]string, 0, len(a.centroids))
	for key := range a.centroids {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	in := args[0]
	out := domain.Dataset{Columns: []string{"prediction"}, Rows: make([][]float64, len(in.Rows))}
	for r, row := range in.Rows {
		var best float64
		bestDistance := -1.0
		for _, key := range keys {
			d := euclidean(row, a.centroids[key])
			if bestDistance < 0 || d < bestDistance {
				label, err := strconv.ParseFloat(key, 64)
				if err != nil {
					return domain.Dataset{}, errors.Wrap(err, "centroid: corrupt label")
				}
				best, bestDistance = label, d
			}
		}
		out.Rows[r] = []float64{best}
	}
	return out, nil
}

// State serializes the fitted centroids.
func (a *Centroid) State() ([]byte, error) {
	if a.centroids == nil {
		return nil, errors.Wrap(ErrNotFitted, "centroid")
	}
	return json.Marshal(a.centroids)
}

// SetState restores previously fitted centroids.
func (a *Centroid) SetState(state []byte) error {
	return json.Unmarshal(state, &a.centroids)
}
