// Package feed implements the input data providers resolving a project
// source descriptor into feature and label datasets.
package feed

import (
	"fmt"
	"math"

	"github.com/formlio/forml/internal/core/domain"
)

// project splits a raw table into the feature matrix and optional label
// column described by the source, applying the ordinal bounds. Lower is
// exclusive (the ordinal already consumed by the previous training),
// upper is inclusive.
func project(data domain.Dataset, source domain.Source, lower, upper *float64) (domain.Dataset, domain.Dataset, error) {
	if err := source.Validate(); err != nil {
		return domain.Dataset{}, domain.Dataset{}, err
	}
	filtered, err := between(data, source.Ordinal, lower, upper)
	if err != nil {
		return domain.Dataset{}, domain.Dataset{}, err
	}
	features, err := filtered.Select(source.Features...)
	if err != nil {
		return domain.Dataset{}, domain.Dataset{}, err
	}
	var labels domain.Dataset
	if source.Label != "" && filtered.Column(source.Label) >= 0 {
		if labels, err = filtered.Select(source.Label); err != nil {
			return domain.Dataset{}, domain.Dataset{}, err
		}
	}
	return features, labels, nil
}

// between filters rows on the named ordinal column.
func between(data domain.Dataset, ordinal string, lower, upper *float64) (domain.Dataset, error) {
	if ordinal == "" || (lower == nil && upper == nil) {
		return data, nil
	}
	col := data.Column(ordinal)
	if col < 0 {
		return domain.Dataset{}, fmt.Errorf("%w: ordinal column %q", domain.ErrNotFound, ordinal)
	}
	out := domain.Dataset{Columns: data.Columns}
	for _, row := range data.Rows {
		value := row[col]
		if math.IsNaN(value) {
			continue
		}
		if lower != nil && value <= *lower {
			continue
		}
		if upper != nil && value > *upper {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
