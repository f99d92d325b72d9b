package driven

import (
	"context"

	"github.com/formlio/forml/internal/core/domain"
)

// Feed resolves a project source descriptor into input datasets.
type Feed interface {
	// Extract returns the feature matrix and, when the source declares
	// a label column present in the data, the label column. Lower and
	// upper bound the source's ordinal column when non-nil.
	Extract(ctx context.Context, source domain.Source, lower, upper *float64) (features, labels domain.Dataset, err error)
}
