package driven

import (
	"context"

	"github.com/formlio/forml/internal/core/domain"
)

// Sink consumes the output of an apply run.
type Sink interface {
	Publish(ctx context.Context, output domain.Dataset) error
}
