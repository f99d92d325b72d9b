package driving

import "context"

// TrainRequest parametrizes a training run.
type TrainRequest struct {
	// Project is the mandatory project key.
	Project string

	// Lineage optionally pins a lineage version; empty means latest.
	Lineage string

	// Lower and Upper optionally bound the source ordinal column.
	Lower *float64
	Upper *float64
}

// TrainReport summarizes a committed training run.
type TrainReport struct {
	Project    string
	Lineage    string
	Generation int
	States     int
}

// ApplyRequest parametrizes a scoring run.
type ApplyRequest struct {
	Project string

	// Lineage and Generation pin the model instance; empty means latest.
	Lineage    string
	Generation string
}

// ApplyReport summarizes a scoring run.
type ApplyReport struct {
	Project    string
	Lineage    string
	Generation int
	Rows       int
}

// TuneRequest parametrizes a hyperparameter sweep.
type TuneRequest struct {
	Project string
	Lineage string

	// Rounds is the number of random-search candidates; non-positive
	// falls back to the service default.
	Rounds int

	// Seed makes the sweep reproducible when non-zero.
	Seed int64
}

// TuneReport carries the winning candidate of a sweep.
type TuneReport struct {
	Project string
	Lineage string
	Rounds  int

	// Params maps "step.param" references to the best found values.
	Params map[string]float64

	// Score is the evaluation metric of the winning candidate.
	Score float64

	// Metric names the scoring function the sweep optimized.
	Metric string
}

// UploadReport identifies the lineage established by an upload.
type UploadReport struct {
	Project string
	Lineage string
}

// Lifecycle is the driving port behind every CLI command: the
// documented project lifecycle operations.
type Lifecycle interface {
	// Init scaffolds a new project skeleton under dir and returns the
	// created path.
	Init(ctx context.Context, name, dir string) (string, error)

	// List enumerates registry content: projects when both keys are
	// empty, lineages of a project, or generations of a lineage.
	List(ctx context.Context, project, lineage string) ([]string, error)

	// Train fits a new generation and commits it to the registry.
	Train(ctx context.Context, req TrainRequest) (TrainReport, error)

	// Apply scores fresh data with a committed generation.
	Apply(ctx context.Context, req ApplyRequest) (ApplyReport, error)

	// Tune random-searches the descriptor's tuning space.
	Tune(ctx context.Context, req TuneRequest) (TuneReport, error)

	// Upload packages a project tree and pushes it to the registry.
	Upload(ctx context.Context, path string) (UploadReport, error)
}
