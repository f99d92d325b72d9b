package domain

import "fmt"

// PackageFormat is the file suffix of a distributable project archive.
const PackageFormat = "4ml"

// Manifest is the metadata embedded in every project package.
type Manifest struct {
	// Name is the project key the package belongs to.
	Name Project

	// Version is the lineage key the package establishes when pushed.
	Version Version
}

// Validate checks both manifest keys are populated.
func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidManifest)
	}
	if m.Version.IsZero() {
		return fmt.Errorf("%w: missing version", ErrInvalidManifest)
	}
	return nil
}

func (m Manifest) String() string {
	return fmt.Sprintf("%s-%s", m.Name, m.Version)
}

// Package is a project distribution - an archive (or unpacked directory)
// plus its parsed manifest.
type Package struct {
	// Path points at the .4ml archive or an unpacked project directory.
	Path string

	// Manifest is the metadata read from the archive.
	Manifest Manifest
}

// Step is one pipeline stage reference in a project descriptor -
// a component name from the catalog plus its hyperparameters.
type Step struct {
	Name   string
	Params map[string]float64
}

// Evaluation configures how tune mode scores candidate parameters.
type Evaluation struct {
	// Metric names the scoring function ("accuracy" or "rmse").
	Metric string

	// Holdout is the fraction of training rows withheld for scoring.
	Holdout float64
}

// Descriptor is the project definition carried inside a package:
// where data comes from, what the pipeline is made of and how it is
// evaluated and tuned.
type Descriptor struct {
	Source     Source
	Pipeline   []Step
	Evaluation Evaluation

	// Tuning maps "step.param" references to candidate values searched
	// by tune mode.
	Tuning map[string][]float64
}

// Validate checks the descriptor composes a non-empty pipeline over a
// valid source.
func (d Descriptor) Validate() error {
	if err := d.Source.Validate(); err != nil {
		return err
	}
	if len(d.Pipeline) == 0 {
		return fmt.Errorf("%w: empty pipeline", ErrInvalidPipeline)
	}
	for _, step := range d.Pipeline {
		if step.Name == "" {
			return fmt.Errorf("%w: unnamed step", ErrInvalidPipeline)
		}
	}
	return nil
}
