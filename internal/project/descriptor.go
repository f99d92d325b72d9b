package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/formlio/forml/internal/core/domain"
)

// descriptorFile is the TOML shape of project.toml.
type descriptorFile struct {
	Source     sourceSection        `toml:"source"`
	Pipeline   []stepSection        `toml:"pipeline"`
	Evaluation evaluationSection    `toml:"evaluation"`
	Tuning     map[string][]float64 `toml:"tuning,omitempty"`
}

type sourceSection struct {
	Query    string   `toml:"query"`
	Features []string `toml:"features"`
	Label    string   `toml:"label,omitempty"`
	Ordinal  string   `toml:"ordinal,omitempty"`
}

type stepSection struct {
	Name   string             `toml:"name"`
	Params map[string]float64 `toml:"params,omitempty"`
}

type evaluationSection struct {
	Metric  string  `toml:"metric,omitempty"`
	Holdout float64 `toml:"holdout,omitempty"`
}

// ReadDescriptor loads and validates project.toml from a project tree.
func ReadDescriptor(root string) (domain.Descriptor, error) {
	raw, err := os.ReadFile(filepath.Join(root, DescriptorFile))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Descriptor{}, fmt.Errorf("%w: no %s in %s", domain.ErrInvalidManifest, DescriptorFile, root)
		}
		return domain.Descriptor{}, fmt.Errorf("reading descriptor: %w", err)
	}
	var file descriptorFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return domain.Descriptor{}, fmt.Errorf("%w: %v", domain.ErrInvalidManifest, err)
	}
	descriptor := domain.Descriptor{
		Source: domain.Source{
			Query:    file.Source.Query,
			Features: file.Source.Features,
			Label:    file.Source.Label,
			Ordinal:  file.Source.Ordinal,
		},
		Evaluation: domain.Evaluation{Metric: file.Evaluation.Metric, Holdout: file.Evaluation.Holdout},
		Tuning:     file.Tuning,
	}
	for _, step := range file.Pipeline {
		descriptor.Pipeline = append(descriptor.Pipeline, domain.Step{Name: step.Name, Params: step.Params})
	}
	if err := descriptor.Validate(); err != nil {
		return domain.Descriptor{}, err
	}
	return descriptor, nil
}

// WriteDescriptor stores a descriptor as project.toml under dir.
func WriteDescriptor(dir string, descriptor domain.Descriptor) error {
	if err := descriptor.Validate(); err != nil {
		return err
	}
	file := descriptorFile{
		Source: sourceSection{
			Query:    descriptor.Source.Query,
			Features: descriptor.Source.Features,
			Label:    descriptor.Source.Label,
			Ordinal:  descriptor.Source.Ordinal,
		},
		Evaluation: evaluationSection{Metric: descriptor.Evaluation.Metric, Holdout: descriptor.Evaluation.Holdout},
		Tuning:     descriptor.Tuning,
	}
	for _, step := range descriptor.Pipeline {
		file.Pipeline = append(file.Pipeline, stepSection{Name: step.Name, Params: step.Params})
	}
	raw, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("serializing descriptor: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, DescriptorFile), raw, 0o600)
}
