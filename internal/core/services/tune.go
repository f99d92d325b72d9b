package services

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driving"
	"github.com/formlio/forml/internal/flow"
	"github.com/formlio/forml/internal/flow/compile"
	"github.com/formlio/forml/internal/logger"
)

const (
	defaultRounds  = 10
	defaultHoldout = 0.2
	defaultMetric  = "accuracy"
)

// Tune random-searches the descriptor's tuning space, scoring each
// candidate on a holdout split of the source data.
func (s *Lifecycle) Tune(ctx context.Context, req driving.TuneRequest) (driving.TuneReport, error) {
	p, l, err := s.directory.ResolveLineage(ctx, req.Project, req.Lineage)
	if err != nil {
		return driving.TuneReport{}, err
	}
	descriptor, _, err := s.assemble(ctx, p, l)
	if err != nil {
		return driving.TuneReport{}, err
	}
	if len(descriptor.Tuning) == 0 {
		return driving.TuneReport{}, fmt.Errorf("%w: descriptor declares no tuning space", domain.ErrInvalidManifest)
	}
	refs, err := tuningRefs(descriptor)
	if err != nil {
		return driving.TuneReport{}, err
	}

	features, labels, err := s.feed.Extract(ctx, descriptor.Source, nil, nil)
	if err != nil {
		return driving.TuneReport{}, err
	}
	if labels.Width() == 0 {
		return driving.TuneReport{}, fmt.Errorf("%w: label column %q not present in source",
			domain.ErrNotFound, descriptor.Source.Label)
	}
	holdout := descriptor.Evaluation.Holdout
	if holdout <= 0 || holdout >= 1 {
		holdout = defaultHoldout
	}
	cut := int(float64(features.Len()) * (1 - holdout))
	if cut < 1 || cut >= features.Len() {
		return driving.TuneReport{}, fmt.Errorf("%w: %d rows cannot be split for holdout evaluation",
			domain.ErrEmptyListing, features.Len())
	}
	trainX, holdX := features.Slice(0, cut), features.Slice(cut, features.Len())
	trainY, holdY := labels.Slice(0, cut), labels.Slice(cut, labels.Len())

	metric := descriptor.Evaluation.Metric
	if metric == "" {
		metric = defaultMetric
	}
	rounds := req.Rounds
	if rounds <= 0 {
		rounds = defaultRounds
	}
	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	logger.Info("Tuning %s/%s: %d rounds over %d parameters (%s)", p, l, rounds, len(refs), metric)
	best := math.Inf(-1)
	if metric == "rmse" {
		best = math.Inf(1)
	}
	var winner map[string]float64
	for round := 0; round < rounds; round++ {
		candidate := make(map[string]float64, len(refs))
		for _, ref := range refs {
			choices := descriptor.Tuning[ref]
			candidate[ref] = choices[rng.Intn(len(choices))]
		}
		steps, err := override(descriptor.Pipeline, candidate)
		if err != nil {
			return driving.TuneReport{}, err
		}
		score, err := s.evaluate(ctx, steps, metric, trainX, trainY, holdX, holdY)
		if err != nil {
			return driving.TuneReport{}, err
		}
		logger.Debug("round %d: %v -> %s=%.4f", round+1, candidate, metric, score)
		if improved(metric, score, best) || winner == nil {
			best, winner = score, candidate
		}
	}
	return driving.TuneReport{
		Project: p.String(),
		Lineage: l.String(),
		Rounds:  rounds,
		Params:  winner,
		Score:   best,
		Metric:  metric,
	}, nil
}

// tuningRefs validates and orders the "step.param" references of the
// tuning space.
func tuningRefs(descriptor domain.Descriptor) ([]string, error) {
	steps := make(map[string]bool, len(descriptor.Pipeline))
	for _, step := range descriptor.Pipeline {
		steps[step.Name] = true
	}
	refs := make([]string, 0, len(descriptor.Tuning))
	for ref, choices := range descriptor.Tuning {
		step, _, ok := strings.Cut(ref, ".")
		if !ok || !steps[step] {
			return nil, fmt.Errorf("%w: tuning reference %q", domain.ErrInvalidManifest, ref)
		}
		if len(choices) == 0 {
			return nil, fmt.Errorf("%w: tuning reference %q has no choices", domain.ErrInvalidManifest, ref)
		}
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs, nil
}

// override returns a copy of the steps with the candidate parameter
// values applied.
func override(steps []domain.Step, candidate map[string]float64) ([]domain.Step, error) {
	out := make([]domain.Step, len(steps))
	for i, step := range steps {
		params := make(map[string]float64, len(step.Params))
		for k, v := range step.Params {
			params[k] = v
		}
		out[i] = domain.Step{Name: step.Name, Params: params}
	}
	for ref, value := range candidate {
		step, param, _ := strings.Cut(ref, ".")
		applied := false
		for i := range out {
			if out[i].Name == step {
				out[i].Params[param] = value
				applied = true
			}
		}
		if !applied {
			return nil, fmt.Errorf("%w: tuning reference %q", domain.ErrInvalidManifest, ref)
		}
	}
	return out, nil
}

// evaluate fits a candidate pipeline on the training split and scores
// it on the holdout, keeping all state in memory.
func (s *Lifecycle) evaluate(
	ctx context.Context,
	steps []domain.Step,
	metric string,
	trainX, trainY, holdX, holdY domain.Dataset,
) (float64, error) {
	pipeline, err := flow.Build(steps, s.factory)
	if err != nil {
		return 0, err
	}

	var mu sync.Mutex
	staged := make(map[string][]byte)
	writer := func(_ context.Context, state []byte) (string, error) {
		sid := uuid.NewString()
		mu.Lock()
		staged[sid] = state
		mu.Unlock()
		return sid, nil
	}
	program, err := compile.TrainProgram(pipeline, trainX, trainY, 0, writer)
	if err != nil {
		return 0, err
	}
	results, err := s.runner.Run(ctx, program)
	if err != nil {
		return 0, err
	}
	tag, ok := results[program.Terminal].(domain.Tag)
	if !ok {
		return 0, fmt.Errorf("candidate training produced no tag")
	}

	// Fresh actor instances so the fitted training state never leaks
	// into the scoring pass.
	scoring, err := flow.Build(steps, s.factory)
	if err != nil {
		return 0, err
	}
	readers, err := memoryReaders(scoring, tag, staged)
	if err != nil {
		return 0, err
	}
	var output domain.Dataset
	publisher := func(_ context.Context, result domain.Dataset) error {
		output = result
		return nil
	}
	apply, err := compile.ApplyProgram(scoring, holdX, readers, publisher)
	if err != nil {
		return 0, err
	}
	if _, err := s.runner.Run(ctx, apply); err != nil {
		return 0, err
	}
	return score(metric, output, holdY)
}

// memoryReaders pairs the tag's states with the pipeline's stateful
// workers, serving the blobs from the staging map.
func memoryReaders(pipeline flow.Pipeline, tag domain.Tag, staged map[string][]byte) (map[string]compile.StateReader, error) {
	stateful := pipeline.Stateful()
	if len(stateful) != len(tag.States) {
		return nil, fmt.Errorf("%w: %d states for %d stateful steps",
			domain.ErrNotTrained, len(tag.States), len(stateful))
	}
	readers := make(map[string]compile.StateReader, len(stateful))
	for i, name := range stateful {
		sid := tag.States[i]
		readers[name] = func(context.Context) ([]byte, error) {
			state, ok := staged[sid]
			if !ok {
				return nil, fmt.Errorf("%w: state %s", domain.ErrNotFound, sid)
			}
			return state, nil
		}
	}
	return readers, nil
}

// score compares the predictions against the holdout truth.
func score(metric string, output, truth domain.Dataset) (float64, error) {
	if output.Len() != truth.Len() || output.Len() == 0 {
		return 0, fmt.Errorf("%w: %d predictions for %d holdout rows",
			domain.ErrEmptyListing, output.Len(), truth.Len())
	}
	col := output.Column("prediction")
	if col < 0 {
		col = output.Width() - 1
	}
	switch metric {
	case "accuracy", "":
		hits := 0
		for i, row := range output.Rows {
			if row[col] == truth.Rows[i][0] {
				hits++
			}
		}
		return float64(hits) / float64(output.Len()), nil
	case "rmse":
		var sum float64
		for i, row := range output.Rows {
			delta := row[col] - truth.Rows[i][0]
			sum += delta * delta
		}
		return math.Sqrt(sum / float64(output.Len())), nil
	default:
		return 0, fmt.Errorf("%w: metric %q", domain.ErrInvalidManifest, metric)
	}
}

// improved reports whether the candidate score beats the best so far
// under the given metric.
func improved(metric string, candidate, best float64) bool {
	if metric == "rmse" {
		return candidate < best
	}
	return candidate > best
}
