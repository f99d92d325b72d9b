package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
)

// Options carries the per-alias provider settings from the
// configuration, opaque to everything but the provider factory.
type Options map[string]any

// String returns the named option or the fallback when absent or not a
// string.
func (o Options) String(key, fallback string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return fallback
}

// Float returns the named option or the fallback. TOML decodes numbers
// as int64 or float64 depending on their spelling, both are accepted.
func (o Options) Float(key string, fallback float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return fallback
}

// Provider factories turn configured options into live providers.
type (
	RunnerFactory   func(opts Options) (driven.Runner, error)
	RegistryFactory func(opts Options) (driven.Registry, error)
	FeedFactory     func(opts Options) (driven.Feed, error)
	SinkFactory     func(opts Options) (driven.Sink, error)
)

// Bank maps provider aliases to their factories, one namespace per
// provider role.
type Bank struct {
	runners    map[string]RunnerFactory
	registries map[string]RegistryFactory
	feeds      map[string]FeedFactory
	sinks      map[string]SinkFactory
}

// NewBank creates an empty provider bank.
func NewBank() *Bank {
	return &Bank{
		runners:    make(map[string]RunnerFactory),
		registries: make(map[string]RegistryFactory),
		feeds:      make(map[string]FeedFactory),
		sinks:      make(map[string]SinkFactory),
	}
}

// RegisterRunner adds a runner provider under the given alias.
func (b *Bank) RegisterRunner(alias string, factory RunnerFactory) {
	b.runners[alias] = factory
}

// RegisterRegistry adds a registry provider under the given alias.
func (b *Bank) RegisterRegistry(alias string, factory RegistryFactory) {
	b.registries[alias] = factory
}

// RegisterFeed adds a feed provider under the given alias.
func (b *Bank) RegisterFeed(alias string, factory FeedFactory) {
	b.feeds[alias] = factory
}

// RegisterSink adds a sink provider under the given alias.
func (b *Bank) RegisterSink(alias string, factory SinkFactory) {
	b.sinks[alias] = factory
}

// Runner resolves a runner alias.
func (b *Bank) Runner(alias string, opts Options) (driven.Runner, error) {
	factory, ok := b.runners[alias]
	if !ok {
		return nil, unknown("runner", alias, aliases(b.runners))
	}
	return factory(opts)
}

// Registry resolves a registry alias.
func (b *Bank) Registry(alias string, opts Options) (driven.Registry, error) {
	factory, ok := b.registries[alias]
	if !ok {
		return nil, unknown("registry", alias, aliases(b.registries))
	}
	return factory(opts)
}

// Feed resolves a feed alias.
func (b *Bank) Feed(alias string, opts Options) (driven.Feed, error) {
	factory, ok := b.feeds[alias]
	if !ok {
		return nil, unknown("feed", alias, aliases(b.feeds))
	}
	return factory(opts)
}

// Sink resolves a sink alias.
func (b *Bank) Sink(alias string, opts Options) (driven.Sink, error) {
	factory, ok := b.sinks[alias]
	if !ok {
		return nil, unknown("sink", alias, aliases(b.sinks))
	}
	return factory(opts)
}

func unknown(role, alias string, available []string) error {
	return fmt.Errorf("%w: %s %q (available: %s)",
		domain.ErrUnknownProvider, role, alias, strings.Join(available, ", "))
}

func aliases[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for alias := range m {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}
