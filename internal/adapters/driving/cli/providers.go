package cli

import (
	"os"
	"path/filepath"

	"github.com/formlio/forml/internal/core/ports/driven"
	"github.com/formlio/forml/internal/core/services"
	"github.com/formlio/forml/internal/io/feed"
	"github.com/formlio/forml/internal/io/sink"
	"github.com/formlio/forml/internal/registry/filesystem"
	"github.com/formlio/forml/internal/registry/memory"
	"github.com/formlio/forml/internal/registry/sqlite"
	"github.com/formlio/forml/internal/runner"
)

// defaultBank registers every built-in provider under its alias.
func defaultBank() *services.Bank {
	bank := services.NewBank()

	bank.RegisterRunner("local", func(opts services.Options) (driven.Runner, error) {
		return runner.NewLocal(int(opts.Float("parallelism", 0))), nil
	})
	bank.RegisterRunner("serial", func(services.Options) (driven.Runner, error) {
		return runner.NewSerial(), nil
	})

	bank.RegisterRegistry("filesystem", func(opts services.Options) (driven.Registry, error) {
		return filesystem.New(opts.String("path", fallbackPath("registry")))
	})
	bank.RegisterRegistry("sqlite", func(opts services.Options) (driven.Registry, error) {
		return sqlite.New(opts.String("path", fallbackPath("registry.db")))
	})
	bank.RegisterRegistry("memory", func(services.Options) (driven.Registry, error) {
		return memory.New(), nil
	})

	bank.RegisterFeed("csv", func(opts services.Options) (driven.Feed, error) {
		return feed.NewCSV(opts.String("root", "."), opts.Float("rate", 0)), nil
	})
	bank.RegisterFeed("memory", func(services.Options) (driven.Feed, error) {
		return feed.NewMemory(), nil
	})

	bank.RegisterSink("stdout", func(services.Options) (driven.Sink, error) {
		return sink.NewStdout(nil), nil
	})
	bank.RegisterSink("csv", func(opts services.Options) (driven.Sink, error) {
		return sink.NewCSV(opts.String("path", "predictions.csv")), nil
	})
	bank.RegisterSink("null", func(services.Options) (driven.Sink, error) {
		return sink.NewNull(), nil
	})

	return bank
}

// fallbackPath places unconfigured registry storage under the user's
// forml directory.
func fallbackPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".forml", name)
	}
	return filepath.Join(home, ".forml", name)
}
