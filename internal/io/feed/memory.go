package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
)

// Ensure Memory implements the interface.
var _ driven.Feed = (*Memory)(nil)

// Memory is a feed serving datasets registered in-process, used for
// tests and tutorials. The source query is the table name.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]domain.Dataset
}

// NewMemory creates an empty memory feed.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]domain.Dataset)}
}

// Add registers a table under the given name.
func (f *Memory) Add(name string, data domain.Dataset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = data
}

// Extract implements driven.Feed.
func (f *Memory) Extract(_ context.Context, source domain.Source, lower, upper *float64) (domain.Dataset, domain.Dataset, error) {
	f.mu.RLock()
	data, ok := f.tables[source.Query]
	f.mu.RUnlock()
	if !ok {
		return domain.Dataset{}, domain.Dataset{}, fmt.Errorf("%w: source %s", domain.ErrNotFound, source.Query)
	}
	return project(data, source, lower, upper)
}
