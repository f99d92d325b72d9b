package feed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
	"github.com/formlio/forml/internal/logger"
)

// Ensure CSV implements the interface.
var _ driven.Feed = (*CSV)(nil)

// CSV is a feed reading headed CSV files. The source query is the file
// path, resolved against the feed root unless absolute. Cells that are
// empty or non-numeric load as NaN for the imputer to deal with.
type CSV struct {
	root    string
	limiter *rate.Limiter
}

// NewCSV creates a CSV feed rooted at the given directory. A positive
// rowsPerSecond throttles reading, protecting shared storage from
// training bursts.
func NewCSV(root string, rowsPerSecond float64) *CSV {
	f := &CSV{root: root}
	if rowsPerSecond > 0 {
		burst := int(rowsPerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(rowsPerSecond), burst)
	}
	return f
}

// Extract implements driven.Feed.
func (f *CSV) Extract(ctx context.Context, source domain.Source, lower, upper *float64) (domain.Dataset, domain.Dataset, error) {
	path := source.Query
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.root, path)
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Dataset{}, domain.Dataset{}, fmt.Errorf("%w: source %s", domain.ErrNotFound, source.Query)
		}
		return domain.Dataset{}, domain.Dataset{}, fmt.Errorf("opening source: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.ReuseRecord = true
	header, err := reader.Read()
	if err != nil {
		return domain.Dataset{}, domain.Dataset{}, fmt.Errorf("reading source header: %w", err)
	}
	data := domain.Dataset{Columns: append([]string(nil), header...)}

	for {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return domain.Dataset{}, domain.Dataset{}, err
			}
		} else if err := ctx.Err(); err != nil {
			return domain.Dataset{}, domain.Dataset{}, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Dataset{}, domain.Dataset{}, fmt.Errorf("reading source %s: %w", source.Query, err)
		}
		row := make([]float64, len(record))
		for i, cell := range record {
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				value = math.NaN()
			}
			row[i] = value
		}
		data.Rows = append(data.Rows, row)
	}
	logger.Debug("loaded %d rows from %s", data.Len(), path)
	return project(data, source, lower, upper)
}
