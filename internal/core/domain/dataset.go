package domain

import "fmt"

// Dataset is the tabular payload exchanged between feeds, actors and
// sinks. Rows are dense float vectors; Columns name the features.
type Dataset struct {
	Columns []string
	Rows    [][]float64
}

// Width returns the number of columns.
func (d Dataset) Width() int {
	return len(d.Columns)
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Rows)
}

// Column returns the index of the named column or -1.
func (d Dataset) Column(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Select returns a new dataset restricted to the named columns.
func (d Dataset) Select(names ...string) (Dataset, error) {
	idx := make([]int, len(names))
	for i, name := range names {
		col := d.Column(name)
		if col < 0 {
			return Dataset{}, fmt.Errorf("%w: column %q", ErrNotFound, name)
		}
		idx[i] = col
	}
	out := Dataset{Columns: append([]string(nil), names...), Rows: make([][]float64, len(d.Rows))}
	for r, row := range d.Rows {
		picked := make([]float64, len(idx))
		for i, col := range idx {
			picked[i] = row[col]
		}
		out.Rows[r] = picked
	}
	return out, nil
}

// Slice returns the row range [from, to) as a new dataset sharing row storage.
func (d Dataset) Slice(from, to int) Dataset {
	return Dataset{Columns: d.Columns, Rows: d.Rows[from:to]}
}

// Source describes the input data a project trains on and applies to.
// It is part of the project descriptor and interpreted by a Feed provider.
type Source struct {
	// Query is the feed-specific locator (file path for the csv feed,
	// table name for the memory feed).
	Query string

	// Features are the input columns, in order.
	Features []string

	// Label is the target column consumed by the train path.
	Label string

	// Ordinal optionally names a column used for lower/upper bound
	// filtering of training batches.
	Ordinal string
}

// Validate checks the source describes at least one feature and a query.
func (s Source) Validate() error {
	if s.Query == "" {
		return fmt.Errorf("%w: source query", ErrInvalidManifest)
	}
	if len(s.Features) == 0 {
		return fmt.Errorf("%w: source features", ErrInvalidManifest)
	}
	return nil
}
