// Package sink implements the output providers consuming the
// predictions of an apply run.
package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/core/ports/driven"
)

// Ensure the implementations satisfy the interface.
var (
	_ driven.Sink = (*Stdout)(nil)
	_ driven.Sink = (*CSV)(nil)
	_ driven.Sink = (*Null)(nil)
)

// Stdout writes one JSON object per output row. NaN cells render as
// null.
type Stdout struct {
	out io.Writer
}

// NewStdout creates a sink writing to the given writer, defaulting to
// standard output.
func NewStdout(out io.Writer) *Stdout {
	if out == nil {
		out = os.Stdout
	}
	return &Stdout{out: out}
}

// Publish implements driven.Sink.
func (s *Stdout) Publish(ctx context.Context, output domain.Dataset) error {
	var line strings.Builder
	for _, row := range output.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		line.Reset()
		line.WriteByte('{')
		for i, column := range output.Columns {
			if i > 0 {
				line.WriteByte(',')
			}
			name, err := json.Marshal(column)
			if err != nil {
				return fmt.Errorf("encoding column name: %w", err)
			}
			line.Write(name)
			line.WriteByte(':')
			if math.IsNaN(row[i]) {
				line.WriteString("null")
			} else {
				line.WriteString(strconv.FormatFloat(row[i], 'g', -1, 64))
			}
		}
		line.WriteString("}\n")
		if _, err := io.WriteString(s.out, line.String()); err != nil {
			return fmt.Errorf("publishing output: %w", err)
		}
	}
	return nil
}

// CSV writes the output as a headed CSV file. NaN cells render empty.
type CSV struct {
	path string
}

// NewCSV creates a sink writing to the given file path.
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Publish implements driven.Sink.
func (s *CSV) Publish(ctx context.Context, output domain.Dataset) error {
	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(output.Columns); err != nil {
		return fmt.Errorf("writing output header: %w", err)
	}
	record := make([]string, output.Width())
	for _, row := range output.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, value := range row {
			if math.IsNaN(value) {
				record[i] = ""
			} else {
				record[i] = strconv.FormatFloat(value, 'g', -1, 64)
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing output row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	return nil
}

// Null discards the output, useful for evaluation-only runs.
type Null struct{}

// NewNull creates a discarding sink.
func NewNull() *Null {
	return &Null{}
}

// Publish implements driven.Sink.
func (*Null) Publish(context.Context, domain.Dataset) error {
	return nil
}
