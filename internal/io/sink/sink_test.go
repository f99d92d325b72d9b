package sink_test

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formlio/forml/internal/core/domain"
	"github.com/formlio/forml/internal/io/sink"
)

func sampleOutput() domain.Dataset {
	return domain.Dataset{
		Columns: []string{"age", "prediction"},
		Rows: [][]float64{
			{22, 0},
			{math.NaN(), 1},
		},
	}
}

// TestStdout tests the JSON lines rendering
func TestStdout(t *testing.T) {
	var buf bytes.Buffer
	s := sink.NewStdout(&buf)
	require.NoError(t, s.Publish(context.Background(), sampleOutput()))
	assert.Equal(t, "{\"age\":22,\"prediction\":0}\n{\"age\":null,\"prediction\":1}\n", buf.String())
}

// TestCSV tests the headed CSV rendering with empty NaN cells
func TestCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := sink.NewCSV(path)
	require.NoError(t, s.Publish(context.Background(), sampleOutput()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "age,prediction\n22,0\n,1\n", string(raw))
}

// TestNull tests the discarding sink
func TestNull(t *testing.T) {
	assert.NoError(t, sink.NewNull().Publish(context.Background(), sampleOutput()))
}
