package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTag_RoundTrip tests tag serialization for registry storage
func TestTag_RoundTrip(t *testing.T) {
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tag := Tag{
		Training: Event{Timestamp: stamp, Ordinal: 42},
		States:   []string{"a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11"},
	}

	raw, err := tag.Bytes()
	require.NoError(t, err)

	parsed, err := ParseTag(raw)
	require.NoError(t, err)
	assert.Equal(t, tag, parsed)
	assert.True(t, parsed.Training.Done())
	assert.False(t, parsed.Tuning.Done())
}

// TestParseTag_Invalid tests malformed tag payloads
func TestParseTag_Invalid(t *testing.T) {
	_, err := ParseTag([]byte("not json"))
	assert.Error(t, err)
}

// TestDataset_Select tests column projection
func TestDataset_Select(t *testing.T) {
	ds := Dataset{
		Columns: []string{"a", "b", "c"},
		Rows:    [][]float64{{1, 2, 3}, {4, 5, 6}},
	}

	picked, err := ds.Select("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, picked.Columns)
	assert.Equal(t, [][]float64{{3, 1}, {6, 4}}, picked.Rows)

	_, err = ds.Select("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
