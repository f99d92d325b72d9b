package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event records one lifecycle action stamped into a generation tag.
type Event struct {
	// Timestamp is when the action completed. Zero when the action
	// never ran for this generation.
	Timestamp time.Time `json:"timestamp"`

	// Ordinal is the upper data bound the action consumed, when the
	// project source declares an ordinal column.
	Ordinal float64 `json:"ordinal,omitempty"`
}

// Done reports whether the event ever happened.
func (e Event) Done() bool {
	return !e.Timestamp.IsZero()
}

// Tag is the closing record of a generation: what happened and which
// persisted states the generation is made of. The states list is
// ordered to match the stateful steps of the project pipeline.
type Tag struct {
	Training Event    `json:"training"`
	Tuning   Event    `json:"tuning"`
	States   []string `json:"states"`
}

// ParseTag deserializes a tag previously produced by Bytes.
func ParseTag(raw []byte) (Tag, error) {
	var tag Tag
	if err := json.Unmarshal(raw, &tag); err != nil {
		return Tag{}, fmt.Errorf("parsing tag: %w", err)
	}
	return tag, nil
}

// Bytes serializes the tag for registry storage.
func (t Tag) Bytes() ([]byte, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("serializing tag: %w", err)
	}
	return raw, nil
}

func (t Tag) String() string {
	return fmt.Sprintf("tag[states=%d trained=%v]", len(t.States), t.Training.Done())
}
