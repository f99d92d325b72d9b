package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// projectPattern constrains project keys to registry-safe names.
var projectPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Project is the top registry level - a named line of ML work.
type Project string

// ParseProject validates a raw project name.
func ParseProject(name string) (Project, error) {
	if !projectPattern.MatchString(name) {
		return "", fmt.Errorf("%w: project key %q", ErrInvalidLevel, name)
	}
	return Project(name), nil
}

func (p Project) String() string {
	return string(p)
}

// Version is a lineage key - a dotted sequence of numeric components.
// Lineages within a project are ordered by component-wise numeric
// comparison with shorter sequences padded by zeros, so 1.2 < 1.10 < 2.
type Version struct {
	parts []int
}

// ParseVersion parses a dotted numeric version such as "1", "0.3" or "1.2.1".
func ParseVersion(raw string) (Version, error) {
	if raw == "" {
		return Version{}, fmt.Errorf("%w: empty lineage key", ErrInvalidLevel)
	}
	fields := strings.Split(raw, ".")
	parts := make([]int, len(fields))
	for i, field := range fields {
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 || (field != "0" && strings.HasPrefix(field, "0")) {
			return Version{}, fmt.Errorf("%w: lineage key %q", ErrInvalidLevel, raw)
		}
		parts[i] = n
	}
	return Version{parts: parts}, nil
}

// MustVersion is a test/fixture helper that panics on invalid input.
func MustVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or 1 ordering v against other.
func (v Version) Compare(other Version) int {
	size := len(v.parts)
	if len(other.parts) > size {
		size = len(other.parts)
	}
	for i := 0; i < size; i++ {
		var a, b int
		if i < len(v.parts) {
			a = v.parts[i]
		}
		if i < len(other.parts) {
			b = other.parts[i]
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

// IsZero reports whether the version is the unparsed zero value.
func (v Version) IsZero() bool {
	return len(v.parts) == 0
}

func (v Version) String() string {
	fields := make([]string, len(v.parts))
	for i, p := range v.parts {
		fields[i] = strconv.Itoa(p)
	}
	return strings.Join(fields, ".")
}

// Generation is the third registry level - an ordinal assigned
// sequentially by the registry starting at 1.
type Generation int

// ParseGeneration validates a raw generation ordinal.
func ParseGeneration(raw string) (Generation, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: generation key %q", ErrInvalidLevel, raw)
	}
	return Generation(n), nil
}

func (g Generation) String() string {
	return strconv.Itoa(int(g))
}

// LatestVersion returns the greatest of the given lineage keys.
// Returns ErrEmptyListing when the slice is empty.
func LatestVersion(versions []Version) (Version, error) {
	if len(versions) == 0 {
		return Version{}, ErrEmptyListing
	}
	latest := versions[0]
	for _, v := range versions[1:] {
		if v.Compare(latest) > 0 {
			latest = v
		}
	}
	return latest, nil
}

// LatestGeneration returns the greatest of the given generation ordinals.
// Returns ErrEmptyListing when the slice is empty.
func LatestGeneration(generations []Generation) (Generation, error) {
	if len(generations) == 0 {
		return 0, ErrEmptyListing
	}
	latest := generations[0]
	for _, g := range generations[1:] {
		if g > latest {
			latest = g
		}
	}
	return latest, nil
}
