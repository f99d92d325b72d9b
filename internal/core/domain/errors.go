package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidLevel indicates a malformed registry level key
	// (project name, lineage version or generation ordinal).
	ErrInvalidLevel = errors.New("invalid level key")

	// ErrEmptyListing indicates a registry level has no content to
	// resolve a "latest" default from.
	ErrEmptyListing = errors.New("empty listing")

	// ErrVersionNotIncremented indicates an upload of a lineage version
	// that is not strictly greater than every existing lineage.
	ErrVersionNotIncremented = errors.New("lineage version not incremented")

	// ErrStateNotStaged indicates a generation commit referencing a
	// state that was never written to the staging area.
	ErrStateNotStaged = errors.New("state not staged")

	// ErrInvalidManifest indicates a package manifest that is missing
	// or malformed.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrUnknownProvider indicates a provider alias with no registered
	// implementation.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrInvalidPipeline indicates a project descriptor composing an
	// empty or cyclic pipeline.
	ErrInvalidPipeline = errors.New("invalid pipeline")

	// ErrNotTrained indicates an apply/tune request against a lineage
	// with no committed generation.
	ErrNotTrained = errors.New("no trained generation")
)
