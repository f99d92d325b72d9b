// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and provider adapters
// implement them. The four interfaces mirror the four pluggable
// provider roles selected through configuration:
//
//   - Runner: Executes a compiled symbol program
//   - Registry: Persists packages, generation tags and state blobs
//   - Feed: Resolves a project source into input datasets
//   - Sink: Consumes apply-mode output
//
// # Import Rules
//
//   - Can Import: domain and the flow program types only
//   - Cannot Import: Any provider adapter package
package driven
