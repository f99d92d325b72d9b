// Package flow implements the task-graph core: actors as units of work,
// specs instantiating them, and pipeline composition with DAG validation.
//
// A pipeline is an ordered chain of named workers built from a project
// descriptor against a component catalog. Composition is validated
// through a directed acyclic graph, so malformed descriptors (duplicate
// steps, cycles introduced by future branching operators) fail before
// anything executes.
//
// The compiled, runnable form of a pipeline lives in the compile
// subpackage; concrete library actors live in the actors subpackage.
package flow
