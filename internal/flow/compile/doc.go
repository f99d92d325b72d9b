// Package compile turns a composed pipeline into a runnable symbol
// program - the portable representation handed to runners.
//
// A symbol pairs an instruction with the symbols whose results it
// consumes. The dependency structure is kept in a DAG, so runners can
// execute independent symbols concurrently and detect exhaustion
// without knowing anything about the pipeline that produced them.
package compile
