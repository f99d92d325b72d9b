// Package project handles project distributions: the .4ml package
// archive, its embedded TOML manifest and the project descriptor
// defining source, pipeline, evaluation and tuning space.
//
// A package is either a zip archive or an unpacked directory; both
// carry manifest.toml at their root. Install materializes a package
// into a working directory, skipping the copy when the target already
// holds the same manifest.
package project
