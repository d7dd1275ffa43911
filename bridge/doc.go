// Package bridge marshals host data into an engine's linear memory and
// results back out.
//
// Every read follows the same sequence:
//
//	Classify(input)       reject unsupported shapes, no allocation yet
//	materialize           resolve bytes, validate dimensions
//	Alloc                 malloc exactly len(data), copy verbatim
//	entry point           engine reads the buffer
//	translate + release   copy results to the host, drop the engine vector
//	Free                  on every path, panics included
//
// Allocations live in the engine's own arena and are invisible to the Go
// garbage collector, so WithBuffer is the only way buffers are created by
// the read and write operations.
package bridge
