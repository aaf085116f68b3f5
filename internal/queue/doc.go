// Package queue holds the in-memory batch queue and the processor that
// drives its items through the external transcoder one at a time.
//
// The processor serializes all process runs on a single pull-loop goroutine:
// at most one external process exists at any moment, and items run in queue
// order. Queue mutations (add, remove, reorder, clear) are safe from any
// goroutine; lifecycle events stream to a Sink outside the processor's
// internal lock.
package queue
