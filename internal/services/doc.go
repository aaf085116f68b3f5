// Package services defines the error taxonomy shared by components that talk
// to external tools.
//
// Sentinel markers classify failures by where they can occur in a process
// lifecycle: validation and missing-file errors happen before anything is
// spawned, spawn errors when the OS cannot start the binary, process-exit
// errors when a started binary terminates with a non-zero code, and timeouts
// when a bounded probe runs out of patience. Wrap attaches component and
// operation context so callers can classify with errors.Is without parsing
// message text.
package services
