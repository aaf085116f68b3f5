// Package preflight provides readiness checks for the external binaries and
// filesystem paths a burn run depends on. The CLI runs them once at startup
// so a missing transcoder fails fast instead of erroring on the first queue
// item.
package preflight
