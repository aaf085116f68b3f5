// Package encoding drives single ffmpeg invocations that burn subtitle
// tracks into video files.
//
// It owns argument construction (including the layered subtitle filter path
// escaping), input validation, process supervision with graceful
// cancellation and partial-output cleanup, the stateless parsers that turn
// raw stderr into structured progress and categorized logs, settings
// normalization, and the bounded hardware encoder capability probe. The
// queue package composes drivers; each Driver instance supervises exactly
// one invocation and is never reused.
package encoding
