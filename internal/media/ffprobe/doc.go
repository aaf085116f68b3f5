// Package ffprobe wraps the ffprobe companion tool for duration lookups.
//
// The queue probes each input once before encoding so progress percentages
// have a denominator from the first stderr chunk onward. Probe failures are
// not fatal: the encoder's own "Duration:" banner serves as a late fallback.
package ffprobe
