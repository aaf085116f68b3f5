// Command subburn is the CLI entry point for the batch subtitle burn queue.
// It enqueues video/subtitle pairs, drives them through ffmpeg one at a
// time, and streams progress to the terminal.
package main
