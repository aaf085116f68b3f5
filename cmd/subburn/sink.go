package main

import (
	"fmt"
	"io"
	"sync"

	"subburn/internal/encoding"
	"subburn/internal/queue"
	"subburn/internal/services"
)

// cliSink renders queue events for an interactive run. On a TTY the progress
// line updates in place; otherwise progress stays silent and only lifecycle
// and warning lines print.
type cliSink struct {
	out     io.Writer
	tty     bool
	drained chan queue.Stats

	mu           sync.Mutex
	progressOpen bool
}

func newCLISink(out io.Writer, tty bool) *cliSink {
	return &cliSink{
		out:     out,
		tty:     tty,
		drained: make(chan queue.Stats, 1),
	}
}

func (s *cliSink) QueueUpdated(items []queue.Item) {}

func (s *cliSink) ItemUpdated(item queue.Item) {
	switch item.Status {
	case queue.StatusProcessing:
		s.printLine("▸ %s", item.DisplayName)
	case queue.StatusCancelled:
		s.printLine("✗ %s cancelled", item.DisplayName)
	case queue.StatusPending, queue.StatusCompleted, queue.StatusError:
		// Completion and failure have dedicated events; pending is silent.
	}
}

func (s *cliSink) ItemProgress(item queue.Item, progress encoding.Progress) {
	if !s.tty {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r  %5.1f%%  fps %.0f  speed %.2fx  eta %s\x1b[K",
		progress.Percent, progress.FPS, progress.Speed, progress.ETA)
	s.progressOpen = true
}

func (s *cliSink) ItemLog(item queue.Item, entry encoding.LogEntry) {
	if entry.Category != encoding.LogError && entry.Category != encoding.LogWarning {
		return
	}
	s.printLine("  [%s] %s", entry.Category, entry.Text)
}

func (s *cliSink) ItemCompleted(item queue.Item) {
	s.printLine("✓ %s -> %s", item.DisplayName, item.OutputPath)
}

func (s *cliSink) ItemFailed(item queue.Item, err error) {
	if services.IsPreSpawn(err) {
		// Nothing ran and no output was touched.
		s.printLine("✗ %s rejected: %v", item.DisplayName, err)
		return
	}
	s.printLine("✗ %s: %v", item.DisplayName, err)
}

func (s *cliSink) QueueCompleted(stats queue.Stats) {
	s.mu.Lock()
	if s.progressOpen {
		fmt.Fprintln(s.out)
		s.progressOpen = false
	}
	s.mu.Unlock()
	select {
	case s.drained <- stats:
	default:
	}
}

// printLine closes any in-place progress line before printing.
func (s *cliSink) printLine(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.progressOpen {
		fmt.Fprint(s.out, "\r\x1b[K")
		s.progressOpen = false
	}
	fmt.Fprintf(s.out, format+"\n", args...)
}
