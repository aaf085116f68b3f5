package queue

import (
	"time"

	"subburn/internal/encoding"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusError:     {},
	StatusCancelled: {},
}

// Item is one queued subtitle burn. Items live in memory for the lifetime of
// the processor; there is no persistence across restarts.
type Item struct {
	ID           string
	VideoPath    string
	SubtitlePath string
	// OutputPath may be relative, in which case the driver resolves it
	// against the video's directory at process start.
	OutputPath string
	// DisplayName derives from the video file name, SubtitleDisplayName from
	// the subtitle file name.
	DisplayName         string
	SubtitleDisplayName string
	Status              Status
	Progress            *encoding.Progress
	// Error holds the failure message for StatusError items.
	Error     string
	Logs      []encoding.LogEntry
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats aggregates queue counts per lifecycle state.
type Stats struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Errored    int
	Cancelled  int
}

// IsTerminal reports whether a status can no longer change without a
// re-enqueue.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// Clone returns a deep copy safe to hand to callbacks while the processor
// keeps mutating the original.
func (i *Item) Clone() Item {
	out := *i
	if i.Progress != nil {
		progress := *i.Progress
		out.Progress = &progress
	}
	if len(i.Logs) > 0 {
		out.Logs = make([]encoding.LogEntry, len(i.Logs))
		copy(out.Logs, i.Logs)
	}
	return out
}

func (i *Item) setFailed(message string) {
	i.Status = StatusError
	i.Error = message
	i.Progress = nil
	i.UpdatedAt = time.Now()
}

func (i *Item) setPending() {
	i.Status = StatusPending
	i.Error = ""
	i.Progress = nil
	i.UpdatedAt = time.Now()
}
