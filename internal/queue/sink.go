package queue

import "subburn/internal/encoding"

// Sink receives queue lifecycle events. Implementations must be fast or
// buffer internally; the processor invokes them synchronously from its worker
// goroutine, outside any internal lock. All items are defensive copies.
type Sink interface {
	// QueueUpdated fires when the set or order of items changes.
	QueueUpdated(items []Item)
	// ItemUpdated fires on a status change of a single item.
	ItemUpdated(item Item)
	// ItemProgress fires for each progress snapshot of the running item.
	ItemProgress(item Item, progress encoding.Progress)
	// ItemLog fires for each categorized log line of the running item.
	ItemLog(item Item, entry encoding.LogEntry)
	// ItemCompleted fires when an item finishes successfully.
	ItemCompleted(item Item)
	// ItemFailed fires when an item's process exits with an error.
	ItemFailed(item Item, err error)
	// QueueCompleted fires when the processor drains the queue while started.
	QueueCompleted(stats Stats)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) QueueUpdated([]Item) {}

func (NopSink) ItemUpdated(Item) {}

func (NopSink) ItemProgress(Item, encoding.Progress) {}

func (NopSink) ItemLog(Item, encoding.LogEntry) {}

func (NopSink) ItemCompleted(Item) {}

func (NopSink) ItemFailed(Item, error) {}

func (NopSink) QueueCompleted(Stats) {}

var _ Sink = NopSink{}
