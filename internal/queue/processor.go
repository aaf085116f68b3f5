package queue

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"subburn/internal/encoding"
	"subburn/internal/logging"
	"subburn/internal/services"
	"subburn/internal/textutil"
)

// DefaultSettleDelay is the pause between consecutive item runs, giving the
// filesystem and any external watchers a moment to settle.
const DefaultSettleDelay = 500 * time.Millisecond

// Runner executes the external process for one item. The default wraps an
// encoding driver; tests substitute stubs.
type Runner interface {
	// Run blocks until the process exits. It returns nil on clean exit and
	// on cancellation.
	Run(ctx context.Context, item Item, settings encoding.NormalizedSettings, onProgress encoding.ProgressFunc, onLog encoding.LogFunc) error
	// Cancel requests graceful termination of a running process.
	Cancel()
}

// RunnerFactory builds one Runner per item run.
type RunnerFactory func() Runner

// ProcessorOptions configures a queue processor.
type ProcessorOptions struct {
	// Settings is the loose encode configuration; it is normalized once here
	// and re-normalized on every UpdateSettings.
	Settings encoding.Settings
	Sink     Sink
	Logger   *slog.Logger
	// SettleDelay overrides the pause between items; zero keeps the default,
	// negative disables it.
	SettleDelay time.Duration

	FFmpegBinary         string
	FFprobeBinary        string
	DurationProbeTimeout time.Duration

	// NewRunner overrides process execution, primarily for tests.
	NewRunner RunnerFactory
}

// cancelIntent records why the running item's process was cancelled, so the
// run loop can settle the item accordingly once the exit is observed. A later
// intent overwrites an earlier one.
type cancelIntent int

const (
	intentNone cancelIntent = iota
	// intentPause returns the item to pending.
	intentPause
	// intentRemove marks the item cancelled and drops it from the queue.
	intentRemove
	// intentClear marks the item cancelled and drops it, as part of
	// emptying the whole queue.
	intentClear
)

// runBinding ties one process run to the item generation it was started for.
// Callbacks arriving after the binding has been superseded are dropped.
type runBinding struct {
	itemID string
	gen    uint64
	runner Runner
	intent cancelIntent
}

// Processor owns the queue and drives items through the external transcoder
// one at a time.
type Processor struct {
	opts        ProcessorOptions
	sink        Sink
	logger      *slog.Logger
	settleDelay time.Duration

	mu       sync.Mutex
	items    []*Item
	settings encoding.NormalizedSettings
	// started reflects the user-facing run state; the loop drains items
	// while it holds.
	started bool
	// loopActive guards against a second pull loop spawning while the
	// previous one is still unwinding after a pause.
	loopActive bool
	current    *runBinding
	gen        uint64
	cancelLoop context.CancelFunc
}

// NewProcessor constructs an idle processor with an empty queue.
func NewProcessor(opts ProcessorOptions) *Processor {
	sink := opts.Sink
	if sink == nil {
		sink = NopSink{}
	}
	delay := opts.SettleDelay
	if delay == 0 {
		delay = DefaultSettleDelay
	}
	if delay < 0 {
		delay = 0
	}
	p := &Processor{
		opts:        opts,
		sink:        sink,
		logger:      logging.NewComponentLogger(opts.Logger, "queue"),
		settleDelay: delay,
		settings:    encoding.Normalize(opts.Settings),
	}
	if p.opts.NewRunner == nil {
		p.opts.NewRunner = p.newDriverRunner
	}
	return p
}

// Add enqueues one subtitle burn. The display name derives from the video
// filename unless the caller supplies one later via the returned item.
func (p *Processor) Add(videoPath, subtitlePath, outputPath string) (Item, error) {
	if strings.TrimSpace(videoPath) == "" {
		return Item{}, services.Wrap(services.ErrValidation, "queue", "add", "video path is empty", nil)
	}
	if strings.TrimSpace(subtitlePath) == "" {
		return Item{}, services.Wrap(services.ErrValidation, "queue", "add", "subtitle path is empty", nil)
	}
	if strings.TrimSpace(outputPath) == "" {
		outputPath = defaultOutputPath(videoPath)
	}

	now := time.Now()
	item := &Item{
		ID:                  uuid.NewString(),
		VideoPath:           videoPath,
		SubtitlePath:        subtitlePath,
		OutputPath:          outputPath,
		DisplayName:         textutil.DisplayName(videoPath),
		SubtitleDisplayName: textutil.DisplayName(subtitlePath),
		Status:              StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	p.mu.Lock()
	p.items = append(p.items, item)
	snapshot := item.Clone()
	all := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Info("item enqueued",
		logging.String(logging.FieldItemID, snapshot.ID),
		logging.String(logging.FieldVideo, snapshot.VideoPath),
		logging.String(logging.FieldSubtitle, snapshot.SubtitlePath),
	)
	p.sink.QueueUpdated(all)
	return snapshot, nil
}

// AddAll enqueues several video/subtitle pairs; the first failure aborts the
// remainder.
func (p *Processor) AddAll(pairs [][2]string) ([]Item, error) {
	added := make([]Item, 0, len(pairs))
	for _, pair := range pairs {
		item, err := p.Add(pair[0], pair[1], "")
		if err != nil {
			return added, err
		}
		added = append(added, item)
	}
	return added, nil
}

// Remove drops an item from the queue. Removing the running item cancels its
// process first; the item leaves the queue once the exit is observed.
func (p *Processor) Remove(id string) error {
	p.mu.Lock()
	index := p.indexLocked(id)
	if index < 0 {
		p.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "queue", "remove", fmt.Sprintf("item %s", id), nil)
	}
	if p.current != nil && p.current.itemID == id {
		p.current.intent = intentRemove
		runner := p.current.runner
		p.mu.Unlock()
		runner.Cancel()
		return nil
	}
	p.items = append(p.items[:index], p.items[index+1:]...)
	all := p.snapshotLocked()
	p.mu.Unlock()

	p.sink.QueueUpdated(all)
	return nil
}

// Clear empties the queue. A running item is cancelled and leaves the queue
// once its exit is observed; everything else is dropped immediately.
func (p *Processor) Clear() {
	p.mu.Lock()
	var runner Runner
	kept := p.items[:0]
	for _, item := range p.items {
		if p.current != nil && p.current.itemID == item.ID {
			kept = append(kept, item)
			continue
		}
	}
	p.items = kept
	if p.current != nil {
		p.current.intent = intentClear
		runner = p.current.runner
	}
	all := p.snapshotLocked()
	p.mu.Unlock()

	if runner != nil {
		runner.Cancel()
	}
	p.sink.QueueUpdated(all)
}

// UpdateOutputPath changes where a pending item writes its result. The
// running item's output cannot change mid-flight.
func (p *Processor) UpdateOutputPath(id, outputPath string) error {
	if strings.TrimSpace(outputPath) == "" {
		return services.Wrap(services.ErrValidation, "queue", "update output", "output path is empty", nil)
	}
	p.mu.Lock()
	index := p.indexLocked(id)
	if index < 0 {
		p.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "queue", "update output", fmt.Sprintf("item %s", id), nil)
	}
	item := p.items[index]
	if item.Status == StatusProcessing {
		p.mu.Unlock()
		return services.Wrap(services.ErrValidation, "queue", "update output", "item is processing", nil)
	}
	item.OutputPath = outputPath
	item.UpdatedAt = time.Now()
	snapshot := item.Clone()
	p.mu.Unlock()

	p.sink.ItemUpdated(snapshot)
	return nil
}

// Move shifts the item at position from to position to. Out-of-range
// positions are a no-op.
func (p *Processor) Move(from, to int) {
	p.mu.Lock()
	if from < 0 || from >= len(p.items) || to < 0 || to >= len(p.items) || from == to {
		p.mu.Unlock()
		return
	}
	item := p.items[from]
	p.items = append(p.items[:from], p.items[from+1:]...)
	p.items = append(p.items[:to], append([]*Item{item}, p.items[to:]...)...)
	all := p.snapshotLocked()
	p.mu.Unlock()

	p.sink.QueueUpdated(all)
}

// Reorder rearranges the queue to the given ID order. The ID list must be a
// permutation of the current queue.
func (p *Processor) Reorder(ids []string) error {
	p.mu.Lock()
	if len(ids) != len(p.items) {
		p.mu.Unlock()
		return services.Wrap(
			services.ErrValidation,
			"queue",
			"reorder",
			fmt.Sprintf("got %d ids for %d items", len(ids), len(p.items)),
			nil,
		)
	}
	byID := make(map[string]*Item, len(p.items))
	for _, item := range p.items {
		byID[item.ID] = item
	}
	reordered := make([]*Item, 0, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			p.mu.Unlock()
			return services.Wrap(services.ErrValidation, "queue", "reorder", fmt.Sprintf("unknown item %s", id), nil)
		}
		delete(byID, id)
		reordered = append(reordered, item)
	}
	p.items = reordered
	all := p.snapshotLocked()
	p.mu.Unlock()

	p.sink.QueueUpdated(all)
	return nil
}

// UpdateSettings swaps the encode configuration. The change applies from the
// next item run onward; the in-flight process keeps the settings it started
// with.
func (p *Processor) UpdateSettings(settings encoding.Settings) {
	normalized := encoding.Normalize(settings)
	p.mu.Lock()
	p.settings = normalized
	p.mu.Unlock()
}

// Settings returns the normalized configuration the next run will use.
func (p *Processor) Settings() encoding.NormalizedSettings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// Items returns a snapshot of the queue in order.
func (p *Processor) Items() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Item looks up a single item by ID.
func (p *Processor) Item(id string) (Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	index := p.indexLocked(id)
	if index < 0 {
		return Item{}, services.Wrap(services.ErrNotFound, "queue", "get", fmt.Sprintf("item %s", id), nil)
	}
	return p.items[index].Clone(), nil
}

// Stats aggregates queue counts per lifecycle state.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

// IsStarted reports whether the processor is currently draining the queue.
func (p *Processor) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *Processor) statsLocked() Stats {
	stats := Stats{Total: len(p.items)}
	for _, item := range p.items {
		switch item.Status {
		case StatusPending:
			stats.Pending++
		case StatusProcessing:
			stats.Processing++
		case StatusCompleted:
			stats.Completed++
		case StatusError:
			stats.Errored++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

func (p *Processor) snapshotLocked() []Item {
	out := make([]Item, len(p.items))
	for i, item := range p.items {
		out[i] = item.Clone()
	}
	return out
}

func (p *Processor) indexLocked(id string) int {
	for i, item := range p.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func defaultOutputPath(videoPath string) string {
	dir := filepath.Dir(videoPath)
	base := filepath.Base(videoPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+".burned"+ext)
}
