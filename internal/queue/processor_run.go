package queue

import (
	"context"
	"sync"
	"time"

	"subburn/internal/encoding"
	"subburn/internal/logging"
)

// Start begins draining the queue. Items run strictly one at a time, in
// queue order. Starting an already started processor is a no-op. Start
// returns immediately; the work happens on an internal goroutine that stops
// when the queue drains, when Pause is called, or when ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	p.started = true
	if p.loopActive {
		p.mu.Unlock()
		return
	}
	p.loopActive = true
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancelLoop = cancel
	p.mu.Unlock()

	go func() {
		defer cancel()
		p.loop(loopCtx)
	}()
}

// Pause stops after the current item: the in-flight process is cancelled and
// its item returns to pending, ready to restart from the beginning on Resume.
func (p *Processor) Pause() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	var runner Runner
	if p.current != nil {
		p.current.intent = intentPause
		runner = p.current.runner
	}
	p.mu.Unlock()

	if runner != nil {
		runner.Cancel()
	}
	p.logger.Info("queue paused")
}

// Resume continues a paused queue.
func (p *Processor) Resume(ctx context.Context) {
	p.Start(ctx)
}

// Stop pauses the queue and releases the loop context. Used on shutdown.
func (p *Processor) Stop() {
	p.Pause()
	p.mu.Lock()
	cancel := p.cancelLoop
	p.cancelLoop = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// loop pulls pending items one at a time. Exactly one loop goroutine exists
// while loopActive holds; rapid pause/resume cycles re-use the running loop
// instead of spawning a second one.
func (p *Processor) loop(ctx context.Context) {
	for {
		p.mu.Lock()
		if !p.started || ctx.Err() != nil {
			p.loopActive = false
			p.mu.Unlock()
			return
		}

		item := p.nextPendingLocked()
		if item == nil {
			p.started = false
			p.loopActive = false
			stats := p.statsLocked()
			p.mu.Unlock()
			p.logger.Info("queue drained",
				logging.Int("completed", stats.Completed),
				logging.Int("errored", stats.Errored),
			)
			p.sink.QueueCompleted(stats)
			return
		}

		p.gen++
		binding := &runBinding{itemID: item.ID, gen: p.gen, runner: p.opts.NewRunner()}
		p.current = binding
		item.Status = StatusProcessing
		item.Error = ""
		item.Progress = nil
		// A fresh run accumulates logs from scratch, also on re-runs after a
		// pause or a re-queue.
		item.Logs = nil
		item.UpdatedAt = time.Now()
		snapshot := item.Clone()
		settings := p.settings
		p.mu.Unlock()

		p.sink.ItemUpdated(snapshot)
		p.runOne(ctx, binding, snapshot, settings)

		if p.settleDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(p.settleDelay):
			}
		}
	}
}

func (p *Processor) runOne(ctx context.Context, binding *runBinding, snapshot Item, settings encoding.NormalizedSettings) {
	onProgress := func(progress encoding.Progress) {
		p.mu.Lock()
		if p.current != binding || binding.intent != intentNone {
			p.mu.Unlock()
			return
		}
		index := p.indexLocked(binding.itemID)
		if index < 0 {
			p.mu.Unlock()
			return
		}
		item := p.items[index]
		copied := progress
		item.Progress = &copied
		item.UpdatedAt = time.Now()
		clone := item.Clone()
		p.mu.Unlock()
		p.sink.ItemProgress(clone, progress)
	}

	onLog := func(entry encoding.LogEntry) {
		p.mu.Lock()
		if p.current != binding {
			p.mu.Unlock()
			return
		}
		index := p.indexLocked(binding.itemID)
		if index < 0 {
			p.mu.Unlock()
			return
		}
		item := p.items[index]
		item.Logs = append(item.Logs, entry)
		clone := item.Clone()
		p.mu.Unlock()
		p.sink.ItemLog(clone, entry)
	}

	p.logger.Info("processing item",
		logging.String(logging.FieldItemID, snapshot.ID),
		logging.String(logging.FieldVideo, snapshot.VideoPath),
	)
	runErr := binding.runner.Run(ctx, snapshot, settings, onProgress, onLog)

	p.mu.Lock()
	intent := binding.intent
	if p.current == binding {
		p.current = nil
	}
	index := p.indexLocked(binding.itemID)
	if index < 0 {
		// Raced with a concurrent structural change; nothing left to settle.
		p.mu.Unlock()
		return
	}
	item := p.items[index]

	switch {
	case intent == intentPause:
		item.setPending()
		entry := encoding.LogEntry{Text: "Paused; will restart from the beginning", Category: encoding.LogInfo}
		item.Logs = append(item.Logs, entry)
		clone := item.Clone()
		p.mu.Unlock()
		p.sink.ItemLog(clone, entry)
		p.sink.ItemUpdated(clone)

	case intent == intentRemove, intent == intentClear:
		item.Status = StatusCancelled
		item.Progress = nil
		item.UpdatedAt = time.Now()
		clone := item.Clone()
		p.items = append(p.items[:index], p.items[index+1:]...)
		all := p.snapshotLocked()
		p.mu.Unlock()
		p.sink.ItemUpdated(clone)
		p.sink.QueueUpdated(all)

	case runErr != nil:
		item.setFailed(runErr.Error())
		entry := encoding.LogEntry{Text: runErr.Error(), Category: encoding.LogError}
		item.Logs = append(item.Logs, entry)
		clone := item.Clone()
		p.mu.Unlock()
		p.logger.Error("item failed",
			logging.String(logging.FieldItemID, clone.ID),
			logging.Error(runErr),
		)
		p.sink.ItemLog(clone, entry)
		p.sink.ItemUpdated(clone)
		p.sink.ItemFailed(clone, runErr)

	default:
		item.Status = StatusCompleted
		item.Progress = nil
		item.UpdatedAt = time.Now()
		entry := encoding.LogEntry{Text: "Encoding completed", Category: encoding.LogSuccess}
		item.Logs = append(item.Logs, entry)
		clone := item.Clone()
		p.mu.Unlock()
		p.logger.Info("item completed", logging.String(logging.FieldItemID, clone.ID))
		p.sink.ItemLog(clone, entry)
		p.sink.ItemUpdated(clone)
		p.sink.ItemCompleted(clone)
	}
}

func (p *Processor) nextPendingLocked() *Item {
	for _, item := range p.items {
		if item.Status == StatusPending {
			return item
		}
	}
	return nil
}

// driverRunner adapts an encoding driver to the Runner interface. Each run
// gets a fresh driver; drivers are single-use.
type driverRunner struct {
	processor *Processor

	mu        sync.Mutex
	cancelled bool
	driver    *encoding.Driver
}

func (p *Processor) newDriverRunner() Runner {
	return &driverRunner{processor: p}
}

func (r *driverRunner) Run(ctx context.Context, item Item, settings encoding.NormalizedSettings, onProgress encoding.ProgressFunc, onLog encoding.LogFunc) error {
	opts := r.processor.opts
	driver := encoding.NewDriver(encoding.DriverOptions{
		FFmpegBinary:         opts.FFmpegBinary,
		FFprobeBinary:        opts.FFprobeBinary,
		DurationProbeTimeout: opts.DurationProbeTimeout,
		OnProgress:           onProgress,
		OnLog:                onLog,
		Logger:               opts.Logger,
	})

	r.mu.Lock()
	if r.cancelled {
		// Cancel won the race before the process could start.
		r.mu.Unlock()
		return nil
	}
	r.driver = driver
	r.mu.Unlock()

	return driver.Start(ctx, item.VideoPath, item.SubtitlePath, item.OutputPath, settings)
}

func (r *driverRunner) Cancel() {
	r.mu.Lock()
	r.cancelled = true
	driver := r.driver
	r.mu.Unlock()
	if driver != nil {
		driver.Cancel()
	}
}
