package queue_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"subburn/internal/encoding"
	"subburn/internal/queue"
	"subburn/internal/services"
)

const waitTimeout = 5 * time.Second

// fakeRunner is a scriptable stand-in for the external process: the test
// decides when and how each run finishes.
type fakeRunner struct {
	started  chan struct{}
	release  chan error
	cancelCh chan struct{}
	// ignoreCancel keeps Run blocked through Cancel so tests can interleave
	// further queue operations before the run unwinds.
	ignoreCancel bool

	cancelOnce sync.Once

	mu         sync.Mutex
	item       queue.Item
	settings   encoding.NormalizedSettings
	onProgress encoding.ProgressFunc
	onLog      encoding.LogFunc
}

func (r *fakeRunner) Run(ctx context.Context, item queue.Item, settings encoding.NormalizedSettings, onProgress encoding.ProgressFunc, onLog encoding.LogFunc) error {
	r.mu.Lock()
	r.item = item
	r.settings = settings
	r.onProgress = onProgress
	r.onLog = onLog
	r.mu.Unlock()
	close(r.started)

	if r.ignoreCancel {
		return <-r.release
	}
	select {
	case err := <-r.release:
		return err
	case <-r.cancelCh:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func (r *fakeRunner) Cancel() {
	r.cancelOnce.Do(func() { close(r.cancelCh) })
}

func (r *fakeRunner) ranItem() queue.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.item
}

func (r *fakeRunner) ranSettings() encoding.NormalizedSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

func (r *fakeRunner) emitProgress(p encoding.Progress) {
	r.mu.Lock()
	fn := r.onProgress
	r.mu.Unlock()
	fn(p)
}

func (r *fakeRunner) emitLog(e encoding.LogEntry) {
	r.mu.Lock()
	fn := r.onLog
	r.mu.Unlock()
	fn(e)
}

type fakeFactory struct {
	ignoreCancel bool
	runners      chan *fakeRunner
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{runners: make(chan *fakeRunner, 16)}
}

func (f *fakeFactory) new() queue.Runner {
	r := &fakeRunner{
		started:      make(chan struct{}),
		release:      make(chan error, 1),
		cancelCh:     make(chan struct{}),
		ignoreCancel: f.ignoreCancel,
	}
	f.runners <- r
	return r
}

func (f *fakeFactory) next(t *testing.T) *fakeRunner {
	t.Helper()
	select {
	case r := <-f.runners:
		select {
		case <-r.started:
		case <-time.After(waitTimeout):
			t.Fatal("runner never started")
		}
		return r
	case <-time.After(waitTimeout):
		t.Fatal("no runner was created")
		return nil
	}
}

// recordingSink captures events and exposes them on channels for
// synchronization.
type recordingSink struct {
	updates   chan queue.Item
	completed chan queue.Item
	failed    chan queue.Item
	drained   chan queue.Stats

	mu        sync.Mutex
	progress  []encoding.Progress
	logs      []encoding.LogEntry
	lastQueue []queue.Item
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		updates:   make(chan queue.Item, 64),
		completed: make(chan queue.Item, 16),
		failed:    make(chan queue.Item, 16),
		drained:   make(chan queue.Stats, 4),
	}
}

func (s *recordingSink) QueueUpdated(items []queue.Item) {
	s.mu.Lock()
	s.lastQueue = items
	s.mu.Unlock()
}

func (s *recordingSink) ItemUpdated(item queue.Item) { s.updates <- item }

func (s *recordingSink) ItemProgress(item queue.Item, progress encoding.Progress) {
	s.mu.Lock()
	s.progress = append(s.progress, progress)
	s.mu.Unlock()
}

func (s *recordingSink) ItemLog(item queue.Item, entry encoding.LogEntry) {
	s.mu.Lock()
	s.logs = append(s.logs, entry)
	s.mu.Unlock()
}

func (s *recordingSink) ItemCompleted(item queue.Item) { s.completed <- item }

func (s *recordingSink) ItemFailed(item queue.Item, err error) { s.failed <- item }

func (s *recordingSink) QueueCompleted(stats queue.Stats) { s.drained <- stats }

func (s *recordingSink) waitStatus(t *testing.T, id string, status queue.Status) queue.Item {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case item := <-s.updates:
			if item.ID == id && item.Status == status {
				return item
			}
		case <-deadline:
			t.Fatalf("item %s never reached status %s", id, status)
			return queue.Item{}
		}
	}
}

func (s *recordingSink) waitDrained(t *testing.T) queue.Stats {
	t.Helper()
	select {
	case stats := <-s.drained:
		return stats
	case <-time.After(waitTimeout):
		t.Fatal("queue never completed")
		return queue.Stats{}
	}
}

func newTestProcessor(factory *fakeFactory, sink queue.Sink) *queue.Processor {
	return queue.NewProcessor(queue.ProcessorOptions{
		Sink:        sink,
		SettleDelay: -1,
		NewRunner:   factory.new,
	})
}

func TestAddDerivesDefaults(t *testing.T) {
	p := queue.NewProcessor(queue.ProcessorOptions{})
	item, err := p.Add("/media/the_big_movie.mkv", "/media/the_big_movie.srt", "")
	if err != nil {
		t.Fatal(err)
	}
	if item.ID == "" {
		t.Error("missing ID")
	}
	if item.Status != queue.StatusPending {
		t.Errorf("status=%s want pending", item.Status)
	}
	if item.DisplayName != "The Big Movie" {
		t.Errorf("display name %q", item.DisplayName)
	}
	if item.OutputPath != "/media/the_big_movie.burned.mkv" {
		t.Errorf("output path %q", item.OutputPath)
	}
	if item.SubtitleDisplayName != "The Big Movie" {
		t.Errorf("subtitle display name %q", item.SubtitleDisplayName)
	}
}

func TestMove(t *testing.T) {
	p := queue.NewProcessor(queue.ProcessorOptions{})
	a, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	b, _ := p.Add("/media/b.mkv", "/media/b.srt", "")
	c, _ := p.Add("/media/c.mkv", "/media/c.srt", "")

	p.Move(2, 0)
	items := p.Items()
	if items[0].ID != c.ID || items[1].ID != a.ID || items[2].ID != b.ID {
		t.Fatalf("order %s %s %s", items[0].ID, items[1].ID, items[2].ID)
	}

	// Out-of-range positions leave the queue untouched.
	p.Move(5, 0)
	p.Move(0, -1)
	items = p.Items()
	if items[0].ID != c.ID || items[1].ID != a.ID || items[2].ID != b.ID {
		t.Fatal("out-of-range move changed the queue")
	}
}

func TestAddRejectsEmptyPaths(t *testing.T) {
	p := queue.NewProcessor(queue.ProcessorOptions{})
	if _, err := p.Add("", "subs.srt", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}
	if _, err := p.Add("video.mkv", "   ", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}
}

func TestProcessorRunsItemsSequentially(t *testing.T) {
	factory := newFakeFactory()
	sink := newRecordingSink()
	p := newTestProcessor(factory, sink)

	first, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	second, _ := p.Add("/media/b.mkv", "/media/b.srt", "")

	p.Start(context.Background())

	runner1 := factory.next(t)
	if runner1.ranItem().ID != first.ID {
		t.Fatalf("first run item %s want %s", runner1.ranItem().ID, first.ID)
	}
	// No second process may exist while the first run is in flight.
	select {
	case <-factory.runners:
		t.Fatal("second runner created while first still running")
	case <-time.After(50 * time.Millisecond):
	}

	runner1.release <- nil
	sink.waitStatus(t, first.ID, queue.StatusCompleted)

	runner2 := factory.next(t)
	if runner2.ranItem().ID != second.ID {
		t.Fatalf("second run item %s want %s", runner2.ranItem().ID, second.ID)
	}
	runner2.release <- nil
	sink.waitStatus(t, second.ID, queue.StatusCompleted)

	stats := sink.waitDrained(t)
	if stats.Completed != 2 || stats.Pending != 0 || stats.Total != 2 {
		t.Fatalf("stats %+v", stats)
	}
	if p.IsStarted() {
		t.Fatal("processor should stop once drained")
	}
}

func TestProcessorContinuesPastFailure(t *testing.T) {
	factory := newFakeFactory()
	sink := newRecordingSink()
	p := newTestProcessor(factory, sink)

	first, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	second, _ := p.Add("/media/b.mkv", "/media/b.srt", "")

	p.Start(context.Background())

	runner1 := factory.next(t)
	runner1.release <- services.Wrap(services.ErrProcessExit, "encoding", "wait", "exit code 1", nil)

	failedItem := sink.waitStatus(t, first.ID, queue.StatusError)
	if !strings.Contains(failedItem.Error, "exit code 1") {
		t.Errorf("error message %q", failedItem.Error)
	}
	select {
	case <-sink.failed:
	case <-time.After(waitTimeout):
		t.Fatal("ItemFailed never fired")
	}

	runner2 := factory.next(t)
	runner2.release <- nil
	sink.waitStatus(t, second.ID, queue.StatusCompleted)

	stats := sink.waitDrained(t)
	if stats.Errored != 1 || stats.Completed != 1 {
		t.Fatalf("stats %+v", stats)
	}
}

func TestPauseReturnsCurrentItemToPending(t *testing.T) {
	factory := newFakeFactory()
	sink := newRecordingSink()
	p := newTestProcessor(factory, sink)

	item, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	p.Start(context.Background())

	runner1 := factory.next(t)
	runner1.emitProgress(encoding.Progress{Percent: 40})

	p.Pause()
	paused := sink.waitStatus(t, item.ID, queue.StatusPending)
	if paused.Progress != nil {
		t.Error("paused item must drop its progress")
	}
	if p.IsStarted() {
		t.Fatal("processor still started after pause")
	}

	// Resume restarts the item from the beginning with a fresh process.
	p.Resume(context.Background())
	runner2 := factory.next(t)
	if runner2 == runner1 {
		t.Fatal("resume must not reuse the cancelled runner")
	}
	if runner2.ranItem().ID != item.ID {
		t.Fatalf("resumed item %s want %s", runner2.ranItem().ID, item.ID)
	}
	runner2.release <- nil
	sink.waitStatus(t, item.ID, queue.StatusCompleted)
	sink.waitDrained(t)
}

func TestRemoveRunningItemCancelsProcess(t *testing.T) {
	factory := newFakeFactory()
	sink := newRecordingSink()
	p := newTestProcessor(factory, sink)

	first, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	second, _ := p.Add("/media/b.mkv", "/media/b.srt", "")
	p.Start(context.Background())

	factory.next(t)
	if err := p.Remove(first.ID); err != nil {
		t.Fatal(err)
	}

	sink.waitStatus(t, first.ID, queue.StatusCancelled)
	if _, err := p.Item(first.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("removed item still present, err=%v", err)
	}

	runner2 := factory.next(t)
	runner2.release <- nil
	sink.waitStatus(t, second.ID, queue.StatusCompleted)
	sink.waitDrained(t)
}

func TestRemovePendingItem(t *testing.T) {
	p := queue.NewProcessor(queue.ProcessorOptions{})
	item, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	if err := p.Remove(item.ID); err != nil {
		t.Fatal(err)
	}
	if len(p.Items()) != 0 {
		t.Fatal("item still queued")
	}
	if err := p.Remove("no-such-id"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestPauseThenRemoveCancelsInsteadOfRequeueing(t *testing.T) {
	factory := newFakeFactory()
	factory.ignoreCancel = true
	sink := newRecordingSink()
	p := newTestProcessor(factory, sink)

	item, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	p.Start(context.Background())

	runner := factory.next(t)
	// Both arrive before the process exit is observed; the later intent wins.
	p.Pause()
	if err := p.Remove(item.ID); err != nil {
		t.Fatal(err)
	}
	runner.release <- nil

	sink.waitStatus(t, item.ID, queue.StatusCancelled)
	if _, err := p.Item(item.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatal("item must leave the queue after remove, not return to pending")
	}
}

func TestClearCancelsRunningAndDropsRest(t *testing.T) {
	factory := newFakeFactory()
	sink := newRecordingSink()
	p := newTestProcessor(factory, sink)

	first, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	p.Add("/media/b.mkv", "/media/b.srt", "")
	p.Add("/media/c.mkv", "/media/c.srt", "")
	p.Start(context.Background())

	factory.next(t)
	p.Clear()

	sink.waitStatus(t, first.ID, queue.StatusCancelled)
	sink.waitDrained(t)
	if items := p.Items(); len(items) != 0 {
		t.Fatalf("queue not empty after clear: %d items", len(items))
	}
}

func TestReorder(t *testing.T) {
	sink := newRecordingSink()
	p := queue.NewProcessor(queue.ProcessorOptions{Sink: sink})
	a, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	b, _ := p.Add("/media/b.mkv", "/media/b.srt", "")
	c, _ := p.Add("/media/c.mkv", "/media/c.srt", "")

	if err := p.Reorder([]string{c.ID, a.ID, b.ID}); err != nil {
		t.Fatal(err)
	}
	items := p.Items()
	if items[0].ID != c.ID || items[1].ID != a.ID || items[2].ID != b.ID {
		t.Fatalf("order %s %s %s", items[0].ID, items[1].ID, items[2].ID)
	}

	if err := p.Reorder([]string{a.ID, b.ID}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("short id list: err=%v want ErrValidation", err)
	}
	if err := p.Reorder([]string{a.ID, b.ID, "bogus"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown id: err=%v want ErrValidation", err)
	}
	if err := p.Reorder([]string{a.ID, a.ID, b.ID}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("duplicate id: err=%v want ErrValidation", err)
	}
}

func TestUpdateSettingsAppliesToNextRun(t *testing.T) {
	factory := newFakeFactory()
	sink := newRecordingSink()
	p := newTestProcessor(factory, sink)

	first, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	second, _ := p.Add("/media/b.mkv", "/media/b.srt", "")
	p.Start(context.Background())

	runner1 := factory.next(t)
	if runner1.ranSettings().Bitrate != encoding.DefaultBitrate {
		t.Fatalf("first run bitrate %q", runner1.ranSettings().Bitrate)
	}

	p.UpdateSettings(encoding.Settings{Bitrate: "8000k"})
	// The in-flight run keeps its original settings.
	if runner1.ranSettings().Bitrate != encoding.DefaultBitrate {
		t.Fatal("running item settings changed mid-flight")
	}
	runner1.release <- nil
	sink.waitStatus(t, first.ID, queue.StatusCompleted)

	runner2 := factory.next(t)
	if runner2.ranSettings().Bitrate != "8000k" {
		t.Fatalf("second run bitrate %q want 8000k", runner2.ranSettings().Bitrate)
	}
	runner2.release <- nil
	sink.waitStatus(t, second.ID, queue.StatusCompleted)
	sink.waitDrained(t)
}

func TestUpdateOutputPath(t *testing.T) {
	factory := newFakeFactory()
	sink := newRecordingSink()
	p := newTestProcessor(factory, sink)

	item, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	if err := p.UpdateOutputPath(item.ID, "/out/custom.mkv"); err != nil {
		t.Fatal(err)
	}
	sink.waitStatus(t, item.ID, queue.StatusPending)
	got, _ := p.Item(item.ID)
	if got.OutputPath != "/out/custom.mkv" {
		t.Fatalf("output path %q", got.OutputPath)
	}

	p.Start(context.Background())
	runner := factory.next(t)
	if err := p.UpdateOutputPath(item.ID, "/out/too-late.mkv"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("processing item: err=%v want ErrValidation", err)
	}
	runner.release <- nil
	sink.waitStatus(t, item.ID, queue.StatusCompleted)
	sink.waitDrained(t)
}

func TestProgressAndLogsReachSinkAndItem(t *testing.T) {
	factory := newFakeFactory()
	sink := newRecordingSink()
	p := newTestProcessor(factory, sink)

	item, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	p.Start(context.Background())

	runner := factory.next(t)
	runner.emitProgress(encoding.Progress{Percent: 25, ETA: "1m 0s"})
	runner.emitLog(encoding.LogEntry{Text: "Stream mapping:", Category: encoding.LogMetadata})

	got, err := p.Item(item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Progress == nil || got.Progress.Percent != 25 {
		t.Fatalf("item progress %+v", got.Progress)
	}
	if len(got.Logs) != 1 || got.Logs[0].Text != "Stream mapping:" {
		t.Fatalf("item logs %+v", got.Logs)
	}

	runner.release <- nil
	done := sink.waitStatus(t, item.ID, queue.StatusCompleted)
	// Progress is carried only while processing.
	if done.Progress != nil {
		t.Fatalf("completed item still carries progress %+v", done.Progress)
	}
	if len(done.Logs) == 0 || done.Logs[len(done.Logs)-1].Category != encoding.LogSuccess {
		t.Fatalf("completed item missing terminal log: %+v", done.Logs)
	}

	sink.mu.Lock()
	progressCount, logCount := len(sink.progress), len(sink.logs)
	sink.mu.Unlock()
	if progressCount != 1 {
		t.Fatalf("sink saw %d progress updates", progressCount)
	}
	// The stream entry plus the terminal success entry.
	if logCount != 2 {
		t.Fatalf("sink saw %d logs", logCount)
	}
	sink.waitDrained(t)
}

func TestStartIsIdempotent(t *testing.T) {
	factory := newFakeFactory()
	sink := newRecordingSink()
	p := newTestProcessor(factory, sink)

	item, _ := p.Add("/media/a.mkv", "/media/a.srt", "")
	p.Start(context.Background())
	p.Start(context.Background())

	runner := factory.next(t)
	runner.release <- nil
	sink.waitStatus(t, item.ID, queue.StatusCompleted)
	sink.waitDrained(t)

	select {
	case <-factory.runners:
		t.Fatal("duplicate Start spawned a second run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartWithEmptyQueueCompletesImmediately(t *testing.T) {
	sink := newRecordingSink()
	p := queue.NewProcessor(queue.ProcessorOptions{Sink: sink, SettleDelay: -1})
	p.Start(context.Background())
	stats := sink.waitDrained(t)
	if stats.Total != 0 {
		t.Fatalf("stats %+v", stats)
	}
	if p.IsStarted() {
		t.Fatal("processor should be stopped")
	}
}
