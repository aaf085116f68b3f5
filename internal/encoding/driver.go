package encoding

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"subburn/internal/logging"
	"subburn/internal/media/ffprobe"
	"subburn/internal/services"
)

// State tracks a driver's lifecycle. Instances move idle → running → one of
// the terminal states and are never reused; a new invocation requires a new
// driver.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// DriverOptions configures a single encode invocation.
type DriverOptions struct {
	FFmpegBinary  string
	FFprobeBinary string
	// DurationProbeTimeout bounds the ffprobe duration lookup before the
	// encode starts.
	DurationProbeTimeout time.Duration
	OnProgress           ProgressFunc
	OnLog                LogFunc
	Logger               *slog.Logger
	// Executor overrides command execution, primarily for tests.
	Executor Executor
}

// Driver supervises exactly one external transcoder invocation.
type Driver struct {
	opts   DriverOptions
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	cancelled bool
	cancelRun context.CancelFunc
}

// NewDriver constructs a driver for one invocation.
func NewDriver(opts DriverOptions) *Driver {
	if strings.TrimSpace(opts.FFmpegBinary) == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(opts.FFprobeBinary) == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	if opts.DurationProbeTimeout <= 0 {
		opts.DurationProbeTimeout = ffprobe.DefaultTimeout
	}
	if opts.Executor == nil {
		opts.Executor = commandExecutor{}
	}
	return &Driver{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "driver"),
		state:  StateIdle,
	}
}

// Start validates inputs, spawns the external process, and blocks until it
// exits. It returns nil on clean exit and on user cancellation; validation
// failures surface synchronously before anything is spawned.
func (d *Driver) Start(ctx context.Context, videoPath, subtitlePath, outputPath string, settings NormalizedSettings) error {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return services.Wrap(
			services.ErrValidation,
			"encoding",
			"start",
			fmt.Sprintf("driver is %s; a new invocation requires a new driver", d.state),
			nil,
		)
	}
	runCtx, cancelRun := context.WithCancel(ctx)
	d.state = StateRunning
	d.cancelRun = cancelRun
	d.mu.Unlock()
	defer cancelRun()

	fail := func(err error) error {
		d.setState(StateFailed)
		return err
	}

	for _, check := range []struct{ label, path string }{
		{"video", videoPath},
		{"subtitle", subtitlePath},
		{"output", outputPath},
	} {
		if err := ValidatePathText(check.label, check.path); err != nil {
			return fail(err)
		}
	}
	if err := ValidateInputExists("video", videoPath); err != nil {
		return fail(err)
	}
	if err := ValidateInputExists("subtitle", subtitlePath); err != nil {
		return fail(err)
	}

	resolvedOutput, err := d.resolveOutput(videoPath, outputPath)
	if err != nil {
		return fail(err)
	}

	totalDuration := d.probeDuration(ctx, videoPath)

	args := BuildArgs(videoPath, subtitlePath, resolvedOutput, settings)
	d.logger.Info("launching encode",
		logging.String(logging.FieldVideo, videoPath),
		logging.String(logging.FieldSubtitle, subtitlePath),
		logging.String(logging.FieldOutput, resolvedOutput),
		logging.Bool("gpu", settings.GPUEncode),
		logging.Float64("duration_seconds", totalDuration),
	)

	start := time.Now()
	durationKnown := totalDuration > 0
	onLine := func(line string) {
		if !durationKnown {
			if seconds, ok := ExtractDuration(line); ok {
				totalDuration = seconds
				durationKnown = true
				d.emitLog(LogEntry{Text: strings.TrimSpace(line), Category: LogMetadata})
				return
			}
		}
		if progress, ok := ParseProgressLine(line, totalDuration, start); ok {
			d.emitProgress(progress)
			return
		}
		for _, kept := range FilterNoiseLines(line) {
			d.emitLog(LogEntry{Text: kept, Category: CategorizeLogLine(kept)})
		}
	}

	runErr := d.opts.Executor.Run(runCtx, d.opts.FFmpegBinary, args, onLine)

	d.mu.Lock()
	cancelled := d.cancelled
	d.mu.Unlock()

	if cancelled {
		// The process has exited, so nothing holds the partial output open.
		d.removePartialOutput(resolvedOutput)
		d.setState(StateCancelled)
		return nil
	}
	if runErr != nil {
		d.setState(StateFailed)
		return runErr
	}
	d.setState(StateCompleted)
	return nil
}

// Cancel signals graceful termination. Partial-output cleanup happens only
// after the process exit is observed inside Start, never here.
func (d *Driver) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateRunning || d.cancelled {
		return
	}
	d.cancelled = true
	if d.cancelRun != nil {
		d.cancelRun()
	}
}

// IsRunning reflects whether an active process invocation exists.
func (d *Driver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == StateRunning
}

// State returns the driver's lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(state State) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
}

// resolveOutput makes the output path absolute (relative paths resolve
// against the video's directory) and ensures its parent directory exists.
func (d *Driver) resolveOutput(videoPath, outputPath string) (string, error) {
	resolved := outputPath
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(videoPath), resolved)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", services.Wrap(
			services.ErrValidation,
			"encoding",
			"prepare output",
			fmt.Sprintf("create directory for %q", resolved),
			err,
		)
	}
	return resolved, nil
}

func (d *Driver) probeDuration(ctx context.Context, videoPath string) float64 {
	seconds, err := ffprobe.Duration(ctx, d.opts.FFprobeBinary, videoPath, d.opts.DurationProbeTimeout)
	if err != nil {
		d.logger.Warn("duration probe failed; progress stays at 0% until the encoder reports a duration",
			logging.String(logging.FieldVideo, videoPath),
			logging.Error(err),
		)
		return 0
	}
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	return seconds
}

func (d *Driver) removePartialOutput(path string) {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return
	}
	d.logger.Warn("failed to remove partial output",
		logging.String(logging.FieldOutput, path),
		logging.Error(err),
	)
	d.emitLog(LogEntry{
		Text:     fmt.Sprintf("Could not remove partial output %s: %v", path, err),
		Category: LogWarning,
	})
}

func (d *Driver) emitProgress(progress Progress) {
	if d.opts.OnProgress != nil {
		d.opts.OnProgress(progress)
	}
}

func (d *Driver) emitLog(entry LogEntry) {
	if d.opts.OnLog != nil {
		d.opts.OnLog(entry)
	}
}
