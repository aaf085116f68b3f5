package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"subburn/internal/config"
	"subburn/internal/encoding"
	"subburn/internal/logging"
	"subburn/internal/preflight"
	"subburn/internal/queue"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	var (
		outputFlag  string
		gpuFlag     bool
		bitrateFlag string
		codecFlag   string
		presetFlag  string
		qualityFlag int
		scaleFlag   string
	)

	cmd := &cobra.Command{
		Use:   "run VIDEO SUBTITLE [VIDEO SUBTITLE ...]",
		Short: "Burn subtitles into one or more videos",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 || len(args)%2 != 0 {
				return errors.New("arguments must be VIDEO SUBTITLE pairs")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			logger, err := cctx.newLogger(cfg)
			if err != nil {
				return err
			}

			lock := flock.New(lockPath(cfg))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return errors.New("another subburn instance is already running")
			}
			defer func() { _ = lock.Unlock() }()

			checks := preflight.RunAll(cmd.Context(), cfg)
			if !preflight.AllPassed(checks) {
				return fmt.Errorf("preflight failed: %s", preflight.Summarize(checks))
			}

			settings := settingsFromConfig(cfg.Encoding)
			if cmd.Flags().Changed("gpu") {
				settings.GPUEncode = &gpuFlag
			}
			if cmd.Flags().Changed("bitrate") {
				settings.Bitrate = bitrateFlag
			}
			if cmd.Flags().Changed("codec") {
				settings.Codec = codecFlag
			}
			if cmd.Flags().Changed("preset") {
				settings.Preset = presetFlag
			}
			if cmd.Flags().Changed("quality") {
				settings.Quality = &qualityFlag
			}
			if cmd.Flags().Changed("scale") {
				scale, err := parseScale(scaleFlag)
				if err != nil {
					return err
				}
				settings.Scale = scale
			}
			if outputFlag != "" && len(args) != 2 {
				return errors.New("--output requires exactly one VIDEO SUBTITLE pair")
			}

			if n := encoding.Normalize(settings); n.GPUEncode && n.HWEncoder == encoding.HWEncoderAuto {
				support := encoding.DetectHardwareEncoders(
					cmd.Context(),
					cfg.Tools.FFmpegBinary,
					time.Duration(cfg.Tools.EncoderProbeTimeout)*time.Second,
					nil,
				)
				if name := resolveHardwareEncoder(&settings, support); name != "" {
					logger.Info("hardware encoder selected",
						logging.String(logging.FieldComponent, "cli"),
						logging.String("encoder", name),
					)
				}
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tty := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
			sink := newCLISink(cmd.OutOrStdout(), tty)

			processor := queue.NewProcessor(queue.ProcessorOptions{
				Settings:             settings,
				Sink:                 sink,
				Logger:               logger,
				SettleDelay:          time.Duration(cfg.Workflow.ItemSettleDelayMS) * time.Millisecond,
				FFmpegBinary:         cfg.Tools.FFmpegBinary,
				FFprobeBinary:        cfg.Tools.FFprobeBinary,
				DurationProbeTimeout: time.Duration(cfg.Tools.DurationProbeTimeout) * time.Second,
			})

			for i := 0; i < len(args); i += 2 {
				output := ""
				if outputFlag != "" {
					output = outputFlag
				}
				if _, err := processor.Add(args[i], args[i+1], output); err != nil {
					return err
				}
			}

			processor.Start(runCtx)

			var stats queue.Stats
			select {
			case stats = <-sink.drained:
			case <-runCtx.Done():
				logger.Info("shutdown requested, cancelling current encode",
					logging.String(logging.FieldComponent, "cli"),
				)
				processor.Stop()
				// Wait for the in-flight process to unwind before reporting.
				deadline := time.Now().Add(10 * time.Second)
				for processor.Stats().Processing > 0 && time.Now().Before(deadline) {
					time.Sleep(100 * time.Millisecond)
				}
				stats = processor.Stats()
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderItems(processor.Items()))
			fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats))
			if stats.Errored > 0 {
				return fmt.Errorf("%d of %d items failed", stats.Errored, stats.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output path (single pair only)")
	cmd.Flags().BoolVar(&gpuFlag, "gpu", false, "Use hardware encoding")
	cmd.Flags().StringVar(&bitrateFlag, "bitrate", "", "Target video bitrate, e.g. 2400k")
	cmd.Flags().StringVar(&codecFlag, "codec", "", "Video codec (h264, hevc, av1)")
	cmd.Flags().StringVar(&presetFlag, "preset", "", "Software encoder preset")
	cmd.Flags().IntVar(&qualityFlag, "quality", 0, "Quality value (crf or cq)")
	cmd.Flags().StringVar(&scaleFlag, "scale", "", "Output scale as WIDTHxHEIGHT")

	return cmd
}

func lockPath(cfg *config.Config) string {
	dir := cfg.Paths.LogDir
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "subburn.lock")
}

func settingsFromConfig(enc config.Encoding) encoding.Settings {
	gpu := enc.GPUEncode
	spatial := enc.SpatialAQ
	temporal := enc.TemporalAQ
	settings := encoding.Settings{
		Bitrate:     enc.Bitrate,
		GPUEncode:   &gpu,
		HWEncoder:   enc.HWEncoder,
		Codec:       enc.Codec,
		Preset:      enc.Preset,
		RateControl: enc.RateControl,
		SpatialAQ:   &spatial,
		TemporalAQ:  &temporal,
	}
	if enc.Quality > 0 {
		quality := enc.Quality
		settings.Quality = &quality
	}
	if enc.Lookahead > 0 {
		lookahead := enc.Lookahead
		settings.Lookahead = &lookahead
	}
	if enc.ScaleWidth > 0 && enc.ScaleHeight > 0 {
		settings.Scale = &encoding.Scale{Width: enc.ScaleWidth, Height: enc.ScaleHeight}
	}
	return settings
}

// resolveHardwareEncoder pins an "auto" hardware encoder choice to the best
// probed vendor encoder so every item in the run uses the same one. It
// returns the chosen name, or empty when the choice is explicit, hardware
// encoding is off, or the probe found nothing usable.
func resolveHardwareEncoder(settings *encoding.Settings, support encoding.HardwareSupport) string {
	normalized := encoding.Normalize(*settings)
	if !normalized.GPUEncode || normalized.HWEncoder != encoding.HWEncoderAuto {
		return ""
	}
	name := support.PreferredHardwareEncoder(normalized.Codec)
	if name != "" {
		settings.HWEncoder = name
	}
	return name
}

func parseScale(value string) (*encoding.Scale, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(value)), "x", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("scale must be WIDTHxHEIGHT, got %q", value)
	}
	var width, height int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &width, &height); err != nil {
		return nil, fmt.Errorf("scale must be WIDTHxHEIGHT, got %q", value)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("scale dimensions must be positive, got %q", value)
	}
	return &encoding.Scale{Width: width, Height: height}, nil
}

func renderItems(items []queue.Item) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		// The detail column only means something once the item settled.
		detail := ""
		switch {
		case item.Status == queue.StatusError:
			detail = item.Error
		case queue.IsTerminal(item.Status):
			detail = item.OutputPath
		}
		rows = append(rows, []string{item.DisplayName, string(item.Status), detail})
	}
	return renderTable(
		[]string{"Item", "Status", "Output"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	)
}

func renderStats(stats queue.Stats) string {
	rows := [][]string{{
		fmt.Sprintf("%d", stats.Total),
		fmt.Sprintf("%d", stats.Completed),
		fmt.Sprintf("%d", stats.Errored),
		fmt.Sprintf("%d", stats.Cancelled),
		fmt.Sprintf("%d", stats.Pending),
	}}
	return renderTable(
		[]string{"Total", "Completed", "Failed", "Cancelled", "Pending"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}
