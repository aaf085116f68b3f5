package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values that would break at runtime.
func (c *Config) Validate() error {
	if c.Tools.FFmpegBinary == "" {
		return fmt.Errorf("tools.ffmpeg_binary must not be empty")
	}
	if c.Tools.FFprobeBinary == "" {
		return fmt.Errorf("tools.ffprobe_binary must not be empty")
	}
	if c.Tools.DurationProbeTimeout <= 0 {
		return fmt.Errorf("tools.duration_probe_timeout must be positive, got %d", c.Tools.DurationProbeTimeout)
	}
	if c.Tools.EncoderProbeTimeout <= 0 {
		return fmt.Errorf("tools.encoder_probe_timeout must be positive, got %d", c.Tools.EncoderProbeTimeout)
	}
	if c.Workflow.ItemSettleDelayMS < 0 {
		return fmt.Errorf("workflow.item_settle_delay_ms must not be negative, got %d", c.Workflow.ItemSettleDelayMS)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Encoding.Quality < 0 || c.Encoding.Quality > 51 {
		return fmt.Errorf("encoding.quality must be within 0-51, got %d", c.Encoding.Quality)
	}
	if (c.Encoding.ScaleWidth == 0) != (c.Encoding.ScaleHeight == 0) {
		return fmt.Errorf("encoding.scale_width and encoding.scale_height must be set together")
	}
	return nil
}
