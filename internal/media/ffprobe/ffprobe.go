package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"subburn/internal/services"
)

// DefaultTimeout bounds a probe when the caller does not supply one.
const DefaultTimeout = 10 * time.Second

// Duration asks ffprobe for the container duration of path, in seconds.
// The probe is bounded by timeout; on any failure the caller should fall back
// to duration extraction from the encoder's own output.
func Duration(ctx context.Context, binary, path string, timeout time.Duration) (float64, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("ffprobe duration: empty path")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, binary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"--", path,
	)
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return 0, services.Wrap(
				services.ErrTimeout,
				"ffprobe",
				"duration",
				fmt.Sprintf("no result within %s", timeout),
				nil,
			)
		}
		if probeCtx.Err() != nil {
			return 0, fmt.Errorf("ffprobe duration: %w", probeCtx.Err())
		}
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}

	return ParseSeconds(string(output))
}

// ParseSeconds converts ffprobe's single-value duration output to seconds.
func ParseSeconds(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" || strings.EqualFold(cleaned, "N/A") {
		return 0, errors.New("ffprobe duration: no value reported")
	}
	seconds, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: parse %q: %w", cleaned, err)
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, fmt.Errorf("ffprobe duration: implausible value %q", cleaned)
	}
	return seconds, nil
}
