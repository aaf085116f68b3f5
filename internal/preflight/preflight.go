package preflight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"subburn/internal/config"
	"subburn/internal/deps"
	"subburn/internal/encoding"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config. The hardware
// encoder probe never fails the run; software encoding is always a fallback.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	for _, status := range CheckTools(cfg) {
		result := Result{Name: status.Name, Passed: status.Available || status.Optional}
		switch {
		case status.Available:
			result.Detail = status.Path
		case status.Optional:
			result.Detail = status.Detail + " (optional; progress stays at 0% until the encoder reports a duration)"
		default:
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	support := encoding.DetectHardwareEncoders(
		ctx,
		cfg.Tools.FFmpegBinary,
		time.Duration(cfg.Tools.EncoderProbeTimeout)*time.Second,
		nil,
	)
	results = append(results, Result{
		Name:   "Hardware encoders",
		Passed: true,
		Detail: support.Description,
	})

	return results
}

// CheckTools evaluates the external binary dependencies.
func CheckTools(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpegBinary,
			Description: "Required for subtitle burning",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobeBinary,
			Description: "Required for duration probing",
			Optional:    true,
		},
	})
}

// AllPassed reports whether every mandatory check succeeded.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// Summarize renders a one-line digest of failed checks.
func Summarize(results []Result) string {
	var failed []string
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
	}
	if len(failed) == 0 {
		return "all checks passed"
	}
	return strings.Join(failed, "; ")
}
