package encoding

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LogCategory classifies a single line of encoder output.
type LogCategory string

const (
	LogError    LogCategory = "error"
	LogWarning  LogCategory = "warning"
	LogSuccess  LogCategory = "success"
	LogMetadata LogCategory = "metadata"
	LogDebug    LogCategory = "debug"
	LogInfo     LogCategory = "info"
)

// LogEntry is one categorized line of encoder output.
type LogEntry struct {
	Text     string
	Category LogCategory
}

// ETACalculating is the placeholder shown while no extrapolation is possible.
const ETACalculating = "calculating..."

// Progress is a snapshot parsed from one ffmpeg progress line.
type Progress struct {
	Frame   int64
	FPS     float64
	Time    string
	Bitrate string
	Speed   float64
	Percent float64
	ETA     string
}

// ProgressFunc receives progress snapshots during an encode.
type ProgressFunc func(Progress)

// LogFunc receives categorized log entries during an encode.
type LogFunc func(LogEntry)

var (
	durationPattern = regexp.MustCompile(`Duration:\s*(\d+:\d{2}:\d{2}\.\d+)`)
	progressPattern = regexp.MustCompile(`frame=\s*(\d+)\s+fps=\s*([\d.]+)\s.*?time=\s*(-?\d+(?::\d{2})?:\d{2}\.\d+).*?bitrate=\s*(\S+).*?speed=\s*([\d.]+)x`)
)

// ParseTimestamp converts an ffmpeg timestamp (HH:MM:SS.ms or MM:SS.ms) to
// fractional seconds. Malformed input yields NaN; callers must guard.
func ParseTimestamp(text string) float64 {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return math.NaN()
	}
	total := 0.0
	for _, part := range parts {
		value, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return math.NaN()
		}
		total = total*60 + value
	}
	return total
}

// FormatTimestamp renders seconds as HH:MM:SS.mmm, the canonical inverse of
// ParseTimestamp.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	whole := int64(seconds)
	millis := int64(math.Round((seconds - float64(whole)) * 1000))
	if millis >= 1000 {
		whole++
		millis -= 1000
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", whole/3600, (whole/60)%60, whole%60, millis)
}

// ExtractDuration scans a chunk of encoder output for the container duration
// banner. Returns false when the marker is absent; callers stop probing once
// a duration has been found for the run.
func ExtractDuration(chunk string) (float64, bool) {
	match := durationPattern.FindStringSubmatch(chunk)
	if match == nil {
		return 0, false
	}
	seconds := ParseTimestamp(match[1])
	if math.IsNaN(seconds) {
		return 0, false
	}
	return seconds, true
}

// ParseProgressLine extracts a progress snapshot from a chunk of encoder
// output. Returns false unless the chunk contains the frame-progress marker.
// totalDuration of zero (duration unknown) pins the percentage at 0; the ETA
// is extrapolated linearly from wall-clock time elapsed since start.
func ParseProgressLine(chunk string, totalDuration float64, start time.Time) (Progress, bool) {
	match := progressPattern.FindStringSubmatch(chunk)
	if match == nil {
		return Progress{}, false
	}

	frame, _ := strconv.ParseInt(match[1], 10, 64)
	fps, _ := strconv.ParseFloat(match[2], 64)
	speed, _ := strconv.ParseFloat(match[5], 64)

	percent := 0.0
	if totalDuration > 0 {
		elapsed := ParseTimestamp(match[3])
		if !math.IsNaN(elapsed) && elapsed > 0 {
			percent = math.Min(100, elapsed/totalDuration*100)
		}
	}

	return Progress{
		Frame:   frame,
		FPS:     fps,
		Time:    match[3],
		Bitrate: match[4],
		Speed:   speed,
		Percent: percent,
		ETA:     extrapolateETA(percent, time.Since(start)),
	}, true
}

func extrapolateETA(percent float64, elapsed time.Duration) string {
	if percent <= 0 || percent >= 100 || math.IsNaN(percent) || math.IsInf(percent, 0) {
		return ETACalculating
	}
	remaining := time.Duration(float64(elapsed)/(percent/100)) - elapsed
	if remaining <= 0 {
		return ETACalculating
	}
	return FormatETA(remaining)
}

// FormatETA renders a duration as "{h}h {m}m {s}s", dropping leading zero
// units.
func FormatETA(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	hours := int(d / time.Hour)
	minutes := int(d/time.Minute) % 60
	seconds := int(d/time.Second) % 60
	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))
	return strings.Join(parts, " ")
}

// CategorizeLogLine classifies a line of encoder output. Rules are ordered;
// the first match wins because keywords overlap (a line can mention both
// "stream" and "error").
func CategorizeLogLine(line string) LogCategory {
	lower := strings.ToLower(line)
	switch {
	case containsAny(lower, "error", "failed", "invalid"):
		return LogError
	case containsAny(lower, "warning", "deprecated"),
		strings.Contains(lower, "not found") && !strings.Contains(lower, "glyph"):
		return LogWarning
	case containsAny(lower, "completed", "success", "done"):
		return LogSuccess
	case containsAny(lower, "stream", "duration", "encoder", "bitrate", "video:", "audio:"):
		return LogMetadata
	case containsAny(lower, "libav", "libsw", "libpostproc", "ffmpeg version", "configuration:", "built with"):
		return LogDebug
	default:
		return LogInfo
	}
}

// FilterNoiseLines splits a chunk into lines and strips progress spam
// (size=/frame= counters). Progress data reaches consumers only through the
// structured progress channel, never duplicated into logs.
func FilterNoiseLines(chunk string) []string {
	raw := strings.FieldsFunc(chunk, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.Contains(trimmed, "size=") || strings.Contains(trimmed, "frame=") {
			continue
		}
		lines = append(lines, trimmed)
	}
	return lines
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
