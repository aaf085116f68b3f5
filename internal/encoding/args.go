package encoding

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Container extensions that benefit from the moov atom being relocated up
// front for streaming playback.
var fastStartExtensions = map[string]struct{}{
	".mp4": {},
	".m4v": {},
	".mov": {},
}

// BuildArgs constructs the ffmpeg argument list for one subtitle burn.
// The audio stream is always copied verbatim, never re-encoded; the output
// path goes last.
func BuildArgs(videoPath, subtitlePath, outputPath string, settings NormalizedSettings) []string {
	args := []string{"-y", "-i", videoPath}

	filters := make([]string, 0, 3)
	if settings.Scale != nil {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", settings.Scale.Width, settings.Scale.Height))
	}
	filters = append(filters, "subtitles="+EscapeSubtitlePath(subtitlePath))
	if settings.GPUEncode {
		// Hardware encoders reject the odd pixel formats some sources carry.
		filters = append(filters, "format=nv12")
	}
	args = append(args, "-vf", strings.Join(filters, ","))

	if settings.GPUEncode {
		args = append(args,
			"-c:v", hardwareEncoderFor(settings),
			"-rc", settings.RateControl,
			"-cq", strconv.Itoa(settings.Quality),
			"-b:v", settings.Bitrate,
			"-spatial-aq", boolFlag(settings.SpatialAQ),
			"-temporal-aq", boolFlag(settings.TemporalAQ),
			"-rc-lookahead", strconv.Itoa(settings.Lookahead),
		)
	} else {
		args = append(args,
			"-c:v", softwareEncoderFor(settings.Codec),
			"-preset", settings.Preset,
			"-crf", strconv.Itoa(settings.Quality),
		)
	}

	args = append(args, "-c:a", "copy")

	ext := strings.ToLower(filepath.Ext(outputPath))
	if _, ok := fastStartExtensions[ext]; ok {
		args = append(args, "-movflags", "+faststart")
	}

	return append(args, outputPath)
}

func hardwareEncoderFor(settings NormalizedSettings) string {
	if settings.HWEncoder != "" && settings.HWEncoder != HWEncoderAuto {
		return settings.HWEncoder
	}
	switch strings.ToLower(settings.Codec) {
	case "hevc", "h265":
		return "hevc_nvenc"
	case "av1":
		return "av1_nvenc"
	default:
		return "h264_nvenc"
	}
}

func softwareEncoderFor(codec string) string {
	switch strings.ToLower(codec) {
	case "hevc", "h265":
		return "libx265"
	case "av1":
		return "libsvtav1"
	default:
		return "libx264"
	}
}

func boolFlag(value bool) string {
	if value {
		return "1"
	}
	return "0"
}
