package encoding

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultEncoderProbeTimeout bounds the capability probe; a wedged binary
// must resolve to "not available" rather than hang.
const DefaultEncoderProbeTimeout = 5 * time.Second

// Known hardware encoder names across vendors, in preference order.
var hardwareEncoderNames = []string{
	"h264_nvenc", "hevc_nvenc", "av1_nvenc",
	"h264_qsv", "hevc_qsv",
	"h264_amf", "hevc_amf",
	"h264_videotoolbox", "hevc_videotoolbox",
	"h264_vaapi", "hevc_vaapi",
}

// HardwareSupport reports the outcome of the encoder capability probe.
type HardwareSupport struct {
	Available   bool
	Encoders    []string
	Description string
}

// DetectHardwareEncoders asks the transcoder binary to list its encoders and
// scans for known hardware implementations. The probe never fails: timeouts
// and execution errors resolve to "not available".
func DetectHardwareEncoders(ctx context.Context, binary string, timeout time.Duration, executor Executor) HardwareSupport {
	if timeout <= 0 {
		timeout = DefaultEncoderProbeTimeout
	}
	if executor == nil {
		executor = commandExecutor{}
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found := make(map[string]struct{})
	err := executor.Run(probeCtx, binary, []string{"-hide_banner", "-encoders"}, func(line string) {
		for _, name := range hardwareEncoderNames {
			if strings.Contains(line, name) {
				found[name] = struct{}{}
			}
		}
	})
	// A cut-off listing can still have yielded encoder names; only treat the
	// probe as failed when nothing was seen.
	if len(found) == 0 {
		if err != nil {
			return HardwareSupport{Description: fmt.Sprintf("hardware encoder probe unavailable: %v", err)}
		}
		return HardwareSupport{Description: "no hardware encoders detected"}
	}

	encoders := make([]string, 0, len(found))
	for _, name := range hardwareEncoderNames {
		if _, ok := found[name]; ok {
			encoders = append(encoders, name)
		}
	}
	return HardwareSupport{
		Available:   true,
		Encoders:    encoders,
		Description: "available: " + strings.Join(encoders, ", "),
	}
}

// PreferredHardwareEncoder returns the best detected encoder for a codec, or
// empty when none matches.
func (h HardwareSupport) PreferredHardwareEncoder(codec string) string {
	prefix := strings.ToLower(strings.TrimSpace(codec))
	switch prefix {
	case "", "h264":
		prefix = "h264"
	case "hevc", "h265":
		prefix = "hevc"
	}
	for _, name := range h.Encoders {
		if strings.HasPrefix(name, prefix+"_") {
			return name
		}
	}
	return ""
}
