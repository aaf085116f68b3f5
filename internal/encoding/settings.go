package encoding

import "strings"

// Defaults applied by Normalize when a field is unset.
const (
	DefaultBitrate     = "2400k"
	DefaultCodec       = "h264"
	DefaultPreset      = "medium"
	DefaultRateControl = "vbr_hq"
	DefaultQuality     = 23
	DefaultLookahead   = 20

	// HWEncoderAuto defers vendor encoder selection to codec defaults.
	HWEncoderAuto = "auto"
)

// Scale is an optional output scaling target.
type Scale struct {
	Width  int
	Height int
}

// Settings is the loosely-specified user configuration for an encode. Pointer
// fields distinguish "unset" from explicit zero values; Normalize fills the
// gaps.
type Settings struct {
	Bitrate string
	// GPUEncode wins over the legacy UseHardwareAccel alias when both are set.
	GPUEncode        *bool
	UseHardwareAccel *bool
	// HWEncoder names a specific vendor encoder (e.g. "h264_nvenc"); empty
	// means the vendor-neutral auto choice.
	HWEncoder   string
	Codec       string
	Preset      string
	RateControl string
	Quality     *int
	SpatialAQ   *bool
	TemporalAQ  *bool
	Lookahead   *int
	Scale       *Scale
}

// NormalizedSettings is the fully-defaulted, internally consistent form
// consumed by the process driver. Never persisted; recomputed per process
// start.
type NormalizedSettings struct {
	Bitrate     string
	GPUEncode   bool
	HWEncoder   string
	Codec       string
	Preset      string
	RateControl string
	Quality     int
	SpatialAQ   bool
	TemporalAQ  bool
	Lookahead   int
	Scale       *Scale
}

// Normalize derives a fully-defaulted configuration from input alone. It only
// fills gaps, never overrides explicit values, so it is idempotent.
func Normalize(in Settings) NormalizedSettings {
	out := NormalizedSettings{
		Bitrate:     defaultString(in.Bitrate, DefaultBitrate),
		GPUEncode:   resolveGPUEncode(in),
		Codec:       defaultString(in.Codec, DefaultCodec),
		Preset:      defaultString(in.Preset, DefaultPreset),
		RateControl: defaultString(in.RateControl, DefaultRateControl),
		Quality:     DefaultQuality,
		SpatialAQ:   true,
		TemporalAQ:  true,
		Lookahead:   DefaultLookahead,
	}
	if in.Quality != nil {
		out.Quality = *in.Quality
	}
	if in.SpatialAQ != nil {
		out.SpatialAQ = *in.SpatialAQ
	}
	if in.TemporalAQ != nil {
		out.TemporalAQ = *in.TemporalAQ
	}
	if in.Lookahead != nil {
		out.Lookahead = *in.Lookahead
	}
	if out.GPUEncode {
		out.HWEncoder = defaultString(in.HWEncoder, HWEncoderAuto)
	}
	if in.Scale != nil && in.Scale.Width > 0 && in.Scale.Height > 0 {
		scale := *in.Scale
		out.Scale = &scale
	}
	return out
}

// AsSettings converts a normalized configuration back to the loose form.
// Every field comes back explicitly set, so feeding the result through
// Normalize again is a no-op.
func (n NormalizedSettings) AsSettings() Settings {
	gpu := n.GPUEncode
	quality := n.Quality
	spatial := n.SpatialAQ
	temporal := n.TemporalAQ
	lookahead := n.Lookahead
	out := Settings{
		Bitrate:     n.Bitrate,
		GPUEncode:   &gpu,
		HWEncoder:   n.HWEncoder,
		Codec:       n.Codec,
		Preset:      n.Preset,
		RateControl: n.RateControl,
		Quality:     &quality,
		SpatialAQ:   &spatial,
		TemporalAQ:  &temporal,
		Lookahead:   &lookahead,
	}
	if n.Scale != nil {
		scale := *n.Scale
		out.Scale = &scale
	}
	return out
}

func resolveGPUEncode(in Settings) bool {
	if in.GPUEncode != nil {
		return *in.GPUEncode
	}
	if in.UseHardwareAccel != nil {
		return *in.UseHardwareAccel
	}
	return false
}

func defaultString(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
