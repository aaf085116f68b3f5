package config

// Default returns the built-in configuration values.
func Default() Config {
	return Config{
		Paths: Paths{},
		Tools: Tools{
			FFmpegBinary:         "ffmpeg",
			FFprobeBinary:        "ffprobe",
			DurationProbeTimeout: 10,
			EncoderProbeTimeout:  5,
		},
		Workflow: Workflow{
			ItemSettleDelayMS: 500,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
		Encoding: Encoding{
			Bitrate:     "2400k",
			Codec:       "h264",
			Preset:      "medium",
			RateControl: "vbr_hq",
			Quality:     23,
			SpatialAQ:   true,
			TemporalAQ:  true,
			Lookahead:   20,
		},
	}
}
