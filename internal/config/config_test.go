package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Tools.FFmpegBinary != "ffmpeg" || cfg.Tools.FFprobeBinary != "ffprobe" {
		t.Fatalf("unexpected tool defaults: %+v", cfg.Tools)
	}
	if cfg.Workflow.ItemSettleDelayMS != 500 {
		t.Fatalf("unexpected settle delay default: %d", cfg.Workflow.ItemSettleDelayMS)
	}
	if !cfg.Encoding.SpatialAQ || !cfg.Encoding.TemporalAQ {
		t.Fatalf("expected adaptive quantization enabled by default: %+v", cfg.Encoding)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subburn.toml")
	content := strings.Join([]string{
		"[tools]",
		`ffmpeg_binary = "/opt/ffmpeg/bin/ffmpeg"`,
		"",
		"[workflow]",
		"item_settle_delay_ms = 250",
		"",
		"[encoding]",
		`bitrate = "5000k"`,
		"gpu_encode = true",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected config file to be found, exists=%v resolved=%q", exists, resolved)
	}
	if cfg.Tools.FFmpegBinary != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("ffmpeg binary override lost: %q", cfg.Tools.FFmpegBinary)
	}
	if cfg.Workflow.ItemSettleDelayMS != 250 {
		t.Fatalf("settle delay override lost: %d", cfg.Workflow.ItemSettleDelayMS)
	}
	if cfg.Encoding.Bitrate != "5000k" || !cfg.Encoding.GPUEncode {
		t.Fatalf("encoding overrides lost: %+v", cfg.Encoding)
	}
	// Untouched sections keep defaults.
	if cfg.Tools.FFprobeBinary != "ffprobe" {
		t.Fatalf("ffprobe default lost: %q", cfg.Tools.FFprobeBinary)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty ffmpeg", func(c *Config) { c.Tools.FFmpegBinary = "" }},
		{"zero probe timeout", func(c *Config) { c.Tools.DurationProbeTimeout = 0 }},
		{"negative delay", func(c *Config) { c.Workflow.ItemSettleDelayMS = -1 }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"quality out of range", func(c *Config) { c.Encoding.Quality = 99 }},
		{"half scale", func(c *Config) { c.Encoding.ScaleWidth = 1280 }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
