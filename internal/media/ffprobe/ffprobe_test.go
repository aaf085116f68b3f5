package ffprobe

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"subburn/internal/services"
)

func TestParseSeconds(t *testing.T) {
	cases := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{"4141.292000\n", 4141.292, false},
		{"  83.5  ", 83.5, false},
		{"0", 0, false},
		{"N/A", 0, true},
		{"", 0, true},
		{"bogus", 0, true},
		{"-5", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseSeconds(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSeconds(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSeconds(%q): %v", tc.raw, err)
			continue
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ParseSeconds(%q)=%v want %v", tc.raw, got, tc.want)
		}
	}
}

func TestDurationRejectsEmptyPath(t *testing.T) {
	if _, err := Duration(context.Background(), "ffprobe", "", 0); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestDurationClassifiesDeadlineAsTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := Duration(ctx, "ffprobe-not-installed", "/media/a.mkv", time.Minute)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("err=%v want ErrTimeout", err)
	}
}
