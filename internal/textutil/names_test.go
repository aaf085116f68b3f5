package textutil

import "testing"

func TestDisplayName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/media/the_big_lebowski.1998.mkv", "The Big Lebowski 1998"},
		{"movie-night.srt", "Movie Night"},
		{"simple.mp4", "Simple"},
		{"  /tmp/a__b.mkv ", "A B"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := DisplayName(tc.in); got != tc.want {
			t.Errorf("DisplayName(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}
