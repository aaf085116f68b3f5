package encoding

import "strings"

// The subtitles filter reads its filename argument through three parsers in
// sequence, each with its own escape rules: the filename option value (quotes
// and the backslash itself), the filter option separator (colons, which split
// options, including Windows drive letters), and the filtergraph syntax
// (brackets, commas, semicolons). Each layer prefixes its reserved characters
// with a backslash after first doubling existing backslashes, which keeps
// every layer individually invertible so the composed argument round-trips to
// the original path byte-for-byte.

var (
	filenameLayer = []rune{'\'', '"'}
	optionLayer   = []rune{':'}
	graphLayer    = []rune{'[', ']', ',', ';'}
)

// EscapeSubtitlePath escapes a filesystem path for use as the subtitles
// filter's filename argument.
func EscapeSubtitlePath(path string) string {
	escaped := escapeLayer(path, filenameLayer)
	escaped = escapeLayer(escaped, optionLayer)
	return escapeLayer(escaped, graphLayer)
}

func escapeLayer(s string, reserved []rune) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if r == '\\' || runeIn(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UnescapeLayer removes one level of backslash escaping: every backslash
// makes the following rune literal. Applying it three times inverts
// EscapeSubtitlePath; exported so the escaping contract stays testable
// against the filter's parsing behavior.
func UnescapeLayer(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

func runeIn(set []rune, r rune) bool {
	for _, candidate := range set {
		if candidate == r {
			return true
		}
	}
	return false
}
