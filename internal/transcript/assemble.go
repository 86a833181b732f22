// Package transcript accumulates and normalizes candidate speech captured between submits.
package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Options controls transcript assembly formatting behavior.
type Options struct {
	CapitalizeFirst bool
}

// Assemble joins final segments and applies configured normalization.
func Assemble(finalSegments []string, opts Options) string {
	if len(finalSegments) == 0 {
		return ""
	}

	normalized := cleanSegment(strings.Join(finalSegments, " "))
	if normalized == "" {
		return ""
	}

	if opts.CapitalizeFirst {
		normalized = capitalizeFirst(normalized)
	}
	return normalized
}

// appendSegment merges continuation segments to avoid duplicate transcript growth.
func appendSegment(segments []string, segment string) []string {
	segment = cleanSegment(segment)
	if segment == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, segment)
	}

	last := segments[len(segments)-1]
	switch {
	case segment == last:
		return segments
	case strings.HasPrefix(segment, last):
		segments[len(segments)-1] = segment
		return segments
	case strings.HasPrefix(last, segment):
		return segments
	default:
		return append(segments, segment)
	}
}

// cleanSegment normalizes transcript whitespace.
func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

func capitalizeFirst(text string) string {
	r, size := utf8.DecodeRuneInString(text)
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return text
	}
	return string(unicode.ToUpper(r)) + text[size:]
}
