// Package transcript consolidates incremental speech-to-text fragments into a
// stable string.
package transcript

import (
	"strings"
	"unicode/utf8"
)

// DefaultOverlapWindow bounds, in characters, how far back Merge looks for a
// suffix/prefix overlap.
const DefaultOverlapWindow = 80

// Merge folds chunk into previous using DefaultOverlapWindow.
func Merge(previous, chunk string) string {
	return MergeWindow(previous, chunk, DefaultOverlapWindow)
}

// MergeWindow folds chunk into previous. Fragments may overlap, repeat, or
// restate the whole text so far; the result never contains separators that
// were not present in the input.
func MergeWindow(previous, chunk string, window int) string {
	switch {
	case chunk == "":
		return previous
	case previous == "":
		return chunk
	case strings.Contains(previous, chunk):
		return previous
	case len(chunk) > len(previous) && strings.Contains(chunk, previous):
		return chunk
	case strings.HasPrefix(chunk, previous):
		return chunk
	}

	if k := overlap(previous, chunk, window); k > 0 {
		return previous + chunk[k:]
	}

	// The stream may be character-granular, so no space is inserted.
	return previous + chunk
}

// overlap returns the byte length of the longest suffix of previous, at most
// window characters, that is also a prefix of chunk. Candidates start on rune
// boundaries so multi-byte text is never split.
func overlap(previous, chunk string, window int) int {
	start := len(previous)
	for n := 0; n < window && start > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(previous[:start])
		start -= size
	}

	for i := start; i < len(previous); {
		if suffix := previous[i:]; len(suffix) <= len(chunk) && strings.HasPrefix(chunk, suffix) {
			return len(suffix)
		}
		_, size := utf8.DecodeRuneInString(previous[i:])
		i += size
	}
	return 0
}
