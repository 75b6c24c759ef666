package transcript

import "strings"

// Buffer accumulates merged fragments for one in-flight turn. A Buffer is not
// safe for concurrent use; it is owned by the task that receives fragments.
type Buffer struct {
	turn   int
	text   string
	window int
}

// NewBuffer returns an empty buffer using the given overlap window.
// A non-positive window selects DefaultOverlapWindow.
func NewBuffer(window int) *Buffer {
	if window <= 0 {
		window = DefaultOverlapWindow
	}
	return &Buffer{window: window}
}

// Add merges a fragment that belongs to turn. A fragment for a different turn
// discards whatever was accumulated for the previous one.
func (b *Buffer) Add(turn int, fragment string) string {
	if turn != b.turn {
		b.turn = turn
		b.text = ""
	}
	b.text = MergeWindow(b.text, fragment, b.window)
	return b.text
}

// Turn returns the turn the buffer currently accumulates.
func (b *Buffer) Turn() int { return b.turn }

// Text returns the merged text with surrounding whitespace removed.
func (b *Buffer) Text() string { return strings.TrimSpace(b.text) }

// Reset discards the accumulated text once it has been committed.
func (b *Buffer) Reset() {
	b.turn = 0
	b.text = ""
}
