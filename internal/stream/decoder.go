package stream

import "strings"

// LineDecoder turns arbitrarily-sized text fragments into complete
// newline-delimited lines. An incomplete tail is buffered between calls, so
// a line split at any byte offset decodes identically to the same line
// delivered whole.
type LineDecoder struct {
	buf strings.Builder
}

// Feed appends a fragment and returns the complete lines it unlocked, in
// order. Trailing carriage returns are stripped. An empty fragment is a
// no-op unless the buffer already holds complete lines.
func (d *LineDecoder) Feed(fragment string) []string {
	d.buf.WriteString(fragment)

	data := d.buf.String()
	if !strings.Contains(data, "\n") {
		return nil
	}

	parts := strings.Split(data, "\n")
	tail := parts[len(parts)-1]
	lines := parts[:len(parts)-1]

	d.buf.Reset()
	d.buf.WriteString(tail)

	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// Pending reports whether an incomplete tail is buffered.
func (d *LineDecoder) Pending() bool {
	return d.buf.Len() > 0
}

// Discard drops any buffered partial content. Called when the transport
// closes: a tail without a trailing newline is non-data and must never be
// parsed as a line.
func (d *LineDecoder) Discard() {
	d.buf.Reset()
}
