// Package audio provides byte-level PCM helpers for feeding fixed-size frames
// to the onset detector: accumulation of arbitrary-length network chunks into
// exact frames, and sample-rate conversion for PCM16 sources whose rate does
// not match the detector's.
package audio

// FrameChunker accumulates raw audio bytes delivered in arbitrary-length
// chunks (WebSocket messages, RTP payloads) and yields exact frame-size
// buffers. The onset detector requires exact frames and performs no internal
// re-buffering, so every transport feeds through a chunker.
//
// Not safe for concurrent use; create one per stream.
type FrameChunker struct {
	frameBytes int
	buf        []byte
}

// NewFrameChunker creates a chunker that emits frames of frameBytes bytes.
func NewFrameChunker(frameBytes int) *FrameChunker {
	return &FrameChunker{frameBytes: frameBytes}
}

// Push appends p to the internal buffer and returns all complete frames now
// available, in arrival order. Returned frames are copies and remain valid
// after subsequent calls. Leftover bytes are retained for the next Push.
func (c *FrameChunker) Push(p []byte) [][]byte {
	c.buf = append(c.buf, p...)

	var frames [][]byte
	for len(c.buf) >= c.frameBytes {
		frame := make([]byte, c.frameBytes)
		copy(frame, c.buf[:c.frameBytes])
		frames = append(frames, frame)
		c.buf = c.buf[c.frameBytes:]
	}

	// Compact: drop the consumed prefix so the buffer does not grow without
	// bound across a long stream.
	if len(c.buf) == 0 {
		c.buf = c.buf[:0]
	} else {
		remaining := make([]byte, len(c.buf))
		copy(remaining, c.buf)
		c.buf = remaining
	}
	return frames
}

// Buffered returns the number of bytes held back waiting for a full frame.
// Always less than the frame size after a Push.
func (c *FrameChunker) Buffered() int {
	return len(c.buf)
}

// Reset discards any buffered partial frame. Use when the stream restarts so
// stale bytes from the previous segment cannot shift frame alignment.
func (c *FrameChunker) Reset() {
	c.buf = c.buf[:0]
}
