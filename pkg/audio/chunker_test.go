package audio_test

import (
	"bytes"
	"testing"

	"github.com/MrWong99/speechhook/pkg/audio"
)

func TestFrameChunkerExactFrame(t *testing.T) {
	c := audio.NewFrameChunker(4)
	frames := c.Push([]byte{1, 2, 3, 4})
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{1, 2, 3, 4}) {
		t.Errorf("frame = %v", frames[0])
	}
	if c.Buffered() != 0 {
		t.Errorf("Buffered = %d, want 0", c.Buffered())
	}
}

func TestFrameChunkerAccumulatesPartials(t *testing.T) {
	c := audio.NewFrameChunker(4)

	if frames := c.Push([]byte{1, 2}); frames != nil {
		t.Fatalf("partial push yielded %d frames", len(frames))
	}
	if c.Buffered() != 2 {
		t.Errorf("Buffered = %d, want 2", c.Buffered())
	}

	frames := c.Push([]byte{3, 4, 5})
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{1, 2, 3, 4}) {
		t.Errorf("frame = %v, want [1 2 3 4]", frames[0])
	}
	if c.Buffered() != 1 {
		t.Errorf("Buffered = %d, want 1", c.Buffered())
	}
}

func TestFrameChunkerMultipleFramesPerPush(t *testing.T) {
	c := audio.NewFrameChunker(2)
	frames := c.Push([]byte{1, 2, 3, 4, 5})
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if !bytes.Equal(frames[0], []byte{1, 2}) || !bytes.Equal(frames[1], []byte{3, 4}) {
		t.Errorf("frames = %v", frames)
	}
	if c.Buffered() != 1 {
		t.Errorf("Buffered = %d, want 1", c.Buffered())
	}
}

func TestFrameChunkerFramesSurviveLaterPushes(t *testing.T) {
	c := audio.NewFrameChunker(2)
	frames := c.Push([]byte{1, 2})
	c.Push([]byte{9, 9, 9, 9})
	if !bytes.Equal(frames[0], []byte{1, 2}) {
		t.Errorf("earlier frame mutated by later push: %v", frames[0])
	}
}

func TestFrameChunkerReset(t *testing.T) {
	c := audio.NewFrameChunker(4)
	c.Push([]byte{1, 2, 3})
	c.Reset()
	if c.Buffered() != 0 {
		t.Errorf("Buffered = %d after Reset, want 0", c.Buffered())
	}
	// Alignment restarts cleanly after reset.
	frames := c.Push([]byte{5, 6, 7, 8})
	if len(frames) != 1 || !bytes.Equal(frames[0], []byte{5, 6, 7, 8}) {
		t.Errorf("frames after Reset = %v", frames)
	}
}
