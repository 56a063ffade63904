package onset

import "errors"

// ErrInvalidBufferLength is returned by ProcessFrame when the byte buffer
// length is not a multiple of the configured encoding's sample width
// (1 byte for mu-law, 2 bytes for PCM16). The detector state is left
// unchanged. This indicates a caller bug in chunking, not a transient
// condition to retry.
var ErrInvalidBufferLength = errors.New("onset: buffer length is not a multiple of the sample width")

// ErrFrameSizeMismatch is returned by ProcessFrame when the buffer decodes to
// a sample count different from the configured frame size. The detector state
// is left unchanged. Callers must buffer audio to exact frame size before
// calling; the detector performs no internal re-buffering.
var ErrFrameSizeMismatch = errors.New("onset: decoded sample count does not match the configured frame size")
