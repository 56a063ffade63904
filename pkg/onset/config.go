// Package onset implements real-time speech-onset detection for voice agents.
//
// The detector consumes a continuous stream of short audio frames (typically
// 10–20 ms) and reports the single frame at which sustained speech-like energy
// is first confirmed after a period of silence — the "barge-in" moment a voice
// agent uses to stop its own synthesized speech. Detection is per-frame with
// no lookahead: each ProcessFrame call is a pure, synchronous computation over
// the current frame plus a small amount of retained state (one previous
// magnitude spectrum and a bounded noise-floor history).
//
// A Detector adapts to background noise by tracking a median-based noise floor
// over frames classified as non-speech, and applies hysteresis (a higher enter
// threshold than exit threshold) plus run-length debouncing so that isolated
// noise spikes cannot trigger an onset.
//
// A Detector is not safe for concurrent use; create one per audio channel.
package onset

import (
	"errors"
	"fmt"
)

// Encoding identifies the wire format of the raw audio bytes fed to a Detector.
type Encoding string

const (
	// EncodingMuLaw is 8-bit ITU-T G.711 mu-law, one byte per sample.
	// Standard for telephony media streams (Twilio, Vonage, SIP).
	EncodingMuLaw Encoding = "mulaw"

	// EncodingPCM16 is little-endian signed 16-bit linear PCM, two bytes per
	// sample. Standard for WebRTC and local capture.
	EncodingPCM16 Encoding = "pcm16"
)

// IsValid reports whether e is a recognised encoding.
func (e Encoding) IsValid() bool {
	return e == EncodingMuLaw || e == EncodingPCM16
}

// SampleWidth returns the number of bytes per encoded sample, or 0 for an
// unrecognised encoding.
func (e Encoding) SampleWidth() int {
	switch e {
	case EncodingMuLaw:
		return 1
	case EncodingPCM16:
		return 2
	}
	return 0
}

// Config holds the immutable parameters of a Detector. Use one of the presets
// (Telephony, HighDefinition, Broadcast) as a starting point and adjust fields
// as needed; all values are validated by New.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must be positive.
	SampleRate int

	// Encoding is the byte format of frames passed to ProcessFrame.
	Encoding Encoding

	// FrameSize is the number of samples per frame. ProcessFrame requires the
	// supplied buffer to decode to exactly this many samples. 20 ms worth of
	// samples (SampleRate/50) is a good default.
	FrameSize int

	// PreEmphasis is the first-difference filter coefficient applied before
	// windowing: y[n] = x[n] - PreEmphasis*x[n-1]. Range [0, 1). Typical: 0.95.
	PreEmphasis float64

	// EnterThreshold is the multiplier over the adapted noise floor above
	// which a frame counts towards speech onset. Must be positive.
	EnterThreshold float64

	// ExitThreshold is the multiplier over the adapted noise floor below
	// which a frame counts towards speech offset. Must be positive and at
	// most EnterThreshold — the gap between the two provides hysteresis.
	// Default: 0.6 × EnterThreshold.
	ExitThreshold float64

	// OnsetFrames is the number of consecutive above-threshold frames
	// required to confirm a speech onset. Minimum 1. Typical: 3–5.
	OnsetFrames int

	// OffsetFrames is the number of consecutive below-threshold frames
	// required to confirm that a speech segment has ended. Minimum 1.
	OffsetFrames int

	// NoiseWindow is the maximum number of band-energy samples retained for
	// the rolling noise-floor median. Minimum 1. Typical: 50 (one second of
	// 20 ms frames).
	NoiseWindow int

	// NoiseFloorMultiplier scales the raw median before the enter/exit
	// thresholds are derived from it, giving headroom above the measured
	// ambient level. Must be positive. Typical: 1.5.
	NoiseFloorMultiplier float64
}

// Validate checks that c is a coherent configuration. It returns a joined
// error listing every validation failure found.
func (c Config) Validate() error {
	var errs []error

	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if !c.Encoding.IsValid() {
		errs = append(errs, fmt.Errorf("encoding %q is invalid; valid values: mulaw, pcm16", c.Encoding))
	}
	if c.FrameSize < 2 {
		errs = append(errs, fmt.Errorf("frame size must be at least 2 samples, got %d", c.FrameSize))
	}
	if c.PreEmphasis < 0 || c.PreEmphasis >= 1 {
		errs = append(errs, fmt.Errorf("pre-emphasis coefficient must be in [0, 1), got %g", c.PreEmphasis))
	}
	if c.EnterThreshold <= 0 {
		errs = append(errs, fmt.Errorf("enter threshold must be positive, got %g", c.EnterThreshold))
	}
	if c.ExitThreshold <= 0 {
		errs = append(errs, fmt.Errorf("exit threshold must be positive, got %g", c.ExitThreshold))
	}
	if c.ExitThreshold > 0 && c.EnterThreshold > 0 && c.ExitThreshold > c.EnterThreshold {
		errs = append(errs, fmt.Errorf("exit threshold (%g) must not exceed enter threshold (%g)", c.ExitThreshold, c.EnterThreshold))
	}
	if c.OnsetFrames < 1 {
		errs = append(errs, fmt.Errorf("onset confirmation frames must be at least 1, got %d", c.OnsetFrames))
	}
	if c.OffsetFrames < 1 {
		errs = append(errs, fmt.Errorf("offset confirmation frames must be at least 1, got %d", c.OffsetFrames))
	}
	if c.NoiseWindow < 1 {
		errs = append(errs, fmt.Errorf("noise window must be at least 1, got %d", c.NoiseWindow))
	}
	if c.NoiseFloorMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("noise floor multiplier must be positive, got %g", c.NoiseFloorMultiplier))
	}

	return errors.Join(errs...)
}

// Default detection parameters shared by all presets. The exit threshold is
// 0.6 × the enter threshold, which keeps offset latency low without letting
// the detector toggle near a single boundary value.
const (
	defaultPreEmphasis    = 0.95
	defaultEnterThreshold = 3.0
	defaultExitThreshold  = 1.8
	defaultOnsetFrames    = 3
	defaultOffsetFrames   = 5
	defaultNoiseWindow    = 50
	defaultFloorMult      = 1.5
)

func preset(sampleRate int, enc Encoding) Config {
	return Config{
		SampleRate:           sampleRate,
		Encoding:             enc,
		FrameSize:            sampleRate / 50, // 20 ms
		PreEmphasis:          defaultPreEmphasis,
		EnterThreshold:       defaultEnterThreshold,
		ExitThreshold:        defaultExitThreshold,
		OnsetFrames:          defaultOnsetFrames,
		OffsetFrames:         defaultOffsetFrames,
		NoiseWindow:          defaultNoiseWindow,
		NoiseFloorMultiplier: defaultFloorMult,
	}
}

// Telephony returns the configuration for telephony media streams: 8 kHz
// mu-law, 20 ms frames. Works with Twilio, Vonage, AWS Connect and any SIP
// provider.
func Telephony() Config {
	return preset(8000, EncodingMuLaw)
}

// HighDefinition returns the configuration for high-quality PCM16 streams
// (WebRTC, local microphones) at the given sample rate. A sampleRate of 0
// selects the 16 kHz default.
func HighDefinition(sampleRate int) Config {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return preset(sampleRate, EncodingPCM16)
}

// Broadcast returns the configuration for broadcast-quality audio: 22.05 kHz
// PCM16, 20 ms frames.
func Broadcast() Config {
	return preset(22050, EncodingPCM16)
}
