package onset

import "fmt"

// State enumerates the detector's hysteresis states.
type State int

const (
	// StateIdle: no speech; the noise floor adapts freely.
	StateIdle State = iota

	// StateRising: above-threshold energy observed but not yet confirmed for
	// OnsetFrames consecutive frames.
	StateRising

	// StateSpeaking: speech confirmed; the noise floor is frozen.
	StateSpeaking

	// StateFalling: below-exit-threshold energy observed during speech but
	// not yet confirmed for OffsetFrames consecutive frames.
	StateFalling
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRising:
		return "rising"
	case StateSpeaking:
		return "speaking"
	case StateFalling:
		return "falling"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Detector detects speech onset in a stream of fixed-size audio frames.
//
// Each ProcessFrame call decodes one frame's bytes, extracts features, and
// advances a four-state hysteresis machine. The call returns true exactly on
// the single frame where an onset is confirmed (rising edge, not level
// triggered); every other frame returns false, including frames during
// already-confirmed speech.
//
// A Detector is single-threaded by design: every call mutates the noise-floor
// history and the state machine in place. Use one Detector per audio channel
// and serialise calls externally if needed.
type Detector struct {
	cfg   Config
	pre   *preprocessor
	feat  *featureExtractor
	floor *noiseFloor

	state    State
	aboveRun int // consecutive enter-threshold frames, meaningful while Rising
	belowRun int // consecutive below-exit frames, meaningful while Falling
	speech   int // running speech-frame counter for diagnostics

	last FeatureVector
}

// New constructs a Detector from cfg. The configuration is validated and then
// fixed for the detector's lifetime; invalid combinations are rejected, never
// silently corrected.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("onset: invalid config: %w", err)
	}
	return &Detector{
		cfg:   cfg,
		pre:   newPreprocessor(cfg.FrameSize, cfg.PreEmphasis),
		feat:  newFeatureExtractor(cfg.SampleRate, cfg.FrameSize),
		floor: newNoiseFloor(cfg.NoiseWindow, cfg.NoiseFloorMultiplier),
	}, nil
}

// ProcessFrame consumes one frame of raw audio bytes and reports whether a
// speech onset was confirmed on this frame.
//
// The buffer must decode to exactly the configured frame size under the
// configured encoding. On ErrInvalidBufferLength or ErrFrameSizeMismatch the
// frame contributes nothing and all detector state is left unchanged.
func (d *Detector) ProcessFrame(buf []byte) (bool, error) {
	samples, err := decodeSamples(d.cfg.Encoding, buf)
	if err != nil {
		return false, err
	}
	if len(samples) != d.cfg.FrameSize {
		return false, fmt.Errorf("%w: got %d samples, want %d", ErrFrameSizeMismatch, len(samples), d.cfg.FrameSize)
	}

	fv := d.feat.extract(d.pre.process(samples))
	d.last = fv

	adapted := d.floor.floor()
	onset := d.step(fv.BandEnergy, adapted*d.cfg.EnterThreshold, adapted*d.cfg.ExitThreshold)

	// The floor only learns from frames the machine just classified as
	// non-speech; while Rising or Speaking it stays frozen.
	if d.state == StateIdle || d.state == StateFalling {
		d.floor.observe(fv.BandEnergy)
	}

	return onset, nil
}

// step advances the state machine for one frame and reports whether this
// frame confirmed an onset.
func (d *Detector) step(energy, enter, exit float64) bool {
	switch d.state {
	case StateIdle:
		if energy >= enter {
			d.aboveRun = 1
			d.speech = 1
			if d.aboveRun >= d.cfg.OnsetFrames {
				d.state = StateSpeaking
				d.belowRun = 0
				return true
			}
			d.state = StateRising
		}

	case StateRising:
		if energy >= enter {
			d.aboveRun++
			d.speech = d.aboveRun
			if d.aboveRun >= d.cfg.OnsetFrames {
				d.state = StateSpeaking
				d.belowRun = 0
				return true
			}
		} else {
			d.state = StateIdle
			d.aboveRun = 0
			d.speech = 0
		}

	case StateSpeaking:
		d.speech++
		if energy < exit {
			d.belowRun = 1
			if d.belowRun >= d.cfg.OffsetFrames {
				d.endSpeech()
			} else {
				d.state = StateFalling
			}
		}

	case StateFalling:
		d.speech++
		if energy < exit {
			d.belowRun++
			if d.belowRun >= d.cfg.OffsetFrames {
				d.endSpeech()
			}
		} else {
			d.state = StateSpeaking
			d.belowRun = 0
		}
	}
	return false
}

// endSpeech completes a confirmed offset: back to Idle with both run counters
// cleared. Offset has no externally visible event.
func (d *Detector) endSpeech() {
	d.state = StateIdle
	d.aboveRun = 0
	d.belowRun = 0
	d.speech = 0
}

// Reset returns the detector to its freshly constructed form: state Idle,
// both run counters zero, noise-floor history cleared to the pre-warm
// default, and the retained previous spectrum zeroed. The configuration is
// unchanged. Useful to force recalibration after a known-silent gap or to
// bound state across very long sessions.
func (d *Detector) Reset() {
	d.endSpeech()
	d.floor.reset()
	d.feat.reset()
	d.last = FeatureVector{}
}

// IsSpeaking reports whether the detector currently considers the channel to
// contain speech. True in states Speaking and Falling — a segment still
// counts as speech until its offset is confirmed.
func (d *Detector) IsSpeaking() bool {
	return d.state == StateSpeaking || d.state == StateFalling
}

// ConsecutiveSpeechFrames returns the running count of frames in the current
// speech run: the confirmation counter while Rising, then the elapsed
// speaking frames once confirmed. Zero while Idle.
func (d *Detector) ConsecutiveSpeechFrames() int {
	return d.speech
}

// State returns the current hysteresis state.
func (d *Detector) State() State {
	return d.state
}

// NoiseFloor returns the current adapted noise floor the thresholds are
// derived from.
func (d *Detector) NoiseFloor() float64 {
	return d.floor.floor()
}

// LastFeatures returns the feature vector of the most recently processed
// frame. Zero value before any frame has been processed.
func (d *Detector) LastFeatures() FeatureVector {
	return d.last
}

// Config returns a copy of the detector's configuration.
func (d *Detector) Config() Config {
	return d.cfg
}
