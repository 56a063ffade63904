package onset

import "math"

// preprocessor applies pre-emphasis and a Hann analysis window to a frame.
// The window is precomputed for the configured frame size; Process writes
// into a reusable scratch buffer so the per-frame cost is allocation free.
type preprocessor struct {
	coeff   float64
	window  []float64
	scratch []float64
}

func newPreprocessor(frameSize int, coeff float64) *preprocessor {
	// Hann window of length frameSize.
	window := make([]float64, frameSize)
	for n := range window {
		window[n] = 0.5 * (1 - math.Cos(2*math.Pi*float64(n)/float64(frameSize-1)))
	}
	return &preprocessor{
		coeff:   coeff,
		window:  window,
		scratch: make([]float64, frameSize),
	}
}

// process applies the pre-emphasis filter y[n] = x[n] - coeff*x[n-1] followed
// by the Hann window. Each frame is filtered independently: y[0] = x[0], with
// no prior-sample carry across frame boundaries. The returned slice is the
// internal scratch buffer, valid until the next call.
//
// The caller guarantees len(samples) == len(p.window).
func (p *preprocessor) process(samples []float64) []float64 {
	out := p.scratch
	out[0] = samples[0] * p.window[0]
	for n := 1; n < len(samples); n++ {
		out[n] = (samples[n] - p.coeff*samples[n-1]) * p.window[n]
	}
	return out
}
