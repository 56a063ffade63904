package onset

import "math"

// Speech band limits in Hz. Bins outside this range are excluded from the
// band-energy sum; the upper edge is clipped to Nyquist at low sample rates.
const (
	speechBandLowHz  = 300.0
	speechBandHighHz = 3400.0
)

// FeatureVector holds the per-frame acoustic features the detector computes.
// One vector is produced per processed frame; BandEnergy drives the onset
// state machine, SpectralFlux and ZeroCrossingRate are exposed for
// diagnostics.
type FeatureVector struct {
	// BandEnergy is the sum of squared spectral magnitudes within the speech
	// band (300–3400 Hz, clipped to Nyquist), normalized by frame length.
	// Non-negative.
	BandEnergy float64

	// SpectralFlux is the half-wave rectified frame-to-frame increase in
	// spectral magnitude, summed over all bins. Only magnitude growth counts,
	// so bursts register and decay does not. Non-negative.
	SpectralFlux float64

	// ZeroCrossingRate is the fraction of adjacent sample pairs whose signs
	// differ, in [0, 1]. High values indicate fricative/unvoiced content.
	ZeroCrossingRate float64
}

// featureExtractor computes a FeatureVector from a preprocessed frame. It
// retains exactly one previous magnitude spectrum for the spectral-flux
// difference; the two spectrum buffers are swapped in place each frame so
// per-frame memory is constant.
//
// The magnitude spectrum is computed with a per-bin Goertzel recurrence
// rather than an FFT: frame sizes are not restricted to powers of two
// (a 20 ms broadcast frame is 441 samples) and the bin count is small enough
// that the direct recurrence is cheap at frame rate.
type featureExtractor struct {
	frameSize int
	bins      int // N/2 + 1 spectrum bins, DC through Nyquist
	loBin     int // first speech-band bin
	hiBin     int // last speech-band bin (inclusive)
	coeffs    []float64
	prev      []float64
	cur       []float64
}

func newFeatureExtractor(sampleRate, frameSize int) *featureExtractor {
	bins := frameSize/2 + 1

	// Bin k covers frequency k * sampleRate / frameSize.
	lo := int(math.Ceil(speechBandLowHz * float64(frameSize) / float64(sampleRate)))
	hi := int(math.Floor(speechBandHighHz * float64(frameSize) / float64(sampleRate)))
	if hi > bins-1 {
		hi = bins - 1
	}
	if lo < 0 {
		lo = 0
	}
	if lo > hi {
		lo = hi
	}

	coeffs := make([]float64, bins)
	for k := range coeffs {
		coeffs[k] = 2 * math.Cos(2*math.Pi*float64(k)/float64(frameSize))
	}

	return &featureExtractor{
		frameSize: frameSize,
		bins:      bins,
		loBin:     lo,
		hiBin:     hi,
		coeffs:    coeffs,
		prev:      make([]float64, bins),
		cur:       make([]float64, bins),
	}
}

// extract computes the feature vector for one preprocessed frame and stores
// the frame's magnitude spectrum as "previous" for the next call. After
// construction or reset the previous spectrum is all-zero, so the first
// frame's flux equals its total spectral magnitude.
func (f *featureExtractor) extract(frame []float64) FeatureVector {
	for k := 0; k < f.bins; k++ {
		f.cur[k] = f.goertzelMagnitude(frame, k)
	}

	var band float64
	for k := f.loBin; k <= f.hiBin; k++ {
		band += f.cur[k] * f.cur[k]
	}
	band /= float64(f.frameSize)

	var flux float64
	for k := 0; k < f.bins; k++ {
		if d := f.cur[k] - f.prev[k]; d > 0 {
			flux += d
		}
	}

	// Swap spectra: current becomes previous, the old previous is reused as
	// next frame's scratch.
	f.prev, f.cur = f.cur, f.prev

	return FeatureVector{
		BandEnergy:       band,
		SpectralFlux:     flux,
		ZeroCrossingRate: zeroCrossingRate(frame),
	}
}

// reset clears the retained previous spectrum.
func (f *featureExtractor) reset() {
	for k := range f.prev {
		f.prev[k] = 0
	}
}

// goertzelMagnitude evaluates the magnitude of DFT bin k via the Goertzel
// recurrence s[n] = x[n] + coeff*s[n-1] - s[n-2].
func (f *featureExtractor) goertzelMagnitude(frame []float64, k int) float64 {
	coeff := f.coeffs[k]
	var s1, s2 float64
	for _, x := range frame {
		s0 := x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		// Rounding can push near-zero power slightly negative.
		power = 0
	}
	return math.Sqrt(power)
}

// zeroCrossingRate returns the fraction of adjacent sample pairs with
// differing signs. Zero samples count as non-negative.
func zeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i] >= 0) != (frame[i-1] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}
