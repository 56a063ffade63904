package onset

import "sort"

// defaultNoiseFloor is the conservative floor used before the history buffer
// has accumulated any samples, and the minimum the adapted floor may report.
// It keeps the derived thresholds strictly positive so digital silence can
// never satisfy the enter condition.
const defaultNoiseFloor = 1e-4

// noiseFloor maintains a robust rolling estimate of ambient band energy. The
// state machine pushes a sample only for frames it classified as non-speech,
// so confirmed speech energy is never absorbed into the estimate — otherwise
// the thresholds would drift upward and suppress detection of a second
// interruption right after the first.
//
// The statistic is a median rather than a mean: short energy bursts (door
// slams, breaths) land in the upper half of the window and leave the median
// untouched, where they would bias a mean upward and desensitise the detector.
type noiseFloor struct {
	multiplier float64

	ring    []float64 // bounded FIFO of non-speech band energies
	next    int       // write position
	count   int       // valid entries, ≤ len(ring)
	scratch []float64 // reused for median sorting
}

func newNoiseFloor(window int, multiplier float64) *noiseFloor {
	return &noiseFloor{
		multiplier: multiplier,
		ring:       make([]float64, window),
		scratch:    make([]float64, 0, window),
	}
}

// observe pushes one non-speech band-energy sample, evicting the oldest entry
// once the window is full.
func (n *noiseFloor) observe(energy float64) {
	n.ring[n.next] = energy
	n.next = (n.next + 1) % len(n.ring)
	if n.count < len(n.ring) {
		n.count++
	}
}

// floor returns the adapted noise floor: the median of the retained samples
// scaled by the configured multiplier, never below defaultNoiseFloor.
func (n *noiseFloor) floor() float64 {
	if n.count == 0 {
		return defaultNoiseFloor
	}
	f := n.median() * n.multiplier
	if f < defaultNoiseFloor {
		f = defaultNoiseFloor
	}
	return f
}

// reset discards all history, returning the floor to its pre-warm default.
func (n *noiseFloor) reset() {
	n.next = 0
	n.count = 0
}

func (n *noiseFloor) median() float64 {
	n.scratch = n.scratch[:0]
	if n.count == len(n.ring) {
		n.scratch = append(n.scratch, n.ring...)
	} else {
		n.scratch = append(n.scratch, n.ring[:n.count]...)
	}
	sort.Float64s(n.scratch)

	mid := len(n.scratch) / 2
	if len(n.scratch)%2 == 1 {
		return n.scratch[mid]
	}
	return (n.scratch[mid-1] + n.scratch[mid]) / 2
}
