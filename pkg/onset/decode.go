package onset

import "fmt"

// muLawTable maps each of the 256 mu-law code bytes to its normalized linear
// value in [-1, 1]. Precomputed once at package load; decoding a frame is then
// a single table lookup per byte.
var muLawTable = buildMuLawTable()

// buildMuLawTable expands every 8-bit code per the ITU-T G.711 mu-law
// definition: complement the byte, split into sign / exponent / mantissa,
// rebuild the 16-bit magnitude with the 0x84 bias, then normalize by the
// 16-bit full-scale range. Code 0x00 maps to -32124/32768 and 0xFF to 0.
func buildMuLawTable() [256]float64 {
	var table [256]float64
	for i := range 256 {
		u := ^byte(i)
		magnitude := int32((u&0x0F)<<3) + 0x84
		magnitude <<= (u & 0x70) >> 4
		pcm := magnitude - 0x84
		if u&0x80 != 0 {
			pcm = -pcm
		}
		table[i] = float64(pcm) / 32768.0
	}
	return table
}

// decodeSamples converts a raw byte buffer into normalized float samples in
// [-1, 1] according to enc. It is a pure function: no detector state is read
// or written.
//
// Returns ErrInvalidBufferLength (wrapped with the offending length) when the
// buffer is not a whole number of samples.
func decodeSamples(enc Encoding, buf []byte) ([]float64, error) {
	width := enc.SampleWidth()
	if width == 0 {
		return nil, fmt.Errorf("onset: unsupported encoding %q", enc)
	}
	if len(buf)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes with %d-byte samples (%s)", ErrInvalidBufferLength, len(buf), width, enc)
	}

	switch enc {
	case EncodingMuLaw:
		samples := make([]float64, len(buf))
		for i, b := range buf {
			samples[i] = muLawTable[b]
		}
		return samples, nil
	case EncodingPCM16:
		samples := make([]float64, len(buf)/2)
		for i := range samples {
			s := int16(buf[i*2]) | int16(buf[i*2+1])<<8
			samples[i] = float64(s) / 32768.0
		}
		return samples, nil
	}
	return nil, fmt.Errorf("onset: unsupported encoding %q", enc)
}

// DecodeMuLaw expands a single G.711 mu-law code byte to its normalized
// linear value. Exposed for callers that need to inspect or verify the
// decode table (e.g. against reference vectors).
func DecodeMuLaw(b byte) float64 {
	return muLawTable[b]
}
