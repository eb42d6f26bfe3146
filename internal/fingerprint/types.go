package fingerprint

import (
	"fmt"
	"strconv"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Signature is a 64-bit perceptual fingerprint of a normalized face crop.
type Signature uint64

// String returns the signature as 16 hex digits.
func (s Signature) String() string {
	return fmt.Sprintf("%016x", uint64(s))
}

// ParseSignature parses the hex form produced by String.
func ParseSignature(s string) (Signature, error) {
	if len(s) != 16 {
		return 0, fmt.Errorf("signature must be 16 hex digits, got %d", len(s))
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse signature %q: %w", s, err)
	}
	return Signature(v), nil
}

// Vector expands the signature into a 0/1 vector, most significant bit first.
// The L1 distance between two such vectors equals their Hamming distance.
func (s Signature) Vector() []float32 {
	vec := make([]float32, constants.SignatureBits)
	for i := range vec {
		if uint64(s)&(1<<(constants.SignatureBits-1-i)) != 0 {
			vec[i] = 1
		}
	}
	return vec
}

// FromVector is the inverse of Vector. Components above 0.5 are treated as set bits.
func FromVector(vec []float32) (Signature, error) {
	if len(vec) != constants.SignatureBits {
		return 0, fmt.Errorf("signature vector must have %d components, got %d", constants.SignatureBits, len(vec))
	}
	var s uint64
	for i, v := range vec {
		if v > 0.5 {
			s |= 1 << (constants.SignatureBits - 1 - i)
		}
	}
	return Signature(s), nil
}

// L1Distance is the Manhattan distance between two vectors.
// On signature vectors it counts differing bits.
func L1Distance(a, b []float32) float32 {
	if len(a) != len(b) {
		return float32(constants.SignatureBits)
	}
	var d float32
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		d += diff
	}
	return d
}
