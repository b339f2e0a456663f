// Package bitstring provides validation and classical reference helpers for
// the binary inputs of the matching circuits.
package bitstring

import (
	"fmt"
	"math/bits"
	"strings"
)

// Bitstring is a validated binary string. Position 0 is the leftmost
// character, matching the window indexing used by the circuit builders.
type Bitstring string

// Parse validates s as a power-of-two-length binary string.
func Parse(s string) (Bitstring, error) {
	if s == "" {
		return "", fmt.Errorf("bitstring is empty")
	}
	if !IsPowerOfTwo(len(s)) {
		return "", fmt.Errorf("bitstring length %d is not a power of two", len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return "", fmt.Errorf("bitstring contains %q at position %d, expected 0 or 1", s[i], i)
		}
	}
	return Bitstring(s), nil
}

// ParsePair validates two equally sized bitstrings.
func ParsePair(x, y string) (Bitstring, Bitstring, error) {
	bx, err := Parse(x)
	if err != nil {
		return "", "", fmt.Errorf("x: %w", err)
	}
	by, err := Parse(y)
	if err != nil {
		return "", "", fmt.Errorf("y: %w", err)
	}
	if len(bx) != len(by) {
		return "", "", fmt.Errorf("input lengths do not match: %d vs %d", len(bx), len(by))
	}
	return bx, by, nil
}

// Len returns the number of bits.
func (b Bitstring) Len() int { return len(b) }

// Bit returns bit i as 0 or 1.
func (b Bitstring) Bit(i int) int {
	if b[i] == '1' {
		return 1
	}
	return 0
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns log2(n) for a power-of-two n.
func Log2(n int) int {
	return bits.Len(uint(n)) - 1
}

// Pad extends s to the next power-of-two length with the filler character.
// Strings already at a power-of-two length are returned unchanged.
func Pad(s string, filler byte) string {
	if s == "" || IsPowerOfTwo(len(s)) {
		return s
	}
	target := 1 << bits.Len(uint(len(s)))
	return s + strings.Repeat(string(filler), target-len(s))
}

// MatchOffsets returns the offsets j in [0, len(x)-d] for which
// x[j:j+d] == y[0:d]. It is the classical reference for the circuits and is
// used by tests as ground truth.
func MatchOffsets(x, y string, d int) []int {
	var offsets []int
	if d <= 0 || d > len(y) || d > len(x) {
		return offsets
	}
	pattern := y[:d]
	for j := 0; j+d <= len(x); j++ {
		if x[j:j+d] == pattern {
			offsets = append(offsets, j)
		}
	}
	return offsets
}
