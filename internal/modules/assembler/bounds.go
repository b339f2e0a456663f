package assembler

import "github.com/aristath/qumatch/pkg/bitstring"

// The asymptotic formulas below are contracts, not implementation detail:
// tests check the realized circuits against them, and callers can budget
// hardware before assembling anything.

// DepthConstant is the fixed constant in the depth bound. The dominant cost
// is the addressing network: O(log n) fanout levels per index bit over
// O(log n) bits, applied twice (route and unroute), which stays well inside
// a cubic log with this constant.
const DepthConstant = 16

// VolumeConstant scales the quantum-volume estimate.
const VolumeConstant = 13

// QubitCount returns the closed-form qubit bound for inputs of length n and
// window length d: 2(n+1)·log2(d) + (13/2)·n·log2(n). n and d must be powers
// of two.
func QubitCount(n, d int) int {
	return 2*(n+1)*bitstring.Log2(d) + 13*n*bitstring.Log2(n)/2
}

// DepthBound returns the depth bound DepthConstant·log2(n)^3.
func DepthBound(n int) int {
	l := bitstring.Log2(n)
	return DepthConstant * l * l * l
}

// VolumeBound returns the quantum-volume estimate VolumeConstant·n·log2(n)^4,
// the width-times-depth proxy for the qubits-for-depth trade-off.
func VolumeBound(n int) int {
	l := bitstring.Log2(n)
	return VolumeConstant * n * l * l * l * l
}
