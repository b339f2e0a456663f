// Package superpose turns the fixed-position comparison into an
// offset-parallel one by superposing over window offsets and routing the
// selected window of X in front of the oracle.
package superpose

import (
	"fmt"
	"math/bits"

	"github.com/rs/zerolog"

	"github.com/aristath/qumatch/internal/circuit"
	"github.com/aristath/qumatch/internal/domain"
)

// Superposer prepares the offset index register and emits the controlled
// addressing network: for every index bit b, a cyclic left rotation of X by
// 2^b controlled on that bit. The rotations compose, so index value j
// rotates X by j and the oracle always reads window [0, d) afterwards.
//
// Each controlled swap layer would serialize on the single index bit, so the
// bit is first fanned out into a copy register with a CX tree (O(log n)
// depth) and each swap gets its own control copy. This is the deliberate
// qubits-for-depth trade: O(log n) extra levels per addressed bit instead of
// O(n), and it is what keeps total depth within the cubic-log bound.
type Superposer struct {
	log zerolog.Logger
}

// New creates a superposer.
func New(log zerolog.Logger) *Superposer {
	return &Superposer{log: log.With().Str("component", "superposer").Logger()}
}

// IndexWidth returns the index register width for inputs of length n and
// window length d: ceil(log2(n-d+1)). Zero when only offset 0 is valid.
func IndexWidth(n, d int) int {
	count := n - d + 1
	if count <= 1 {
		return 0
	}
	return bits.Len(uint(count - 1))
}

// PrepareIndex allocates the index register and places it in uniform
// superposition over all 2^m index values. Values above n-d are an artifact
// of rounding the width up; the interpreter buckets them as out-of-range.
func (s *Superposer) PrepareIndex(qc *circuit.Circuit, n, d int) (circuit.Register, error) {
	m := IndexWidth(n, d)
	if m == 0 {
		return circuit.Register{}, fmt.Errorf("%w: single-offset range needs no index register", domain.ErrIndexRange)
	}
	if 1<<m < n-d+1 {
		return circuit.Register{}, fmt.Errorf("%w: width %d cannot address %d offsets",
			domain.ErrIndexRange, m, n-d+1)
	}

	idx := qc.AllocRegister("J", m)
	for i := 0; i < m; i++ {
		qc.H(idx.Qubit(i))
	}
	s.log.Debug().Int("width", m).Int("offsets", n-d+1).Msg("Prepared index register")
	return idx, qc.Err()
}

// Rotate emits the controlled rotation network onto qc and returns the gate
// range [from, to) it occupies. The assembler inverts the network after the
// oracle by uncomputing exactly that range; every gate in it is self-inverse.
func (s *Superposer) Rotate(qc *circuit.Circuit, rx, idx circuit.Register) (from, to int, err error) {
	from = qc.Len()
	for b := 0; b < idx.Size; b++ {
		s.rotateBit(qc, rx, idx.Qubit(b), 1<<b)
	}
	return from, qc.Len(), qc.Err()
}

// rotateBit rotates rx left by k, controlled on ctl.
func (s *Superposer) rotateBit(qc *circuit.Circuit, rx circuit.Register, ctl, k int) {
	n := rx.Size
	copies := qc.AllocAncilla("fan", n/2)

	fanStart := qc.Len()
	s.fanout(qc, ctl, copies)
	fanEnd := qc.Len()

	// Rotation by k as three reversals: reverse [0,k), reverse [k,n),
	// reverse [0,n). Each reversal is one layer of disjoint swaps.
	s.reverseLayer(qc, rx, copies, 0, k)
	s.reverseLayer(qc, rx, copies, k, n)
	s.reverseLayer(qc, rx, copies, 0, n)

	qc.UncomputeRange(fanStart, fanEnd)
	qc.Release(copies)
}

// fanout copies ctl into every qubit of the block with a doubling CX tree.
func (s *Superposer) fanout(qc *circuit.Circuit, ctl int, block *circuit.Ancilla) {
	count := block.Reg.Size
	if count == 0 {
		return
	}
	qc.CX(ctl, block.Qubit(0))
	for have := 1; have < count; have *= 2 {
		for i := 0; i < have && have+i < count; i++ {
			qc.CX(block.Qubit(i), block.Qubit(have+i))
		}
	}
}

// reverseLayer emits controlled swaps reversing rx[l:r], each swap driven by
// its own control copy.
func (s *Superposer) reverseLayer(qc *circuit.Circuit, rx circuit.Register, copies *circuit.Ancilla, l, r int) {
	for i := 0; l+i < r-1-i; i++ {
		qc.CSwap(copies.Qubit(i), rx.Qubit(l+i), rx.Qubit(r-1-i))
	}
}
