// Package sim is the idealized execution adapter: a noiseless statevector
// simulator used by tests and local runs. It is not a noise model and makes
// no claim about hardware behavior.
package sim

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/aristath/qumatch/internal/circuit"
)

// State holds the full amplitude vector. Basis index bit q corresponds to
// qubit q.
type State struct {
	Amps      []complex128
	NumQubits int
}

// NewState returns |0...0> over n qubits.
func NewState(n int) *State {
	amps := make([]complex128, 1<<n)
	amps[0] = 1
	return &State{Amps: amps, NumQubits: n}
}

// Run applies every gate of qc to a fresh state. The circuit does not need
// to be frozen, which lets tests inspect partial constructions, but any
// recorded builder error aborts.
func Run(qc *circuit.Circuit, maxQubits int) (*State, error) {
	if err := qc.Err(); err != nil {
		return nil, fmt.Errorf("circuit has builder error: %w", err)
	}
	if qc.Qubits() > maxQubits {
		return nil, fmt.Errorf("circuit needs %d qubits, simulator capacity is %d", qc.Qubits(), maxQubits)
	}
	s := NewState(qc.Qubits())
	for _, g := range qc.Gates() {
		s.apply(g)
	}
	return s, nil
}

func (s *State) apply(g circuit.Gate) {
	switch g.Kind {
	case circuit.KindX:
		s.controlledX(nil, g.Targets[0])
	case circuit.KindH:
		s.hadamard(g.Targets[0])
	case circuit.KindCX:
		s.controlledX(g.Controls, g.Targets[0])
	case circuit.KindCCX:
		s.controlledX(g.Controls, g.Targets[0])
	case circuit.KindSwap:
		s.controlledSwap(nil, g.Targets[0], g.Targets[1])
	case circuit.KindCSwap:
		s.controlledSwap(g.Controls, g.Targets[0], g.Targets[1])
	}
}

func (s *State) hadamard(q int) {
	f := complex(1/math.Sqrt2, 0)
	bit := 1 << q
	next := make([]complex128, len(s.Amps))
	for i := range s.Amps {
		if i&bit == 0 {
			j := i | bit
			next[i] = f * (s.Amps[i] + s.Amps[j])
			next[j] = f * (s.Amps[i] - s.Amps[j])
		}
	}
	s.Amps = next
}

// controlledX flips target on every basis state whose controls are all set.
// With no controls it is a plain X.
func (s *State) controlledX(controls []int, target int) {
	tBit := 1 << target
	cMask := mask(controls)
	for i := range s.Amps {
		if i&tBit == 0 && i&cMask == cMask {
			j := i | tBit
			s.Amps[i], s.Amps[j] = s.Amps[j], s.Amps[i]
		}
	}
}

// controlledSwap exchanges qubits a and b on every basis state whose
// controls are all set.
func (s *State) controlledSwap(controls []int, a, b int) {
	aBit, bBit := 1<<a, 1<<b
	cMask := mask(controls)
	for i := range s.Amps {
		if i&aBit != 0 && i&bBit == 0 && i&cMask == cMask {
			j := (i &^ aBit) | bBit
			s.Amps[i], s.Amps[j] = s.Amps[j], s.Amps[i]
		}
	}
}

func mask(qubits []int) int {
	m := 0
	for _, q := range qubits {
		m |= 1 << q
	}
	return m
}

// Probability returns |amp|^2 of one basis state.
func (s *State) Probability(basis int) float64 {
	a := s.Amps[basis]
	return real(a * cmplx.Conj(a))
}

// QubitZeroProbability returns the total probability mass on basis states
// where qubit q is 0. A fully uncomputed ancilla reports 1 (up to rounding).
func (s *State) QubitZeroProbability(q int) float64 {
	bit := 1 << q
	p := 0.0
	for i, a := range s.Amps {
		if i&bit == 0 {
			p += real(a * cmplx.Conj(a))
		}
	}
	return p
}

// ClassicalProbabilities projects the state onto the classical register
// defined by the measurement bindings. Keys are highest classical bit first.
func (s *State) ClassicalProbabilities(bindings []circuit.Binding) map[string]float64 {
	k := 0
	for _, b := range bindings {
		if b.Cbit+1 > k {
			k = b.Cbit + 1
		}
	}
	probs := make(map[string]float64)
	for i, a := range s.Amps {
		p := real(a * cmplx.Conj(a))
		if p < 1e-12 {
			continue
		}
		key := make([]byte, k)
		for j := range key {
			key[j] = '0'
		}
		for _, b := range bindings {
			if i&(1<<b.Qubit) != 0 {
				key[k-1-b.Cbit] = '1'
			}
		}
		probs[string(key)] += p
	}
	return probs
}
