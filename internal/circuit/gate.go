package circuit

// Kind identifies a gate. The builder set is deliberately small: every kind
// is self-inverse, which is what makes range-based uncomputation sound.
type Kind string

const (
	KindX     Kind = "x"
	KindH     Kind = "h"
	KindCX    Kind = "cx"
	KindCCX   Kind = "ccx"
	KindSwap  Kind = "swap"
	KindCSwap Kind = "cswap"
)

// Gate is one operation over global qubit indices.
type Gate struct {
	Kind     Kind  `msgpack:"k" json:"kind"`
	Controls []int `msgpack:"c,omitempty" json:"controls,omitempty"`
	Targets  []int `msgpack:"t" json:"targets"`
}

// Qubits returns every qubit the gate touches, controls first.
func (g Gate) Qubits() []int {
	qs := make([]int, 0, len(g.Controls)+len(g.Targets))
	qs = append(qs, g.Controls...)
	qs = append(qs, g.Targets...)
	return qs
}
