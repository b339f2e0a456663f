// Package circuit provides the mutable-until-frozen gate-list representation
// shared by all circuit builders, together with qubit and depth accounting.
package circuit

import (
	"errors"
	"fmt"
)

// ErrFrozen is returned when a frozen circuit is mutated.
var ErrFrozen = errors.New("circuit is frozen")

// Binding maps a qubit to the classical bit that receives its measurement.
type Binding struct {
	Qubit int `msgpack:"q" json:"qubit"`
	Cbit  int `msgpack:"c" json:"cbit"`
}

// Circuit is an ordered gate sequence over allocated registers plus terminal
// measurement bindings. It is mutable during assembly and immutable after
// Freeze; freezing is the only synchronization point a run needs.
//
// Mutating methods record the first violation instead of returning an error
// at every gate; builders emit their gate sequence and check Err (or Freeze)
// once. This keeps tree-shaped emitters readable without dropping errors.
type Circuit struct {
	numQubits int
	gates     []Gate
	bindings  []Binding
	registers []Register
	ancillas  []*Ancilla
	frozen    bool
	err       error
}

// New creates an empty circuit.
func New() *Circuit {
	return &Circuit{}
}

// AllocRegister allocates a named register of the given size.
func (c *Circuit) AllocRegister(name string, size int) Register {
	if c.guard() || size <= 0 {
		if size <= 0 {
			c.setErr(fmt.Errorf("register %q: size %d must be positive", name, size))
		}
		return Register{Name: name}
	}
	r := Register{Name: name, Start: c.numQubits, Size: size}
	c.numQubits += size
	c.registers = append(c.registers, r)
	return r
}

// AllocAncilla allocates a helper block, reusing a released block of the same
// size when one exists. Reuse is only sound because Release is required to
// follow uncomputation, so a released block is back in |0...0>.
func (c *Circuit) AllocAncilla(name string, size int) *Ancilla {
	if c.guard() {
		return &Ancilla{Reg: Register{Name: name}}
	}
	for _, a := range c.ancillas {
		if a.released && a.Reg.Size == size {
			a.released = false
			a.Reg.Name = name
			return a
		}
	}
	a := &Ancilla{Reg: Register{Name: name, Start: c.numQubits, Size: size}}
	c.numQubits += size
	c.ancillas = append(c.ancillas, a)
	return a
}

// Release returns an ancilla block to the arena. The caller must have
// uncomputed it first.
func (c *Circuit) Release(a *Ancilla) {
	if c.guard() {
		return
	}
	if a.released {
		c.setErr(fmt.Errorf("ancilla %q released twice", a.Reg.Name))
		return
	}
	a.released = true
}

// Gate emitters. Every kind is self-inverse.

func (c *Circuit) X(q int)             { c.append(Gate{Kind: KindX, Targets: []int{q}}) }
func (c *Circuit) H(q int)             { c.append(Gate{Kind: KindH, Targets: []int{q}}) }
func (c *Circuit) CX(ctl, tgt int)     { c.append(Gate{Kind: KindCX, Controls: []int{ctl}, Targets: []int{tgt}}) }
func (c *Circuit) CCX(c1, c2, tgt int) { c.append(Gate{Kind: KindCCX, Controls: []int{c1, c2}, Targets: []int{tgt}}) }
func (c *Circuit) Swap(a, b int)       { c.append(Gate{Kind: KindSwap, Targets: []int{a, b}}) }
func (c *Circuit) CSwap(ctl, a, b int) { c.append(Gate{Kind: KindCSwap, Controls: []int{ctl}, Targets: []int{a, b}}) }

// Measure binds a qubit to a classical bit. Measurements are terminal; the
// executor reads them after all gates have been applied.
func (c *Circuit) Measure(qubit, cbit int) {
	if c.guard() {
		return
	}
	if qubit < 0 || qubit >= c.numQubits {
		c.setErr(fmt.Errorf("measure: qubit %d out of range [0,%d)", qubit, c.numQubits))
		return
	}
	if cbit < 0 {
		c.setErr(fmt.Errorf("measure: negative classical bit %d", cbit))
		return
	}
	c.bindings = append(c.bindings, Binding{Qubit: qubit, Cbit: cbit})
}

// Len returns the number of gates emitted so far. Builders use it to mark
// the start of a segment for UncomputeRange.
func (c *Circuit) Len() int { return len(c.gates) }

// UncomputeRange re-emits the gates in [from, to) in reverse order. Since
// every gate kind is self-inverse this exactly inverts the segment, which is
// how oracles and routing networks return their ancillas to |0>.
func (c *Circuit) UncomputeRange(from, to int) {
	if c.guard() {
		return
	}
	if from < 0 || to > len(c.gates) || from > to {
		c.setErr(fmt.Errorf("uncompute range [%d,%d) invalid for %d gates", from, to, len(c.gates)))
		return
	}
	// The slice is snapshotted up front: appending grows c.gates.
	segment := make([]Gate, to-from)
	copy(segment, c.gates[from:to])
	for i := len(segment) - 1; i >= 0; i-- {
		c.append(segment[i])
	}
}

// Freeze transitions Building -> Frozen. It fails if any emitter recorded an
// error or if an ancilla block is still live.
func (c *Circuit) Freeze() error {
	if c.err != nil {
		return c.err
	}
	if c.frozen {
		return ErrFrozen
	}
	for _, a := range c.ancillas {
		if !a.released {
			return fmt.Errorf("cannot freeze: ancilla %q still live", a.Reg.Name)
		}
	}
	c.frozen = true
	return nil
}

// Frozen reports whether the circuit has been frozen.
func (c *Circuit) Frozen() bool { return c.frozen }

// Err returns the first recorded builder error, including ErrFrozen misuse.
func (c *Circuit) Err() error { return c.err }

// Qubits returns the number of allocated qubits.
func (c *Circuit) Qubits() int { return c.numQubits }

// Cbits returns the classical register size implied by the bindings.
func (c *Circuit) Cbits() int {
	maxCbit := -1
	for _, b := range c.bindings {
		if b.Cbit > maxCbit {
			maxCbit = b.Cbit
		}
	}
	return maxCbit + 1
}

// Gates returns the gate list. Callers must treat it as read-only.
func (c *Circuit) Gates() []Gate { return c.gates }

// Bindings returns the measurement bindings. Read-only.
func (c *Circuit) Bindings() []Binding { return c.bindings }

// Registers returns the named (non-ancilla) registers. Read-only.
func (c *Circuit) Registers() []Register { return c.registers }

// Depth returns the critical-path depth under ASAP scheduling: gates touching
// disjoint qubits share a layer. Measurements are not counted.
func (c *Circuit) Depth() int {
	busy := make([]int, c.numQubits)
	depth := 0
	for _, g := range c.gates {
		layer := 0
		for _, q := range g.Qubits() {
			if busy[q] > layer {
				layer = busy[q]
			}
		}
		layer++
		for _, q := range g.Qubits() {
			busy[q] = layer
		}
		if layer > depth {
			depth = layer
		}
	}
	return depth
}

func (c *Circuit) guard() bool {
	if c.err != nil {
		return true
	}
	if c.frozen {
		c.err = ErrFrozen
		return true
	}
	return false
}

func (c *Circuit) setErr(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Circuit) append(g Gate) {
	if c.guard() {
		return
	}
	seen := make(map[int]bool, len(g.Controls)+len(g.Targets))
	for _, q := range g.Qubits() {
		if q < 0 || q >= c.numQubits {
			c.setErr(fmt.Errorf("gate %s: qubit %d out of range [0,%d)", g.Kind, q, c.numQubits))
			return
		}
		if seen[q] {
			c.setErr(fmt.Errorf("gate %s: duplicate qubit %d", g.Kind, q))
			return
		}
		seen[q] = true
	}
	c.gates = append(c.gates, g)
}
