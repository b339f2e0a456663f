package circuit

// Register is a named, fixed-size run of qubit indices. Registers are owned
// by the circuit that allocated them and are never resized.
type Register struct {
	Name  string `msgpack:"n" json:"name"`
	Start int    `msgpack:"s" json:"start"`
	Size  int    `msgpack:"z" json:"size"`
}

// Qubit returns the global index of the i-th qubit of the register.
func (r Register) Qubit(i int) int { return r.Start + i }

// Qubits returns the register's global qubit indices in order.
func (r Register) Qubits() []int {
	qs := make([]int, r.Size)
	for i := range qs {
		qs[i] = r.Start + i
	}
	return qs
}

// Ancilla is an arena-allocated helper register. The allocate → use →
// uncompute → release protocol is enforced at freeze time: a circuit with a
// live (unreleased) ancilla cannot be frozen. Released blocks are reused by
// later allocations of the same size, which is what keeps the realized qubit
// count inside the closed-form bound.
type Ancilla struct {
	Reg      Register
	released bool
}

// Released reports whether the block has been returned to the arena.
func (a *Ancilla) Released() bool { return a.released }

// Qubit returns the global index of the i-th ancilla qubit.
func (a *Ancilla) Qubit(i int) int { return a.Reg.Qubit(i) }
