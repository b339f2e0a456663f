// Package oracle builds the reversible window-equality test.
package oracle

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/qumatch/internal/circuit"
	"github.com/aristath/qumatch/internal/domain"
)

// Oracle flags equality of a d-bit window of X against the first d bits of Y
// into a single flag qubit. The reduction is tree structured: a layer of
// per-bit equality cells followed by log2(d) levels of pairwise Toffolis, so
// the depth is O(log d) rather than O(d).
//
// Every ancilla is uncomputed back to |0> after the flag is latched. This is
// not optional hygiene: SFSC applies the oracle inside a superposition over
// window offsets, and any residual ancilla state would entangle with the
// index register and corrupt the interference between branches.
type Oracle struct {
	log zerolog.Logger
}

// New creates an oracle builder.
func New(log zerolog.Logger) *Oracle {
	return &Oracle{log: log.With().Str("component", "oracle").Logger()}
}

// Apply emits flag ^= AND_{i<d} (x[base+i] == y[i]) onto qc. d must be a
// power of two. The window [base, base+d) must lie inside rx.
func (o *Oracle) Apply(qc *circuit.Circuit, rx, ry circuit.Register, base, d, flag int) error {
	if base < 0 || base+d > rx.Size {
		return fmt.Errorf("%w: window [%d,%d) exceeds register size %d",
			domain.ErrWindowOutOfBounds, base, base+d, rx.Size)
	}
	if d > ry.Size {
		return fmt.Errorf("%w: window size %d exceeds pattern register size %d",
			domain.ErrWindowOutOfBounds, d, ry.Size)
	}

	mark := qc.Len()

	// Per-bit equality cells: eq[i] = NOT(x[base+i] XOR y[i]).
	eq := qc.AllocAncilla("eq", d)
	for i := 0; i < d; i++ {
		qc.CX(rx.Qubit(base+i), eq.Qubit(i))
		qc.CX(ry.Qubit(i), eq.Qubit(i))
		qc.X(eq.Qubit(i))
	}

	// Pairwise AND tree. Each level halves the fan-in.
	blocks := []*circuit.Ancilla{eq}
	cur := eq.Reg.Qubits()
	level := 0
	for len(cur) > 1 {
		level++
		next := qc.AllocAncilla(fmt.Sprintf("and%d", level), len(cur)/2)
		for k := 0; k+1 < len(cur); k += 2 {
			qc.CCX(cur[k], cur[k+1], next.Qubit(k/2))
		}
		blocks = append(blocks, next)
		cur = next.Reg.Qubits()
	}

	computeEnd := qc.Len()

	// Latch the result, then uncompute everything before the latch.
	qc.CX(cur[0], flag)
	qc.UncomputeRange(mark, computeEnd)

	for i := len(blocks) - 1; i >= 0; i-- {
		qc.Release(blocks[i])
	}

	o.log.Debug().
		Int("base", base).
		Int("d", d).
		Int("levels", level).
		Msg("Applied equality oracle")
	return qc.Err()
}
