// Package encoding prepares the computational-basis input registers.
package encoding

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/qumatch/internal/circuit"
	"github.com/aristath/qumatch/internal/domain"
	"github.com/aristath/qumatch/pkg/bitstring"
)

// Encoder loads two equal-length power-of-two bitstrings into basis-aligned
// quantum registers. Downstream builders treat the registers as read-only:
// they only ever appear as controls or swap operands, never as targets of
// another state preparation.
type Encoder struct {
	log zerolog.Logger
}

// New creates an encoder.
func New(log zerolog.Logger) *Encoder {
	return &Encoder{log: log.With().Str("component", "encoder").Logger()}
}

// Encode validates x and y, allocates the X and Y registers on qc and emits
// the minimal gate sequence preparing |x> ⊗ |y>: one X gate per set bit.
// Register qubit i carries string position i (position 0 is the leftmost
// character).
func (e *Encoder) Encode(qc *circuit.Circuit, x, y string) (rx, ry circuit.Register, err error) {
	bx, by, perr := bitstring.ParsePair(x, y)
	if perr != nil {
		return rx, ry, fmt.Errorf("%w: %v", domain.ErrInvalidInput, perr)
	}

	n := bx.Len()
	rx = qc.AllocRegister("X", n)
	ry = qc.AllocRegister("Y", n)

	for i := 0; i < n; i++ {
		if bx.Bit(i) == 1 {
			qc.X(rx.Qubit(i))
		}
		if by.Bit(i) == 1 {
			qc.X(ry.Qubit(i))
		}
	}

	e.log.Debug().Int("n", n).Msg("Encoded input registers")
	return rx, ry, qc.Err()
}
