// Package assembler composes the encoder, oracle and superposer into one
// frozen circuit per matching mode.
package assembler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/qumatch/internal/circuit"
	"github.com/aristath/qumatch/internal/domain"
	"github.com/aristath/qumatch/internal/modules/encoding"
	"github.com/aristath/qumatch/internal/modules/oracle"
	"github.com/aristath/qumatch/internal/modules/superpose"
)

// Assembly is a frozen circuit plus the layout facts the interpreter and the
// stores need: realized width and depth, and the index register width.
type Assembly struct {
	Circuit    *circuit.Circuit
	Mode       domain.Mode
	N          int
	D          int
	IndexWidth int // 0 for FPM/FFP and for SFSC with a single valid offset
}

// Qubits returns the realized qubit count.
func (a *Assembly) Qubits() int { return a.Circuit.Qubits() }

// Depth returns the realized circuit depth.
func (a *Assembly) Depth() int { return a.Circuit.Depth() }

// Assembler builds one circuit per request. It is stateless across calls;
// each run owns its registers and circuit, so concurrent assemblies need no
// coordination.
type Assembler struct {
	log zerolog.Logger
	enc *encoding.Encoder
	orc *oracle.Oracle
	sup *superpose.Superposer
}

// New creates an assembler.
func New(log zerolog.Logger) *Assembler {
	return &Assembler{
		log: log.With().Str("component", "assembler").Logger(),
		enc: encoding.New(log),
		orc: oracle.New(log),
		sup: superpose.New(log),
	}
}

// Assemble validates the request, builds the mode's circuit and freezes it.
// Classical bit 0 receives the match flag; for SFSC, bits 1..m carry the
// offset register (bit 1+i is index bit i).
//
// A single function dispatching over the closed mode set keeps the shared
// oracle path factored once; the modes differ only in window base and in
// whether the addressing network wraps the oracle.
func (a *Assembler) Assemble(req domain.MatchRequest) (*Assembly, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	qc := circuit.New()
	rx, ry, err := a.enc.Encode(qc, req.X, req.Y)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	flagReg := qc.AllocRegister("out", 1)
	flag := flagReg.Qubit(0)
	n, d := rx.Size, req.Length

	asm := &Assembly{Circuit: qc, Mode: req.Mode, N: n, D: d}

	switch req.Mode {
	case domain.ModeFPM:
		err = a.orc.Apply(qc, rx, ry, 0, d, flag)

	case domain.ModeFFP:
		err = a.orc.Apply(qc, rx, ry, req.Position, d, flag)

	case domain.ModeSFSC:
		m := superpose.IndexWidth(n, d)
		asm.IndexWidth = m
		if m == 0 {
			// d == n: offset 0 is the only window, no index needed.
			err = a.orc.Apply(qc, rx, ry, 0, d, flag)
			break
		}
		var idx circuit.Register
		idx, err = a.sup.PrepareIndex(qc, n, d)
		if err != nil {
			break
		}
		var from, to int
		from, to, err = a.sup.Rotate(qc, rx, idx)
		if err != nil {
			break
		}
		if err = a.orc.Apply(qc, rx, ry, 0, d, flag); err != nil {
			break
		}
		// Unroute so X returns to its encoded state; the flag keeps the
		// per-branch verdict entangled with the index register.
		qc.UncomputeRange(from, to)
		for i := 0; i < m; i++ {
			qc.Measure(idx.Qubit(i), 1+i)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", req.Mode, err)
	}

	qc.Measure(flag, 0)
	if err := qc.Freeze(); err != nil {
		return nil, fmt.Errorf("freeze: %w", err)
	}

	a.log.Info().
		Str("mode", string(req.Mode)).
		Int("n", n).
		Int("d", d).
		Int("qubits", qc.Qubits()).
		Int("depth", qc.Depth()).
		Msg("Assembled circuit")
	return asm, nil
}
