package sim

import (
	"context"
	"math"
	"testing"

	"github.com/aristath/qumatch/internal/circuit"
	"github.com/aristath/qumatch/pkg/logger"
)

func TestHadamardSplitsEvenly(t *testing.T) {
	qc := circuit.New()
	r := qc.AllocRegister("q", 1)
	qc.H(r.Qubit(0))
	qc.Measure(r.Qubit(0), 0)
	if err := qc.Freeze(); err != nil {
		t.Fatal(err)
	}

	a := New(logger.New(logger.Config{Level: "error"}))
	res, err := a.Execute(context.Background(), qc, 1000)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Counts["0"] != 500 || res.Counts["1"] != 500 {
		t.Errorf("expected 500/500 split, got %v", res.Counts)
	}
}

func TestBellState(t *testing.T) {
	qc := circuit.New()
	r := qc.AllocRegister("q", 2)
	qc.H(r.Qubit(0))
	qc.CX(r.Qubit(0), r.Qubit(1))
	qc.Measure(r.Qubit(0), 0)
	qc.Measure(r.Qubit(1), 1)
	if err := qc.Freeze(); err != nil {
		t.Fatal(err)
	}

	state, err := Run(qc, DefaultMaxQubits)
	if err != nil {
		t.Fatal(err)
	}
	probs := state.ClassicalProbabilities(qc.Bindings())
	if math.Abs(probs["00"]-0.5) > 1e-9 || math.Abs(probs["11"]-0.5) > 1e-9 {
		t.Errorf("Bell state probabilities = %v", probs)
	}
	if probs["01"] != 0 || probs["10"] != 0 {
		t.Errorf("unexpected mass on odd-parity outcomes: %v", probs)
	}
}

func TestControlledSwapRoutes(t *testing.T) {
	// |1> control swaps a set bit from qubit 1 to qubit 2.
	qc := circuit.New()
	r := qc.AllocRegister("q", 3)
	qc.X(r.Qubit(0))
	qc.X(r.Qubit(1))
	qc.CSwap(r.Qubit(0), r.Qubit(1), r.Qubit(2))

	state, err := Run(qc, DefaultMaxQubits)
	if err != nil {
		t.Fatal(err)
	}
	want := (1 << 0) | (1 << 2)
	if math.Abs(state.Probability(want)-1) > 1e-9 {
		t.Errorf("expected all mass on basis %b", want)
	}
}

func TestCCXTruthTable(t *testing.T) {
	tests := []struct {
		name       string
		c1, c2     bool
		wantFlip   bool
	}{
		{name: "both controls set", c1: true, c2: true, wantFlip: true},
		{name: "one control set", c1: true, c2: false, wantFlip: false},
		{name: "no control set", c1: false, c2: false, wantFlip: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qc := circuit.New()
			r := qc.AllocRegister("q", 3)
			if tt.c1 {
				qc.X(r.Qubit(0))
			}
			if tt.c2 {
				qc.X(r.Qubit(1))
			}
			qc.CCX(r.Qubit(0), r.Qubit(1), r.Qubit(2))

			state, err := Run(qc, DefaultMaxQubits)
			if err != nil {
				t.Fatal(err)
			}
			targetSet := state.QubitZeroProbability(r.Qubit(2)) < 0.5
			if targetSet != tt.wantFlip {
				t.Errorf("target flipped = %v, want %v", targetSet, tt.wantFlip)
			}
		})
	}
}

func TestExecuteRejectsUnfrozen(t *testing.T) {
	qc := circuit.New()
	r := qc.AllocRegister("q", 1)
	qc.Measure(r.Qubit(0), 0)

	a := New(logger.New(logger.Config{Level: "error"}))
	if _, err := a.Execute(context.Background(), qc, 10); err == nil {
		t.Error("expected error for unfrozen circuit")
	}
}

func TestRunRejectsOversizedCircuit(t *testing.T) {
	qc := circuit.New()
	qc.AllocRegister("q", 30)
	if _, err := Run(qc, DefaultMaxQubits); err == nil {
		t.Error("expected capacity error")
	}
}

func TestQuantizeKeepsTotal(t *testing.T) {
	counts := quantize(map[string]float64{"00": 1.0 / 3, "01": 1.0 / 3, "10": 1.0 / 3}, 100)
	total := 0
	for _, c := range counts {
		total += c
	}
	if total != 100 {
		t.Errorf("total = %d, want 100", total)
	}
}
